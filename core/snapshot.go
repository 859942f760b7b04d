package core

import (
	"encoding/json"
	"fmt"

	"github.com/fluxfoundry/radiance-vf/geometry"
	"github.com/fluxfoundry/radiance-vf/radiance"
)

// snapshotVersion guards against loading archives written by an
// incompatible codec.
const snapshotVersion = 1

// Snapshot is the serialized form of a full registry: every surface with
// its geometry, material split, receiver order and any solved view
// factors, plus the pending invocation queue and the simulation
// parameters result ingestion depends on. Slices keep insertion order so
// a restored registry zips tool output exactly like the original.
type Snapshot struct {
	Version          int                   `json:"version"`
	Surfaces         []SurfaceSnapshot     `json:"surfaces"`
	Pending          []radiance.Invocation `json:"pending,omitempty"`
	RayCount         int                   `json:"ray_count,omitempty"`
	ReceiversPerFile int                   `json:"receivers_per_file,omitempty"`
}

// SurfaceSnapshot is one surface in a Snapshot.
type SurfaceSnapshot struct {
	Identifier       string           `json:"identifier"`
	OriginIdentifier string           `json:"origin_identifier"`
	Boundary         []geometry.Vec3  `json:"boundary"`
	Emissivity       float64          `json:"emissivity"`
	Reflectivity     float64          `json:"reflectivity"`
	Transmissivity   float64          `json:"transmissivity"`
	Viewed           []ViewedSnapshot `json:"viewed,omitempty"`
}

// ViewedSnapshot is one receiver entry; ViewFactor is nil until solved.
type ViewedSnapshot struct {
	ID         string   `json:"id"`
	ViewFactor *float64 `json:"view_factor,omitempty"`
}

func snapshotSurface(s *RadiativeSurface) SurfaceSnapshot {
	snap := SurfaceSnapshot{
		Identifier:       s.identifier,
		OriginIdentifier: s.originIdentifier,
		Boundary:         s.Boundary(),
		Emissivity:       s.emissivity,
		Reflectivity:     s.reflectivity,
		Transmissivity:   s.transmissivity,
	}
	for i, id := range s.viewed {
		v := ViewedSnapshot{ID: id}
		if i < len(s.viewFactors) {
			vf := s.viewFactors[i]
			v.ViewFactor = &vf
		}
		snap.Viewed = append(snap.Viewed, v)
	}
	return snap
}

func restoreSurface(snap SurfaceSnapshot) (*RadiativeSurface, error) {
	s, err := NewSurfaceWithProperties(snap.OriginIdentifier, snap.Boundary,
		snap.Emissivity, snap.Reflectivity, snap.Transmissivity)
	if err != nil {
		return nil, fmt.Errorf("restore surface %q: %w", snap.Identifier, err)
	}
	if s.identifier != snap.Identifier {
		return nil, fmt.Errorf("restore surface %q: identifier drifted to %q", snap.Identifier, s.identifier)
	}

	ids := make([]string, len(snap.Viewed))
	var values []float64
	for i, v := range snap.Viewed {
		ids[i] = v.ID
		if v.ViewFactor != nil {
			if len(values) != i {
				return nil, fmt.Errorf("restore surface %q: solved values are not a prefix of the receiver list", snap.Identifier)
			}
			values = append(values, *v.ViewFactor)
		}
	}
	if err := s.AddViewedSurfaces(ids, false); err != nil {
		return nil, fmt.Errorf("restore surface %q: %w", snap.Identifier, err)
	}
	if len(values) > 0 {
		// Fill the solved prefix, leaving the remainder pending.
		s.viewFactors = append(s.viewFactors, values...)
	}
	return s, nil
}

// EncodeSnapshot serializes a snapshot to its archive form.
func EncodeSnapshot(snap Snapshot) ([]byte, error) {
	snap.Version = snapshotVersion
	return json.MarshalIndent(snap, "", "  ")
}

// DecodeSnapshot parses an archive and checks codec compatibility.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return Snapshot{}, fmt.Errorf("decode snapshot: unsupported version %d", snap.Version)
	}
	return snap, nil
}
