package core

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fluxfoundry/radiance-vf/radiance"
)

// Subfolders of the simulation root, one per artifact kind.
const (
	EmitterFolder  = "emitter"
	ReceiverFolder = "receiver"
	OctreeFolder   = "octree"
	OutputFolder   = "output"
)

// InputGenOptions tunes artifact generation for one simulation wave.
type InputGenOptions struct {
	// RootDir is the simulation folder; the four artifact subfolders are
	// created beneath it.
	RootDir string

	// ReceiversPerFile caps how many receiver surfaces one rfluxmtx
	// receiver file holds. Zero selects DefaultReceiversPerFile.
	ReceiversPerFile int

	// ReceiversPerOctree caps how many surfaces one oconv scene file
	// holds. The octree tool accepts far larger scenes than rfluxmtx
	// accepts receivers, so this batches independently. Zero selects
	// DefaultReceiversPerOctree.
	ReceiversPerOctree int

	// BuildOctree enables generation of octree scene files and their
	// oconv build steps.
	BuildOctree bool

	// Overwrite wipes the artifact subfolders before generating, so a
	// rerun cannot mix artifacts from two waves.
	Overwrite bool

	// RayCount is stamped onto every produced invocation. Zero selects
	// the rfluxmtx default.
	RayCount int
}

const (
	DefaultReceiversPerFile   = 20
	DefaultReceiversPerOctree = 500
)

func (o InputGenOptions) withDefaults() InputGenOptions {
	if o.ReceiversPerFile <= 0 {
		o.ReceiversPerFile = DefaultReceiversPerFile
	}
	if o.ReceiversPerOctree <= 0 {
		o.ReceiversPerOctree = DefaultReceiversPerOctree
	}
	return o
}

// OctreeBuild is one pending oconv run: the scene files feeding it and
// the octree it produces.
type OctreeBuild struct {
	RadPaths   []string
	OctreePath string
}

// EnsureSimulationLayout creates the artifact subfolders under root.
func EnsureSimulationLayout(root string) error {
	for _, sub := range []string{EmitterFolder, ReceiverFolder, OctreeFolder, OutputFolder} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			return fmt.Errorf("create simulation folder: %w", err)
		}
	}
	return nil
}

// ResetSimulationLayout removes and recreates the artifact subfolders.
func ResetSimulationLayout(root string) error {
	for _, sub := range []string{EmitterFolder, ReceiverFolder, OctreeFolder, OutputFolder} {
		if err := os.RemoveAll(filepath.Join(root, sub)); err != nil {
			return fmt.Errorf("clear simulation folder: %w", err)
		}
	}
	return EnsureSimulationLayout(root)
}

// batchSuffix numbers artifacts so a directory listing sorts back into
// generation order.
func batchSuffix(n int) string {
	return fmt.Sprintf("batch_%04d", n)
}

func emitterPath(root, id string) string {
	return filepath.Join(root, EmitterFolder, fmt.Sprintf("emitter_%s.rad", id))
}

func receiverPath(root, id string, batch int) string {
	return filepath.Join(root, ReceiverFolder, fmt.Sprintf("receiver_%s_%s.rad", id, batchSuffix(batch)))
}

func outputPath(root, id string, batch int) string {
	return filepath.Join(root, OutputFolder, fmt.Sprintf("output_%s_%s.txt", id, batchSuffix(batch)))
}

func octreeRadPath(root, id string, batch int) string {
	return filepath.Join(root, OctreeFolder, fmt.Sprintf("%s_%s.rad", id, batchSuffix(batch)))
}

func octreePath(root, id string) string {
	return filepath.Join(root, OctreeFolder, fmt.Sprintf("%s.oct", id))
}

func splitIntoBatches(items []string, size int) [][]string {
	if len(items) == 0 {
		return nil
	}
	batches := make([][]string, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end])
	}
	return batches
}

// generateSurfaceInputs writes the emitter, receiver and octree scene
// artifacts for one emitter surface and returns the rfluxmtx invocations
// plus any oconv builds they depend on. An emitter with no viewed
// surfaces needs no simulation and produces nothing.
func generateSurfaceInputs(emitter *RadiativeSurface, receiverRad func(id string) (string, error), opts InputGenOptions) ([]radiance.Invocation, []OctreeBuild, error) {
	opts = opts.withDefaults()
	viewed := emitter.ViewedSurfaceIDs()
	if len(viewed) == 0 {
		return nil, nil, nil
	}

	contents := make([]string, len(viewed))
	for i, id := range viewed {
		rad, err := receiverRad(id)
		if err != nil {
			return nil, nil, err
		}
		contents[i] = rad
	}

	id := emitter.Identifier()
	root := opts.RootDir
	if err := radiance.WriteEmitterFile(emitterPath(root, id), emitter.RadString()); err != nil {
		return nil, nil, err
	}

	var invocations []radiance.Invocation
	var octree string
	var builds []OctreeBuild

	if opts.BuildOctree {
		var radPaths []string
		for n, batch := range splitIntoBatches(contents, opts.ReceiversPerOctree) {
			p := octreeRadPath(root, id, n)
			if err := radiance.WriteOctreeRadFile(p, batch); err != nil {
				return nil, nil, err
			}
			radPaths = append(radPaths, p)
		}
		octree = octreePath(root, id)
		builds = append(builds, OctreeBuild{RadPaths: radPaths, OctreePath: octree})
	}

	for n, batch := range splitIntoBatches(contents, opts.ReceiversPerFile) {
		p := receiverPath(root, id, n)
		if err := radiance.WriteReceiverFile(p, batch); err != nil {
			return nil, nil, err
		}
		invocations = append(invocations, radiance.Invocation{
			EmitterPath:  emitterPath(root, id),
			ReceiverPath: p,
			OutputPath:   outputPath(root, id, n),
			OctreePath:   octree,
			RayCount:     opts.RayCount,
		})
	}
	return invocations, builds, nil
}
