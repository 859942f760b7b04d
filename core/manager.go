// Package core holds the radiative surface registry and the batched
// orchestration pipeline around the external Radiance tools: visibility
// pruning, input artifact planning, simulation runs, result ingestion
// and the reciprocity correction.
package core

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fluxfoundry/radiance-vf/geometry"
	"github.com/fluxfoundry/radiance-vf/internal/blob"
	"github.com/fluxfoundry/radiance-vf/internal/executor"
	"github.com/fluxfoundry/radiance-vf/internal/logging"
	"github.com/fluxfoundry/radiance-vf/internal/observability"
	"github.com/fluxfoundry/radiance-vf/internal/store"
	"github.com/fluxfoundry/radiance-vf/radiance"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/fluxfoundry/radiance-vf/core"

// startWaveSpan opens a span for one pipeline stage, carrying the wave ID
// so traces correlate with log lines.
func startWaveSpan(ctx context.Context, stage string) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	attrs := []attribute.KeyValue{attribute.String("stage", stage)}
	if waveID := logging.WaveIDFromContext(ctx); waveID != "" {
		attrs = append(attrs, attribute.String("wave_id", waveID))
	}
	return tracer.Start(ctx, "radvf/"+stage, trace.WithAttributes(attrs...))
}

// MetricsRecorder is the registry's observability hook; the
// observability package provides the Prometheus-backed implementation.
type MetricsRecorder interface {
	ObserveInvocation(tool string, err error)
	ObserveWave(stage string, d time.Duration)
	SetRegistryCounts(surfaces, pendingInvocations int)
}

// ManagerConfig wires the registry's collaborators. Zero values select a
// silent logger, no metrics and the system shell runner.
type ManagerConfig struct {
	Logger  logging.Logger
	Metrics MetricsRecorder
	Runner  radiance.CommandRunner
}

// SurfaceManager owns the surface collection and coordinates every
// pipeline stage. It is the one object callers are expected to hold.
//
// Mutating calls are serialized by the internal lock. During a wave the
// registry is read-mostly: workers only read surface geometry; view
// factors are written in the single-threaded ingestion step after the
// wave barrier.
type SurfaceManager struct {
	log     logging.Logger
	metrics MetricsRecorder
	runner  radiance.CommandRunner

	mu       sync.RWMutex
	surfaces map[string]*RadiativeSurface
	order    []string

	pending []radiance.Invocation

	// Simulation parameters of the last generated wave, read by the
	// reciprocity correction to derive its reliability threshold.
	lastRayCount         int
	lastReceiversPerFile int
}

// NewSurfaceManager builds an empty registry.
func NewSurfaceManager(cfg ManagerConfig) *SurfaceManager {
	log := cfg.Logger
	if log == nil {
		log = logging.Noop()
	}
	runner := cfg.Runner
	if runner == nil {
		runner = radiance.ShellRunner{}
	}
	return &SurfaceManager{
		log:      log,
		metrics:  cfg.Metrics,
		runner:   runner,
		surfaces: make(map[string]*RadiativeSurface),
	}
}

func (m *SurfaceManager) recordCounts() {
	if m.metrics != nil {
		m.metrics.SetRegistryCounts(len(m.order), len(m.pending))
	}
}

func (m *SurfaceManager) observeWave(stage string, start time.Time) {
	if m.metrics != nil {
		m.metrics.ObserveWave(stage, time.Since(start))
	}
}

// AddSurface registers one surface, rejecting duplicate identifiers.
func (m *SurfaceManager) AddSurface(s *RadiativeSurface) error {
	return m.AddSurfaces([]*RadiativeSurface{s}, true)
}

// AddSurfaces registers surfaces in order. With checkUnique a duplicate
// identifier fails the whole call before any surface is added; without
// it a duplicate silently replaces the earlier surface, keeping its
// original position.
func (m *SurfaceManager) AddSurfaces(surfaces []*RadiativeSurface, checkUnique bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if checkUnique {
		seen := make(map[string]struct{}, len(surfaces))
		for _, s := range surfaces {
			id := s.Identifier()
			if _, ok := m.surfaces[id]; ok {
				return fmt.Errorf("%w: %q", ErrDuplicateSurfaceID, id)
			}
			if _, ok := seen[id]; ok {
				return fmt.Errorf("%w: %q appears twice in one call", ErrDuplicateSurfaceID, id)
			}
			seen[id] = struct{}{}
		}
	}
	for _, s := range surfaces {
		id := s.Identifier()
		if _, ok := m.surfaces[id]; !ok {
			m.order = append(m.order, id)
		}
		m.surfaces[id] = s
	}
	m.recordCounts()
	return nil
}

// Surface looks up one surface by identifier.
func (m *SurfaceManager) Surface(id string) (*RadiativeSurface, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.surfaces[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSurface, id)
	}
	return s, nil
}

// SurfaceIDs returns all identifiers in insertion order.
func (m *SurfaceManager) SurfaceIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...)
}

// Len returns the number of registered surfaces.
func (m *SurfaceManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}

// LinkSurfaces appends receivers to one emitter's viewed list under the
// registry lock, so concurrent callers cannot interleave partial links.
func (m *SurfaceManager) LinkSurfaces(emitterID string, receiverIDs []string, overwrite bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.surfaces[emitterID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSurface, emitterID)
	}
	return s.AddViewedSurfaces(receiverIDs, overwrite)
}

// CheckAllViewedSurfacesInManager verifies that every receiver referenced
// by any surface is itself registered. Meant as a fast-fail consistency
// check before launching a wave, converting a per-task runtime error into
// one upfront error naming the offending identifier.
func (m *SurfaceManager) CheckAllViewedSurfacesInManager() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range m.order {
		for _, viewed := range m.surfaces[id].ViewedSurfaceIDs() {
			if _, ok := m.surfaces[viewed]; !ok {
				return fmt.Errorf("%w: %q viewed by %q", ErrUnknownViewedSurface, viewed, id)
			}
		}
	}
	return nil
}

// ObstructionMesh triangulates every registered surface into one
// spatial-indexed mesh for ray obstruction queries.
func (m *SurfaceManager) ObstructionMesh() (*geometry.Mesh, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mesh := geometry.NewMesh()
	for _, id := range m.order {
		if err := mesh.AddPolygon(m.surfaces[id].Boundary()); err != nil {
			return nil, fmt.Errorf("mesh surface %q: %w", id, err)
		}
	}
	return mesh, nil
}

// ComputeVisibility links every surface to the registered surfaces it can
// see, replacing any previous links. Pair tests fan out across the worker
// pool; each emitter is one task reading immutable geometry, and the
// links are written only after the wave barrier. Per-pair failures are
// logged and skip the pair without aborting the wave.
func (m *SurfaceManager) ComputeVisibility(ctx context.Context, opts VisibilityOptions, execCfg executor.Config) (err error) {
	start := time.Now()
	ctx, log := logging.WithWaveLogger(ctx, m.log)
	ctx, span := startWaveSpan(ctx, observability.StageVisibility)
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	if err := m.CheckAllViewedSurfacesInManager(); err != nil {
		return err
	}
	var mesh *geometry.Mesh
	if opts.RayTracing {
		var err error
		if mesh, err = m.ObstructionMesh(); err != nil {
			return err
		}
	}

	m.mu.RLock()
	ids := append([]string(nil), m.order...)
	surfaces := make([]*RadiativeSurface, len(ids))
	for i, id := range ids {
		surfaces[i] = m.surfaces[id]
	}
	m.mu.RUnlock()

	tasks := make([]func(context.Context) ([]string, error), len(surfaces))
	for i := range surfaces {
		emitter := surfaces[i]
		tasks[i] = func(context.Context) ([]string, error) {
			var visible []string
			for j, receiver := range surfaces {
				if receiver == emitter {
					continue
				}
				ok, err := emitter.IsVisible(receiver, mesh, opts)
				if err != nil {
					return nil, fmt.Errorf("pair %s->%s: %w", emitter.Identifier(), ids[j], err)
				}
				if ok {
					visible = append(visible, ids[j])
				}
			}
			return visible, nil
		}
	}

	results, failures, err := executor.Run(ctx, execCfg, tasks)
	if err != nil {
		return err
	}
	for _, f := range failures {
		log.Warn(ctx, "visibility task failed",
			logging.String("surface", ids[f.Index]),
			logging.String("error", f.Err.Error()))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	failed := make(map[int]struct{}, len(failures))
	for _, f := range failures {
		failed[f.Index] = struct{}{}
	}
	for i, visible := range results {
		if _, bad := failed[i]; bad {
			continue
		}
		if err := surfaces[i].AddViewedSurfaces(visible, true); err != nil {
			return err
		}
	}
	m.observeWave(observability.StageVisibility, start)
	log.Info(ctx, "visibility wave complete",
		logging.Int("surfaces", len(ids)),
		logging.Int("failed_tasks", len(failures)))
	return nil
}

// GenerateRadianceInputs writes the emitter, receiver and octree
// artifacts for every linked surface and fills the pending invocation
// queue in surface insertion order. Octree builds run through the
// configured command runner as part of the wave. Per-surface failures
// are logged; their invocations are simply absent from the queue.
func (m *SurfaceManager) GenerateRadianceInputs(ctx context.Context, opts InputGenOptions, execCfg executor.Config) (err error) {
	start := time.Now()
	ctx, log := logging.WithWaveLogger(ctx, m.log)
	ctx, span := startWaveSpan(ctx, observability.StageInputs)
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	if err := m.CheckAllViewedSurfacesInManager(); err != nil {
		return err
	}
	prepare := EnsureSimulationLayout
	if opts.Overwrite {
		prepare = ResetSimulationLayout
	}
	if err := prepare(opts.RootDir); err != nil {
		return err
	}
	opts = opts.withDefaults()

	m.mu.RLock()
	ids := append([]string(nil), m.order...)
	surfaces := make([]*RadiativeSurface, len(ids))
	for i, id := range ids {
		surfaces[i] = m.surfaces[id]
	}
	radByID := make(map[string]string, len(ids))
	for i, id := range ids {
		radByID[id] = surfaces[i].RadString()
	}
	m.mu.RUnlock()

	receiverRad := func(id string) (string, error) {
		rad, ok := radByID[id]
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrUnknownViewedSurface, id)
		}
		return rad, nil
	}

	type surfaceInputs struct {
		invocations []radiance.Invocation
		builds      []OctreeBuild
	}
	tasks := make([]func(context.Context) (surfaceInputs, error), len(surfaces))
	for i := range surfaces {
		emitter := surfaces[i]
		tasks[i] = func(context.Context) (surfaceInputs, error) {
			invs, builds, err := generateSurfaceInputs(emitter, receiverRad, opts)
			if err != nil {
				return surfaceInputs{}, err
			}
			return surfaceInputs{invocations: invs, builds: builds}, nil
		}
	}

	results, failures, err := executor.Run(ctx, execCfg, tasks)
	if err != nil {
		return err
	}
	for _, f := range failures {
		log.Warn(ctx, "input generation failed",
			logging.String("surface", ids[f.Index]),
			logging.String("error", f.Err.Error()))
	}

	var pending []radiance.Invocation
	for _, r := range results {
		for _, b := range r.builds {
			buildErr := radiance.BuildOctree(ctx, m.runner, b.RadPaths, b.OctreePath)
			if m.metrics != nil {
				m.metrics.ObserveInvocation("oconv", buildErr)
			}
			if buildErr != nil {
				log.Warn(ctx, "octree build failed",
					logging.String("octree", b.OctreePath),
					logging.String("error", buildErr.Error()))
			}
		}
		pending = append(pending, r.invocations...)
	}

	m.mu.Lock()
	m.pending = pending
	m.lastRayCount = opts.RayCount
	if m.lastRayCount <= 0 {
		m.lastRayCount = radiance.DefaultRayCount
	}
	m.lastReceiversPerFile = opts.ReceiversPerFile
	m.recordCounts()
	m.mu.Unlock()

	m.observeWave(observability.StageInputs, start)
	log.Info(ctx, "input generation complete",
		logging.Int("surfaces", len(ids)),
		logging.Int("pending_invocations", len(pending)),
		logging.Int("failed_tasks", len(failures)))
	return nil
}

// PendingInvocations returns a copy of the work queue.
func (m *SurfaceManager) PendingInvocations() []radiance.Invocation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]radiance.Invocation(nil), m.pending...)
}

// ClearPendingInvocations empties the work queue.
func (m *SurfaceManager) ClearPendingInvocations() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = nil
	m.recordCounts()
}

// RunOptions tunes a simulation wave.
type RunOptions struct {
	// CommandBatchSize groups this many invocations into one compound
	// shell command, amortising spawn overhead. A compound command's
	// failure does not identify the failing sub-invocation; the missing
	// output artifacts do. Zero or one keeps per-invocation isolation.
	CommandBatchSize int

	Executor executor.Config
}

// RunVFComputation drains the pending queue through the external tool.
// Invocation failures are logged and counted but do not abort sibling
// invocations; the returned count says how many groups failed.
func (m *SurfaceManager) RunVFComputation(ctx context.Context, opts RunOptions) (failedGroups int, err error) {
	start := time.Now()
	ctx, log := logging.WithWaveLogger(ctx, m.log)
	ctx, span := startWaveSpan(ctx, observability.StageSimulation)
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	pending := m.PendingInvocations()
	if len(pending) == 0 {
		log.Info(ctx, "no pending invocations")
		return 0, nil
	}

	groupSize := opts.CommandBatchSize
	if groupSize <= 0 {
		groupSize = 1
	}
	var groups [][]radiance.Invocation
	for s := 0; s < len(pending); s += groupSize {
		e := s + groupSize
		if e > len(pending) {
			e = len(pending)
		}
		groups = append(groups, pending[s:e])
	}

	tasks := make([]func(context.Context) (struct{}, error), len(groups))
	for i := range groups {
		group := groups[i]
		tasks[i] = func(ctx context.Context) (struct{}, error) {
			runErr := radiance.RunGrouped(ctx, m.runner, group)
			if m.metrics != nil {
				for range group {
					m.metrics.ObserveInvocation("rfluxmtx", runErr)
				}
			}
			return struct{}{}, runErr
		}
	}

	_, failures, err := executor.Run(ctx, opts.Executor, tasks)
	if err != nil {
		return 0, err
	}
	for _, f := range failures {
		log.Warn(ctx, "simulation group failed",
			logging.Int("group", f.Index),
			logging.Int("group_size", len(groups[f.Index])),
			logging.String("error", f.Err.Error()))
	}

	m.observeWave(observability.StageSimulation, start)
	log.Info(ctx, "simulation wave complete",
		logging.Int("invocations", len(pending)),
		logging.Int("groups", len(groups)),
		logging.Int("failed_groups", len(failures)))
	return len(failures), nil
}

// IngestReport summarises one ReadVFResults pass.
type IngestReport struct {
	EmittersSolved int
	ValuesIngested int
	// MissingOutputs lists expected output artifacts that were never
	// produced, the observable signal of a failed invocation.
	MissingOutputs []string
}

// ReadVFResults parses every output artifact under the simulation folder
// and zips the values back onto each emitter's viewed-surface order.
// Files belonging to one emitter are consumed in ascending batch order
// and concatenated before the single AddViewFactors call, so the batch
// length must cover the emitter's whole unfilled receiver list.
func (m *SurfaceManager) ReadVFResults(ctx context.Context, rootDir string) (_ IngestReport, err error) {
	start := time.Now()
	ctx, log := logging.WithWaveLogger(ctx, m.log)
	ctx, span := startWaveSpan(ctx, observability.StageIngestion)
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	var report IngestReport
	for _, inv := range m.PendingInvocations() {
		if _, err := os.Stat(inv.OutputPath); err != nil {
			report.MissingOutputs = append(report.MissingOutputs, inv.OutputPath)
		}
	}

	outputDir := filepath.Join(rootDir, OutputFolder)
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return report, fmt.Errorf("read output folder: %w", err)
	}

	type batchFile struct {
		batch int
		path  string
	}
	byEmitter := make(map[string][]batchFile)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		id, batch, err := ParseOutputName(e.Name())
		if err != nil {
			log.Warn(ctx, "skipping unrecognized output artifact", logging.String("file", e.Name()))
			continue
		}
		byEmitter[id] = append(byEmitter[id], batchFile{batch: batch, path: filepath.Join(outputDir, e.Name())})
	}

	emitters := make([]string, 0, len(byEmitter))
	for id := range byEmitter {
		emitters = append(emitters, id)
	}
	sort.Strings(emitters)

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range emitters {
		s, ok := m.surfaces[id]
		if !ok {
			return report, fmt.Errorf("%w: output artifact for %q", ErrUnknownSurface, id)
		}
		files := byEmitter[id]
		sort.Slice(files, func(i, j int) bool { return files[i].batch < files[j].batch })

		var values []float64
		for _, f := range files {
			batch, err := ParseOutputFile(f.path)
			if err != nil {
				return report, err
			}
			values = append(values, batch...)
		}
		if err := s.AddViewFactors(values); err != nil {
			return report, err
		}
		report.EmittersSolved++
		report.ValuesIngested += len(values)
	}

	m.observeWave(observability.StageIngestion, start)
	log.Info(ctx, "result ingestion complete",
		logging.Int("emitters", report.EmittersSolved),
		logging.Int("values", report.ValuesIngested),
		logging.Int("missing_outputs", len(report.MissingOutputs)))
	return report, nil
}

// ApplyReciprocityCorrection nudges statistically unreliable view
// factors toward the value implied by A1*F12 = A2*F21. For each ordered
// pair with both directions solved, F12 is rewritten to F21*A2/A1 only
// when F12 is the smaller direction, the reverse value clears the
// 10/rayCount reliability floor, and the discrepancy exceeds a factor of
// five. The ray count defaults to the last generated wave's.
func (m *SurfaceManager) ApplyReciprocityCorrection(rayCount int) (corrected int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rayCount <= 0 {
		rayCount = m.lastRayCount
	}
	if rayCount <= 0 {
		rayCount = radiance.DefaultRayCount
	}
	threshold := 10 / float64(rayCount)

	for _, id1 := range m.order {
		s1 := m.surfaces[id1]
		for _, id2 := range s1.ViewedSurfaceIDs() {
			s2, ok := m.surfaces[id2]
			if !ok {
				return corrected, fmt.Errorf("%w: %q viewed by %q", ErrUnknownViewedSurface, id2, id1)
			}
			f12, err := s1.ViewFactor(id2)
			if err != nil {
				continue
			}
			f21, err := s2.ViewFactor(id1)
			if err != nil {
				continue
			}
			if f12 <= f21 && f21 >= threshold && f12 <= f21/5 {
				if err := s1.setViewFactor(id2, f21*s2.Area()/s1.Area()); err != nil {
					return corrected, err
				}
				corrected++
			}
		}
	}
	return corrected, nil
}

// Snapshot captures the full registry state.
func (m *SurfaceManager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := Snapshot{
		Pending:          append([]radiance.Invocation(nil), m.pending...),
		RayCount:         m.lastRayCount,
		ReceiversPerFile: m.lastReceiversPerFile,
	}
	for _, id := range m.order {
		snap.Surfaces = append(snap.Surfaces, snapshotSurface(m.surfaces[id]))
	}
	return snap
}

// SaveSnapshot archives the registry under the given key.
func (m *SurfaceManager) SaveSnapshot(ctx context.Context, archive blob.Store, key string) error {
	data, err := EncodeSnapshot(m.Snapshot())
	if err != nil {
		return err
	}
	if err := archive.Put(ctx, key, data); err != nil {
		return fmt.Errorf("save snapshot %q: %w", key, err)
	}
	m.log.Info(ctx, "snapshot saved",
		logging.String("key", key),
		logging.String("driver", string(archive.Driver())),
		logging.Int("bytes", len(data)))
	return nil
}

// LoadSnapshot restores a previously archived registry into cfg's
// collaborators.
func LoadSnapshot(ctx context.Context, archive blob.Store, key string, cfg ManagerConfig) (*SurfaceManager, error) {
	data, err := archive.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %q: %w", key, err)
	}
	snap, err := DecodeSnapshot(data)
	if err != nil {
		return nil, err
	}
	return RestoreSnapshot(snap, cfg)
}

// RestoreSnapshot rebuilds a registry from a decoded snapshot.
func RestoreSnapshot(snap Snapshot, cfg ManagerConfig) (*SurfaceManager, error) {
	m := NewSurfaceManager(cfg)
	surfaces := make([]*RadiativeSurface, 0, len(snap.Surfaces))
	for _, ss := range snap.Surfaces {
		s, err := restoreSurface(ss)
		if err != nil {
			return nil, err
		}
		surfaces = append(surfaces, s)
	}
	if err := m.AddSurfaces(surfaces, true); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.pending = append([]radiance.Invocation(nil), snap.Pending...)
	m.lastRayCount = snap.RayCount
	m.lastReceiversPerFile = snap.ReceiversPerFile
	m.recordCounts()
	m.mu.Unlock()
	return m, nil
}

// PersistResults writes every solved view factor to the result store,
// one emitter at a time. Unsolved entries are skipped.
func (m *SurfaceManager) PersistResults(ctx context.Context, rs store.ResultStore) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range m.order {
		s := m.surfaces[id]
		var records []store.ViewFactorRecord
		for _, viewed := range s.ViewedSurfaceIDs() {
			vf, err := s.ViewFactor(viewed)
			if err != nil {
				continue
			}
			records = append(records, store.ViewFactorRecord{ReceiverID: viewed, ViewFactor: vf})
		}
		if len(records) == 0 {
			continue
		}
		if err := rs.SaveViewFactors(ctx, id, records); err != nil {
			return err
		}
	}
	return nil
}

// FromRandomRectangles builds a registry holding a reference rectangle
// and randomly placed rectangles facing it. Surfaces are named ref and
// rect_<n>. Used for validation against the analytical bound and in the
// demo CLI.
func FromRandomRectangles(opts geometry.RandomRectangleOptions, rng *rand.Rand, cfg ManagerConfig) (*SurfaceManager, error) {
	ref, rects := geometry.RandomRectangles(opts, rng)

	surfaces := make([]*RadiativeSurface, 0, len(rects)+1)
	refSurface, err := NewSurface("ref", ref)
	if err != nil {
		return nil, err
	}
	surfaces = append(surfaces, refSurface)
	for i, boundary := range rects {
		s, err := NewSurface(fmt.Sprintf("rect_%d", i), boundary)
		if err != nil {
			return nil, err
		}
		surfaces = append(surfaces, s)
	}

	m := NewSurfaceManager(cfg)
	if err := m.AddSurfaces(surfaces, true); err != nil {
		return nil, err
	}
	return m, nil
}

// FromRandomRectanglesThatSeeEachOther builds the same scene as
// FromRandomRectangles with the visibility links already in place: the
// reference views every rectangle and every rectangle views the
// reference. The generator guarantees mutual facing, so the visibility
// wave can be skipped entirely.
func FromRandomRectanglesThatSeeEachOther(opts geometry.RandomRectangleOptions, rng *rand.Rand, cfg ManagerConfig) (*SurfaceManager, error) {
	m, err := FromRandomRectangles(opts, rng, cfg)
	if err != nil {
		return nil, err
	}
	ids := m.SurfaceIDs()
	if err := m.LinkSurfaces(ids[0], ids[1:], true); err != nil {
		return nil, err
	}
	for _, id := range ids[1:] {
		if err := m.LinkSurfaces(id, ids[:1], true); err != nil {
			return nil, err
		}
	}
	return m, nil
}
