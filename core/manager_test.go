package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/fluxfoundry/radiance-vf/geometry"
	"github.com/fluxfoundry/radiance-vf/internal/blob"
	"github.com/fluxfoundry/radiance-vf/internal/executor"
	"github.com/fluxfoundry/radiance-vf/internal/store"
)

// scriptRunner records every issued command instead of spawning a shell.
type scriptRunner struct {
	mu       sync.Mutex
	commands []string
}

func (r *scriptRunner) Run(_ context.Context, command string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, command)
	return nil
}

func (r *scriptRunner) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.commands...)
}

func newTestManager(t *testing.T) (*SurfaceManager, *scriptRunner) {
	t.Helper()
	runner := &scriptRunner{}
	return NewSurfaceManager(ManagerConfig{Runner: runner}), runner
}

func TestAddSurfacesRejectsDuplicates(t *testing.T) {
	m, _ := newTestManager(t)
	a := mustSurface(t, "a", unitSquare(0))

	if err := m.AddSurface(a); err != nil {
		t.Fatalf("AddSurface: %v", err)
	}
	dup := mustSurface(t, "a", unitSquare(1))
	if err := m.AddSurface(dup); !errors.Is(err, ErrDuplicateSurfaceID) {
		t.Fatalf("duplicate add: got %v", err)
	}

	// Without uniqueness checking the duplicate replaces in place.
	if err := m.AddSurfaces([]*RadiativeSurface{dup}, false); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if m.Len() != 1 {
		t.Fatalf("Len = %d, want 1", m.Len())
	}
	got, err := m.Surface("a")
	if err != nil {
		t.Fatal(err)
	}
	if got != dup {
		t.Error("unchecked add must replace the stored surface")
	}
}

func TestCheckAllViewedSurfacesInManagerNamesOffender(t *testing.T) {
	m, _ := newTestManager(t)
	a := mustSurface(t, "a", unitSquare(0))
	if err := a.AddViewedSurfaces([]string{"phantom"}, false); err != nil {
		t.Fatal(err)
	}
	if err := m.AddSurface(a); err != nil {
		t.Fatal(err)
	}

	err := m.CheckAllViewedSurfacesInManager()
	if !errors.Is(err, ErrUnknownViewedSurface) {
		t.Fatalf("got %v, want ErrUnknownViewedSurface", err)
	}
	if !strings.Contains(err.Error(), "phantom") {
		t.Errorf("error must name the offending id: %v", err)
	}
}

func roomSurfaces(t *testing.T) []*RadiativeSurface {
	t.Helper()
	floor := mustSurface(t, "floor", unitSquare(0))
	ceiling := mustSurface(t, "ceiling", ceilingSquare(1))
	// Coplanar with the floor, looking away from the room.
	back := mustSurface(t, "back", ceilingSquare(0))
	return []*RadiativeSurface{floor, ceiling, back}
}

func TestComputeVisibilityLinksFacingPairs(t *testing.T) {
	m, _ := newTestManager(t)
	if err := m.AddSurfaces(roomSurfaces(t), true); err != nil {
		t.Fatal(err)
	}

	if err := m.ComputeVisibility(context.Background(), VisibilityOptions{}, executor.Config{NumWorkers: 2}); err != nil {
		t.Fatalf("ComputeVisibility: %v", err)
	}

	floor, _ := m.Surface("floor")
	if got := floor.ViewedSurfaceIDs(); len(got) != 1 || got[0] != "ceiling" {
		t.Errorf("floor views %v, want [ceiling]", got)
	}
	ceiling, _ := m.Surface("ceiling")
	if got := ceiling.ViewedSurfaceIDs(); len(got) != 1 || got[0] != "floor" {
		t.Errorf("ceiling views %v, want [floor]", got)
	}
	back, _ := m.Surface("back")
	if got := back.ViewedSurfaceIDs(); len(got) != 0 {
		t.Errorf("back views %v, want nothing", got)
	}
}

func TestGenerateInputsRunAndIngest(t *testing.T) {
	root := t.TempDir()
	m, runner := newTestManager(t)
	if err := m.AddSurfaces(roomSurfaces(t), true); err != nil {
		t.Fatal(err)
	}
	if err := m.ComputeVisibility(context.Background(), VisibilityOptions{}, executor.Config{}); err != nil {
		t.Fatal(err)
	}

	err := m.GenerateRadianceInputs(context.Background(), InputGenOptions{
		RootDir:  root,
		RayCount: 1000,
	}, executor.Config{})
	if err != nil {
		t.Fatalf("GenerateRadianceInputs: %v", err)
	}

	pending := m.PendingInvocations()
	if len(pending) != 2 { // floor->ceiling and ceiling->floor
		t.Fatalf("pending = %d, want 2", len(pending))
	}
	// The queue follows surface insertion order.
	if !strings.Contains(pending[0].EmitterPath, "emitter_floor") {
		t.Errorf("first invocation is %q, want the floor emitter", pending[0].EmitterPath)
	}

	failed, err := m.RunVFComputation(context.Background(), RunOptions{CommandBatchSize: 2})
	if err != nil {
		t.Fatalf("RunVFComputation: %v", err)
	}
	if failed != 0 {
		t.Fatalf("failed groups = %d", failed)
	}
	commands := runner.all()
	if len(commands) != 1 {
		t.Fatalf("commands = %d, want one compound command", len(commands))
	}
	if !strings.Contains(commands[0], " && ") || !strings.Contains(commands[0], "rfluxmtx") {
		t.Errorf("unexpected command: %s", commands[0])
	}

	// Stand in for the external tool: one triplet per receiver.
	for i, inv := range pending {
		value := 0.1 * float64(i+1)
		line := fmt.Sprintf("%v\t%v\t%v\n", value, value, value)
		if err := os.WriteFile(inv.OutputPath, []byte(line), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	report, err := m.ReadVFResults(context.Background(), root)
	if err != nil {
		t.Fatalf("ReadVFResults: %v", err)
	}
	if report.EmittersSolved != 2 || report.ValuesIngested != 2 {
		t.Fatalf("report = %+v", report)
	}
	if len(report.MissingOutputs) != 0 {
		t.Fatalf("missing outputs: %v", report.MissingOutputs)
	}

	floor, _ := m.Surface("floor")
	vf, err := floor.ViewFactor("ceiling")
	if err != nil {
		t.Fatalf("ViewFactor: %v", err)
	}
	if math.Abs(vf-0.1) > 1e-12 {
		t.Errorf("floor->ceiling = %v, want 0.1", vf)
	}
}

func TestReadVFResultsReportsMissingOutputs(t *testing.T) {
	root := t.TempDir()
	m, _ := newTestManager(t)
	if err := m.AddSurfaces(roomSurfaces(t), true); err != nil {
		t.Fatal(err)
	}
	if err := m.ComputeVisibility(context.Background(), VisibilityOptions{}, executor.Config{}); err != nil {
		t.Fatal(err)
	}
	if err := m.GenerateRadianceInputs(context.Background(), InputGenOptions{RootDir: root}, executor.Config{}); err != nil {
		t.Fatal(err)
	}

	// No tool ran, so every expected artifact is missing.
	report, err := m.ReadVFResults(context.Background(), root)
	if err != nil {
		t.Fatalf("ReadVFResults: %v", err)
	}
	if len(report.MissingOutputs) != len(m.PendingInvocations()) {
		t.Fatalf("missing = %d, want %d", len(report.MissingOutputs), len(m.PendingInvocations()))
	}
	if report.EmittersSolved != 0 {
		t.Fatalf("report = %+v", report)
	}
}

func reciprocityPair(t *testing.T) *SurfaceManager {
	t.Helper()
	m, _ := newTestManager(t)
	// Area 1 and area 4.
	small := mustSurface(t, "small", unitSquare(0))
	big := mustSurface(t, "big", []geometry.Vec3{
		{X: 0, Y: 0, Z: 1},
		{X: 0, Y: 2, Z: 1},
		{X: 2, Y: 2, Z: 1},
		{X: 2, Y: 0, Z: 1},
	})
	if err := small.AddViewedSurfaces([]string{"big"}, false); err != nil {
		t.Fatal(err)
	}
	if err := small.AddViewFactors([]float64{0.005}); err != nil {
		t.Fatal(err)
	}
	if err := big.AddViewedSurfaces([]string{"small"}, false); err != nil {
		t.Fatal(err)
	}
	if err := big.AddViewFactors([]float64{0.05}); err != nil {
		t.Fatal(err)
	}
	if err := m.AddSurfaces([]*RadiativeSurface{small, big}, true); err != nil {
		t.Fatal(err)
	}
	return m
}

func TestReciprocityCorrection(t *testing.T) {
	m := reciprocityPair(t)

	corrected, err := m.ApplyReciprocityCorrection(1000)
	if err != nil {
		t.Fatalf("ApplyReciprocityCorrection: %v", err)
	}
	if corrected != 1 {
		t.Fatalf("corrected = %d, want 1", corrected)
	}

	small, _ := m.Surface("small")
	vf, err := small.ViewFactor("big")
	if err != nil {
		t.Fatal(err)
	}
	// F12 := F21 * A2 / A1 = 0.05 * 4 / 1.
	if math.Abs(vf-0.2) > 1e-12 {
		t.Errorf("corrected F12 = %v, want 0.2", vf)
	}
	// The trusted reverse value stays untouched.
	big, _ := m.Surface("big")
	if back, _ := big.ViewFactor("small"); back != 0.05 {
		t.Errorf("F21 = %v, want 0.05", back)
	}
}

func TestReciprocityCorrectionSkipsUnreliableReverse(t *testing.T) {
	m := reciprocityPair(t)

	// 10/100 = 0.1 > F21 = 0.05: neither direction is trusted.
	corrected, err := m.ApplyReciprocityCorrection(100)
	if err != nil {
		t.Fatal(err)
	}
	if corrected != 0 {
		t.Fatalf("corrected = %d, want 0", corrected)
	}
	small, _ := m.Surface("small")
	if vf, _ := small.ViewFactor("big"); vf != 0.005 {
		t.Errorf("F12 = %v, want untouched 0.005", vf)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)
	if err := m.AddSurfaces(roomSurfaces(t), true); err != nil {
		t.Fatal(err)
	}
	if err := m.LinkSurfaces("floor", []string{"ceiling", "back"}, false); err != nil {
		t.Fatal(err)
	}
	floor, _ := m.Surface("floor")
	if err := floor.AddViewFactors([]float64{0.19, 0}); err != nil {
		t.Fatal(err)
	}

	archive := blob.NewMemory()
	if err := m.SaveSnapshot(ctx, archive, "room.json"); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	restored, err := LoadSnapshot(ctx, archive, "room.json", ManagerConfig{})
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	ids := restored.SurfaceIDs()
	if len(ids) != 3 || ids[0] != "floor" || ids[1] != "ceiling" || ids[2] != "back" {
		t.Fatalf("restored order %v", ids)
	}
	rf, err := restored.Surface("floor")
	if err != nil {
		t.Fatal(err)
	}
	if got := rf.ViewedSurfaceIDs(); len(got) != 2 || got[0] != "ceiling" || got[1] != "back" {
		t.Fatalf("restored viewed list %v", got)
	}
	vf, err := rf.ViewFactor("ceiling")
	if err != nil {
		t.Fatal(err)
	}
	if vf != 0.19 {
		t.Errorf("restored view factor = %v, want 0.19", vf)
	}
	if rf.Area() != 1 {
		t.Errorf("restored area = %v, want 1", rf.Area())
	}
}

func TestLoadSnapshotMissingKey(t *testing.T) {
	if _, err := LoadSnapshot(context.Background(), blob.NewMemory(), "absent.json", ManagerConfig{}); !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestPersistResults(t *testing.T) {
	ctx := context.Background()
	m := reciprocityPair(t)

	rs, err := store.OpenSQLite(ctx, filepath.Join(t.TempDir(), "results.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer rs.Close()

	if err := m.PersistResults(ctx, rs); err != nil {
		t.Fatalf("PersistResults: %v", err)
	}
	records, err := rs.LoadViewFactors(ctx, "small")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].ReceiverID != "big" || records[0].ViewFactor != 0.005 {
		t.Fatalf("records = %v", records)
	}
}

func TestFromRandomRectangles(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	m, err := FromRandomRectangles(geometry.RandomRectangleOptions{
		Count:   5,
		MinSize: 0.5,
		MaxSize: 2,
	}, rng, ManagerConfig{Runner: &scriptRunner{}})
	if err != nil {
		t.Fatalf("FromRandomRectangles: %v", err)
	}
	if m.Len() != 6 {
		t.Fatalf("Len = %d, want 6", m.Len())
	}
	ids := m.SurfaceIDs()
	if ids[0] != "ref" {
		t.Fatalf("first surface %q, want ref", ids[0])
	}

	// Every generated rectangle faces the reference.
	ref, _ := m.Surface("ref")
	for _, id := range ids[1:] {
		s, err := m.Surface(id)
		if err != nil {
			t.Fatal(err)
		}
		if !ref.IsFacing(s) {
			t.Errorf("%s does not face the reference", id)
		}
	}
}

func TestFromRandomRectanglesThatSeeEachOther(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	m, err := FromRandomRectanglesThatSeeEachOther(geometry.RandomRectangleOptions{
		Count:   4,
		MinSize: 0.5,
		MaxSize: 2,
	}, rng, ManagerConfig{Runner: &scriptRunner{}})
	if err != nil {
		t.Fatalf("FromRandomRectanglesThatSeeEachOther: %v", err)
	}

	ids := m.SurfaceIDs()
	ref, _ := m.Surface("ref")
	if got := ref.ViewedSurfaceIDs(); len(got) != 4 {
		t.Fatalf("ref views %v, want all 4 rectangles", got)
	}
	for _, id := range ids[1:] {
		s, err := m.Surface(id)
		if err != nil {
			t.Fatal(err)
		}
		if got := s.ViewedSurfaceIDs(); len(got) != 1 || got[0] != "ref" {
			t.Errorf("%s views %v, want [ref]", id, got)
		}
	}
	// The pre-linked registry passes the wave consistency check as-is.
	if err := m.CheckAllViewedSurfacesInManager(); err != nil {
		t.Fatalf("consistency check: %v", err)
	}
}

func TestGenerateInputsOverwriteClearsStaleArtifacts(t *testing.T) {
	root := t.TempDir()
	m, _ := newTestManager(t)
	if err := m.AddSurfaces(roomSurfaces(t), true); err != nil {
		t.Fatal(err)
	}
	if err := m.ComputeVisibility(context.Background(), VisibilityOptions{}, executor.Config{}); err != nil {
		t.Fatal(err)
	}

	if err := EnsureSimulationLayout(root); err != nil {
		t.Fatal(err)
	}
	stale := filepath.Join(root, OutputFolder, "output_ghost_batch_0000.txt")
	if err := os.WriteFile(stale, []byte("0.5\t0.5\t0.5\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := m.GenerateRadianceInputs(context.Background(), InputGenOptions{
		RootDir:   root,
		Overwrite: true,
	}, executor.Config{})
	if err != nil {
		t.Fatalf("GenerateRadianceInputs: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("stale artifact survived the overwrite: %v", err)
	}
	if len(m.PendingInvocations()) != 2 {
		t.Fatalf("pending = %d, want 2", len(m.PendingInvocations()))
	}
}
