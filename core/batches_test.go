package core

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

func TestGenerateSurfaceInputsBatching(t *testing.T) {
	root := t.TempDir()
	if err := EnsureSimulationLayout(root); err != nil {
		t.Fatalf("EnsureSimulationLayout: %v", err)
	}

	emitter := mustSurface(t, "emitter", unitSquare(0))
	var ids []string
	for i := 0; i < 23; i++ {
		ids = append(ids, fmt.Sprintf("r%02d", i))
	}
	if err := emitter.AddViewedSurfaces(ids, false); err != nil {
		t.Fatal(err)
	}

	receiverRad := func(id string) (string, error) {
		return "void glow sur_" + id + "\n", nil
	}
	invs, builds, err := generateSurfaceInputs(emitter, receiverRad, InputGenOptions{
		RootDir:            root,
		ReceiversPerFile:   5,
		ReceiversPerOctree: 10,
		BuildOctree:        true,
	})
	if err != nil {
		t.Fatalf("generateSurfaceInputs: %v", err)
	}

	// 23 receivers at 5 per file: 4 full files plus one holding 3.
	if len(invs) != 5 {
		t.Fatalf("invocations = %d, want 5", len(invs))
	}
	receiverFiles, err := os.ReadDir(filepath.Join(root, ReceiverFolder))
	if err != nil {
		t.Fatal(err)
	}
	if len(receiverFiles) != 5 {
		t.Fatalf("receiver artifacts = %d, want 5", len(receiverFiles))
	}
	last, err := os.ReadFile(invs[4].ReceiverPath)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(string(last), "void glow"); got != 3 {
		t.Errorf("last batch holds %d receivers, want 3", got)
	}

	// 23 receivers at 10 per octree scene: 3 scene files, one octree.
	if len(builds) != 1 {
		t.Fatalf("octree builds = %d, want 1", len(builds))
	}
	if len(builds[0].RadPaths) != 3 {
		t.Errorf("octree scene files = %d, want 3", len(builds[0].RadPaths))
	}
	for _, inv := range invs {
		if inv.OctreePath != builds[0].OctreePath {
			t.Errorf("invocation octree %q != build octree %q", inv.OctreePath, builds[0].OctreePath)
		}
	}
}

func TestGenerateSurfaceInputsZeroReceivers(t *testing.T) {
	root := t.TempDir()
	if err := EnsureSimulationLayout(root); err != nil {
		t.Fatal(err)
	}
	emitter := mustSurface(t, "lonely", unitSquare(0))

	invs, builds, err := generateSurfaceInputs(emitter, func(string) (string, error) { return "", nil }, InputGenOptions{
		RootDir:     root,
		BuildOctree: true,
	})
	if err != nil {
		t.Fatalf("generateSurfaceInputs: %v", err)
	}
	if len(invs) != 0 || len(builds) != 0 {
		t.Fatalf("surface with no receivers produced work: %d invocations, %d builds", len(invs), len(builds))
	}
	for _, folder := range []string{EmitterFolder, ReceiverFolder, OctreeFolder} {
		entries, err := os.ReadDir(filepath.Join(root, folder))
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 0 {
			t.Errorf("%s holds %d artifacts, want none", folder, len(entries))
		}
	}
}

func TestBatchNumberingSortsLexically(t *testing.T) {
	root := t.TempDir()
	if err := EnsureSimulationLayout(root); err != nil {
		t.Fatal(err)
	}

	emitter := mustSurface(t, "big", unitSquare(0))
	var ids []string
	for i := 0; i < 24; i++ {
		ids = append(ids, fmt.Sprintf("r%03d", i))
	}
	if err := emitter.AddViewedSurfaces(ids, false); err != nil {
		t.Fatal(err)
	}

	invs, _, err := generateSurfaceInputs(emitter, func(id string) (string, error) {
		return "void glow sur_" + id + "\n", nil
	}, InputGenOptions{RootDir: root, ReceiversPerFile: 2})
	if err != nil {
		t.Fatal(err)
	}

	// A directory listing must re-derive generation order on its own.
	entries, err := os.ReadDir(filepath.Join(root, ReceiverFolder))
	if err != nil {
		t.Fatal(err)
	}
	// os.ReadDir returns entries sorted by filename.
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	if !sort.StringsAreSorted(names) {
		t.Fatal("directory listing not sorted")
	}
	for i, inv := range invs {
		if filepath.Base(inv.ReceiverPath) != names[i] {
			t.Fatalf("sorted listing diverges from generation order at %d: %q vs %q",
				i, names[i], filepath.Base(inv.ReceiverPath))
		}
	}
}

func TestParseOutputName(t *testing.T) {
	id, batch, err := ParseOutputName("output_north_wall_batch_0007.txt")
	if err != nil {
		t.Fatalf("ParseOutputName: %v", err)
	}
	if id != "north_wall" || batch != 7 {
		t.Errorf("parsed (%q, %d), want (north_wall, 7)", id, batch)
	}
	for _, bad := range []string{"emitter_x.rad", "output_x.txt", "output__batch_.txt"} {
		if _, _, err := ParseOutputName(bad); err == nil {
			t.Errorf("ParseOutputName(%q) succeeded, want error", bad)
		}
	}
}

func TestParseOutputFileTakesEveryThirdValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	content := "0.1\t0.1\t0.1\t0.25\t0.25\t0.25\n0.05\t0.05\t0.05\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	values, err := ParseOutputFile(path)
	if err != nil {
		t.Fatalf("ParseOutputFile: %v", err)
	}
	want := []float64{0.1, 0.25, 0.05}
	if len(values) != len(want) {
		t.Fatalf("values = %v, want %v", values, want)
	}
	for i := range want {
		if values[i] != want[i] {
			t.Fatalf("values[%d] = %v, want %v", i, values[i], want[i])
		}
	}
}
