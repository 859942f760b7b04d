// Command radvf runs the view-factor pipeline end to end on a randomly
// generated scene: a reference rectangle plus rectangles scattered in
// its upper half-space. With -run it drives the Radiance binaries
// (rfluxmtx, oconv) and ingests their results; without it the pipeline
// stops after artifact generation, which needs no Radiance install.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"

	"github.com/fluxfoundry/radiance-vf/core"
	"github.com/fluxfoundry/radiance-vf/geometry"
	"github.com/fluxfoundry/radiance-vf/internal/blob"
	"github.com/fluxfoundry/radiance-vf/internal/executor"
	"github.com/fluxfoundry/radiance-vf/internal/logging"
	"github.com/fluxfoundry/radiance-vf/internal/observability"
	"github.com/fluxfoundry/radiance-vf/internal/store"
)

func main() {
	count := flag.Int("count", 10, "number of random rectangles facing the reference")
	minSize := flag.Float64("min-size", 0.5, "minimum rectangle edge length")
	maxSize := flag.Float64("max-size", 2, "maximum rectangle edge length")
	coaxial := flag.Bool("coaxial", false, "generate coaxial parallel squares (analytical-bound configuration)")
	preLinked := flag.Bool("pre-linked", false, "link the generated scene up front and skip the visibility wave")
	seed := flag.Int64("seed", 1, "random seed")

	rootDir := flag.String("root", "simulation", "simulation folder for generated artifacts")
	rayCount := flag.Int("rays", 10000, "rfluxmtx ray count")
	receiversPerFile := flag.Int("receivers-per-file", 20, "receiver surfaces per rfluxmtx file")
	octree := flag.Bool("octree", false, "build context octrees with oconv")
	overwrite := flag.Bool("overwrite", false, "wipe the simulation folder before generating artifacts")
	minVF := flag.Float64("min-vf", 0, "minimum view-factor pruning criterion, 0 disables")
	rayTrace := flag.Bool("ray-trace", false, "prune obstructed pairs by ray tracing the scene mesh")

	workers := flag.Int("workers", 0, "worker pool size, 0 = host CPU count")
	batchSize := flag.Int("command-batch", 1, "invocations grouped into one shell command")
	run := flag.Bool("run", false, "invoke the Radiance binaries and ingest results")
	snapshotKey := flag.String("snapshot", "", "save the registry snapshot under this key")
	persist := flag.Bool("persist", false, "write solved view factors to the result store")
	metricsAddr := flag.String("metrics-addr", "", "serve /metrics on this address, empty disables")

	flag.Parse()

	ctx := context.Background()
	log := logging.NewFromEnv()

	shutdown, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		fatalf("init tracing: %v", err)
	}
	defer observability.ShutdownWithTimeout(ctx, shutdown, log)

	var metrics *observability.SimulationCollector
	if *metricsAddr != "" {
		metrics, err = observability.NewSimulationCollector(nil)
		if err != nil {
			fatalf("init metrics: %v", err)
		}
		go func() {
			if err := http.ListenAndServe(*metricsAddr, metrics.Handler()); err != nil {
				log.Error(ctx, "metrics server stopped", logging.String("error", err.Error()))
			}
		}()
	}

	cfg := core.ManagerConfig{Logger: log}
	if metrics != nil {
		cfg.Metrics = metrics
	}
	rng := rand.New(rand.NewSource(*seed))
	sceneOpts := geometry.RandomRectangleOptions{
		Count:                  *count,
		MinSize:                *minSize,
		MaxSize:                *maxSize,
		ParallelCoaxialSquares: *coaxial,
	}
	build := core.FromRandomRectangles
	if *preLinked {
		build = core.FromRandomRectanglesThatSeeEachOther
	}
	manager, err := build(sceneOpts, rng, cfg)
	if err != nil {
		fatalf("build scene: %v", err)
	}
	fmt.Printf("Scene: %d surfaces (reference + %d rectangles)\n", manager.Len(), *count)

	execCfg := executor.Config{NumWorkers: *workers}
	if !*preLinked {
		visOpts := core.VisibilityOptions{
			MinViewFactor: *minVF,
			RayTracing:    *rayTrace,
		}
		if err := manager.ComputeVisibility(ctx, visOpts, execCfg); err != nil {
			fatalf("visibility: %v", err)
		}
	}
	for _, id := range manager.SurfaceIDs() {
		s, _ := manager.Surface(id)
		fmt.Printf("  %-10s area=%6.3f sees %d surfaces\n", id, s.Area(), s.ViewedCount())
	}

	if err := manager.GenerateRadianceInputs(ctx, core.InputGenOptions{
		RootDir:          *rootDir,
		ReceiversPerFile: *receiversPerFile,
		BuildOctree:      *octree,
		Overwrite:        *overwrite,
		RayCount:         *rayCount,
	}, execCfg); err != nil {
		fatalf("generate inputs: %v", err)
	}
	fmt.Printf("Generated %d pending invocations under %s/\n", len(manager.PendingInvocations()), *rootDir)

	if *run {
		failed, err := manager.RunVFComputation(ctx, core.RunOptions{
			CommandBatchSize: *batchSize,
			Executor:         execCfg,
		})
		if err != nil {
			fatalf("run simulation: %v", err)
		}
		if failed > 0 {
			fmt.Fprintf(os.Stderr, "warning: %d command groups failed\n", failed)
		}

		report, err := manager.ReadVFResults(ctx, *rootDir)
		if err != nil {
			fatalf("ingest results: %v", err)
		}
		fmt.Printf("Ingested %d values for %d emitters (%d outputs missing)\n",
			report.ValuesIngested, report.EmittersSolved, len(report.MissingOutputs))

		corrected, err := manager.ApplyReciprocityCorrection(*rayCount)
		if err != nil {
			fatalf("reciprocity correction: %v", err)
		}
		fmt.Printf("Reciprocity correction adjusted %d pairs\n", corrected)

		printSolved(manager, *coaxial)

		if *persist {
			rs, err := store.Open(ctx)
			if err != nil {
				fatalf("open result store: %v", err)
			}
			defer rs.Close()
			if err := manager.PersistResults(ctx, rs); err != nil {
				fatalf("persist results: %v", err)
			}
			fmt.Println("Solved view factors persisted to the result store")
		}
	}

	if *snapshotKey != "" {
		archive, err := blob.Open(ctx)
		if err != nil {
			fatalf("open snapshot archive: %v", err)
		}
		if err := manager.SaveSnapshot(ctx, archive, *snapshotKey); err != nil {
			fatalf("save snapshot: %v", err)
		}
		fmt.Printf("Snapshot saved as %q (%s driver)\n", *snapshotKey, archive.Driver())
	}
}

// printSolved lists each solved pair; in coaxial mode the analytical
// closed form is an exact reference, so the deviation is shown next to
// every value.
func printSolved(manager *core.SurfaceManager, coaxial bool) {
	ref, err := manager.Surface("ref")
	if err != nil {
		return
	}
	for _, id := range ref.ViewedSurfaceIDs() {
		vf, err := ref.ViewFactor(id)
		if err != nil {
			continue
		}
		if coaxial {
			other, err := manager.Surface(id)
			if err != nil {
				continue
			}
			exact := core.AnalyticalVFCoaxialParallelSquares(
				ref.Area(), other.Area(), ref.Centroid().DistanceTo(other.Centroid()))
			fmt.Printf("  ref -> %-10s VF=%8.5f analytical=%8.5f\n", id, vf, exact)
			continue
		}
		fmt.Printf("  ref -> %-10s VF=%8.5f\n", id, vf)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
