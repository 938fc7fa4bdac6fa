package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/goofoo/lumen/pkg/integrator"
	"github.com/goofoo/lumen/pkg/output"
	"github.com/goofoo/lumen/pkg/renderer"
	"github.com/goofoo/lumen/pkg/scene"
	"github.com/pkg/profile"
)

// exit codes per the CLI contract
const (
	exitOK        = 0
	exitUsage     = 1
	exitIO        = 2
	exitNumerical = 3
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(exitUsage)
	}

	switch os.Args[1] {
	case "render":
		os.Exit(runRender(os.Args[2:]))
	case "avg":
		os.Exit(runAvg(os.Args[2:]))
	case "rms":
		os.Exit(runRMS(os.Args[2:]))
	case "help", "-h", "--help":
		usage()
		os.Exit(exitOK)
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q\n", os.Args[1])
		usage()
		os.Exit(exitUsage)
	}
}

func usage() {
	fmt.Println("lumen - bidirectional Monte-Carlo light transport renderer")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  lumen render [options]   render a scene to OpenEXR")
	fmt.Println("  lumen avg <image.exr>    report per-channel average")
	fmt.Println("  lumen rms <a.exr> <b.exr>  report per-channel RMS error")
	fmt.Println()
	fmt.Println("Techniques: PT, BPT0, BPT1, BPT2, BPTb, VCM0, VCM1, VCM2, VCMb, UPG")
}

type renderOptions struct {
	technique  string
	out        string
	spp        int
	tileSize   int
	seed       uint64
	width      int
	height     int
	scenePath  string
	photons    int
	numGather  int
	radius     float64
	beta       float64
	minSubpath int
	roulette   float64
	workers    int
	preview    bool
	profiling  bool
}

func runRender(args []string) int {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	opts := renderOptions{}
	fs.StringVar(&opts.technique, "technique", "BPT1", "estimator: PT, BPT0/1/2/b, VCM0/1/2/b, UPG")
	fs.StringVar(&opts.out, "o", "render.exr", "output image path")
	fs.IntVar(&opts.spp, "spp", 64, "samples per pixel (frames)")
	fs.IntVar(&opts.tileSize, "tile", 32, "tile size in pixels")
	fs.Uint64Var(&opts.seed, "seed", 1, "random seed")
	fs.IntVar(&opts.width, "width", 512, "image width")
	fs.IntVar(&opts.height, "height", 512, "image height")
	fs.StringVar(&opts.scenePath, "scene", "", "hjson scene file (default: built-in Cornell box)")
	fs.IntVar(&opts.photons, "photons", 1000000, "photon paths per frame (VCM/UPG)")
	fs.IntVar(&opts.numGather, "gather", 32, "photons gathered per merge (VCM)")
	fs.Float64Var(&opts.radius, "radius", 0.02, "merge radius (VCM/UPG)")
	fs.Float64Var(&opts.beta, "beta", 1.0, "MIS exponent for the b variants")
	fs.IntVar(&opts.minSubpath, "min-subpath", 3, "bounces before Russian roulette")
	fs.Float64Var(&opts.roulette, "roulette", 0.5, "roulette survival probability")
	fs.IntVar(&opts.workers, "workers", 0, "worker count (0 = CPU count)")
	fs.BoolVar(&opts.preview, "preview", false, "write a WebP preview next to the EXR")
	fs.BoolVar(&opts.profiling, "profile", false, "write a CPU profile")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	if opts.spp <= 0 || opts.width <= 0 || opts.height <= 0 ||
		opts.roulette <= 0 || opts.roulette > 1 || opts.radius <= 0 {
		fmt.Fprintln(os.Stderr, "invalid option ranges")
		return exitUsage
	}

	if opts.profiling {
		defer profile.Start(profile.ProfilePath(".")).Stop()
	}

	var s *scene.Scene
	var cameraConfig scene.CameraConfig
	if opts.scenePath == "" {
		s, cameraConfig = scene.NewCornellScene()
	} else {
		var err error
		s, cameraConfig, err = scene.LoadScene(opts.scenePath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitIO
		}
	}

	technique, err := makeTechnique(opts.technique, s, opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}

	camera := renderer.NewCamera(cameraConfig, opts.width, opts.height)
	logger := renderer.NewDefaultLogger()
	driver := renderer.NewRenderer(s, camera, technique, renderer.Config{
		Width:      opts.width,
		Height:     opts.height,
		TileSize:   opts.tileSize,
		NumWorkers: opts.workers,
		Seed:       opts.seed,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Printf("rendering %dx%d with %s, %d samples per pixel\n",
		opts.width, opts.height, technique.Name(), opts.spp)

	var stats renderer.FrameStats
	for frame := 0; frame < opts.spp; frame++ {
		stats, err = driver.RenderFrame(ctx)
		if err != nil {
			logger.Printf("cancelled after %d samples\n", stats.Samples)
			break
		}
		if frame == 0 || (frame+1)%16 == 0 || frame == opts.spp-1 {
			logger.Printf("sample %d/%d, epsilon %.3g, %d rays\n",
				stats.Samples, opts.spp, stats.Epsilon,
				stats.NumIntersectRays+stats.NumOccludedRays)
		}
	}

	if stats.Samples == 0 {
		return exitOK
	}
	if math.IsNaN(stats.Epsilon) || math.IsInf(stats.Epsilon, 0) {
		fmt.Fprintln(os.Stderr, "numerical failure: non-finite convergence epsilon")
		return exitNumerical
	}

	pixels := driver.Image()
	if err := output.WriteEXR(opts.out, opts.width, opts.height, pixels); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitIO
	}

	meta := output.Meta{
		Technique:        technique.Name(),
		Samples:          stats.Samples,
		NumIntersectRays: stats.NumIntersectRays,
		NumOccludedRays:  stats.NumOccludedRays,
		Width:            opts.width,
		Height:           opts.height,
		Epsilon:          stats.Epsilon,
		TotalTime:        stats.Elapsed,
	}
	if err := output.WriteMeta(metaPath(opts.out), meta); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitIO
	}

	if opts.preview {
		previewFile := strings.TrimSuffix(opts.out, ".exr") + ".webp"
		if err := output.WritePreview(previewFile, opts.width, opts.height, pixels, 1); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitIO
		}
	}

	logger.Printf("wrote %s (%d samples, epsilon %.3g, %s)\n",
		opts.out, stats.Samples, stats.Epsilon, stats.Elapsed)
	return exitOK
}

func metaPath(out string) string {
	return strings.TrimSuffix(out, ".exr") + ".meta"
}

func makeTechnique(name string, s *scene.Scene, opts renderOptions) (integrator.Technique, error) {
	bpt := func(b integrator.Beta, label string) integrator.Technique {
		return integrator.NewBPT(s, b, opts.minSubpath, opts.roulette, label)
	}
	vcm := func(b integrator.Beta, mode integrator.GatherMode, label string) integrator.Technique {
		return integrator.NewUPG(s, b, opts.minSubpath, opts.roulette,
			opts.photons, opts.numGather, opts.radius, mode, label)
	}

	switch name {
	case "PT":
		return integrator.NewPathTracing(s, opts.minSubpath, opts.roulette), nil
	case "BPT0":
		return bpt(integrator.FixedBeta0{}, "BPT0"), nil
	case "BPT1":
		return bpt(integrator.FixedBeta1{}, "BPT1"), nil
	case "BPT2":
		return bpt(integrator.FixedBeta2{}, "BPT2"), nil
	case "BPTb":
		return bpt(integrator.VariableBeta{Exponent: opts.beta}, "BPTb"), nil
	case "VCM0":
		return vcm(integrator.FixedBeta0{}, integrator.GatherBiased, "VCM0"), nil
	case "VCM1":
		return vcm(integrator.FixedBeta1{}, integrator.GatherBiased, "VCM1"), nil
	case "VCM2":
		return vcm(integrator.FixedBeta2{}, integrator.GatherBiased, "VCM2"), nil
	case "VCMb":
		return vcm(integrator.VariableBeta{Exponent: opts.beta}, integrator.GatherBiased, "VCMb"), nil
	case "UPG":
		return vcm(integrator.FixedBeta1{}, integrator.GatherUnbiased, "UPG"), nil
	default:
		return nil, fmt.Errorf("unknown technique %q", name)
	}
}

func runAvg(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: lumen avg <image.exr>")
		return exitUsage
	}

	width, height, pixels, err := output.ReadEXR(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitIO
	}

	var sum [3]float64
	for _, p := range pixels {
		sum[0] += p.X
		sum[1] += p.Y
		sum[2] += p.Z
	}
	n := float64(width * height)
	fmt.Printf("avg: %g %g %g\n", sum[0]/n, sum[1]/n, sum[2]/n)
	return exitOK
}

func runRMS(args []string) int {
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: lumen rms <a.exr> <b.exr>")
		return exitUsage
	}

	wa, ha, a, err := output.ReadEXR(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitIO
	}
	wb, hb, b, err := output.ReadEXR(args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitIO
	}
	if wa != wb || ha != hb {
		fmt.Fprintf(os.Stderr, "resolution mismatch: %dx%d vs %dx%d\n", wa, ha, wb, hb)
		return exitUsage
	}

	var sum [3]float64
	for i := range a {
		d := a[i].Subtract(b[i])
		sum[0] += d.X * d.X
		sum[1] += d.Y * d.Y
		sum[2] += d.Z * d.Z
	}
	n := float64(wa * ha)
	fmt.Printf("rms: %g %g %g\n",
		math.Sqrt(sum[0]/n), math.Sqrt(sum[1]/n), math.Sqrt(sum[2]/n))
	return exitOK
}
