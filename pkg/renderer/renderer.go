package renderer

import (
	"context"
	"fmt"
	"image"
	"math"
	"sync"
	"time"

	"github.com/goofoo/lumen/pkg/core"
	"github.com/goofoo/lumen/pkg/integrator"
	"github.com/goofoo/lumen/pkg/scene"
)

// DefaultLogger implements core.Logger by writing to stdout
type DefaultLogger struct{}

// Printf writes a formatted message to stdout
func (dl *DefaultLogger) Printf(format string, args ...interface{}) {
	fmt.Printf(format, args...)
}

// NewDefaultLogger creates a new default logger
func NewDefaultLogger() core.Logger {
	return &DefaultLogger{}
}

// Config holds the frame driver parameters
type Config struct {
	Width, Height int
	TileSize      int // 32x32 recommended
	NumWorkers    int // 0 = use CPU count
	Seed          uint64
}

// FrameStats summarizes one committed frame
type FrameStats struct {
	Samples          int // frames committed so far (one sample/pixel each)
	Epsilon          float64
	NumIntersectRays uint64
	NumOccludedRays  uint64
	Elapsed          time.Duration
}

// Renderer is the tile-parallel frame driver: it partitions the image
// into tiles, dispatches eye-path tracing across a fixed fork-join worker
// pool, and accumulates into two per-pixel double-precision buffers — one
// written tile-locally by eye traces, one collecting light-to-camera
// splats applied in tile order at the barrier.
type Renderer struct {
	scene     *scene.Scene
	camera    *Camera
	technique integrator.Technique
	config    Config
	logger    core.Logger

	eyeImage   []core.Vec3
	lightImage []core.Vec3
	accum      []core.Vec3
	average    []core.Vec3

	tileRects  []image.Rectangle
	tileSplats []splatBuffer

	samples int
	epsilon float64

	startTime          time.Time
	baseRays           uint64
	baseOccl           uint64
	reportedViolations uint64
}

// NewRenderer creates a frame driver for one scene/technique pair
func NewRenderer(s *scene.Scene, camera *Camera, technique integrator.Technique, config Config, logger core.Logger) *Renderer {
	if config.TileSize <= 0 {
		config.TileSize = 32
	}
	if logger == nil {
		logger = NewDefaultLogger()
	}

	pixels := config.Width * config.Height
	r := &Renderer{
		scene:      s,
		camera:     camera,
		technique:  technique,
		config:     config,
		logger:     logger,
		eyeImage:   make([]core.Vec3, pixels),
		lightImage: make([]core.Vec3, pixels),
		accum:      make([]core.Vec3, pixels),
		average:    make([]core.Vec3, pixels),
		startTime:  time.Now(),
		baseRays:   s.NumIntersectRays(),
		baseOccl:   s.NumOccludedRays(),
	}
	r.tileRects = r.tiles()
	r.tileSplats = make([]splatBuffer, len(r.tileRects))
	return r
}

// tiles partitions the image into tile rectangles in row-major order
func (r *Renderer) tiles() []image.Rectangle {
	var out []image.Rectangle
	size := r.config.TileSize
	for y := 0; y < r.config.Height; y += size {
		for x := 0; x < r.config.Width; x += size {
			out = append(out, image.Rect(
				x, y,
				min(x+size, r.config.Width),
				min(y+size, r.config.Height),
			))
		}
	}
	return out
}

// RenderFrame traces one sample per pixel and commits the result into the
// running average. Cancellation is honored between tiles; in-flight tiles
// always run to completion.
func (r *Renderer) RenderFrame(ctx context.Context) (FrameStats, error) {
	workers := r.config.NumWorkers
	if workers <= 0 {
		workers = defaultWorkerCount()
	}

	r.technique.Preprocess(r.scene, core.MixSeed(r.config.Seed, 0x66726d65, uint64(r.samples)), workers, r.logger)

	tileChan := make(chan int, len(r.tileRects))
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tctx := integrator.NewContext(nil, r.camera, nil)
			for index := range tileChan {
				r.renderTile(tctx, index)
			}
		}()
	}

	var cancelled error
	for index := range r.tileRects {
		if err := ctx.Err(); err != nil {
			cancelled = err
			break
		}
		tileChan <- index
	}
	close(tileChan)
	wg.Wait()

	if violations := r.scene.InvariantViolations(); violations > r.reportedViolations {
		r.logger.Printf("invariant violations so far: %d (affected samples were replaced with black)\n", violations)
		r.reportedViolations = violations
	}

	if cancelled != nil {
		// discard the partial frame: zero the buffers without committing
		for i := range r.eyeImage {
			r.eyeImage[i] = core.Vec3{}
			r.lightImage[i] = core.Vec3{}
		}
		for i := range r.tileSplats {
			r.tileSplats[i].splats = r.tileSplats[i].splats[:0]
		}
		return r.stats(), cancelled
	}

	r.commit()
	return r.stats(), nil
}

// renderTile traces the tile's pixels in serpentine order: left to right
// on even rows, right to left on odd ones, for coherent ray batches. The
// tile's sampler stream depends only on the seed, the frame index and the
// tile origin, so renders are reproducible for any worker count.
func (r *Renderer) renderTile(tctx *integrator.Context, index int) {
	tile := r.tileRects[index]
	buffer := &r.tileSplats[index]

	seed := core.MixSeed(r.config.Seed, uint64(r.samples), uint64(tile.Min.X), uint64(tile.Min.Y))
	tctx.Sampler = core.NewSampler(seed)
	tctx.Splat = buffer.add

	for y := tile.Min.Y; y < tile.Max.Y; y++ {
		x0, x1, step := tile.Min.X, tile.Max.X-1, 1
		if (y-tile.Min.Y)%2 == 1 {
			x0, x1, step = tile.Max.X-1, tile.Min.X, -1
		}
		for x := x0; ; x += step {
			jitter := tctx.Sampler.Get2D()
			ray := r.camera.Ray(float64(x)+jitter.X, float64(y)+jitter.Y)

			color := r.technique.TraceEye(tctx, ray)
			if !color.IsFinite() {
				color = core.Vec3{}
			}
			pixel := y*r.config.Width + x
			r.eyeImage[pixel] = r.eyeImage[pixel].Add(color)

			if x == x1 {
				break
			}
		}
	}
}

// commit applies the splat buffers in tile order, folds both buffers into
// the running sum, derives the new average and the RMS per-pixel delta,
// and zeroes the frame state
func (r *Renderer) commit() {
	for i := range r.tileSplats {
		r.tileSplats[i].applyTo(r.lightImage, r.config.Width, r.config.Height)
	}

	sumDelta := 0.0
	for i := range r.accum {
		r.accum[i] = r.accum[i].Add(r.eyeImage[i]).Add(r.lightImage[i])
		newAverage := r.accum[i].Divide(float64(r.samples + 1))

		delta := newAverage.Subtract(r.average[i]).L1Norm()
		sumDelta += delta * delta

		r.average[i] = newAverage
		r.eyeImage[i] = core.Vec3{}
		r.lightImage[i] = core.Vec3{}
	}

	r.samples++
	r.epsilon = math.Sqrt(sumDelta / float64(len(r.accum)))
}

// stats summarizes the render so far
func (r *Renderer) stats() FrameStats {
	return FrameStats{
		Samples:          r.samples,
		Epsilon:          r.epsilon,
		NumIntersectRays: r.scene.NumIntersectRays() - r.baseRays,
		NumOccludedRays:  r.scene.NumOccludedRays() - r.baseOccl,
		Elapsed:          time.Since(r.startTime),
	}
}

// Image returns the current per-pixel average radiance
func (r *Renderer) Image() []core.Vec3 {
	out := make([]core.Vec3, len(r.average))
	copy(out, r.average)
	return out
}

// Samples returns the number of committed frames
func (r *Renderer) Samples() int {
	return r.samples
}

// Epsilon returns the RMS per-pixel delta of the last commit
func (r *Renderer) Epsilon() float64 {
	return r.epsilon
}
