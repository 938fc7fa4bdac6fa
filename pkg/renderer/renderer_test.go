package renderer

import (
	"context"
	"math"
	"testing"

	"github.com/goofoo/lumen/pkg/core"
	"github.com/goofoo/lumen/pkg/integrator"
	"github.com/goofoo/lumen/pkg/scene"
)

func TestCameraProjectRoundTrip(t *testing.T) {
	_, config := scene.NewCornellScene()
	camera := NewCamera(config, 64, 48)

	tests := []struct {
		px, py float64
	}{
		{32, 24},
		{5.5, 10.25},
		{60.0, 40.0},
		{1.0, 46.5},
	}

	for _, tt := range tests {
		ray := camera.Ray(tt.px, tt.py)
		pixel, ok := camera.Project(ray.Direction)
		if !ok {
			t.Fatalf("pixel (%g, %g): projection failed", tt.px, tt.py)
		}
		if math.Abs(pixel.X-tt.px) > 1e-6 || math.Abs(pixel.Y-tt.py) > 1e-6 {
			t.Errorf("pixel (%g, %g) projected to (%g, %g)", tt.px, tt.py, pixel.X, pixel.Y)
		}
	}
}

func TestCameraBehindProjectionFails(t *testing.T) {
	_, config := scene.NewCornellScene()
	camera := NewCamera(config, 64, 64)

	forward := camera.Surface().Normal()
	if _, ok := camera.Project(forward.Negate()); ok {
		t.Error("projection behind the camera should fail")
	}
}

func TestCameraSurfaceFrame(t *testing.T) {
	_, config := scene.NewCornellScene()
	camera := NewCamera(config, 64, 64)

	surface := camera.Surface()
	if !surface.Frame.IsOrthonormal(1e-9) {
		t.Fatalf("camera frame not orthonormal: %+v", surface.Frame)
	}

	wantForward := config.LookAt.Subtract(config.Position).Normalize()
	if surface.Normal().Subtract(wantForward).L1Norm() > 1e-9 {
		t.Errorf("camera normal %v, want forward %v", surface.Normal(), wantForward)
	}
}

func TestSplatBufferApply(t *testing.T) {
	var buffer splatBuffer
	buffer.add(core.NewVec2(1.7, 0.2), core.NewVec3(1, 2, 3))
	buffer.add(core.NewVec2(1.1, 0.9), core.NewVec3(0.5, 0.5, 0.5))
	buffer.add(core.NewVec2(-3, 0), core.NewVec3(9, 9, 9)) // out of bounds, dropped
	buffer.add(core.NewVec2(0, 5), core.NewVec3(9, 9, 9))  // out of bounds, dropped

	image := make([]core.Vec3, 4*2)
	buffer.applyTo(image, 4, 2)

	want := core.NewVec3(1.5, 2.5, 3.5)
	if image[1].Subtract(want).L1Norm() > 1e-12 {
		t.Errorf("pixel (1,0) = %v, want %v", image[1], want)
	}
	for i, p := range image {
		if i != 1 && !p.IsZero() {
			t.Errorf("unexpected splat at pixel %d: %v", i, p)
		}
	}
	if len(buffer.splats) != 0 {
		t.Error("buffer not cleared after apply")
	}
}

func TestTilePartitionCoversImage(t *testing.T) {
	s, config := scene.NewCornellScene()
	camera := NewCamera(config, 70, 50) // not a multiple of the tile size
	driver := NewRenderer(s, camera,
		integrator.NewPathTracing(s, 3, 0.5),
		Config{Width: 70, Height: 50, TileSize: 32, Seed: 1}, nil)

	covered := make([]bool, 70*50)
	for _, tile := range driver.tiles() {
		for y := tile.Min.Y; y < tile.Max.Y; y++ {
			for x := tile.Min.X; x < tile.Max.X; x++ {
				index := y*70 + x
				if covered[index] {
					t.Fatalf("pixel (%d,%d) covered twice", x, y)
				}
				covered[index] = true
			}
		}
	}
	for i, c := range covered {
		if !c {
			t.Fatalf("pixel %d not covered", i)
		}
	}
}

func renderSmall(t *testing.T, workers int, seed uint64, spp int) []core.Vec3 {
	s, config := scene.NewCornellScene()
	camera := NewCamera(config, 16, 16)
	tech := integrator.NewBPT(s, integrator.FixedBeta1{}, 3, 0.5, "BPT1")
	driver := NewRenderer(s, camera, tech, Config{
		Width: 16, Height: 16, TileSize: 8, NumWorkers: workers, Seed: seed,
	}, nil)

	for i := 0; i < spp; i++ {
		if _, err := driver.RenderFrame(context.Background()); err != nil {
			t.Fatalf("render frame: %v", err)
		}
	}
	return driver.Image()
}

func TestRenderDeterminismAcrossWorkerCounts(t *testing.T) {
	a := renderSmall(t, 1, 7, 2)
	b := renderSmall(t, 4, 7, 2)

	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("pixel %d differs across worker counts: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestRenderSeedChangesImage(t *testing.T) {
	a := renderSmall(t, 2, 7, 1)
	b := renderSmall(t, 2, 8, 1)

	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different seeds produced identical images")
	}
}

func TestRenderProducesLight(t *testing.T) {
	image := renderSmall(t, 0, 3, 4)

	sum := core.Vec3{}
	for _, p := range image {
		if !p.IsFinite() {
			t.Fatal("non-finite pixel in output")
		}
		if p.X < 0 || p.Y < 0 || p.Z < 0 {
			t.Fatalf("negative radiance %v", p)
		}
		sum = sum.Add(p)
	}
	if sum.IsZero() {
		t.Error("rendered image is black")
	}
}

func TestCancellationBetweenTiles(t *testing.T) {
	s, config := scene.NewCornellScene()
	camera := NewCamera(config, 16, 16)
	driver := NewRenderer(s, camera,
		integrator.NewPathTracing(s, 3, 0.5),
		Config{Width: 16, Height: 16, TileSize: 8, Seed: 1}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := driver.RenderFrame(ctx)
	if err == nil {
		t.Fatal("cancelled render should report the context error")
	}
	if stats.Samples != 0 {
		t.Errorf("cancelled frame should not commit, samples = %d", stats.Samples)
	}
}
