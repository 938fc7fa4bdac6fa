package scene

import (
	"math"
	"testing"

	"github.com/goofoo/lumen/pkg/core"
)

func TestCornellIntersect(t *testing.T) {
	s, camera := NewCornellScene()

	// a ray from the camera through the box center hits the back wall
	from := core.SurfacePoint{Position: camera.Position}
	direction := core.NewVec3(0.28, 0.28, 0.28).Subtract(camera.Position).Normalize()

	hit := s.Intersect(from, direction)
	if !hit.IsPresent() {
		t.Fatal("center ray missed the box")
	}
	if math.Abs(hit.Position.Z-0.56) > 1e-6 {
		t.Errorf("expected back wall hit at z=0.56, got %v", hit.Position)
	}
	if hit.IsLight() {
		t.Error("back wall should not be an emitter")
	}
	if !hit.Frame.IsOrthonormal(1e-9) {
		t.Errorf("hit frame not orthonormal: %+v", hit.Frame)
	}
	if hit.Normal().Dot(direction.Negate()) <= 0 {
		t.Error("shading normal not flipped toward the incident direction")
	}
}

func TestCornellLightHit(t *testing.T) {
	s, _ := NewCornellScene()

	// straight up from the box center hits the emitter
	from := core.SurfacePoint{Position: core.NewVec3(0.28, 0.28, 0.28)}
	hit := s.Intersect(from, core.NewVec3(0, 1, 0))
	if !hit.IsPresent() || !hit.IsLight() {
		t.Fatalf("expected light hit, got %+v", hit)
	}

	radiance := s.QueryRadiance(hit, core.NewVec3(0, -1, 0))
	want := core.NewVec3(17, 12, 4)
	if radiance.Subtract(want).L1Norm() > 1e-9 {
		t.Errorf("radiance %v, want %v", radiance, want)
	}

	// mesh-only intersection skips the emitter and reaches the ceiling
	meshHit := s.IntersectMesh(from, core.NewVec3(0, 1, 0))
	if !meshHit.IsPresent() || meshHit.IsLight() {
		t.Fatalf("mesh-only intersect should hit the ceiling, got %+v", meshHit)
	}
}

func TestCornellOcclusion(t *testing.T) {
	s, _ := NewCornellScene()

	floor := core.SurfacePoint{
		Position: core.NewVec3(0.28, 0, 0.28),
		GNormal:  core.NewVec3(0, 1, 0),
	}
	ceiling := core.SurfacePoint{
		Position: core.NewVec3(0.28, 0.56, 0.28),
		GNormal:  core.NewVec3(0, -1, 0),
	}
	leftWall := core.SurfacePoint{
		Position: core.NewVec3(0, 0.28, 0.28),
		GNormal:  core.NewVec3(1, 0, 0),
	}
	rightWall := core.SurfacePoint{
		Position: core.NewVec3(0.56, 0.28, 0.28),
		GNormal:  core.NewVec3(-1, 0, 0),
	}

	// the light quad hangs just below the ceiling between floor and ceiling
	if v := s.Occluded(floor, ceiling); v != 0.0 {
		t.Errorf("floor-to-ceiling center blocked by the light quad, Occluded = %v", v)
	}
	if v := s.Occluded(leftWall, rightWall); v != 1.0 {
		t.Errorf("left-to-right walls unobstructed, Occluded = %v", v)
	}
}

func TestLightSampleDensities(t *testing.T) {
	s, _ := NewCornellScene()
	sampler := core.NewSampler(21)

	wantArea := 1.0 / (0.13 * 0.13)
	for i := 0; i < 1000; i++ {
		sample := s.SampleLight(sampler)

		if math.Abs(sample.AreaDensity-wantArea) > 1e-6 {
			t.Fatalf("area density %g, want %g", sample.AreaDensity, wantArea)
		}
		cosTheta := sample.Omega.Dot(sample.Normal())
		if cosTheta <= 0 {
			t.Fatal("emission direction below the emitter plane")
		}
		if math.Abs(sample.OmegaDensity-cosTheta/math.Pi) > 1e-9 {
			t.Fatalf("omega density %g, want cos/pi = %g", sample.OmegaDensity, cosTheta/math.Pi)
		}
		if sample.Normal().Subtract(core.NewVec3(0, -1, 0)).L1Norm() > 1e-9 {
			t.Fatalf("emitter normal %v, want (0,-1,0)", sample.Normal())
		}
	}
}

func TestSampleLightOnAndLSDFAgree(t *testing.T) {
	s, _ := NewCornellScene()
	sampler := core.NewSampler(22)
	receiver := core.NewVec3(0.28, 0.1, 0.28)

	for i := 0; i < 200; i++ {
		sample := s.SampleLightOn(sampler, receiver)

		lsdf := s.QueryLSDF(sample.Surface, sample.Omega)
		if math.Abs(lsdf.AreaDensity-sample.AreaDensity) > 1e-9 {
			t.Fatalf("LSDF area density %g != sample %g", lsdf.AreaDensity, sample.AreaDensity)
		}
		if math.Abs(lsdf.OmegaDensity-sample.OmegaDensity) > 1e-9 {
			t.Fatalf("LSDF omega density %g != sample %g", lsdf.OmegaDensity, sample.OmegaDensity)
		}
		if lsdf.Radiance.Subtract(sample.Radiance).L1Norm() > 1e-9 {
			t.Fatalf("LSDF radiance %v != sample %v", lsdf.Radiance, sample.Radiance)
		}
	}
}

func TestRayCountersAdvance(t *testing.T) {
	s, _ := NewCornellScene()

	before := s.NumRays()
	from := core.SurfacePoint{Position: core.NewVec3(0.28, 0.28, 0.28)}
	s.Intersect(from, core.NewVec3(0, 1, 0))
	s.Occluded(from, core.SurfacePoint{Position: core.NewVec3(0.28, 0.5, 0.28)})

	if s.NumRays() != before+2 {
		t.Errorf("ray counters advanced by %d, want 2", s.NumRays()-before)
	}
	if s.NumIntersectRays() == 0 || s.NumOccludedRays() == 0 {
		t.Error("per-kind counters not advancing")
	}
}
