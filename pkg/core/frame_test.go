package core

import (
	"math"
	"testing"
)

func TestFrameFromNormalIsOrthonormal(t *testing.T) {
	tests := []struct {
		name   string
		normal Vec3
	}{
		{"YUp", NewVec3(0, 1, 0)},
		{"XAxis", NewVec3(1, 0, 0)},
		{"Diagonal", NewVec3(1, 1, 1).Normalize()},
		{"NearX", NewVec3(0.99, 0.1, 0.05).Normalize()},
		{"Down", NewVec3(0, -1, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := FrameFromNormal(tt.normal)
			if !frame.IsOrthonormal(1e-12) {
				t.Errorf("frame from %v is not orthonormal", tt.normal)
			}
			if frame.Y.Subtract(tt.normal).Length() > 1e-12 {
				t.Errorf("frame Y = %v, want %v", frame.Y, tt.normal)
			}
		})
	}
}

func TestFrameRoundTrip(t *testing.T) {
	frame := FrameFromNormal(NewVec3(0.3, 0.8, -0.2).Normalize())
	directions := []Vec3{
		NewVec3(0, 1, 0),
		NewVec3(0.5, 0.5, 0.5).Normalize(),
		NewVec3(-0.2, 0.9, 0.1).Normalize(),
	}

	for _, local := range directions {
		back := frame.ToLocal(frame.ToWorld(local))
		if back.Subtract(local).Length() > 1e-12 {
			t.Errorf("round trip of %v gave %v", local, back)
		}
	}
}

func TestOrthonormalizeKeepsNormalDirection(t *testing.T) {
	skewed := NewFrame(
		NewVec3(1, 0.2, 0),
		NewVec3(0.1, 2.0, 0.1),
		NewVec3(0, 0.3, 1),
	)
	fixed := skewed.Orthonormalize()

	if !fixed.IsOrthonormal(1e-12) {
		t.Fatalf("orthonormalize failed: %+v", fixed)
	}
	if fixed.Y.Dot(skewed.Y.Normalize()) < 1-1e-12 {
		t.Errorf("normal direction changed: %v", fixed.Y)
	}
}

func TestMixSeedIsDeterministicAndSpread(t *testing.T) {
	a := MixSeed(1, 2, 3)
	b := MixSeed(1, 2, 3)
	if a != b {
		t.Fatalf("MixSeed not deterministic: %x vs %x", a, b)
	}
	if MixSeed(1, 2, 3) == MixSeed(1, 3, 2) {
		t.Error("MixSeed ignores argument order")
	}
	if MixSeed(0, 0, 0) == MixSeed(0, 0, 1) {
		t.Error("MixSeed collision on adjacent tiles")
	}
}

func TestSamplerDeterminism(t *testing.T) {
	a := NewSampler(42)
	b := NewSampler(42)
	for i := 0; i < 100; i++ {
		if a.Get1D() != b.Get1D() {
			t.Fatalf("streams diverged at draw %d", i)
		}
	}
}

func TestCosineHemisphereStatistics(t *testing.T) {
	sampler := NewSampler(7)
	n := 200000

	sumCos := 0.0
	for i := 0; i < n; i++ {
		omega := SampleCosineHemisphere(sampler.Get2D())
		if omega.Y < 0 {
			t.Fatalf("sample below hemisphere: %v", omega)
		}
		if math.Abs(omega.Length()-1) > 1e-9 {
			t.Fatalf("sample not unit length: %v", omega)
		}
		sumCos += omega.Y
	}

	// E[cos theta] = 2/3 for a cosine-weighted hemisphere
	mean := sumCos / float64(n)
	if math.Abs(mean-2.0/3.0) > 0.01 {
		t.Errorf("E[cos] = %f, want 2/3", mean)
	}
}

func TestBoundedCosineSampleStaysInBound(t *testing.T) {
	sampler := NewSampler(11)
	bound := AngularBound{
		ThetaInf: 0.3, ThetaSup: 0.9,
		PhiInf: -0.5, PhiSup: 1.2,
	}

	for i := 0; i < 10000; i++ {
		omega, subarea := SampleBoundedCosineHemisphere(sampler.Get2D(), bound)
		if subarea <= 0 {
			t.Fatal("empty subarea for a valid bound")
		}
		theta := math.Acos(omega.Y)
		if theta < bound.ThetaInf-1e-9 || theta > bound.ThetaSup+1e-9 {
			t.Fatalf("theta %f outside [%f, %f]", theta, bound.ThetaInf, bound.ThetaSup)
		}
		phi := math.Atan2(omega.Z, omega.X)
		if phi < bound.PhiInf-1e-9 || phi > bound.PhiSup+1e-9 {
			t.Fatalf("phi %f outside [%f, %f]", phi, bound.PhiInf, bound.PhiSup)
		}
	}
}

func TestBoundedCosineSubareaMatchesMonteCarlo(t *testing.T) {
	sampler := NewSampler(13)
	bound := AngularBound{
		ThetaInf: 0.2, ThetaSup: 1.1,
		PhiInf: 0.4, PhiSup: 2.6,
	}
	_, subarea := SampleBoundedCosineHemisphere(sampler.Get2D(), bound)

	// estimate the cosine-weighted measure fraction of the bound by
	// counting unrestricted samples that land inside it
	n := 200000
	inside := 0
	for i := 0; i < n; i++ {
		omega := SampleCosineHemisphere(sampler.Get2D())
		theta := math.Acos(omega.Y)
		phi := math.Atan2(omega.Z, omega.X)
		if theta >= bound.ThetaInf && theta <= bound.ThetaSup &&
			phi >= bound.PhiInf && phi <= bound.PhiSup {
			inside++
		}
	}

	estimate := float64(inside) / float64(n)
	if math.Abs(estimate-subarea) > 0.01 {
		t.Errorf("subarea = %f, Monte-Carlo estimate = %f", subarea, estimate)
	}
}

func TestSphereAngularBoundContainsSphere(t *testing.T) {
	center := NewVec3(0.3, 0.7, 0.2)
	radius := 0.1
	bound := SphereAngularBound(center, radius)

	sampler := NewSampler(17)
	for i := 0; i < 5000; i++ {
		// random point on the sphere surface
		offset := SampleUniformSphere(sampler.Get2D()).Multiply(radius)
		direction := center.Add(offset).Normalize()

		theta := math.Acos(math.Max(-1, math.Min(1, direction.Y)))
		if theta > math.Pi/2 {
			continue // below the hemisphere, never sampled
		}
		if theta < bound.ThetaInf-1e-6 || theta > bound.ThetaSup+1e-6 {
			t.Fatalf("sphere direction theta %f outside bound [%f, %f]",
				theta, bound.ThetaInf, bound.ThetaSup)
		}
		phi := math.Atan2(direction.Z, direction.X)
		if !phiInBound(phi, bound) {
			t.Fatalf("sphere direction phi %f outside bound [%f, %f]",
				phi, bound.PhiInf, bound.PhiSup)
		}
	}
}

func phiInBound(phi float64, bound AngularBound) bool {
	for _, shift := range []float64{-2 * math.Pi, 0, 2 * math.Pi} {
		if phi+shift >= bound.PhiInf-1e-6 && phi+shift <= bound.PhiSup+1e-6 {
			return true
		}
	}
	return false
}
