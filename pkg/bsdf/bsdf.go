package bsdf

import (
	"math"

	"github.com/goofoo/lumen/pkg/core"
)

// Query is the result of evaluating a BSDF for a fixed direction pair.
// Throughput excludes the edge cosine (geometry terms live on the edge).
// Density is the solid-angle density of choosing outgoing given incident;
// DensityRev the density of choosing incident given outgoing. Delta lobes
// report both densities as zero and Specular = 1.
type Query struct {
	Throughput core.Vec3
	Density    float64
	DensityRev float64
	Specular   float64
}

// Sample is the result of drawing an outgoing direction. For delta lobes
// both densities are 1 and Throughput carries the delta response, so no
// 1/density cancellation is needed. A zero throughput terminates the path.
type Sample struct {
	Omega      core.Vec3
	Throughput core.Vec3
	Density    float64
	DensityRev float64
	Specular   float64
}

// Zero reports whether the sample terminates the path
func (s Sample) Zero() bool {
	return s.Throughput.IsZero()
}

// BoundedSample is an outgoing direction restricted to a target's angular
// bound. Adjust is the sampled measure fraction relative to the full
// hemisphere distribution.
type BoundedSample struct {
	Omega  core.Vec3
	Adjust float64
}

// BSDF answers queries and draws samples for one material. All directions
// are world-space; incident omegas point toward the previous path vertex.
type BSDF interface {
	Query(p core.SurfacePoint, incident, outgoing core.Vec3) Query
	Sample(s *core.Sampler, p core.SurfacePoint, omega core.Vec3) Sample
}

// BoundedSampler is implemented by BSDFs that can restrict sampling to the
// angular bound of a target sphere
type BoundedSampler interface {
	SampleBounded(s *core.Sampler, p core.SurfacePoint, omega core.Vec3, target core.BoundingSphere) BoundedSample
}

// Intersector is the ray-cast facet the gathering-density estimator needs
type Intersector interface {
	IntersectMesh(from core.SurfacePoint, direction core.Vec3) core.SurfacePoint
}

// gatherTrialCap bounds the geometric trial loop; a capped run yields a
// zero density, which the merge treats as a degenerate (black) sample.
const gatherTrialCap = 1 << 14

// GatheringDensity estimates the reciprocal probability of producing, by
// BSDF sampling followed by a ray cast, a hit point inside the target
// sphere. The trial count until the first hit is an unbiased estimator of
// 1/(p_A * pi * r^2), the quantity the unbiased merge multiplies by.
// Bounded samplers restrict trials to the sphere's angular bound and divide
// the trial count by the bound's measure fraction (Adjust).
func GatheringDensity(s *core.Sampler, sect Intersector, b BSDF, p core.SurfacePoint, target core.BoundingSphere, omega core.Vec3) float64 {
	r2 := target.Radius * target.Radius

	if bounded, ok := b.(BoundedSampler); ok {
		for trials := 1; trials <= gatherTrialCap; trials++ {
			bs := bounded.SampleBounded(s, p, omega, target)
			if bs.Adjust <= 0 {
				return 0
			}
			hit := sect.IntersectMesh(p, bs.Omega)
			if hit.IsPresent() && hit.Position.Subtract(target.Center).LengthSquared() <= r2 {
				return float64(trials) / bs.Adjust
			}
		}
		return 0
	}

	for trials := 1; trials <= gatherTrialCap; trials++ {
		sample := b.Sample(s, p, omega)
		if sample.Zero() {
			continue
		}
		hit := sect.IntersectMesh(p, sample.Omega)
		if hit.IsPresent() && hit.Position.Subtract(target.Center).LengthSquared() <= r2 {
			return float64(trials)
		}
	}
	return 0
}

// finiteOrZero replaces non-finite densities with zero
func finiteOrZero(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return x
}
