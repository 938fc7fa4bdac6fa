package bsdf

import (
	"math"

	"github.com/goofoo/lumen/pkg/core"
)

// Diffuse is a Lambertian reflector with throughput albedo/pi on the upper
// hemisphere and cosine-weighted sampling
type Diffuse struct {
	Albedo core.Vec3
}

// NewDiffuse creates a Lambertian BSDF
func NewDiffuse(albedo core.Vec3) *Diffuse {
	return &Diffuse{Albedo: albedo}
}

// Query evaluates the BSDF for a fixed direction pair
func (d *Diffuse) Query(p core.SurfacePoint, incident, outgoing core.Vec3) Query {
	wi := p.ToLocal(incident)
	wo := p.ToLocal(outgoing)

	var q Query
	if wi.Y > 0 && wo.Y > 0 {
		q.Throughput = d.Albedo.Multiply(1.0 / math.Pi)
	}
	q.Density = core.CosineHemisphereDensity(wo)
	q.DensityRev = core.CosineHemisphereDensity(wi)
	return q
}

// Sample draws a cosine-weighted outgoing direction
func (d *Diffuse) Sample(s *core.Sampler, p core.SurfacePoint, omega core.Vec3) Sample {
	wi := p.ToLocal(omega)
	if wi.Y <= 0 {
		return Sample{Omega: omega.Negate(), Density: 1, DensityRev: 1}
	}

	wo := core.SampleCosineHemisphere(s.Get2D())

	return Sample{
		Omega:      p.ToWorld(wo),
		Throughput: d.Albedo.Multiply(1.0 / math.Pi),
		Density:    core.CosineHemisphereDensity(wo),
		DensityRev: core.CosineHemisphereDensity(wi),
	}
}

// SampleBounded draws a cosine-weighted direction restricted to the
// angular bound of the target sphere. Adjust is the bound's measure
// fraction under the cosine distribution.
func (d *Diffuse) SampleBounded(s *core.Sampler, p core.SurfacePoint, omega core.Vec3, target core.BoundingSphere) BoundedSample {
	wi := p.ToLocal(omega)
	if wi.Y <= 0 {
		return BoundedSample{}
	}

	bound := core.SphereAngularBound(p.ToLocal(target.Center.Subtract(p.Position)), target.Radius)
	wo, subarea := core.SampleBoundedCosineHemisphere(s.Get2D(), bound)

	return BoundedSample{Omega: p.ToWorld(wo), Adjust: subarea}
}
