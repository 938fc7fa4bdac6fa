package bsdf

import "github.com/goofoo/lumen/pkg/core"

// Reflection is a perfect mirror: a delta lobe reflecting about the
// shading normal
type Reflection struct {
	Reflectance core.Vec3
}

// NewReflection creates a perfect specular reflector
func NewReflection(reflectance core.Vec3) *Reflection {
	return &Reflection{Reflectance: reflectance}
}

// Query of a delta lobe is zero with unit specular
func (r *Reflection) Query(p core.SurfacePoint, incident, outgoing core.Vec3) Query {
	return Query{Specular: 1}
}

// Sample mirrors the incident direction. Throughput carries 1/cos so the
// edge cosine applied by the estimators cancels exactly.
func (r *Reflection) Sample(s *core.Sampler, p core.SurfacePoint, omega core.Vec3) Sample {
	wi := p.ToLocal(omega)
	if wi.Y <= 0 {
		return Sample{Omega: omega.Negate(), Density: 1, DensityRev: 1, Specular: 1}
	}

	wo := mirror(wi)
	return Sample{
		Omega:      p.ToWorld(wo),
		Throughput: r.Reflectance.Multiply(1.0 / wo.Y),
		Density:    1,
		DensityRev: 1,
		Specular:   1,
	}
}
