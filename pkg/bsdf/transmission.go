package bsdf

import (
	"math"

	"github.com/goofoo/lumen/pkg/core"
)

// Transmission is a Fresnel dielectric: a delta lobe that refracts through
// the surface by Snell's law or reflects with the Fresnel probability.
type Transmission struct {
	InternalIOR float64
	ExternalIOR float64
}

// NewTransmission creates a dielectric transmission BSDF
func NewTransmission(internalIOR, externalIOR float64) *Transmission {
	return &Transmission{InternalIOR: internalIOR, ExternalIOR: externalIOR}
}

// Query of a delta lobe is zero with unit specular
func (t *Transmission) Query(p core.SurfacePoint, incident, outgoing core.Vec3) Query {
	return Query{Specular: 1}
}

// reflectance is Schlick's approximation of the Fresnel term
func reflectance(cosTheta, eta float64) float64 {
	r0 := (1 - eta) / (1 + eta)
	r0 = r0 * r0
	return r0 + (1-r0)*math.Pow(1-cosTheta, 5)
}

// Sample refracts the incident direction, or reflects on total internal
// reflection and with the Fresnel probability. Frames are flipped toward
// the incident ray, so p.Flipped distinguishes exiting from entering.
func (t *Transmission) Sample(s *core.Sampler, p core.SurfacePoint, omega core.Vec3) Sample {
	wi := p.ToLocal(omega)
	if wi.Y <= 0 {
		return Sample{Omega: omega.Negate(), Density: 1, DensityRev: 1, Specular: 1}
	}

	eta := t.ExternalIOR / t.InternalIOR
	if p.Flipped {
		eta = t.InternalIOR / t.ExternalIOR
	}

	cosThetaI := wi.Y
	sin2ThetaT := eta * eta * (1 - cosThetaI*cosThetaI)

	if sin2ThetaT >= 1 || s.Get1D() < reflectance(cosThetaI, eta) {
		wo := mirror(wi)
		return Sample{
			Omega:      p.ToWorld(wo),
			Throughput: core.NewVec3(1, 1, 1).Multiply(1.0 / wo.Y),
			Density:    1,
			DensityRev: 1,
			Specular:   1,
		}
	}

	cosThetaT := math.Sqrt(1 - sin2ThetaT)
	wo := core.NewVec3(-wi.X*eta, -cosThetaT, -wi.Z*eta)

	return Sample{
		Omega:      p.ToWorld(wo),
		Throughput: core.NewVec3(1, 1, 1).Multiply(1.0 / cosThetaT),
		Density:    1,
		DensityRev: 1,
		Specular:   1,
	}
}
