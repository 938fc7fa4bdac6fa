package bsdf

import (
	"math"

	"github.com/goofoo/lumen/pkg/core"
)

// Phong is a modified Phong material: a linear mix of a Lambertian lobe and
// a power-cosine glossy lobe. The sampled lobe is chosen by the ratio of
// the diffuse and specular reflectance averages.
type Phong struct {
	Diffuse  core.Vec3
	Specular core.Vec3
	Power    float64

	diffuseProbability float64
}

// NewPhong creates a modified Phong BSDF
func NewPhong(diffuse, specular core.Vec3, power float64) *Phong {
	diffuseAvg := diffuse.Average()
	specularAvg := specular.Average()

	probability := 0.5
	if diffuseAvg+specularAvg > 0 {
		probability = diffuseAvg / (diffuseAvg + specularAvg)
	}

	return &Phong{
		Diffuse:            diffuse,
		Specular:           specular,
		Power:              power,
		diffuseProbability: probability,
	}
}

// mirror reflects a local direction about the y axis
func mirror(omega core.Vec3) core.Vec3 {
	return core.NewVec3(-omega.X, omega.Y, -omega.Z)
}

// query evaluates both lobes in local space. The glossy lobe density is
// (power+1)/(2 pi) * cos^power around the mirror direction; the mixture
// density uses the lobe selection probability.
func (ph *Phong) query(wi, wo core.Vec3) Query {
	var q Query
	if wi.Y <= 0 || wo.Y <= 0 {
		return q
	}

	cosAlpha := math.Max(0, wo.Dot(mirror(wi)))
	glossy := math.Pow(cosAlpha, ph.Power)

	q.Throughput = ph.Diffuse.Multiply(1.0 / math.Pi).
		Add(ph.Specular.Multiply((ph.Power + 2.0) / (2.0 * math.Pi) * glossy))

	lobeDensity := (ph.Power + 1.0) / (2.0 * math.Pi) * glossy
	q.Density = ph.diffuseProbability*(wo.Y/math.Pi) + (1.0-ph.diffuseProbability)*lobeDensity
	q.DensityRev = ph.diffuseProbability*(wi.Y/math.Pi) + (1.0-ph.diffuseProbability)*lobeDensity
	return q
}

// Query evaluates the BSDF for a fixed direction pair
func (ph *Phong) Query(p core.SurfacePoint, incident, outgoing core.Vec3) Query {
	return ph.query(p.ToLocal(incident), p.ToLocal(outgoing))
}

// Sample draws an outgoing direction from the lobe mixture
func (ph *Phong) Sample(s *core.Sampler, p core.SurfacePoint, omega core.Vec3) Sample {
	wi := p.ToLocal(omega)
	if wi.Y <= 0 {
		return Sample{Omega: omega.Negate(), Density: 1, DensityRev: 1}
	}

	var wo core.Vec3
	if s.Get1D() < ph.diffuseProbability {
		wo = core.SampleCosineHemisphere(s.Get2D())
	} else {
		frame := core.FrameFromNormal(mirror(wi))
		wo = frame.ToWorld(core.SamplePowerCosineHemisphere(s.Get2D(), ph.Power))
		if wo.Y <= 0 {
			return Sample{Omega: p.ToWorld(wo), Density: 1, DensityRev: 1}
		}
	}

	q := ph.query(wi, wo)
	return Sample{
		Omega:      p.ToWorld(wo),
		Throughput: q.Throughput,
		Density:    q.Density,
		DensityRev: q.DensityRev,
	}
}
