package bsdf

import (
	"math"

	"github.com/goofoo/lumen/pkg/core"
)

// Light is the pseudo-BSDF of an area emitter. Scattering off a light
// terminates the path (zero throughput); the densities are consistent with
// the emitter's cosine-weighted direction sampler, which is what the MIS
// recurrences need when a light vertex is connected through.
type Light struct{}

// NewLight creates the emitter pseudo-BSDF
func NewLight() *Light {
	return &Light{}
}

// Query reports unit throughput on the emitting side together with the
// emission direction densities
func (l *Light) Query(p core.SurfacePoint, incident, outgoing core.Vec3) Query {
	wo := p.ToLocal(outgoing)

	var q Query
	if wo.Y > 0 {
		q.Throughput = core.NewVec3(1, 1, 1)
	}
	q.Density = core.CosineHemisphereDensity(wo)
	q.DensityRev = core.CosineHemisphereDensity(wo)
	return q
}

// Sample terminates the path
func (l *Light) Sample(s *core.Sampler, p core.SurfacePoint, omega core.Vec3) Sample {
	return Sample{Omega: omega.Negate(), Density: 1, DensityRev: 1}
}

// Camera is the pseudo-BSDF of a pinhole aperture: the importance emitted
// toward a direction making angle theta with the camera forward axis is
// 1/cos^3(theta); the focal factor is applied by the splat driver.
type Camera struct {
	focalSquared float64
}

// NewCamera creates the camera pseudo-BSDF for a focal length in pixels
func NewCamera(focal float64) *Camera {
	return &Camera{focalSquared: focal * focal}
}

// Query evaluates the pinhole importance. The surface frame's Y column is
// the camera forward direction. DensityRev is the solid-angle density of
// the camera generating the outgoing direction through its pixel grid.
func (c *Camera) Query(p core.SurfacePoint, incident, outgoing core.Vec3) Query {
	cosTheta := p.Normal().Dot(outgoing)
	if cosTheta <= 0 {
		return Query{}
	}

	invCos3 := 1.0 / (cosTheta * cosTheta * cosTheta)
	return Query{
		Throughput: core.NewVec3(invCos3, invCos3, invCos3),
		Density:    0,
		DensityRev: finiteOrZero(c.focalSquared * invCos3),
	}
}

// Sample terminates the path; eye rays are generated by the frame driver
func (c *Camera) Sample(s *core.Sampler, p core.SurfacePoint, omega core.Vec3) Sample {
	return Sample{Omega: omega.Negate(), Density: 1, DensityRev: 1}
}

// SampleBounded samples a direction toward the target sphere uniformly in
// its cone. Adjust is the cone's solid angle relative to the hemisphere.
func (c *Camera) SampleBounded(s *core.Sampler, p core.SurfacePoint, omega core.Vec3, target core.BoundingSphere) BoundedSample {
	toCenter := target.Center.Subtract(p.Position)
	dist := toCenter.Length()
	if dist <= target.Radius {
		return BoundedSample{}
	}

	cosMax := math.Sqrt(math.Max(0, 1.0-(target.Radius/dist)*(target.Radius/dist)))
	frame := core.FrameFromNormal(toCenter.Normalize())

	u := s.Get2D()
	cosTheta := 1.0 - u.X*(1.0-cosMax)
	sinTheta := math.Sqrt(math.Max(0, 1.0-cosTheta*cosTheta))
	phi := 2.0 * math.Pi * u.Y

	local := core.NewVec3(sinTheta*math.Cos(phi), cosTheta, sinTheta*math.Sin(phi))
	return BoundedSample{
		Omega:  frame.ToWorld(local),
		Adjust: 1.0 - cosMax,
	}
}
