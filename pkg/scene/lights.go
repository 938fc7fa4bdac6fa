package scene

import (
	"math"

	"github.com/goofoo/lumen/pkg/core"
)

// LightSample is a sampled point on an area emitter. Omega points away
// from the light: the emitted direction for emission samples, the
// direction toward the receiver for next-event samples.
type LightSample struct {
	Surface      core.SurfacePoint
	Omega        core.Vec3
	Radiance     core.Vec3
	AreaDensity  float64
	OmegaDensity float64
}

// Density is the combined emission density (area times solid angle)
func (ls LightSample) Density() float64 {
	return ls.AreaDensity * ls.OmegaDensity
}

// Position returns the sampled emitter position
func (ls LightSample) Position() core.Vec3 {
	return ls.Surface.Position
}

// Normal returns the emitter normal at the sampled position
func (ls LightSample) Normal() core.Vec3 {
	return ls.Surface.Normal()
}

// LSDFQuery is the reverse emission query: radiance leaving a light point
// in a direction, plus the densities the emission sampler would have had.
type LSDFQuery struct {
	Radiance     core.Vec3
	AreaDensity  float64
	OmegaDensity float64
}

// lightTriangle is one triangle of the emitter aggregate
type lightTriangle struct {
	v0, v1, v2 core.Vec3
	frame      core.Frame // Y = emitter normal
	area       float64
	lightID    int32
}

// AreaLights aggregates every emitter triangle in the scene. It is
// geometry id 0 in the intersector; triangles are sampled proportionally
// to area with cosine-weighted emission directions.
type AreaLights struct {
	radiances  []core.Vec3
	tris       []lightTriangle
	cumulative []float64
	totalArea  float64
}

// NewAreaLights creates an empty emitter aggregate
func NewAreaLights() *AreaLights {
	return &AreaLights{}
}

// AddQuad adds a quad emitter (two triangles). Winding p0-p1-p2 defines
// the emitting side. Returns the light index.
func (al *AreaLights) AddQuad(radiance core.Vec3, p0, p1, p2, p3 core.Vec3) int32 {
	lightID := int32(len(al.radiances))
	al.radiances = append(al.radiances, radiance)
	al.addTriangle(lightID, p0, p1, p2)
	al.addTriangle(lightID, p0, p2, p3)
	return lightID
}

// AddTriangle adds a single emitter triangle
func (al *AreaLights) AddTriangle(radiance core.Vec3, p0, p1, p2 core.Vec3) int32 {
	lightID := int32(len(al.radiances))
	al.radiances = append(al.radiances, radiance)
	al.addTriangle(lightID, p0, p1, p2)
	return lightID
}

func (al *AreaLights) addTriangle(lightID int32, p0, p1, p2 core.Vec3) {
	cross := p1.Subtract(p0).Cross(p2.Subtract(p0))
	area := 0.5 * cross.Length()
	if area <= 0 {
		return
	}

	al.tris = append(al.tris, lightTriangle{
		v0:      p0,
		v1:      p1,
		v2:      p2,
		frame:   core.FrameFromNormal(cross.Normalize()),
		area:    area,
		lightID: lightID,
	})
	al.totalArea += area
	al.cumulative = append(al.cumulative, al.totalArea)
}

// NumLights returns the emitter count
func (al *AreaLights) NumLights() int {
	return len(al.radiances)
}

// TotalArea returns the summed emitter area
func (al *AreaLights) TotalArea() float64 {
	return al.totalArea
}

// Triangles flattens the aggregate for the intersector (geometry id 0)
func (al *AreaLights) Triangles() []core.Vec3 {
	out := make([]core.Vec3, 0, len(al.tris)*3)
	for _, t := range al.tris {
		out = append(out, t.v0, t.v1, t.v2)
	}
	return out
}

// SurfaceAt builds the surface point for a hit on emitter triangle primID
func (al *AreaLights) SurfaceAt(primID int32, position core.Vec3) core.SurfacePoint {
	t := al.tris[primID]
	return core.SurfacePoint{
		Position:   position,
		Frame:      t.frame,
		GNormal:    t.frame.Y,
		MaterialID: -1 - t.lightID,
	}
}

// samplePoint picks an emitter triangle proportionally to area and a
// uniform point on it
func (al *AreaLights) samplePoint(s *core.Sampler) (lightTriangle, core.Vec3) {
	target := s.Get1D() * al.totalArea
	index := len(al.tris) - 1
	for i, c := range al.cumulative {
		if target < c {
			index = i
			break
		}
	}

	t := al.tris[index]
	bary := core.SampleUniformTriangle(s.Get2D())
	p := t.v0.Multiply(1 - bary.X - bary.Y).
		Add(t.v1.Multiply(bary.X)).
		Add(t.v2.Multiply(bary.Y))
	return t, p
}

// Sample draws an emission sample: an origin distributed by area and a
// cosine-weighted direction
func (al *AreaLights) Sample(s *core.Sampler) LightSample {
	t, p := al.samplePoint(s)
	local := core.SampleCosineHemisphere(s.Get2D())

	return LightSample{
		Surface: core.SurfacePoint{
			Position:   p,
			Frame:      t.frame,
			GNormal:    t.frame.Y,
			MaterialID: -1 - t.lightID,
		},
		Omega:        t.frame.ToWorld(local),
		Radiance:     al.radiances[t.lightID],
		AreaDensity:  1.0 / al.totalArea,
		OmegaDensity: core.CosineHemisphereDensity(local),
	}
}

// SampleOn draws a next-event sample for the receiver position. The
// emitter point is chosen by area exactly as in Sample; its distribution
// does not depend on the receiver, which only sets the direction.
// Omega points from the light toward the receiver; OmegaDensity is the
// density the emission sampler would assign that direction.
func (al *AreaLights) SampleOn(s *core.Sampler, receiver core.Vec3) LightSample {
	t, p := al.samplePoint(s)
	omega := receiver.Subtract(p).Normalize()
	cosTheta := omega.Dot(t.frame.Y)

	radiance := al.radiances[t.lightID]
	if cosTheta <= 0 {
		radiance = core.Vec3{}
		cosTheta = 0
	}

	return LightSample{
		Surface: core.SurfacePoint{
			Position:   p,
			Frame:      t.frame,
			GNormal:    t.frame.Y,
			MaterialID: -1 - t.lightID,
		},
		Omega:        omega,
		Radiance:     radiance,
		AreaDensity:  1.0 / al.totalArea,
		OmegaDensity: cosTheta / math.Pi,
	}
}

// QueryRadiance returns the radiance leaving an emitter point toward omega
func (al *AreaLights) QueryRadiance(surface core.SurfacePoint, omega core.Vec3) core.Vec3 {
	lightID := -1 - surface.MaterialID
	if lightID < 0 || int(lightID) >= len(al.radiances) {
		return core.Vec3{}
	}
	if omega.Dot(surface.Normal()) <= 0 {
		return core.Vec3{}
	}
	return al.radiances[lightID]
}

// QueryLSDF is the reverse query used by MIS when a light is hit by chance
func (al *AreaLights) QueryLSDF(surface core.SurfacePoint, omega core.Vec3) LSDFQuery {
	lightID := -1 - surface.MaterialID
	if lightID < 0 || int(lightID) >= len(al.radiances) {
		return LSDFQuery{}
	}

	cosTheta := math.Max(0, omega.Dot(surface.Normal()))
	query := LSDFQuery{
		AreaDensity:  1.0 / al.totalArea,
		OmegaDensity: cosTheta / math.Pi,
	}
	if cosTheta > 0 {
		query.Radiance = al.radiances[lightID]
	}
	return query
}
