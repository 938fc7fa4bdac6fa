package scene

import (
	"math"
	"sync/atomic"

	"github.com/goofoo/lumen/pkg/bsdf"
	"github.com/goofoo/lumen/pkg/core"
	"github.com/goofoo/lumen/pkg/geometry"
)

// intersection offsets: rays start slightly off their origin surface and
// occlusion endpoints are shifted along the geometric normals
const (
	rayEpsilon       = 5e-4
	occlusionEpsilon = 1e-3
)

// CameraConfig describes the pinhole camera a scene was authored for
type CameraConfig struct {
	Position core.Vec3
	LookAt   core.Vec3
	Up       core.Vec3
	FovX     float64 // degrees
	Near     float64
	Far      float64
}

// Scene is the intersection facade the estimators trace against: meshes,
// the emitter aggregate and the material table behind one BVH.
type Scene struct {
	Meshes    []geometry.Mesh
	Lights    *AreaLights
	Materials []bsdf.BSDF
	Names     []string

	bvh       *geometry.BVH
	lightBSDF *bsdf.Light
	fallback  *bsdf.Diffuse

	numIntersectRays    atomic.Uint64
	numOccludedRays     atomic.Uint64
	invariantViolations atomic.Uint64
}

// NewScene builds the facade and its acceleration structure. The emitter
// aggregate becomes geometry id 0; meshes get ids 1..n in order.
func NewScene(meshes []geometry.Mesh, lights *AreaLights, materials []bsdf.BSDF, names []string) *Scene {
	geometries := make([][]core.Vec3, 0, len(meshes)+1)
	geometries = append(geometries, lights.Triangles())
	for i := range meshes {
		tris := make([]core.Vec3, 0, len(meshes[i].Indices))
		for _, index := range meshes[i].Indices {
			tris = append(tris, meshes[i].Positions[index])
		}
		geometries = append(geometries, tris)
	}

	return &Scene{
		Meshes:    meshes,
		Lights:    lights,
		Materials: materials,
		Names:     names,
		bvh:       geometry.NewBVH(geometries),
		lightBSDF: bsdf.NewLight(),
		fallback:  bsdf.NewDiffuse(core.Vec3{}),
	}
}

// Intersect casts a ray from a surface point and returns the closest hit,
// emitters included
func (s *Scene) Intersect(from core.SurfacePoint, direction core.Vec3) core.SurfacePoint {
	return s.intersect(core.NewRay(from.Position, direction), false)
}

// IntersectMesh casts a ray that skips emitters; light subpaths use it so
// emitted rays do not immediately re-hit the source
func (s *Scene) IntersectMesh(from core.SurfacePoint, direction core.Vec3) core.SurfacePoint {
	return s.intersect(core.NewRay(from.Position, direction), true)
}

// IntersectRay casts a ray whose origin is not on a surface (eye rays)
func (s *Scene) IntersectRay(ray core.Ray) core.SurfacePoint {
	return s.intersect(ray, false)
}

func (s *Scene) intersect(ray core.Ray, meshOnly bool) core.SurfacePoint {
	s.numIntersectRays.Add(1)

	hit, ok := s.bvh.Intersect(ray, rayEpsilon, math.Inf(1), meshOnly)
	if !ok {
		return core.SurfacePoint{MaterialID: core.AbsentMaterialID}
	}
	return s.querySurface(ray, hit)
}

// querySurface reconstructs the surface point at a hit: interpolated,
// re-orthonormalized tangent frame with both normals flipped so that
// dot(omegaIn, gnormal) >= 0
func (s *Scene) querySurface(ray core.Ray, hit geometry.Hit) core.SurfacePoint {
	position := ray.At(hit.T)

	if hit.IsLight() {
		return s.Lights.SurfaceAt(hit.PrimID, position)
	}

	meshIndex := int(hit.GeomID) - 1
	if meshIndex < 0 || meshIndex >= len(s.Meshes) {
		s.invariantViolations.Add(1)
		return core.SurfacePoint{MaterialID: core.AbsentMaterialID}
	}
	mesh := &s.Meshes[meshIndex]

	frame := mesh.InterpolateFrame(int(hit.PrimID), hit.U, hit.V).Orthonormalize()
	gnormal := mesh.GeometricNormal(int(hit.PrimID))

	omegaIn := ray.Direction.Negate()
	point := core.SurfacePoint{
		Position:   position,
		Frame:      frame,
		GNormal:    gnormal,
		MaterialID: mesh.MaterialID,
	}
	if omegaIn.Dot(frame.Y) < 0 {
		point.Frame.Y = frame.Y.Negate()
	}
	if omegaIn.Dot(gnormal) < 0 {
		point.GNormal = gnormal.Negate()
		point.Flipped = true
	}
	return point
}

// Occluded returns 1.0 iff the open segment between a and b is unblocked.
// Endpoints are shifted along their geometric normals to avoid
// self-intersection.
func (s *Scene) Occluded(a, b core.SurfacePoint) float64 {
	s.numOccludedRays.Add(1)

	origin := a.Position.Add(a.GNormal.Multiply(occlusionEpsilon))
	target := b.Position.Add(b.GNormal.Multiply(occlusionEpsilon))

	ray := core.NewRay(origin, target.Subtract(origin))
	if s.bvh.Occluded(ray, 0, 1) {
		return 0.0
	}
	return 1.0
}

// QueryBSDF returns the BSDF at a surface point; emitters get the light
// pseudo-BSDF. An out-of-range material id is an invariant violation: it
// is counted and a black diffuse stands in so the frame continues.
func (s *Scene) QueryBSDF(p core.SurfacePoint) bsdf.BSDF {
	if p.MaterialID < 0 {
		return s.lightBSDF
	}
	if int(p.MaterialID) >= len(s.Materials) {
		s.invariantViolations.Add(1)
		return s.fallback
	}
	return s.Materials[p.MaterialID]
}

// QueryBSDFPair evaluates the surface BSDF for a direction pair
func (s *Scene) QueryBSDFPair(p core.SurfacePoint, incident, outgoing core.Vec3) bsdf.Query {
	return s.QueryBSDF(p).Query(p, incident, outgoing)
}

// SampleBSDF draws an outgoing direction from the surface BSDF
func (s *Scene) SampleBSDF(sampler *core.Sampler, p core.SurfacePoint, omega core.Vec3) bsdf.Sample {
	return s.QueryBSDF(p).Sample(sampler, p, omega)
}

// SampleLight draws an emission sample from the emitter aggregate
func (s *Scene) SampleLight(sampler *core.Sampler) LightSample {
	return s.Lights.Sample(sampler)
}

// SampleLightOn draws a next-event sample toward the receiver position
func (s *Scene) SampleLightOn(sampler *core.Sampler, receiver core.Vec3) LightSample {
	return s.Lights.SampleOn(sampler, receiver)
}

// QueryRadiance returns the emitted radiance of a light hit toward omega
func (s *Scene) QueryRadiance(p core.SurfacePoint, omega core.Vec3) core.Vec3 {
	return s.Lights.QueryRadiance(p, omega)
}

// QueryLSDF is the reverse emission query used by the MIS weights
func (s *Scene) QueryLSDF(p core.SurfacePoint, omega core.Vec3) LSDFQuery {
	return s.Lights.QueryLSDF(p, omega)
}

// NumIntersectRays returns the cumulative intersection ray count
func (s *Scene) NumIntersectRays() uint64 {
	return s.numIntersectRays.Load()
}

// NumOccludedRays returns the cumulative occlusion ray count
func (s *Scene) NumOccludedRays() uint64 {
	return s.numOccludedRays.Load()
}

// NumRays returns the total ray count
func (s *Scene) NumRays() uint64 {
	return s.numIntersectRays.Load() + s.numOccludedRays.Load()
}

// InvariantViolations returns the count of swallowed invariant violations
func (s *Scene) InvariantViolations() uint64 {
	return s.invariantViolations.Load()
}
