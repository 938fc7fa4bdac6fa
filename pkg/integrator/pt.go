package integrator

import (
	"math"

	"github.com/goofoo/lumen/pkg/core"
	"github.com/goofoo/lumen/pkg/scene"
)

// PathTracing is the single-direction estimator: an eye walk with
// next-event estimation at every vertex. Emission is accounted only on
// the first hit or after a delta bounce, so it is claimed exactly once
// per path.
type PathTracing struct {
	scene      *scene.Scene
	minSubpath int
	roulette   float64
}

// NewPathTracing creates a path-tracing estimator
func NewPathTracing(s *scene.Scene, minSubpath int, roulette float64) *PathTracing {
	return &PathTracing{scene: s, minSubpath: minSubpath, roulette: roulette}
}

// Name returns the technique name
func (pt *PathTracing) Name() string {
	return "Path Tracing"
}

// Preprocess is a no-op for path tracing
func (pt *PathTracing) Preprocess(s *scene.Scene, seed uint64, workers int, log core.Logger) {}

// TraceEye estimates the radiance arriving along one camera ray
func (pt *PathTracing) TraceEye(ctx *Context, ray core.Ray) core.Vec3 {
	throughput := core.NewVec3(1, 1, 1)
	radiance := core.Vec3{}
	specular := 0.0
	bounce := 0

	isect := pt.scene.IntersectRay(ray)

	for {
		for isect.IsLight() {
			if bounce == 0 || specular == 1.0 {
				emitted := pt.scene.QueryRadiance(isect, ray.Direction.Negate())
				radiance = radiance.Add(finiteOrBlack(throughput.MultiplyVec(emitted)))
			}
			isect = pt.scene.Intersect(isect, ray.Direction)
		}

		if !isect.IsPresent() {
			break
		}

		direct := pt.connectLight(ctx, isect, ray.Direction.Negate())
		radiance = radiance.Add(finiteOrBlack(throughput.MultiplyVec(direct)))

		sample := pt.scene.SampleBSDF(ctx.Sampler, isect, ray.Direction.Negate())
		if sample.Zero() {
			break
		}

		specular = math.Max(specular, sample.Specular) * sample.Specular

		cosTheta := math.Abs(isect.Normal().Dot(sample.Omega))
		throughput = throughput.MultiplyVec(sample.Throughput).Multiply(cosTheta / sample.Density)
		if !throughput.IsFinite() || throughput.IsZero() {
			break
		}

		prob := 1.0
		if bounce > pt.minSubpath {
			prob = pt.roulette
		}
		if prob < ctx.Sampler.Get1D() {
			break
		}
		throughput = throughput.Divide(prob)

		ray = core.NewRay(isect.Position, sample.Omega)
		isect = pt.scene.Intersect(isect, sample.Omega)
		bounce++
	}

	return radiance
}

// connectLight adds the next-event direct-lighting contribution at an eye
// vertex: sample a light toward the vertex, evaluate the BSDF and test
// visibility
func (pt *PathTracing) connectLight(ctx *Context, point core.SurfacePoint, omega core.Vec3) core.Vec3 {
	light := pt.scene.SampleLightOn(ctx.Sampler, point.Position)
	if light.Radiance.IsZero() {
		return core.Vec3{}
	}

	query := pt.scene.QueryBSDFPair(point, light.Omega.Negate(), omega)
	if query.Throughput.IsZero() {
		return core.Vec3{}
	}

	edge := NewEdge(light.Position(), light.Normal(), point.Position, point.Normal(), light.Omega)

	return light.Radiance.
		MultiplyVec(query.Throughput).
		Multiply(edge.BCosTheta * edge.FGeometry / light.AreaDensity).
		Multiply(pt.scene.Occluded(point, light.Surface))
}
