// Package integrator implements the bidirectional Monte-Carlo
// light-transport estimator family: path tracing with next-event
// estimation, bidirectional path tracing with multiple-importance-sampled
// vertex connection, and vertex merging over a range-search index, all
// sharing the recursive MIS partial sums that make balance-heuristic
// weights O(1) per connection.
package integrator

import (
	"github.com/goofoo/lumen/pkg/bsdf"
	"github.com/goofoo/lumen/pkg/core"
	"github.com/goofoo/lumen/pkg/scene"
)

// maxSubpath bounds the light subpath length
const maxSubpath = 1024

// Camera is the facet of the frame driver's camera the estimators need
// for light-to-camera splats
type Camera interface {
	// Surface returns the aperture surface point; its frame's Y column is
	// the camera forward direction
	Surface() core.SurfacePoint
	// Project maps a world direction from the aperture to pixel
	// coordinates; ok is false outside the frustum
	Project(direction core.Vec3) (core.Vec2, bool)
	// BSDF returns the pinhole importance pseudo-BSDF
	BSDF() bsdf.BSDF
	// FocalFactor converts aperture importance to the per-path pixel
	// estimate (focal length squared over the pixel-sample count)
	FocalFactor() float64
}

// Context is the per-worker trace state: the sampler stream, the camera,
// the splat sink for light-to-camera contributions, and reusable scratch.
type Context struct {
	Sampler *core.Sampler
	Camera  Camera
	Splat   func(pixel core.Vec2, color core.Vec3)

	lightPath     []lightVertex
	gatherScratch []lightVertex
}

// NewContext creates a render context for one worker
func NewContext(sampler *core.Sampler, camera Camera, splat func(core.Vec2, core.Vec3)) *Context {
	return &Context{
		Sampler:   sampler,
		Camera:    camera,
		Splat:     splat,
		lightPath: make([]lightVertex, 0, maxSubpath),
	}
}

// Technique is one light-transport estimator. Preprocess runs once per
// frame before any eye path (the merging estimators scatter photons
// there); TraceEye estimates the radiance arriving along one camera ray,
// splatting any light-to-camera contributions through the context.
type Technique interface {
	Name() string
	Preprocess(s *scene.Scene, seed uint64, workers int, log core.Logger)
	TraceEye(ctx *Context, ray core.Ray) core.Vec3
}

// lightVertex is a vertex of a light subpath. omega points toward the
// previous vertex. a is the reciprocal beta'd forward geometric density at
// this vertex; A sums the beta'd contributions of all shorter light-side
// connection strategies, and B the analogous merging-strategy sum.
type lightVertex struct {
	surface    core.SurfacePoint
	omega      core.Vec3
	throughput core.Vec3
	specular   float64
	a, A, B    float64
}

// Position satisfies spatial.Point3 so photons index directly
func (v lightVertex) Position() core.Vec3 {
	return v.surface.Position
}

// eyeVertex mirrors lightVertex for the eye subpath: c/C are the
// connection partial sums toward the camera, d/D the merging sums.
type eyeVertex struct {
	surface    core.SurfacePoint
	omega      core.Vec3
	throughput core.Vec3
	specular   float64
	c, C, d, D float64
}

// finiteOrBlack swallows degenerate samples: a non-finite radiance
// contribution is replaced with zero and never propagates
func finiteOrBlack(v core.Vec3) core.Vec3 {
	if !v.IsFinite() {
		return core.Vec3{}
	}
	return v
}
