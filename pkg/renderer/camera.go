package renderer

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/goofoo/lumen/pkg/bsdf"
	"github.com/goofoo/lumen/pkg/core"
	"github.com/goofoo/lumen/pkg/scene"
)

// Camera is a pinhole camera with field of view specified along the x
// axis. Only the rotation blocks of the view matrix and the focal length
// derived from fovx, aspect and resolution are used by the tracer.
type Camera struct {
	position    core.Vec3
	worldToView mgl64.Mat3
	viewToWorld mgl64.Mat3
	width       int
	height      int
	focal       float64 // pixels
	near, far   float64
	pseudoBSDF  *bsdf.Camera
	surface     core.SurfacePoint
}

// NewCamera builds a camera from a scene camera config and a resolution
func NewCamera(config scene.CameraConfig, width, height int) *Camera {
	eye := mgl64.Vec3{config.Position.X, config.Position.Y, config.Position.Z}
	center := mgl64.Vec3{config.LookAt.X, config.LookAt.Y, config.LookAt.Z}
	up := mgl64.Vec3{config.Up.X, config.Up.Y, config.Up.Z}

	view := mgl64.LookAtV(eye, center, up)
	worldToView := view.Mat3()
	viewToWorld := worldToView.Transpose()

	fovX := config.FovX * math.Pi / 180.0
	focal := float64(width) / 2.0 / math.Tan(fovX/2.0)

	c := &Camera{
		position:    config.Position,
		worldToView: worldToView,
		viewToWorld: viewToWorld,
		width:       width,
		height:      height,
		focal:       focal,
		near:        config.Near,
		far:         config.Far,
		pseudoBSDF:  bsdf.NewCamera(focal),
	}

	forward := c.viewDirection(core.NewVec3(0, 0, -1))
	right := c.viewDirection(core.NewVec3(1, 0, 0))
	upWorld := c.viewDirection(core.NewVec3(0, 1, 0))

	c.surface = core.SurfacePoint{
		Position:   config.Position,
		Frame:      core.NewFrame(right, forward, upWorld),
		GNormal:    forward,
		MaterialID: core.AbsentMaterialID + 1, // aperture sentinel, never looked up
	}
	return c
}

// viewDirection rotates a view-space direction into world space
func (c *Camera) viewDirection(v core.Vec3) core.Vec3 {
	w := c.viewToWorld.Mul3x1(mgl64.Vec3{v.X, v.Y, v.Z})
	return core.NewVec3(w.X(), w.Y(), w.Z())
}

// Ray shoots the eye ray through a (jittered) pixel position
func (c *Camera) Ray(px, py float64) core.Ray {
	direction := core.NewVec3(
		px-float64(c.width)/2.0,
		float64(c.height)/2.0-py,
		-c.focal,
	)
	return core.NewRay(c.position, c.viewDirection(direction).Normalize())
}

// Project maps a world direction from the aperture onto pixel
// coordinates; ok is false outside the frustum
func (c *Camera) Project(direction core.Vec3) (core.Vec2, bool) {
	v := c.worldToView.Mul3x1(mgl64.Vec3{direction.X, direction.Y, direction.Z})
	if v.Z() >= 0 {
		return core.Vec2{}, false
	}

	invDepth := -1.0 / v.Z()
	px := float64(c.width)/2.0 + v.X()*invDepth*c.focal
	py := float64(c.height)/2.0 - v.Y()*invDepth*c.focal
	if px < 0 || px >= float64(c.width) || py < 0 || py >= float64(c.height) {
		return core.Vec2{}, false
	}
	return core.NewVec2(px, py), true
}

// Surface returns the aperture surface point; the frame's Y column is the
// camera forward direction
func (c *Camera) Surface() core.SurfacePoint {
	return c.surface
}

// BSDF returns the pinhole importance pseudo-BSDF
func (c *Camera) BSDF() bsdf.BSDF {
	return c.pseudoBSDF
}

// FocalFactor converts aperture importance into the per-path pixel
// estimate: focal length squared over the number of light paths per frame
// (one per pixel)
func (c *Camera) FocalFactor() float64 {
	return c.focal * c.focal / float64(c.width*c.height)
}

// Width returns the horizontal resolution
func (c *Camera) Width() int { return c.width }

// Height returns the vertical resolution
func (c *Camera) Height() int { return c.height }
