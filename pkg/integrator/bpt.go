package integrator

import (
	"math"

	"github.com/goofoo/lumen/pkg/core"
	"github.com/goofoo/lumen/pkg/scene"
)

// BPT is the bidirectional estimator: per pixel it traces one light
// subpath and one eye subpath and combines every connection strategy with
// balance/power-heuristic MIS weights computed in O(1) from the per-vertex
// partial sums.
type BPT[B Beta] struct {
	beta       B
	scene      *scene.Scene
	minSubpath int
	roulette   float64
	label      string
}

// NewBPT creates a bidirectional estimator for one MIS exponent
func NewBPT[B Beta](s *scene.Scene, beta B, minSubpath int, roulette float64, label string) *BPT[B] {
	return &BPT[B]{
		beta:       beta,
		scene:      s,
		minSubpath: minSubpath,
		roulette:   roulette,
		label:      label,
	}
}

// Name returns the technique name
func (b *BPT[B]) Name() string {
	return b.label
}

// Preprocess is a no-op: the light subpath is traced per pixel sample
func (b *BPT[B]) Preprocess(s *scene.Scene, seed uint64, workers int, log core.Logger) {}

// TraceEye traces the light subpath, splats its vertices through the
// camera, then walks the eye subpath with a two-vertex rolling window,
// connecting at every new eye vertex.
func (b *BPT[B]) TraceEye(ctx *Context, ray core.Ray) core.Vec3 {
	lightPath := b.traceLight(ctx)
	b.connectEye(ctx, lightPath)

	radiance := core.Vec3{}
	var eye [2]eyeVertex
	itr, prv := 0, 1

	cameraSurface := ctx.Camera.Surface()

	isect := b.scene.IntersectRay(ray)
	for isect.IsLight() {
		radiance = radiance.Add(finiteOrBlack(b.scene.QueryRadiance(isect, ray.Direction.Negate())))
		isect = b.scene.Intersect(isect, ray.Direction)
	}
	if !isect.IsPresent() {
		return radiance
	}

	// the camera term enters the partial sums with unit direction
	// density, so the splat strategy of connectEye stays accounted for
	cameraEdge := NewEdge(cameraSurface.Position, cameraSurface.Normal(),
		isect.Position, isect.Normal(), ray.Direction)

	eye[itr] = eyeVertex{
		surface:    isect,
		omega:      ray.Direction.Negate(),
		throughput: core.NewVec3(1, 1, 1),
		c:          1.0 / b.beta.Of(cameraEdge.FGeometry),
	}
	radiance = radiance.Add(b.connect(ctx, &eye[itr], lightPath))
	itr, prv = prv, itr

	eSize := 2
	for {
		rouletteProb := 1.0
		if eSize >= b.minSubpath {
			rouletteProb = b.roulette
		}
		if ctx.Sampler.Get1D() >= rouletteProb {
			break
		}

		sample := b.scene.SampleBSDF(ctx.Sampler, eye[prv].surface, eye[prv].omega)
		if sample.Zero() {
			break
		}

		isect = b.scene.IntersectMesh(eye[prv].surface, sample.Omega)
		if !isect.IsPresent() {
			break
		}

		edge := edgeBetween(eye[prv].surface, isect, sample.Omega)

		eye[itr].surface = isect
		eye[itr].omega = sample.Omega.Negate()
		eye[itr].throughput = eye[prv].throughput.
			MultiplyVec(sample.Throughput).
			Multiply(edge.BCosTheta / (sample.Density * rouletteProb))

		eye[prv].specular = math.Max(eye[prv].specular, sample.Specular)
		eye[itr].specular = math.Max(eye[prv].specular, sample.Specular) * sample.Specular
		eye[itr].c = 1.0 / b.beta.Of(edge.FGeometry*sample.Density)
		eye[itr].C = (eye[prv].C*b.beta.Of(sample.DensityRev) + eye[prv].c*(1.0-eye[prv].specular)) *
			b.beta.Of(edge.BGeometry) * eye[itr].c

		eSize++
		radiance = radiance.Add(b.connect(ctx, &eye[itr], lightPath))
		itr, prv = prv, itr
	}

	return radiance
}

// traceLight builds the light subpath. The first stored vertex is the
// first surface hit; pure specular vertices replace their predecessor
// since they cannot be connected to.
func (b *BPT[B]) traceLight(ctx *Context) []lightVertex {
	path := ctx.lightPath[:0]

	light := b.scene.SampleLight(ctx.Sampler)
	isect := b.scene.IntersectMesh(light.Surface, light.Omega)
	if !isect.IsPresent() {
		return path
	}

	edge := NewEdge(light.Position(), light.Normal(), isect.Position, isect.Normal(), light.Omega)

	first := lightVertex{
		surface:    isect,
		omega:      light.Omega.Negate(),
		throughput: light.Radiance.Multiply(edge.BCosTheta / light.Density()),
		a:          1.0 / b.beta.Of(edge.FGeometry*light.OmegaDensity),
	}
	first.A = b.beta.Of(edge.BGeometry) * first.a / b.beta.Of(light.AreaDensity)
	path = append(path, first)
	prv := 0

	lSize := 2
	for len(path) < maxSubpath {
		rouletteProb := 1.0
		if lSize >= b.minSubpath {
			rouletteProb = b.roulette
		}
		if ctx.Sampler.Get1D() >= rouletteProb {
			break
		}

		sample := b.scene.SampleBSDF(ctx.Sampler, path[prv].surface, path[prv].omega)
		if sample.Zero() {
			break
		}

		isect = b.scene.IntersectMesh(path[prv].surface, sample.Omega)
		if !isect.IsPresent() {
			break
		}

		edge = edgeBetween(path[prv].surface, isect, sample.Omega)

		var next lightVertex
		next.surface = isect
		next.omega = sample.Omega.Negate()
		next.throughput = path[prv].throughput.
			MultiplyVec(sample.Throughput).
			Multiply(edge.BCosTheta / (sample.Density * rouletteProb))

		path[prv].specular = math.Max(path[prv].specular, sample.Specular)
		next.specular = math.Max(path[prv].specular, sample.Specular) * sample.Specular
		next.a = 1.0 / b.beta.Of(edge.FGeometry*sample.Density)
		next.A = (path[prv].A*b.beta.Of(sample.DensityRev) + path[prv].a*(1.0-path[prv].specular)) *
			b.beta.Of(edge.BGeometry) * next.a

		if sample.Specular == 1.0 {
			path[prv] = next
		} else {
			path = append(path, next)
			prv = len(path) - 1
		}
		lSize++
	}

	// a trailing specular vertex cannot be connected to; drop it
	trailing := b.scene.SampleBSDF(ctx.Sampler, path[prv].surface, path[prv].omega)
	if trailing.Specular == 1.0 {
		path = path[:len(path)-1]
	}

	ctx.lightPath = path[:0]
	return path
}

// connect evaluates the three connection families at one eye vertex:
// s = 0 (the eye walk hits a light), s = 1 (explicit next-event light
// sample) and s >= 2 (connections to every stored light vertex).
func (b *BPT[B]) connect(ctx *Context, eye *eyeVertex, path []lightVertex) core.Vec3 {
	radiance := b.connect0(ctx, eye).Add(b.connect1(ctx, eye))
	for i := range path {
		radiance = radiance.Add(b.connectVertex(eye, &path[i]))
	}
	return finiteOrBlack(radiance)
}

// connect0 extends the eye path by one BSDF sample and accumulates the
// MIS-weighted emission of every light surface the ray passes through
func (b *BPT[B]) connect0(ctx *Context, eye *eyeVertex) core.Vec3 {
	radiance := core.Vec3{}

	sample := b.scene.SampleBSDF(ctx.Sampler, eye.surface, eye.omega)
	if sample.Zero() {
		return radiance
	}

	isect := b.scene.Intersect(eye.surface, sample.Omega)
	for isect.IsLight() {
		edge := edgeBetween(eye.surface, isect, sample.Omega)
		lsdf := b.scene.QueryLSDF(isect, sample.Omega.Negate())

		c := 1.0 / b.beta.Of(edge.FGeometry*sample.Density)
		C := (eye.C*b.beta.Of(sample.DensityRev) + eye.c*(1.0-math.Max(eye.specular, sample.Specular))) *
			b.beta.Of(edge.BGeometry) * c
		Cp := (C*b.beta.Of(lsdf.OmegaDensity) + c*(1.0-sample.Specular)) * b.beta.Of(lsdf.AreaDensity)

		weightInv := Cp + 1.0

		radiance = radiance.Add(lsdf.Radiance.
			MultiplyVec(eye.throughput).
			MultiplyVec(sample.Throughput).
			Multiply(edge.BCosTheta / (sample.Density * weightInv)))

		isect = b.scene.Intersect(isect, sample.Omega)
	}

	return radiance
}

// connect1 draws a fresh next-event light sample for the eye vertex
func (b *BPT[B]) connect1(ctx *Context, eye *eyeVertex) core.Vec3 {
	light := b.scene.SampleLightOn(ctx.Sampler, eye.surface.Position)

	query := b.scene.QueryBSDFPair(eye.surface, light.Omega.Negate(), eye.omega)
	if query.Specular == 1.0 {
		return core.Vec3{}
	}

	edge := NewEdge(light.Position(), light.Normal(), eye.surface.Position, eye.surface.Normal(), light.Omega)

	weightInv := b.beta.Of(query.DensityRev*edge.BGeometry/light.AreaDensity) + 1.0 +
		(eye.C*b.beta.Of(query.Density)+eye.c*(1.0-eye.specular))*
			b.beta.Of(edge.FGeometry*light.OmegaDensity)

	return light.Radiance.
		MultiplyVec(eye.throughput).
		MultiplyVec(query.Throughput).
		Multiply(edge.BCosTheta * edge.FGeometry / (light.AreaDensity * weightInv)).
		Multiply(b.scene.Occluded(eye.surface, light.Surface))
}

// connectVertex joins one stored light vertex to the eye vertex
func (b *BPT[B]) connectVertex(eye *eyeVertex, light *lightVertex) core.Vec3 {
	omega := eye.surface.Position.Subtract(light.surface.Position).Normalize()

	lightBSDF := b.scene.QueryBSDFPair(light.surface, light.omega, omega)
	eyeBSDF := b.scene.QueryBSDFPair(eye.surface, omega.Negate(), eye.omega)
	if eyeBSDF.Specular == 1.0 {
		return core.Vec3{}
	}

	edge := edgeBetween(light.surface, eye.surface, omega)

	weightInv := (light.A*b.beta.Of(lightBSDF.DensityRev)+light.a*(1.0-light.specular))*
		b.beta.Of(edge.BGeometry*eyeBSDF.DensityRev) + 1.0 +
		(eye.C*b.beta.Of(eyeBSDF.Density)+eye.c*(1.0-eye.specular))*
			b.beta.Of(edge.FGeometry*lightBSDF.Density)

	return light.throughput.
		MultiplyVec(lightBSDF.Throughput).
		MultiplyVec(eye.throughput).
		MultiplyVec(eyeBSDF.Throughput).
		Multiply(edge.BCosTheta * edge.FGeometry / weightInv).
		Multiply(b.scene.Occluded(eye.surface, light.surface))
}

// connectEye projects every light vertex through the camera and splats
// the MIS-weighted contribution into the light image
func (b *BPT[B]) connectEye(ctx *Context, path []lightVertex) {
	eyeSurface := ctx.Camera.Surface()
	cameraBSDF := ctx.Camera.BSDF()

	for i := range path {
		light := &path[i]

		toLight := light.surface.Position.Subtract(eyeSurface.Position)
		pixel, ok := ctx.Camera.Project(toLight)
		if !ok {
			continue
		}

		omega := toLight.Normalize().Negate() // light vertex toward the aperture
		lightBSDF := b.scene.QueryBSDFPair(light.surface, light.omega, omega)
		eyeBSDF := cameraBSDF.Query(eyeSurface, omega, omega.Negate())

		edge := NewEdge(light.surface.Position, light.surface.Normal(),
			eyeSurface.Position, eyeSurface.Normal(), omega)

		weightInv := (light.A*b.beta.Of(lightBSDF.DensityRev)+light.a*(1.0-light.specular))*
			b.beta.Of(edge.BGeometry*eyeBSDF.DensityRev) + 1.0

		contribution := light.throughput.
			MultiplyVec(lightBSDF.Throughput).
			MultiplyVec(eyeBSDF.Throughput).
			Multiply(edge.BCosTheta * edge.FGeometry / weightInv).
			Multiply(b.scene.Occluded(eyeSurface, light.surface))

		// shading/geometric normal correction for light transport
		correction := math.Abs(light.omega.Dot(light.surface.Normal()) /
			light.omega.Dot(light.surface.GNormal))

		color := finiteOrBlack(contribution.Multiply(ctx.Camera.FocalFactor() * correction))
		if !color.IsZero() {
			ctx.Splat(pixel, color)
		}
	}
}
