package integrator

import (
	"math"
	"sync"

	"github.com/goofoo/lumen/pkg/bsdf"
	"github.com/goofoo/lumen/pkg/core"
	"github.com/goofoo/lumen/pkg/scene"
	"github.com/goofoo/lumen/pkg/spatial"
)

// GatherMode selects how the merging density is obtained
type GatherMode int

const (
	// GatherBiased uses the analytic photon-map density (VCM)
	GatherBiased GatherMode = iota
	// GatherUnbiased estimates the density by geometric trials (UPG)
	GatherUnbiased
)

// UPG extends bidirectional connection with a vertex-merging strategy.
// Once per frame it scatters light subpaths into a range-search index;
// every eye vertex then gathers nearby photons in addition to its
// connections. GatherBiased yields vertex connection and merging,
// GatherUnbiased the unbiased photon-gathering variant.
type UPG[B Beta] struct {
	beta       B
	scene      *scene.Scene
	label      string
	numPhotons int
	numGather  int
	minSubpath int
	roulette   float64
	radius     float64
	mode       GatherMode

	numScattered int64
	grid         *spatial.HashGrid3D[lightVertex]
	tree         *spatial.KDTree3D[lightVertex]
}

// NewUPG creates a merging estimator
func NewUPG[B Beta](s *scene.Scene, beta B, minSubpath int, roulette float64,
	numPhotons, numGather int, radius float64, mode GatherMode, label string) *UPG[B] {
	return &UPG[B]{
		beta:       beta,
		scene:      s,
		label:      label,
		numPhotons: numPhotons,
		numGather:  numGather,
		minSubpath: minSubpath,
		roulette:   roulette,
		radius:     radius,
		mode:       mode,
	}
}

// Name returns the technique name
func (u *UPG[B]) Name() string {
	return u.label
}

// Preprocess scatters the photon subpaths for this frame and rebuilds the
// range-search index. Photons are deterministic per index, so the stored
// set does not depend on the worker count.
func (u *UPG[B]) Preprocess(s *scene.Scene, seed uint64, workers int, log core.Logger) {
	if workers < 1 {
		workers = 1
	}

	// per-photon-index seeds and index-ordered flattening keep the stored
	// set and its order independent of the worker count
	paths := make([][]lightVertex, u.numPhotons)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := worker; i < u.numPhotons; i += workers {
				sampler := core.NewSampler(core.MixSeed(seed, 0x70686f74, uint64(i)))
				paths[i] = u.traceLight(sampler, nil, false)
			}
		}(w)
	}
	wg.Wait()

	var vertices []lightVertex
	for _, path := range paths {
		vertices = append(vertices, path...)
	}
	u.numScattered = int64(u.numPhotons)

	if u.mode == GatherBiased {
		u.tree = spatial.NewKDTree3D(vertices)
		u.grid = nil
	} else {
		u.grid = spatial.NewHashGrid3D(vertices, u.radius)
		u.tree = nil
	}

	if log != nil {
		log.Printf("scattered %d photon paths, %d stored vertices\n", u.numPhotons, len(vertices))
	}
}

// eta is the beta'd merging-acceptance measure: scattered paths times the
// gather disc area
func (u *UPG[B]) eta() float64 {
	return u.beta.Of(float64(u.numScattered) * math.Pi * u.radius * u.radius)
}

// TraceEye traces one eye path, connecting and gathering at every vertex
func (u *UPG[B]) TraceEye(ctx *Context, ray core.Ray) core.Vec3 {
	lightPath := u.traceLight(ctx.Sampler, ctx.lightPath[:0], true)
	defer func() { ctx.lightPath = lightPath[:0] }()

	radiance := core.Vec3{}
	var eye [2]eyeVertex
	itr, prv := 0, 1

	eye[prv] = eyeVertex{
		surface:    ctx.Camera.Surface(),
		omega:      ray.Direction.Negate(),
		throughput: core.NewVec3(1, 1, 1),
	}

	u.connectEye(ctx, &eye[prv], lightPath)

	surface := u.scene.IntersectRay(ray)
	for surface.IsLight() {
		radiance = radiance.Add(finiteOrBlack(u.scene.QueryRadiance(surface, ray.Direction.Negate())))
		surface = u.scene.Intersect(surface, ray.Direction)
	}
	if !surface.IsPresent() {
		return radiance
	}

	edge := NewEdge(eye[prv].surface.Position, eye[prv].surface.Normal(),
		surface.Position, surface.Normal(), ray.Direction)

	eye[itr] = eyeVertex{
		surface:    surface,
		omega:      ray.Direction.Negate(),
		throughput: core.NewVec3(1, 1, 1),
		c:          1.0 / u.beta.Of(edge.FGeometry),
	}
	itr, prv = prv, itr

	pathSize := 2
	for {
		radiance = radiance.Add(u.gather(ctx, &eye[prv]))
		radiance = radiance.Add(u.connect(ctx, &eye[prv], lightPath))

		sample := u.scene.SampleBSDF(ctx.Sampler, eye[prv].surface, eye[prv].omega)
		if sample.Zero() {
			return radiance
		}

		for {
			surface = u.scene.Intersect(surface, sample.Omega)
			if !surface.IsPresent() {
				return radiance
			}

			eye[itr].surface = surface
			eye[itr].omega = sample.Omega.Negate()

			edge := edgeBetween(eye[prv].surface, surface, sample.Omega)

			eye[itr].throughput = eye[prv].throughput.
				MultiplyVec(sample.Throughput).
				Multiply(edge.BCosTheta / sample.Density)

			eye[prv].specular = math.Max(eye[prv].specular, sample.Specular)
			eye[itr].specular = sample.Specular
			eye[itr].c = 1.0 / u.beta.Of(edge.FGeometry*sample.Density)

			eye[itr].C = (eye[prv].C*u.beta.Of(sample.DensityRev) + eye[prv].c*(1.0-eye[prv].specular)) *
				u.beta.Of(edge.BGeometry) * eye[itr].c

			eye[itr].d = 1.0
			eye[itr].D = (eye[prv].D*u.beta.Of(sample.DensityRev) + eye[prv].d*(1.0-sample.Specular)) *
				u.beta.Of(edge.BGeometry) * eye[itr].c

			if surface.IsLight() {
				radiance = radiance.Add(u.connectLight(&eye[itr]))
			} else {
				break
			}
		}

		itr, prv = prv, itr

		rouletteProb := 1.0
		if pathSize >= u.minSubpath {
			rouletteProb = u.roulette
		}
		if rouletteProb < ctx.Sampler.Get1D() {
			return radiance
		}
		eye[prv].throughput = eye[prv].throughput.Divide(rouletteProb)
		pathSize++
	}
}

// traceLight builds one light subpath, appending to path. When first is
// true the vertex on the light source itself is stored too (the per-pixel
// path connects it; photons store only mesh vertices).
func (u *UPG[B]) traceLight(sampler *core.Sampler, path []lightVertex, first bool) []lightVertex {
	light := u.scene.SampleLight(sampler)

	if first {
		origin := lightVertex{
			surface:    light.Surface,
			throughput: light.Radiance.Divide(light.AreaDensity),
			a:          1.0 / u.beta.Of(light.AreaDensity),
		}
		path = append(path, origin)
	}

	surface := u.scene.IntersectMesh(light.Surface, light.Omega)
	if !surface.IsPresent() {
		return path
	}

	edge := NewEdge(light.Position(), light.Normal(), surface.Position, surface.Normal(), light.Omega)

	vertex := lightVertex{
		surface:    surface,
		omega:      light.Omega.Negate(),
		throughput: light.Radiance.Multiply(edge.BCosTheta / light.Density()),
		a:          1.0 / u.beta.Of(edge.FGeometry*light.OmegaDensity),
	}
	vertex.A = u.beta.Of(edge.BGeometry) * vertex.a / u.beta.Of(light.AreaDensity)
	path = append(path, vertex)
	prv := len(path) - 1

	pathSize := 2
	for len(path) < maxSubpath {
		rouletteProb := 1.0
		if pathSize >= u.minSubpath {
			rouletteProb = u.roulette
		}
		if sampler.Get1D() >= rouletteProb {
			break
		}

		sample := u.scene.SampleBSDF(sampler, path[prv].surface, path[prv].omega)
		if sample.Zero() {
			break
		}

		surface = u.scene.IntersectMesh(path[prv].surface, sample.Omega)
		if !surface.IsPresent() {
			break
		}

		pathSize++
		edge = edgeBetween(path[prv].surface, surface, sample.Omega)

		var next lightVertex
		next.surface = surface
		next.omega = sample.Omega.Negate()
		next.throughput = path[prv].throughput.
			MultiplyVec(sample.Throughput).
			Multiply(edge.BCosTheta / (sample.Density * rouletteProb))

		path[prv].specular = math.Max(path[prv].specular, sample.Specular)
		next.specular = sample.Specular
		next.a = 1.0 / u.beta.Of(edge.FGeometry*sample.Density)

		next.A = (path[prv].A*u.beta.Of(sample.DensityRev) + path[prv].a*(1.0-path[prv].specular)) *
			u.beta.Of(edge.BGeometry) * next.a

		next.B = (path[prv].B*u.beta.Of(sample.DensityRev) + (1.0 - sample.Specular)) *
			u.beta.Of(edge.BGeometry) * next.a

		if sample.Specular == 1.0 {
			path[prv] = next
		} else {
			path = append(path, next)
			prv = len(path) - 1
		}
	}

	trailing := u.scene.SampleBSDF(sampler, path[prv].surface, path[prv].omega)
	if trailing.Specular == 1.0 {
		path = path[:len(path)-1]
	}

	return path
}

// weightVC computes the connection weight 1/weightInv from the partial
// sums, including the merging strategies through eta. skipDirect drops
// the merging term when the light endpoint sits on the source, where
// merging would double-count the s = 0 strategy.
func (u *UPG[B]) weightVC(light *lightVertex, lightBSDF bsdf.Query,
	eye *eyeVertex, eyeBSDF bsdf.Query, edge Edge, skipDirect bool) float64 {
	eta := u.eta()

	skipDirectVM := 1.0
	if skipDirect {
		skipDirectVM = 0.0
	}

	Ap := (light.A*u.beta.Of(lightBSDF.DensityRev) + light.a*(1.0-light.specular)) *
		u.beta.Of(edge.BGeometry*eyeBSDF.DensityRev)

	Bp := light.B * u.beta.Of(lightBSDF.DensityRev) *
		u.beta.Of(edge.BGeometry*eyeBSDF.DensityRev)

	Cp := (eye.C*u.beta.Of(eyeBSDF.Density) + eye.c*(1.0-eye.specular)) *
		u.beta.Of(edge.FGeometry*lightBSDF.Density)

	Dp := (eye.D*u.beta.Of(eyeBSDF.Density) + eye.d*(1.0-eyeBSDF.Specular)) *
		u.beta.Of(edge.FGeometry*lightBSDF.Density)

	weightInv := Ap + eta*Bp + Cp + eta*Dp +
		eta*u.beta.Of(edge.BGeometry*eyeBSDF.DensityRev*skipDirectVM) + 1.0

	return 1.0 / weightInv
}

// weightVM is the merging weight: the merging strategy's own beta'd
// density over the common strategy sum
func (u *UPG[B]) weightVM(light *lightVertex, lightBSDF bsdf.Query,
	eye *eyeVertex, eyeBSDF bsdf.Query, edge Edge) float64 {
	weight := u.weightVC(light, lightBSDF, eye, eyeBSDF, edge, false)
	return u.eta() * u.beta.Of(edge.BGeometry*eyeBSDF.DensityRev) * weight
}

// density returns the factor standing in for the reciprocal merging
// density: analytic for the biased mode, estimated by geometric trials
// for the unbiased one
func (u *UPG[B]) density(sampler *core.Sampler, light *lightVertex,
	eye *eyeVertex, eyeBSDF bsdf.Query, edge Edge) float64 {
	if u.mode == GatherUnbiased {
		return bsdf.GatheringDensity(sampler, u.scene, u.scene.QueryBSDF(eye.surface), eye.surface,
			core.BoundingSphere{Center: light.surface.Position, Radius: u.radius}, eye.omega)
	}
	return 1.0 / (edge.BGeometry * eyeBSDF.DensityRev * math.Pi * u.radius * u.radius)
}

// connectLight adds the MIS-weighted emission when the eye walk crosses a
// light surface
func (u *UPG[B]) connectLight(eye *eyeVertex) core.Vec3 {
	if !eye.surface.IsLight() {
		return core.Vec3{}
	}

	lsdf := u.scene.QueryLSDF(eye.surface, eye.omega)

	Cp := (eye.C*u.beta.Of(lsdf.OmegaDensity) + eye.c*(1.0-eye.specular)) *
		u.beta.Of(lsdf.AreaDensity)

	Dp := 0.0
	if eye.c != 0 {
		Dp = eye.D / eye.c * u.beta.Of(lsdf.OmegaDensity)
	}

	weightInv := Cp + u.eta()*Dp + 1.0

	return finiteOrBlack(lsdf.Radiance.MultiplyVec(eye.throughput).Divide(weightInv))
}

// connectVertex joins one stored light vertex to the eye vertex
func (u *UPG[B]) connectVertex(light *lightVertex, eye *eyeVertex, skipDirect bool) core.Vec3 {
	omega := eye.surface.Position.Subtract(light.surface.Position).Normalize()

	lightBSDF := u.scene.QueryBSDFPair(light.surface, light.omega, omega)
	eyeBSDF := u.scene.QueryBSDFPair(eye.surface, omega.Negate(), eye.omega)

	edge := edgeBetween(light.surface, eye.surface, omega)

	weight := u.weightVC(light, lightBSDF, eye, eyeBSDF, edge, skipDirect)

	contribution := light.throughput.
		MultiplyVec(lightBSDF.Throughput).
		MultiplyVec(eye.throughput).
		MultiplyVec(eyeBSDF.Throughput).
		Multiply(edge.BCosTheta * edge.FGeometry * weight).
		Multiply(u.scene.Occluded(eye.surface, light.surface))

	return finiteOrBlack(contribution)
}

// connect joins the eye vertex to every vertex of the per-pixel light
// path; the on-light origin vertex skips the direct merging term
func (u *UPG[B]) connect(ctx *Context, eye *eyeVertex, path []lightVertex) core.Vec3 {
	radiance := core.Vec3{}
	if len(path) == 0 {
		return radiance
	}

	radiance = radiance.Add(u.connectVertex(&path[0], eye, true))
	for i := 1; i < len(path); i++ {
		radiance = radiance.Add(u.connectVertex(&path[i], eye, false))
	}
	return radiance
}

// connectEye projects the light-path vertices through the camera and
// splats the weighted contributions into the light image
func (u *UPG[B]) connectEye(ctx *Context, eye *eyeVertex, path []lightVertex) {
	cameraBSDF := ctx.Camera.BSDF()

	for i := 1; i < len(path); i++ {
		light := &path[i]

		toLight := light.surface.Position.Subtract(eye.surface.Position)
		pixel, ok := ctx.Camera.Project(toLight)
		if !ok {
			continue
		}

		omega := toLight.Normalize().Negate()
		lightBSDF := u.scene.QueryBSDFPair(light.surface, light.omega, omega)
		eyeBSDF := cameraBSDF.Query(eye.surface, omega, omega.Negate())

		edge := NewEdge(light.surface.Position, light.surface.Normal(),
			eye.surface.Position, eye.surface.Normal(), omega)

		weight := u.weightVC(light, lightBSDF, eye, eyeBSDF, edge, true)

		contribution := light.throughput.
			MultiplyVec(lightBSDF.Throughput).
			MultiplyVec(eyeBSDF.Throughput).
			Multiply(edge.BCosTheta * edge.FGeometry * weight).
			Multiply(u.scene.Occluded(eye.surface, light.surface))

		correction := math.Abs(light.omega.Dot(light.surface.Normal()) /
			light.omega.Dot(light.surface.GNormal))

		color := finiteOrBlack(contribution.Multiply(ctx.Camera.FocalFactor() * correction))
		if !color.IsZero() {
			ctx.Splat(pixel, color)
		}
	}
}

// gather samples one continuation direction from the eye vertex and
// merges the photons stored within the radius of the hit point: all of
// them in unbiased mode, at most the numGather nearest in biased mode
func (u *UPG[B]) gather(ctx *Context, eye *eyeVertex) core.Vec3 {
	sample := u.scene.SampleBSDF(ctx.Sampler, eye.surface, eye.omega)
	if sample.Zero() {
		return core.Vec3{}
	}

	surface := u.scene.IntersectMesh(eye.surface, sample.Omega)
	if !surface.IsPresent() {
		return core.Vec3{}
	}

	radiance := core.Vec3{}

	if u.mode == GatherUnbiased {
		u.grid.RQuery(func(light *lightVertex) {
			radiance = radiance.Add(u.mergeUnbiased(ctx.Sampler, light, eye))
		}, surface.Position, u.radius)
	} else {
		if cap(ctx.gatherScratch) < u.numGather {
			ctx.gatherScratch = make([]lightVertex, u.numGather)
		}
		found := u.tree.QueryK(ctx.gatherScratch[:u.numGather], surface.Position, u.numGather, u.radius)
		query := bsdf.Query{
			Throughput: sample.Throughput,
			Density:    sample.DensityRev,
			DensityRev: sample.Density,
			Specular:   sample.Specular,
		}
		for i := 0; i < found; i++ {
			radiance = radiance.Add(u.mergeBiased(&ctx.gatherScratch[i], eye, query))
		}
	}

	return radiance.Divide(float64(u.numScattered))
}

// mergeUnbiased merges one photon against the eye vertex with the
// geometric-trial density estimate
func (u *UPG[B]) mergeUnbiased(sampler *core.Sampler, light *lightVertex, eye *eyeVertex) core.Vec3 {
	omega := eye.surface.Position.Subtract(light.surface.Position).Normalize()

	lightBSDF := u.scene.QueryBSDFPair(light.surface, light.omega, omega)
	eyeBSDF := u.scene.QueryBSDFPair(eye.surface, omega.Negate(), eye.omega)

	edge := edgeBetween(light.surface, eye.surface, omega)

	result := light.throughput.
		MultiplyVec(lightBSDF.Throughput).
		MultiplyVec(eye.throughput).
		MultiplyVec(eyeBSDF.Throughput).
		Multiply(edge.BCosTheta * edge.FGeometry).
		Multiply(u.scene.Occluded(eye.surface, light.surface))

	if result.L1Norm() < 1e-12 {
		return core.Vec3{}
	}

	density := u.density(sampler, light, eye, eyeBSDF, edge)
	if math.IsNaN(density) || math.IsInf(density, 0) {
		return core.Vec3{}
	}

	weight := u.weightVM(light, lightBSDF, eye, eyeBSDF, edge)
	return finiteOrBlack(result.Multiply(density * weight))
}

// mergeBiased merges one photon with the analytic photon-map density,
// reusing the gather sample's densities with forward and reverse swapped
func (u *UPG[B]) mergeBiased(light *lightVertex, eye *eyeVertex, eyeBSDF bsdf.Query) core.Vec3 {
	omega := eye.surface.Position.Subtract(light.surface.Position).Normalize()

	lightBSDF := u.scene.QueryBSDFPair(light.surface, light.omega, omega)
	edge := edgeBetween(light.surface, eye.surface, omega)

	weight := u.weightVM(light, lightBSDF, eye, eyeBSDF, edge)
	density := 1.0 / (eyeBSDF.DensityRev * math.Pi * u.radius * u.radius)
	if math.IsNaN(density) || math.IsInf(density, 0) {
		return core.Vec3{}
	}

	result := light.throughput.
		MultiplyVec(lightBSDF.Throughput).
		MultiplyVec(eye.throughput).
		MultiplyVec(eyeBSDF.Throughput).
		Multiply(edge.FCosTheta).
		Multiply(u.scene.Occluded(light.surface, eye.surface))

	return finiteOrBlack(result.Multiply(density * weight))
}
