package integrator

import (
	"math"
	"testing"

	"github.com/goofoo/lumen/pkg/core"
)

// pathVertex is a synthetic path vertex with explicit solid-angle
// densities: rhoF toward the next vertex (light-side travel), rhoE toward
// the previous one (eye-side travel)
type pathVertex struct {
	pos, normal core.Vec3
	rhoF, rhoE  float64
}

// zigzagPath places vertices alternating between two parallel walls so
// every edge sees positive cosines at both endpoints
func zigzagPath(sampler *core.Sampler, m int) []pathVertex {
	vertices := make([]pathVertex, m+1)
	for i := range vertices {
		y := 0.0
		normal := core.NewVec3(0, 1, 0)
		if i%2 == 1 {
			y = 1.0
			normal = core.NewVec3(0, -1, 0)
		}
		vertices[i] = pathVertex{
			pos:    core.NewVec3(sampler.Get1D()*0.5, y, sampler.Get1D()*0.5),
			normal: normal,
			rhoF:   0.1 + 2.0*sampler.Get1D(),
			rhoE:   0.1 + 2.0*sampler.Get1D(),
		}
	}
	return vertices
}

// strategyWeights evaluates the estimator's recurrence formulas for every
// connection strategy (s = 0..m) of a fixed path y0..ym, where y0 lies on
// the light and ym is the first eye vertex. It mirrors the updates in
// BPT.traceLight / BPT.TraceEye and the weightInv expressions of
// connect0/connect1/connectVertex. The eye boundary is seeded with c = 0
// here, restricting the weight family to the connection strategies; the
// estimators additionally seed the camera-splat term at the boundary.
func strategyWeights(beta Beta, path []pathVertex, areaDensity, emitDensity float64) []float64 {
	m := len(path) - 1

	edges := make([]Edge, m)
	for i := 0; i < m; i++ {
		omega := path[i+1].pos.Subtract(path[i].pos).Normalize()
		edges[i] = NewEdge(path[i].pos, path[i].normal, path[i+1].pos, path[i+1].normal, omega)
	}

	// light-side partial sums at vertices 1..m-1
	aAt := make([]float64, m+1)
	AAt := make([]float64, m+1)
	aAt[1] = 1.0 / beta.Of(edges[0].FGeometry*emitDensity)
	AAt[1] = beta.Of(edges[0].BGeometry) * aAt[1] / beta.Of(areaDensity)
	for i := 2; i <= m-1; i++ {
		aAt[i] = 1.0 / beta.Of(edges[i-1].FGeometry*path[i-1].rhoF)
		AAt[i] = (AAt[i-1]*beta.Of(path[i-1].rhoE) + aAt[i-1]) * beta.Of(edges[i-1].BGeometry) * aAt[i]
	}

	// eye-side partial sums at vertices m..1; the first eye vertex (ym)
	// starts with c = C = 0 and counts as specular for the skip terms
	cAt := make([]float64, m+1)
	CAt := make([]float64, m+1)
	specAt := make([]float64, m+1)
	specAt[m] = 1.0
	for j := m - 1; j >= 1; j-- {
		cAt[j] = 1.0 / beta.Of(edges[j].BGeometry*path[j+1].rhoE)
		CAt[j] = (CAt[j+1]*beta.Of(path[j+1].rhoF) + cAt[j+1]*(1.0-specAt[j+1])) *
			beta.Of(edges[j].FGeometry) * cAt[j]
	}

	weights := make([]float64, m+1)

	// s = 0: the eye walk reaches the light by sampling
	c0 := 1.0 / beta.Of(edges[0].BGeometry*path[1].rhoE)
	C0 := (CAt[1]*beta.Of(path[1].rhoF) + cAt[1]*(1.0-specAt[1])) * beta.Of(edges[0].FGeometry) * c0
	Cp := (C0*beta.Of(emitDensity) + c0) * beta.Of(areaDensity)
	weights[0] = 1.0 / (Cp + 1.0)

	// s = 1: explicit next-event light sample at eye vertex y1
	if m >= 1 {
		weightInv := beta.Of(path[1].rhoE*edges[0].BGeometry/areaDensity) + 1.0 +
			(CAt[1]*beta.Of(path[1].rhoF)+cAt[1]*(1.0-specAt[1]))*
				beta.Of(edges[0].FGeometry*emitDensity)
		weights[1] = 1.0 / weightInv
	}

	// s >= 2: connect light vertex y_{s-1} to eye vertex y_s
	for s := 2; s <= m; s++ {
		weightInv := (AAt[s-1]*beta.Of(path[s-1].rhoE)+aAt[s-1])*
			beta.Of(edges[s-1].BGeometry*path[s].rhoE) + 1.0 +
			(CAt[s]*beta.Of(path[s].rhoF)+cAt[s]*(1.0-specAt[s]))*
				beta.Of(edges[s-1].FGeometry*path[s-1].rhoF)
		weights[s] = 1.0 / weightInv
	}

	return weights
}

// referenceWeights computes the same weights from first principles: each
// strategy's full path density is the product of its generation pdfs
func referenceWeights(beta Beta, path []pathVertex, areaDensity, emitDensity float64) []float64 {
	m := len(path) - 1

	edges := make([]Edge, m)
	for i := 0; i < m; i++ {
		omega := path[i+1].pos.Subtract(path[i].pos).Normalize()
		edges[i] = NewEdge(path[i].pos, path[i].normal, path[i+1].pos, path[i+1].normal, omega)
	}

	// area pdf of y_i generated from the light side
	lightGen := make([]float64, m+1)
	for i := 1; i <= m; i++ {
		density := emitDensity
		if i > 1 {
			density = path[i-1].rhoF
		}
		lightGen[i] = density * edges[i-1].FGeometry
	}
	// area pdf of y_j generated from the eye side
	eyeGen := make([]float64, m)
	for j := 0; j < m; j++ {
		eyeGen[j] = path[j+1].rhoE * edges[j].BGeometry
	}

	densities := make([]float64, m+1)
	for s := 0; s <= m; s++ {
		p := 1.0
		if s >= 1 {
			p *= areaDensity
			for i := 1; i < s; i++ {
				p *= lightGen[i]
			}
		}
		for j := s; j < m; j++ {
			p *= eyeGen[j]
		}
		densities[s] = p
	}

	total := 0.0
	for _, p := range densities {
		total += beta.Of(p)
	}
	weights := make([]float64, m+1)
	for s := range weights {
		weights[s] = beta.Of(densities[s]) / total
	}
	return weights
}

func TestMISPartitionOfUnity(t *testing.T) {
	betas := []struct {
		name string
		beta Beta
	}{
		{"Beta0", FixedBeta0{}},
		{"Beta1", FixedBeta1{}},
		{"Beta2", FixedBeta2{}},
		{"Variable1.5", VariableBeta{Exponent: 1.5}},
	}

	sampler := core.NewSampler(99)
	for _, bb := range betas {
		t.Run(bb.name, func(t *testing.T) {
			for _, m := range []int{1, 2, 3, 5, 8} {
				for trial := 0; trial < 10; trial++ {
					path := zigzagPath(sampler, m)
					areaDensity := 0.5 + sampler.Get1D()
					emitDensity := 0.2 + sampler.Get1D()

					weights := strategyWeights(bb.beta, path, areaDensity, emitDensity)

					sum := 0.0
					for _, w := range weights {
						sum += w
					}
					if math.Abs(sum-1.0) > 1e-4 {
						t.Fatalf("m=%d trial=%d: weights sum to %.8f: %v", m, trial, sum, weights)
					}
				}
			}
		})
	}
}

func TestMISWeightsMatchFirstPrinciples(t *testing.T) {
	betas := []struct {
		name string
		beta Beta
	}{
		{"Beta1", FixedBeta1{}},
		{"Beta2", FixedBeta2{}},
	}

	sampler := core.NewSampler(123)
	for _, bb := range betas {
		t.Run(bb.name, func(t *testing.T) {
			for _, m := range []int{1, 2, 4} {
				path := zigzagPath(sampler, m)
				areaDensity := 1.7
				emitDensity := 0.8

				got := strategyWeights(bb.beta, path, areaDensity, emitDensity)
				want := referenceWeights(bb.beta, path, areaDensity, emitDensity)

				for s := range got {
					if math.Abs(got[s]-want[s]) > 1e-9 {
						t.Fatalf("m=%d s=%d: recurrence weight %.10f, reference %.10f",
							m, s, got[s], want[s])
					}
				}
			}
		})
	}
}
