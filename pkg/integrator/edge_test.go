package integrator

import (
	"math"
	"testing"

	"github.com/goofoo/lumen/pkg/core"
)

func TestNewEdge(t *testing.T) {
	tests := []struct {
		name       string
		fromPos    core.Vec3
		fromNormal core.Vec3
		toPos      core.Vec3
		toNormal   core.Vec3
		wantFCos   float64
		wantBCos   float64
		wantFGeom  float64
		wantBGeom  float64
	}{
		{
			name:       "FacingUnitDistance",
			fromPos:    core.NewVec3(0, 0, 0),
			fromNormal: core.NewVec3(1, 0, 0),
			toPos:      core.NewVec3(1, 0, 0),
			toNormal:   core.NewVec3(-1, 0, 0),
			wantFCos:   1, wantBCos: 1, wantFGeom: 1, wantBGeom: 1,
		},
		{
			name:       "FacingDistanceTwo",
			fromPos:    core.NewVec3(0, 0, 0),
			fromNormal: core.NewVec3(1, 0, 0),
			toPos:      core.NewVec3(2, 0, 0),
			toNormal:   core.NewVec3(-1, 0, 0),
			wantFCos:   1, wantBCos: 1, wantFGeom: 0.25, wantBGeom: 0.25,
		},
		{
			name:       "BackfacingOriginClampsToZero",
			fromPos:    core.NewVec3(0, 0, 0),
			fromNormal: core.NewVec3(-1, 0, 0),
			toPos:      core.NewVec3(1, 0, 0),
			toNormal:   core.NewVec3(-1, 0, 0),
			wantFCos:   1, wantBCos: 0, wantFGeom: 1, wantBGeom: 0,
		},
		{
			name:       "GrazingDestination",
			fromPos:    core.NewVec3(0, 0, 0),
			fromNormal: core.NewVec3(1, 0, 0),
			toPos:      core.NewVec3(1, 0, 0),
			toNormal:   core.NewVec3(0, 1, 0),
			wantFCos:   0, wantBCos: 1, wantFGeom: 0, wantBGeom: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			omega := tt.toPos.Subtract(tt.fromPos).Normalize()
			edge := NewEdge(tt.fromPos, tt.fromNormal, tt.toPos, tt.toNormal, omega)

			checks := []struct {
				name      string
				got, want float64
			}{
				{"FCosTheta", edge.FCosTheta, tt.wantFCos},
				{"BCosTheta", edge.BCosTheta, tt.wantBCos},
				{"FGeometry", edge.FGeometry, tt.wantFGeom},
				{"BGeometry", edge.BGeometry, tt.wantBGeom},
			}
			for _, c := range checks {
				if math.Abs(c.got-c.want) > 1e-12 {
					t.Errorf("%s = %g, want %g", c.name, c.got, c.want)
				}
			}
		})
	}
}

func TestEdgeZeroDistance(t *testing.T) {
	p := core.NewVec3(1, 2, 3)
	edge := NewEdge(p, core.NewVec3(0, 1, 0), p, core.NewVec3(0, -1, 0), core.NewVec3(1, 0, 0))
	if edge.FGeometry != 0 || edge.BGeometry != 0 {
		t.Errorf("zero-distance edge should have zero geometry, got %+v", edge)
	}
}

func TestBetaHeuristics(t *testing.T) {
	tests := []struct {
		name string
		beta Beta
		x    float64
		want float64
	}{
		{"Beta0OfPositive", FixedBeta0{}, 3.7, 1},
		{"Beta0OfZero", FixedBeta0{}, 0, 0},
		{"Beta1", FixedBeta1{}, 3.7, 3.7},
		{"Beta2", FixedBeta2{}, 3.0, 9.0},
		{"VariableHalf", VariableBeta{Exponent: 0.5}, 4.0, 2.0},
		{"VariableOfZero", VariableBeta{Exponent: 2}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.beta.Of(tt.x); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Of(%g) = %g, want %g", tt.x, got, tt.want)
			}
		})
	}
}
