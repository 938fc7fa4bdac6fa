package geometry

import "github.com/goofoo/lumen/pkg/core"

// Mesh is an indexed triangle mesh with per-vertex tangent frames.
// Column Y of each frame is the shading normal.
type Mesh struct {
	Name       string
	Indices    []int32
	Positions  []core.Vec3
	Frames     []core.Frame
	MaterialID int32
}

// NumTriangles returns the triangle count
func (m *Mesh) NumTriangles() int {
	return len(m.Indices) / 3
}

// TriangleVertices returns the three vertex positions of triangle i
func (m *Mesh) TriangleVertices(i int) (core.Vec3, core.Vec3, core.Vec3) {
	return m.Positions[m.Indices[i*3+0]],
		m.Positions[m.Indices[i*3+1]],
		m.Positions[m.Indices[i*3+2]]
}

// InterpolateFrame returns the barycentric blend of the per-vertex frames
// of triangle i at (u, v); callers re-orthonormalize the result
func (m *Mesh) InterpolateFrame(i int, u, v float64) core.Frame {
	f0 := m.Frames[m.Indices[i*3+0]]
	f1 := m.Frames[m.Indices[i*3+1]]
	f2 := m.Frames[m.Indices[i*3+2]]

	w := 1.0 - u - v
	blend := func(a, b, c core.Vec3) core.Vec3 {
		return a.Multiply(w).Add(b.Multiply(u)).Add(c.Multiply(v))
	}
	return core.NewFrame(
		blend(f0.X, f1.X, f2.X),
		blend(f0.Y, f1.Y, f2.Y),
		blend(f0.Z, f1.Z, f2.Z),
	)
}

// GeometricNormal returns the face normal of triangle i
func (m *Mesh) GeometricNormal(i int) core.Vec3 {
	v0, v1, v2 := m.TriangleVertices(i)
	return v1.Subtract(v0).Cross(v2.Subtract(v0)).Normalize()
}
