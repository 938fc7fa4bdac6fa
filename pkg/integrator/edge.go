package integrator

import "github.com/goofoo/lumen/pkg/core"

// Edge carries the geometry terms of a directed path edge u -> v.
// BCosTheta is the cosine at the origin u, FCosTheta the cosine at the
// destination v, both clamped to non-negative. BGeometry = BCosTheta/d^2
// converts a reverse solid-angle density into an area density at u;
// FGeometry = FCosTheta/d^2 does the same toward v. Their product with
// the matching cosine reconstructs the full geometry factor:
// BCosTheta * FGeometry = cos_u * cos_v / d^2.
type Edge struct {
	FCosTheta float64
	BCosTheta float64
	FGeometry float64
	BGeometry float64
}

// NewEdge builds the edge terms between two vertices. omega must be the
// unit direction from the `from` position toward the `to` position; the
// normals are the shading normals at the endpoints (the destination
// normal faces back toward the origin).
func NewEdge(fromPos, fromNormal, toPos, toNormal, omega core.Vec3) Edge {
	distanceSquared := toPos.Subtract(fromPos).LengthSquared()

	bCos := max(0.0, omega.Dot(fromNormal))
	fCos := max(0.0, -omega.Dot(toNormal))

	edge := Edge{FCosTheta: fCos, BCosTheta: bCos}
	if distanceSquared > 0 {
		edge.FGeometry = fCos / distanceSquared
		edge.BGeometry = bCos / distanceSquared
	}
	return edge
}

// edgeBetween builds the edge between two surface points along omega
func edgeBetween(from, to core.SurfacePoint, omega core.Vec3) Edge {
	return NewEdge(from.Position, from.Normal(), to.Position, to.Normal(), omega)
}
