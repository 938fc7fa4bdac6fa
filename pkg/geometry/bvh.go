package geometry

import (
	"sort"

	"github.com/goofoo/lumen/pkg/core"
)

// LightGeomID is the geometry id reserved for the area-light aggregate.
// Mesh ids start at 1.
const LightGeomID int32 = 0

// Hit describes a ray-triangle intersection
type Hit struct {
	T      float64
	U, V   float64
	GeomID int32
	PrimID int32
}

// IsLight reports whether the hit belongs to the area-light aggregate
func (h Hit) IsLight() bool {
	return h.GeomID == LightGeomID
}

// primitive is one triangle reference inside the BVH
type primitive struct {
	v0, v1, v2 core.Vec3
	centroid   core.Vec3
	bounds     AABB
	geomID     int32
	primID     int32
}

// bvhNode is a node in the bounding volume hierarchy
type bvhNode struct {
	bounds AABB
	left   *bvhNode
	right  *bvhNode
	prims  []primitive // leaf payload, nil for internal nodes
}

// BVH is a bounding volume hierarchy over triangles from several geometries
type BVH struct {
	root *bvhNode
}

// NewBVH builds a BVH. Geometry id 0 must be the area-light aggregate;
// subsequent ids are the meshes in order.
func NewBVH(geometries [][]core.Vec3) *BVH {
	var prims []primitive
	for geomID, tris := range geometries {
		for i := 0; i+2 < len(tris); i += 3 {
			p := primitive{
				v0:     tris[i],
				v1:     tris[i+1],
				v2:     tris[i+2],
				geomID: int32(geomID),
				primID: int32(i / 3),
			}
			p.bounds = NewAABBFromPoints(p.v0, p.v1, p.v2)
			p.centroid = p.bounds.Center()
			prims = append(prims, p)
		}
	}
	if len(prims) == 0 {
		return &BVH{}
	}
	return &BVH{root: buildBVH(prims)}
}

const leafThreshold = 4

// buildBVH recursively builds the hierarchy with median splits along the
// longest axis
func buildBVH(prims []primitive) *bvhNode {
	bounds := prims[0].bounds
	for i := 1; i < len(prims); i++ {
		bounds = bounds.Union(prims[i].bounds)
	}

	if len(prims) <= leafThreshold {
		return &bvhNode{bounds: bounds, prims: prims}
	}

	axis := bounds.LongestAxis()
	sort.SliceStable(prims, func(a, b int) bool {
		return axisValue(prims[a].centroid, axis) < axisValue(prims[b].centroid, axis)
	})

	mid := len(prims) / 2
	return &bvhNode{
		bounds: bounds,
		left:   buildBVH(prims[:mid]),
		right:  buildBVH(prims[mid:]),
	}
}

func axisValue(v core.Vec3, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// Intersect finds the closest triangle hit over (tNear, tFar). When
// meshOnly is true, the area-light aggregate (geometry id 0) is skipped.
func (b *BVH) Intersect(ray core.Ray, tNear, tFar float64, meshOnly bool) (Hit, bool) {
	closest := Hit{T: tFar}
	found := b.intersectNode(b.root, ray, tNear, &closest, meshOnly)
	return closest, found
}

func (b *BVH) intersectNode(node *bvhNode, ray core.Ray, tNear float64, closest *Hit, meshOnly bool) bool {
	if node == nil || !node.bounds.Hit(ray, tNear, closest.T) {
		return false
	}

	if node.prims != nil {
		found := false
		for i := range node.prims {
			p := &node.prims[i]
			if meshOnly && p.geomID == LightGeomID {
				continue
			}
			if t, u, v, ok := intersectTriangle(ray, p.v0, p.v1, p.v2, tNear, closest.T); ok {
				*closest = Hit{T: t, U: u, V: v, GeomID: p.geomID, PrimID: p.primID}
				found = true
			}
		}
		return found
	}

	hitLeft := b.intersectNode(node.left, ray, tNear, closest, meshOnly)
	hitRight := b.intersectNode(node.right, ray, tNear, closest, meshOnly)
	return hitLeft || hitRight
}

// Occluded reports whether any triangle blocks the ray over (tNear, tFar)
func (b *BVH) Occluded(ray core.Ray, tNear, tFar float64) bool {
	return b.occludedNode(b.root, ray, tNear, tFar)
}

func (b *BVH) occludedNode(node *bvhNode, ray core.Ray, tNear, tFar float64) bool {
	if node == nil || !node.bounds.Hit(ray, tNear, tFar) {
		return false
	}

	if node.prims != nil {
		for i := range node.prims {
			p := &node.prims[i]
			if _, _, _, ok := intersectTriangle(ray, p.v0, p.v1, p.v2, tNear, tFar); ok {
				return true
			}
		}
		return false
	}

	return b.occludedNode(node.left, ray, tNear, tFar) ||
		b.occludedNode(node.right, ray, tNear, tFar)
}

// intersectTriangle runs the Moller-Trumbore test over (tNear, tFar)
func intersectTriangle(ray core.Ray, v0, v1, v2 core.Vec3, tNear, tFar float64) (t, u, v float64, ok bool) {
	const epsilon = 1e-12

	edge1 := v1.Subtract(v0)
	edge2 := v2.Subtract(v0)

	h := ray.Direction.Cross(edge2)
	a := edge1.Dot(h)
	if a > -epsilon && a < epsilon {
		return 0, 0, 0, false
	}

	f := 1.0 / a
	s := ray.Origin.Subtract(v0)
	u = f * s.Dot(h)
	if u < 0 || u > 1 {
		return 0, 0, 0, false
	}

	q := s.Cross(edge1)
	v = f * ray.Direction.Dot(q)
	if v < 0 || u+v > 1 {
		return 0, 0, 0, false
	}

	t = f * edge2.Dot(q)
	if t <= tNear || t >= tFar {
		return 0, 0, 0, false
	}
	return t, u, v, true
}
