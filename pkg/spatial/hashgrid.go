package spatial

import (
	"math"

	"github.com/goofoo/lumen/pkg/core"
)

// HashGrid3D buckets items into uniform cells sized to the expected query
// radius. Radius queries visit the covered cell range and filter by exact
// distance; items within a cell keep insertion order, so visits are
// deterministic.
type HashGrid3D[T Point3] struct {
	items    []T
	cellSize float64
	cells    map[uint64][]int32
}

// NewHashGrid3D builds a grid from a moved-in slice; radius picks the cell
// size
func NewHashGrid3D[T Point3](items []T, radius float64) *HashGrid3D[T] {
	g := &HashGrid3D[T]{
		items:    items,
		cellSize: math.Max(radius, 1e-12),
		cells:    make(map[uint64][]int32, len(items)),
	}
	for i := range items {
		key := g.cellKey(items[i].Position())
		g.cells[key] = append(g.cells[key], int32(i))
	}
	return g
}

// Size returns the stored item count
func (g *HashGrid3D[T]) Size() int {
	return len(g.items)
}

// Items exposes the stored items (read-only by convention)
func (g *HashGrid3D[T]) Items() []T {
	return g.items
}

const cellCoordMask = (1 << 21) - 1

// cellKey packs the three cell coordinates into one map key; 21 bits per
// axis keeps keys collision-free for any realistic scene extent
func (g *HashGrid3D[T]) cellKey(p core.Vec3) uint64 {
	x := uint64(int64(math.Floor(p.X/g.cellSize))) & cellCoordMask
	y := uint64(int64(math.Floor(p.Y/g.cellSize))) & cellCoordMask
	z := uint64(int64(math.Floor(p.Z/g.cellSize))) & cellCoordMask
	return x<<42 | y<<21 | z
}

// RQuery invokes visit for every stored item within distance r of center
func (g *HashGrid3D[T]) RQuery(visit func(*T), center core.Vec3, r float64) {
	r2 := r * r

	x0 := int64(math.Floor((center.X - r) / g.cellSize))
	x1 := int64(math.Floor((center.X + r) / g.cellSize))
	y0 := int64(math.Floor((center.Y - r) / g.cellSize))
	y1 := int64(math.Floor((center.Y + r) / g.cellSize))
	z0 := int64(math.Floor((center.Z - r) / g.cellSize))
	z1 := int64(math.Floor((center.Z + r) / g.cellSize))

	for x := x0; x <= x1; x++ {
		for y := y0; y <= y1; y++ {
			for z := z0; z <= z1; z++ {
				key := (uint64(x)&cellCoordMask)<<42 | (uint64(y)&cellCoordMask)<<21 | uint64(z)&cellCoordMask
				for _, index := range g.cells[key] {
					item := &g.items[index]
					if (*item).Position().Subtract(center).LengthSquared() <= r2 {
						visit(item)
					}
				}
			}
		}
	}
}
