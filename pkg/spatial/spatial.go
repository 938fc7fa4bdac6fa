// Package spatial provides range-search indexes over 3-D point-carrying
// items: a uniform hash grid and a balanced kd-tree. Both are built once
// per frame from a moved-in slice and are read-only afterwards, so they
// can be shared across workers without locks.
package spatial

import "github.com/goofoo/lumen/pkg/core"

// Point3 is the constraint for indexable items
type Point3 interface {
	Position() core.Vec3
}

// bitfieldVector packs 2-bit values, one per item; the kd-tree uses it to
// store the split axis (0/1/2) or the leaf marker (3) per node
type bitfieldVector struct {
	data []uint64
}

const flagsPerWord = 32 // 64 bits / 2 bits per flag

func newBitfieldVector(size int) bitfieldVector {
	return bitfieldVector{data: make([]uint64, (size+flagsPerWord-1)/flagsPerWord)}
}

func (b *bitfieldVector) set(index int, value uint64) {
	word := index / flagsPerWord
	shift := uint(index%flagsPerWord) * 2
	b.data[word] = (b.data[word] &^ (3 << shift)) | (value << shift)
}

func (b *bitfieldVector) get(index int) uint64 {
	word := index / flagsPerWord
	shift := uint(index%flagsPerWord) * 2
	return (b.data[word] >> shift) & 3
}

func axisOf(v core.Vec3, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}
