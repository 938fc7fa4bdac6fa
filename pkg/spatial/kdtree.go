package spatial

import (
	"sort"

	"github.com/goofoo/lumen/pkg/core"
)

const leafAxis = 3

// KDTree3D is a balanced, implicitly-laid-out kd-tree: the median of every
// range is the node, its halves are the children. Construction splits on
// the axis of maximum bounding-box extent, partitioning three pre-sorted
// index arrays in place through a scratch buffer; the chosen axis per node
// lives in a 2-bit flag vector. Ties break by insertion index, so builds
// are deterministic.
type KDTree3D[T Point3] struct {
	data  []T
	flags bitfieldVector
}

// NewKDTree3D builds a tree from a moved-in slice
func NewKDTree3D[T Point3](items []T) *KDTree3D[T] {
	t := &KDTree3D[T]{
		data:  items,
		flags: newBitfieldVector(len(items)),
	}
	if len(items) == 0 {
		return t
	}

	lower := items[0].Position()
	upper := lower
	for i := range items {
		p := items[i].Position()
		lower = core.NewVec3(min(lower.X, p.X), min(lower.Y, p.Y), min(lower.Z, p.Z))
		upper = core.NewVec3(max(upper.X, p.X), max(upper.Y, p.Y), max(upper.Z, p.Z))
	}

	n := len(items)
	subranges := [3][]int{make([]int, n), make([]int, n), make([]int, n)}
	unique := make([]int, n)
	scratch := make([]int, n)
	for i := 0; i < n; i++ {
		subranges[0][i] = i
		subranges[1][i] = i
		subranges[2][i] = i
		unique[i] = i
	}
	for axis := 0; axis < 3; axis++ {
		sortByAxis(subranges[axis], unique, items, axis)
	}

	t.build(0, n, lower, upper, &subranges, unique, scratch)

	// apply the permutation in subranges[0] to the data with cycle swaps
	order := subranges[0]
	for i := 0; i < n; i++ {
		j := i
		k := order[j]
		for k != order[k] {
			t.data[j], t.data[order[j]] = t.data[order[j]], t.data[j]
			order[j] = j
			j = k
			k = order[k]
		}
	}

	return t
}

// Size returns the stored item count
func (t *KDTree3D[T]) Size() int {
	return len(t.data)
}

// Items exposes the stored items in tree order (read-only by convention)
func (t *KDTree3D[T]) Items() []T {
	return t.data
}

func sortByAxis[T Point3](indices []int, unique []int, data []T, axis int) {
	sort.Slice(indices, func(a, b int) bool {
		va := axisOf(data[indices[a]].Position(), axis)
		vb := axisOf(data[indices[b]].Position(), axis)
		if va == vb {
			return unique[indices[a]] < unique[indices[b]]
		}
		return va < vb
	})
}

func maxAxis(lower, upper core.Vec3) int {
	diff := upper.Subtract(lower)
	if diff.X < diff.Y {
		if diff.Y < diff.Z {
			return 2
		}
		return 1
	}
	if diff.X < diff.Z {
		return 2
	}
	return 0
}

func (t *KDTree3D[T]) build(begin, end int, lower, upper core.Vec3, subranges *[3][]int, unique, scratch []int) {
	size := end - begin
	if size > 1 {
		axis := maxAxis(lower, upper)
		median := begin + size/2

		t.rearrange(axis, begin, end, median, subranges, unique, scratch)
		t.flags.set(median, uint64(axis))

		split := axisOf(t.data[subranges[axis][median]].Position(), axis)
		leftUpper, rightLower := upper, lower
		switch axis {
		case 0:
			leftUpper.X, rightLower.X = split, split
		case 1:
			leftUpper.Y, rightLower.Y = split, split
		default:
			leftUpper.Z, rightLower.Z = split, split
		}

		t.build(begin, median, lower, leftUpper, subranges, unique, scratch)
		t.build(median+1, end, rightLower, upper, subranges, unique, scratch)
	} else if size == 1 {
		t.flags.set(begin, leafAxis)
	}
}

// rearrange moves the median of the split axis into place in the other two
// subranges, then stably partitions all three around it through the
// scratch buffer
func (t *KDTree3D[T]) rearrange(axis, begin, end, median int, subranges *[3][]int, unique, scratch []int) {
	medianIndex := subranges[axis][median]

	for j := 0; j < 3; j++ {
		if axis == j {
			continue
		}
		subrange := subranges[j]
		itr := begin
		for subrange[itr] != medianIndex {
			itr++
		}
		for itr < median {
			subrange[itr], subrange[itr+1] = subrange[itr+1], subrange[itr]
			itr++
		}
		for median < itr {
			subrange[itr-1], subrange[itr] = subrange[itr], subrange[itr-1]
			itr--
		}
	}

	less := func(a, b int) bool {
		va := axisOf(t.data[a].Position(), axis)
		vb := axisOf(t.data[b].Position(), axis)
		if va == vb {
			return unique[a] < unique[b]
		}
		return va < vb
	}

	for j := 0; j < 3; j++ {
		subrange := subranges[j]
		copy(scratch[begin:end], subrange[begin:end])

		lstDst := begin
		geqDst := median + 1

		for src := begin; src < end; src++ {
			if src == median {
				continue
			}
			if less(scratch[src], medianIndex) {
				subrange[lstDst] = scratch[src]
				lstDst++
			} else {
				subrange[geqDst] = scratch[src]
				geqDst++
			}
		}
		subrange[median] = medianIndex
	}
}

// RQuery invokes visit for every stored item within distance r of center
func (t *KDTree3D[T]) RQuery(visit func(*T), center core.Vec3, r float64) {
	t.rQuery(visit, center, r*r, 0, len(t.data))
}

func (t *KDTree3D[T]) rQuery(visit func(*T), center core.Vec3, r2 float64, begin, end int) {
	if begin == end {
		return
	}

	median := begin + (end-begin)/2
	item := &t.data[median]
	if (*item).Position().Subtract(center).LengthSquared() <= r2 {
		visit(item)
	}

	axis := int(t.flags.get(median))
	if axis == leafAxis {
		return
	}

	splitDist := axisOf(center, axis) - axisOf((*item).Position(), axis)
	if splitDist < 0 {
		t.rQuery(visit, center, r2, begin, median)
		if splitDist*splitDist <= r2 {
			t.rQuery(visit, center, r2, median+1, end)
		}
	} else {
		t.rQuery(visit, center, r2, median+1, end)
		if splitDist*splitDist <= r2 {
			t.rQuery(visit, center, r2, begin, median)
		}
	}
}

// queryKState is the running max-heap over the destination buffer
type queryKState[T Point3] struct {
	heap     []T
	size     int
	capacity int
	limit    float64
	query    core.Vec3
}

func (s *queryKState[T]) dist2(item T) float64 {
	return item.Position().Subtract(s.query).LengthSquared()
}

func (s *queryKState[T]) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if s.dist2(s.heap[parent]) >= s.dist2(s.heap[i]) {
			break
		}
		s.heap[parent], s.heap[i] = s.heap[i], s.heap[parent]
		i = parent
	}
}

func (s *queryKState[T]) siftDown() {
	i := 0
	for {
		largest := i
		left, right := 2*i+1, 2*i+2
		if left < s.size && s.dist2(s.heap[left]) > s.dist2(s.heap[largest]) {
			largest = left
		}
		if right < s.size && s.dist2(s.heap[right]) > s.dist2(s.heap[largest]) {
			largest = right
		}
		if largest == i {
			return
		}
		s.heap[i], s.heap[largest] = s.heap[largest], s.heap[i]
		i = largest
	}
}

// QueryK fills dst with up to k nearest items within rMax of center and
// returns the count. The farthest retained item bounds the search.
func (t *KDTree3D[T]) QueryK(dst []T, center core.Vec3, k int, rMax float64) int {
	state := queryKState[T]{
		heap:     dst,
		capacity: k,
		limit:    rMax * rMax,
		query:    center,
	}
	t.queryK(&state, 0, len(t.data))
	return state.size
}

func (t *KDTree3D[T]) queryK(state *queryKState[T], begin, end int) {
	if begin == end {
		return
	}

	median := begin + (end-begin)/2
	queryDist := state.dist2(t.data[median])

	if queryDist < state.limit {
		if state.size < state.capacity {
			state.heap[state.size] = t.data[median]
			state.size++
			state.siftUp(state.size - 1)
			if state.size == state.capacity {
				state.limit = min(state.limit, state.dist2(state.heap[0]))
			}
		} else {
			state.heap[0] = t.data[median]
			state.siftDown()
			state.limit = min(state.limit, state.dist2(state.heap[0]))
		}
	}

	axis := int(t.flags.get(median))
	if axis == leafAxis {
		return
	}

	splitDist := axisOf(state.query, axis) - axisOf(t.data[median].Position(), axis)
	if splitDist < 0 {
		t.queryK(state, begin, median)
		if splitDist*splitDist < state.limit {
			t.queryK(state, median+1, end)
		}
	} else {
		t.queryK(state, median+1, end)
		if splitDist*splitDist < state.limit {
			t.queryK(state, begin, median)
		}
	}
}
