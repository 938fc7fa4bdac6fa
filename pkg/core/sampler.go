package core

import "math/rand"

// Sampler is a deterministic pseudo-random stream. Streams are reproducible
// given a seed: workers derive tile samplers from (globalSeed, tile origin)
// and photon samplers from (globalSeed, photon index), so renders are
// bit-identical regardless of worker count.
type Sampler struct {
	random *rand.Rand
}

// NewSampler creates a sampler seeded with the given value
func NewSampler(seed uint64) *Sampler {
	return &Sampler{random: rand.New(rand.NewSource(int64(seed)))}
}

// Get1D returns a uniform float64 in [0, 1)
func (s *Sampler) Get1D() float64 {
	return s.random.Float64()
}

// Get2D returns two uniform float64 values in [0, 1)
func (s *Sampler) Get2D() Vec2 {
	return NewVec2(s.random.Float64(), s.random.Float64())
}

// MixSeed hashes seed components into a single stream seed using the
// splitmix64 finalizer, so nearby tile origins yield unrelated streams.
func MixSeed(parts ...uint64) uint64 {
	h := uint64(0x9e3779b97f4a7c15)
	for _, p := range parts {
		h ^= p + 0x9e3779b97f4a7c15 + (h << 6) + (h >> 2)
		h += 0x9e3779b97f4a7c15
		h ^= h >> 30
		h *= 0xbf58476d1ce4e5b9
		h ^= h >> 27
		h *= 0x94d049bb133111eb
		h ^= h >> 31
	}
	return h
}
