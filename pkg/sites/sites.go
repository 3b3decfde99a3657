// Package sites generates reproducible orderings of carrier positions.
//
// The same (seed, domainSize, count) always yields the same sequence, on any platform
// and in any process. The algorithm is frozen:
//
//  1. Stream: SplitMix64 seeded with seed.
//  2. Bounded draw uniform(n): reject values below (2^64 - n) mod n, return value mod n.
//  3. Partial Fisher-Yates over the virtual identity array a[i] = i:
//     for i in [0, count): j = i + uniform(domainSize - i); swap a[i], a[j]; emit a[i].
//
// The output for count < domainSize is therefore a prefix of the full permutation.
package sites

import (
	"fmt"

	"github.com/thvl3/stegolab/pkg/stegerr"
)

// sparseRatio selects map-backed storage when count*sparseRatio < domainSize
const sparseRatio = 8

// Stream is the SplitMix64 generator the sequence is drawn from
type Stream struct {
	state uint64
}

// NewStream seeds a stream
func NewStream(seed uint64) *Stream {
	return &Stream{state: seed}
}

// Uint64 returns the next 64-bit value
func (s *Stream) Uint64() uint64 {
	s.state += 0x9E3779B97F4A7C15
	z := s.state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// Uniform returns an unbiased value in [0, n). n must be positive.
func (s *Stream) Uniform(n uint64) uint64 {
	threshold := -n % n
	for {
		v := s.Uint64()
		if v >= threshold {
			return v % n
		}
	}
}

// Generate returns count distinct indices in [0, domainSize)
func Generate(seed uint64, domainSize, count int) ([]int, error) {
	if domainSize <= 0 {
		return nil, fmt.Errorf("domain size %d: %w", domainSize, stegerr.ErrInvalidDomain)
	}
	if count < 0 || count > domainSize {
		return nil, fmt.Errorf("count %d outside [0, %d]: %w", count, domainSize, stegerr.ErrInvalidDomain)
	}

	if count*sparseRatio < domainSize {
		return generateSparse(seed, domainSize, count), nil
	}
	return generateDense(seed, domainSize, count), nil
}

// Permutation returns a full permutation of [0, n)
func Permutation(seed uint64, n int) ([]int, error) {
	return Generate(seed, n, n)
}

// generateDense shuffles a materialised index slice
func generateDense(seed uint64, domainSize, count int) []int {
	stream := NewStream(seed)
	a := make([]int, domainSize)
	for i := range a {
		a[i] = i
	}

	for i := 0; i < count; i++ {
		j := i + int(stream.Uniform(uint64(domainSize-i)))
		a[i], a[j] = a[j], a[i]
	}
	return a[:count:count]
}

// generateSparse performs the same swaps, storing only displaced entries
func generateSparse(seed uint64, domainSize, count int) []int {
	stream := NewStream(seed)
	displaced := make(map[int]int, count*2)
	get := func(i int) int {
		if v, ok := displaced[i]; ok {
			return v
		}
		return i
	}

	out := make([]int, count)
	for i := 0; i < count; i++ {
		j := i + int(stream.Uniform(uint64(domainSize-i)))
		vi, vj := get(i), get(j)
		displaced[j] = vi
		out[i] = vj
	}
	return out
}
