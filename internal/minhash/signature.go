// Package minhash builds MinHash signatures over character shingles and
// indexes them for banded locality-sensitive lookup.
package minhash

import (
	"fmt"
	"math"
	"math/bits"
	"math/rand/v2"

	"github.com/cespare/xxhash/v2"
)

// Parameters used when building the catalog shards.
const (
	DefaultWidth   = 100
	DefaultShingle = 3
)

const (
	mersennePrime = (1 << 61) - 1
	maxHash       = math.MaxUint32
	// Fixed so that independently built signatures stay comparable.
	permSeed1 = 1
	permSeed2 = 0x5eed
)

// Signature is a fixed-width MinHash over a string's shingles.
type Signature []uint64

// Builder produces signatures for one (width, shingle length) pair.
// Safe for concurrent use once built.
type Builder struct {
	width   int
	shingle int
	a       []uint64
	b       []uint64
}

// NewBuilder precomputes width universal-hash permutations.
func NewBuilder(width, shingle int) (*Builder, error) {
	if width <= 0 {
		return nil, fmt.Errorf("signature width must be positive, got %d", width)
	}
	if shingle <= 0 {
		return nil, fmt.Errorf("shingle length must be positive, got %d", shingle)
	}

	rng := rand.New(rand.NewPCG(permSeed1, permSeed2))
	a := make([]uint64, width)
	b := make([]uint64, width)
	for i := range width {
		a[i] = 1 + rng.Uint64N(mersennePrime-1)
		b[i] = rng.Uint64N(mersennePrime)
	}
	return &Builder{width: width, shingle: shingle, a: a, b: b}, nil
}

// Width returns the signature width.
func (bd *Builder) Width() int { return bd.width }

// Shingle returns the shingle length in runes.
func (bd *Builder) Shingle() int { return bd.shingle }

// Signature shingles s into overlapping rune n-grams and min-folds each into the signature.
// A string shorter than the shingle length yields the empty-set signature.
func (bd *Builder) Signature(s string) Signature {
	sig := make(Signature, bd.width)
	for i := range sig {
		sig[i] = maxHash
	}

	runes := []rune(s)
	for i := 0; i+bd.shingle <= len(runes); i++ {
		hv := uint64(uint32(xxhash.Sum64String(string(runes[i : i+bd.shingle]))))
		for j := range sig {
			if ph := permute(bd.a[j], bd.b[j], hv); ph < sig[j] {
				sig[j] = ph
			}
		}
	}
	return sig
}

// permute computes ((a*hv + b) mod p) truncated to 32 bits.
func permute(a, b, hv uint64) uint64 {
	hi, lo := bits.Mul64(a, hv)
	r := bits.Rem64(hi, lo, mersennePrime)
	r = (r + b) % mersennePrime
	return r & maxHash
}

// Jaccard estimates set similarity as the fraction of equal slots.
// Signatures of different widths are incomparable and score 0.
func Jaccard(x, y Signature) float64 {
	if len(x) == 0 || len(x) != len(y) {
		return 0
	}
	same := 0
	for i := range x {
		if x[i] == y[i] {
			same++
		}
	}
	return float64(same) / float64(len(x))
}
