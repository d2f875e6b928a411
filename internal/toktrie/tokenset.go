package toktrie

import (
	"fmt"
	"math/bits"
	"strings"
	"sync"
)

// TokenSet is a bit-set over {0..V}, one word per 64 ids. It is the
// representation of a bias mask: bit i set means token i is currently
// allowed. TokenSets can be pooled with a SetPool (see NewSetPool), since
// they are the dominant per-step allocation if not reused (§5); the
// TokenParser itself allocates a fresh one each step.
type TokenSet struct {
	words []uint64
	v     int
}

// NewTokenSet allocates a zeroed TokenSet sized to hold ids in {0..v-1}.
func NewTokenSet(v int) *TokenSet {
	return &TokenSet{words: make([]uint64, wordsFor(v)), v: v}
}

func wordsFor(v int) int {
	return (v + 63) / 64
}

// Len returns the vocabulary size this set was sized for.
func (s *TokenSet) Len() int {
	return s.v
}

// Reset clears every bit without reallocating, for reuse from a pool.
func (s *TokenSet) Reset() {
	for i := range s.words {
		s.words[i] = 0
	}
}

// Insert sets the bit for id t. Out-of-range ids panic: the trie never calls
// this with an id it didn't itself enumerate, so an out-of-range id here
// means a bug in the caller, not a host contract violation.
func (s *TokenSet) Insert(t TokenId) {
	i := int(t)
	s.words[i/64] |= 1 << uint(i%64)
}

// Remove clears the bit for id t.
func (s *TokenSet) Remove(t TokenId) {
	i := int(t)
	s.words[i/64] &^= 1 << uint(i%64)
}

// Test returns whether id t is set.
func (s *TokenSet) Test(t TokenId) bool {
	i := int(t)
	return s.words[i/64]&(1<<uint(i%64)) != 0
}

// Popcount returns the number of set bits.
func (s *TokenSet) Popcount() int {
	n := 0
	for _, w := range s.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// Union ORs o's bits into s in place.
func (s *TokenSet) Union(o *TokenSet) {
	for i := range s.words {
		s.words[i] |= o.words[i]
	}
}

// Intersect ANDs o's bits into s in place.
func (s *TokenSet) Intersect(o *TokenSet) {
	for i := range s.words {
		s.words[i] &= o.words[i]
	}
}

// Bits iterates over every set bit in ascending order, calling fn with each
// TokenId. Iteration stops early if fn returns false.
func (s *TokenSet) Bits(fn func(TokenId) bool) {
	for wi, w := range s.words {
		for w != 0 {
			b := bits.TrailingZeros64(w)
			id := TokenId(wi*64 + b)
			if !fn(id) {
				return
			}
			w &^= 1 << uint(b)
		}
	}
}

// ToSlice materializes the set bits as a sorted slice of TokenId. Intended
// for tests and debug output, not the hot path.
func (s *TokenSet) ToSlice() []TokenId {
	out := make([]TokenId, 0, s.Popcount())
	s.Bits(func(t TokenId) bool {
		out = append(out, t)
		return true
	})
	return out
}

// String renders the set bits, for debug logging only.
func (s *TokenSet) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	first := true
	s.Bits(func(t TokenId) bool {
		if !first {
			sb.WriteString(", ")
		}
		first = false
		fmt.Fprintf(&sb, "%d", t)
		return true
	})
	sb.WriteByte('}')
	return sb.String()
}

// Bytes returns the dense little-endian bit buffer of length ceil(V/8), the
// wire format used by MidProcessResult.SampleWithBias (§6): bit i set iff
// token i is allowed.
func (s *TokenSet) Bytes() []byte {
	out := make([]byte, (s.v+7)/8)
	s.Bits(func(t TokenId) bool {
		out[t/8] |= 1 << (t % 8)
		return true
	})
	return out
}

// SetPool pools TokenSet allocations sized for a fixed vocabulary size, the
// per-sequence scratch-buffer pattern called for in §5.
type SetPool struct {
	v    int
	pool sync.Pool
}

// NewSetPool creates a pool of TokenSets sized for vocabulary size v.
func NewSetPool(v int) *SetPool {
	p := &SetPool{v: v}
	p.pool.New = func() interface{} {
		return NewTokenSet(v)
	}
	return p
}

// Get returns a zeroed TokenSet from the pool.
func (p *SetPool) Get() *TokenSet {
	s := p.pool.Get().(*TokenSet)
	s.Reset()
	return s
}

// Put returns a TokenSet to the pool for reuse.
func (p *SetPool) Put(s *TokenSet) {
	if s.v != p.v {
		return
	}
	p.pool.Put(s)
}
