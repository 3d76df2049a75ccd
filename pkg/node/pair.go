package node

import (
	"cmp"
	"fmt"
	"slices"
)

// Pair is an unordered pair of node ids stored with the smaller id first,
// so (a, b) and (b, a) compare equal.
type Pair struct {
	A, B ID
}

// NewPair normalizes two ids into a Pair.
func NewPair(a, b ID) Pair {
	if b < a {
		a, b = b, a
	}
	return Pair{A: a, B: b}
}

func (p Pair) String() string {
	return fmt.Sprintf("(%d,%d)", p.A, p.B)
}

// PairSet is a set of unordered pairs.
type PairSet map[Pair]struct{}

// Add inserts every pair into the set.
func (s PairSet) Add(pairs ...Pair) {
	for _, p := range pairs {
		s[p] = struct{}{}
	}
}

// Contains reports whether p is in the set.
func (s PairSet) Contains(p Pair) bool {
	_, ok := s[p]
	return ok
}

// Sorted returns the pairs ordered by A then B.
func (s PairSet) Sorted() []Pair {
	out := make([]Pair, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	slices.SortFunc(out, func(x, y Pair) int {
		if c := cmp.Compare(x.A, y.A); c != 0 {
			return c
		}
		return cmp.Compare(x.B, y.B)
	})
	return out
}
