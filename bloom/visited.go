// Package bloom provides an approximate webcrawl.VisitedSet backed by a
// Bloom filter, for crawls too large to hold every URL in memory.
package bloom

import (
	"github.com/bits-and-blooms/bloom/v3"
	"github.com/fwojciec/webcrawl"
)

// Ensure VisitedSet implements webcrawl.VisitedSet at compile time.
var _ webcrawl.VisitedSet = (*VisitedSet)(nil)

// VisitedSet records URLs in a Bloom filter. A false positive makes Add
// report an unseen URL as already present, so the URL is dropped rather
// than visited twice. It is not safe for concurrent use; the frontier
// serializes access.
type VisitedSet struct {
	f   *bloom.BloomFilter
	len int
}

// NewVisitedSet creates a set sized for n expected URLs with the given
// false positive rate.
func NewVisitedSet(n uint, fpRate float64) *VisitedSet {
	return &VisitedSet{
		f: bloom.NewWithEstimates(n, fpRate),
	}
}

// Add records url and reports whether it was not already present.
func (s *VisitedSet) Add(url string) bool {
	if s.f.TestAndAddString(url) {
		return false
	}
	s.len++
	return true
}

// Contains returns true if url might have been added.
func (s *VisitedSet) Contains(url string) bool {
	return s.f.TestString(url)
}

// Len returns the number of URLs Add accepted.
func (s *VisitedSet) Len() int {
	return s.len
}

// EstimatedCount returns the filter's own cardinality estimate.
func (s *VisitedSet) EstimatedCount() uint {
	return uint(s.f.ApproximatedSize())
}
