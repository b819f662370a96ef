package mock

import "github.com/fwojciec/webcrawl"

var _ webcrawl.VisitedSet = (*VisitedSet)(nil)

// VisitedSet is a mock implementation of webcrawl.VisitedSet.
type VisitedSet struct {
	AddFn      func(url string) bool
	ContainsFn func(url string) bool
	LenFn      func() int
}

func (s *VisitedSet) Add(url string) bool {
	return s.AddFn(url)
}

func (s *VisitedSet) Contains(url string) bool {
	return s.ContainsFn(url)
}

func (s *VisitedSet) Len() int {
	return s.LenFn()
}
