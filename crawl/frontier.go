package crawl

import (
	"container/heap"
	"sync"

	"github.com/fwojciec/webcrawl"
)

// Compile-time interface verification.
var (
	_ webcrawl.URLFrontier = (*Frontier)(nil)
	_ webcrawl.VisitedSet  = (*VisitedMap)(nil)
)

// Frontier is a breadth-first URL queue. Entries pop by ascending depth,
// then by discovery order, so pages at depth d are dispatched before any
// page at depth d+1 even when workers finish out of order.
// It is safe for concurrent use by multiple goroutines.
type Frontier struct {
	mu       sync.Mutex
	maxDepth int
	visited  webcrawl.VisitedSet
	queue    *entryHeap
	seq      uint64
}

// NewFrontier creates a Frontier that rejects entries deeper than maxDepth.
// A nil visited set defaults to an exact in-memory set.
func NewFrontier(maxDepth int, visited webcrawl.VisitedSet) *Frontier {
	if visited == nil {
		visited = NewVisitedMap()
	}
	h := &entryHeap{}
	heap.Init(h)
	return &Frontier{
		maxDepth: maxDepth,
		visited:  visited,
		queue:    h,
	}
}

// Push marks entry.URL visited and enqueues it.
// Returns false if the URL was already visited or the entry is too deep.
func (f *Frontier) Push(entry webcrawl.FrontierEntry) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if entry.Depth > f.maxDepth || entry.Depth < 0 {
		return false
	}
	if !f.visited.Add(entry.URL) {
		return false
	}
	f.seq++
	heap.Push(f.queue, queued{FrontierEntry: entry, seq: f.seq})
	return true
}

// Pop returns the next entry in breadth-first order.
// The bool result is false if the frontier is empty.
func (f *Frontier) Pop() (webcrawl.FrontierEntry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.queue.Len() == 0 {
		return webcrawl.FrontierEntry{}, false
	}
	q, _ := heap.Pop(f.queue).(queued)
	return q.FrontierEntry, true
}

// MarkVisited records url without enqueueing it.
func (f *Frontier) MarkVisited(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visited.Add(url)
}

// Len returns the number of URLs in the queue.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queue.Len()
}

// Seen returns true if the URL has been queued or visited.
func (f *Frontier) Seen(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visited.Contains(url)
}

// Visited returns the number of distinct URLs recorded.
func (f *Frontier) Visited() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visited.Len()
}

type queued struct {
	webcrawl.FrontierEntry
	seq uint64
}

// entryHeap implements heap.Interface as a min-heap on (depth, seq).
type entryHeap []queued

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].Depth != h[j].Depth {
		return h[i].Depth < h[j].Depth
	}
	return h[i].seq < h[j].seq
}

func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) {
	q, _ := x.(queued)
	*h = append(*h, q)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// VisitedMap is an exact webcrawl.VisitedSet. It is not safe for
// concurrent use on its own.
type VisitedMap struct {
	m map[string]struct{}
}

// NewVisitedMap returns an empty VisitedMap.
func NewVisitedMap() *VisitedMap {
	return &VisitedMap{m: make(map[string]struct{})}
}

func (s *VisitedMap) Add(url string) bool {
	if _, ok := s.m[url]; ok {
		return false
	}
	s.m[url] = struct{}{}
	return true
}

func (s *VisitedMap) Contains(url string) bool {
	_, ok := s.m[url]
	return ok
}

func (s *VisitedMap) Len() int { return len(s.m) }
