package webcrawl

import "context"

// FrontierEntry is a URL waiting to be processed.
type FrontierEntry struct {
	URL      string
	Depth    int
	Referrer string
}

// URLFrontier is the queue of URLs to crawl, with visited-set bookkeeping.
type URLFrontier interface {
	// Push enqueues entry and marks its URL visited in one step.
	// Returns false if the URL was already visited or the entry is deeper
	// than the frontier allows.
	Push(entry FrontierEntry) bool

	// Pop returns the shallowest entry, oldest first.
	// Returns false if the frontier is empty.
	Pop() (FrontierEntry, bool)

	// MarkVisited records url as visited without enqueueing it.
	// Returns false if it was already visited.
	MarkVisited(url string) bool

	// Len returns the number of queued entries.
	Len() int

	// Seen returns true if the URL has been queued or visited.
	Seen(url string) bool

	// Visited returns the number of distinct URLs recorded.
	Visited() int
}

// VisitedSet records URLs that have been discovered.
type VisitedSet interface {
	// Add records url and reports whether it was newly added.
	Add(url string) bool

	// Contains reports whether url may have been recorded.
	Contains(url string) bool

	// Len returns the number of successful Adds.
	Len() int
}

// DomainLimiter provides per-host politeness.
type DomainLimiter interface {
	// Wait blocks until a request to host is allowed.
	// Returns an error if the context is canceled.
	Wait(ctx context.Context, host string) error
}
