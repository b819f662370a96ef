package webcrawl

import (
	"context"
	"net/url"
	"slices"
	"strings"
	"time"
)

// Job defaults.
const (
	DefaultMaxDepth    = 2
	DefaultConcurrency = 4
	DefaultUserAgent   = "webcrawl/1.0 (+https://github.com/fwojciec/webcrawl)"
)

// JobStatus is the lifecycle state of a crawl job.
type JobStatus string

// Job states. Completed, failed and cancelled are terminal.
const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// CanTransition reports whether the state machine allows s -> to.
func (s JobStatus) CanTransition(to JobStatus) bool {
	switch s {
	case JobPending:
		return to == JobRunning || to == JobFailed || to == JobCancelled
	case JobRunning:
		return to.Terminal()
	default:
		return false
	}
}

// JobSpec is the immutable configuration of a crawl.
type JobSpec struct {
	// SeedURL is where the crawl starts. Validate normalizes it.
	SeedURL string `json:"seedUrl"`

	// MaxDepth bounds link hops from the seed. 0 crawls only the seed page.
	MaxDepth int `json:"maxDepth"`

	// MaxPages caps emitted page results. 0 means unlimited.
	MaxPages int `json:"maxPages"`

	// SearchTerms are searched case-insensitively in visible page text.
	SearchTerms []string `json:"searchTerms,omitempty"`

	// AllowedHosts restricts the crawl scope. Empty means the seed's host.
	AllowedHosts []string `json:"allowedHosts,omitempty"`

	// Delay is the minimum interval between requests to one host.
	// A larger robots.txt Crawl-delay takes precedence.
	Delay time.Duration `json:"delay"`

	IgnoreRobots bool   `json:"ignoreRobots"`
	UseSitemap   bool   `json:"useSitemap"`
	Concurrency  int    `json:"concurrency"`
	UserAgent    string `json:"userAgent"`
}

// Validate checks the job spec and returns a copy with the seed normalized and
// defaults applied. Returns EINVALID for bad seeds or negative bounds.
func (s JobSpec) Validate() (JobSpec, error) {
	if strings.TrimSpace(s.SeedURL) == "" {
		return s, Errorf(EINVALID, "seed URL required")
	}
	seed, err := Normalize(s.SeedURL)
	if err != nil {
		return s, Errorf(EINVALID, "invalid seed URL: %s", ErrorMessage(err))
	}
	if s.MaxDepth < 0 {
		return s, Errorf(EINVALID, "max depth must not be negative")
	}
	if s.MaxPages < 0 {
		return s, Errorf(EINVALID, "max pages must not be negative")
	}
	if s.Delay < 0 {
		return s, Errorf(EINVALID, "delay must not be negative")
	}
	if s.Concurrency < 0 {
		return s, Errorf(EINVALID, "concurrency must not be negative")
	}

	s.SeedURL = seed
	if s.Concurrency == 0 {
		s.Concurrency = DefaultConcurrency
	}
	if s.UserAgent == "" {
		s.UserAgent = DefaultUserAgent
	}

	var terms []string
	for _, term := range s.SearchTerms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term != "" && !slices.Contains(terms, term) {
			terms = append(terms, term)
		}
	}
	s.SearchTerms = terms

	var hosts []string
	for _, h := range s.AllowedHosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" && !slices.Contains(hosts, h) {
			hosts = append(hosts, h)
		}
	}
	if len(hosts) == 0 {
		u, _ := url.Parse(seed)
		hosts = []string{u.Host}
	}
	s.AllowedHosts = hosts

	return s, nil
}

// InScope reports whether rawURL's host is one of the allowed hosts.
// The job spec must have been validated.
func (s JobSpec) InScope(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Host)
	hostname := strings.ToLower(u.Hostname())
	for _, h := range s.AllowedHosts {
		if h == host || h == hostname {
			return true
		}
	}
	return false
}

// JobStats holds the live counters of a job.
type JobStats struct {
	Pages        int `json:"pages"`
	Failed       int `json:"failed"`
	Skipped      int `json:"skipped"`
	Discovered   int `json:"discovered"`
	Frontier     int `json:"frontier"`
	InFlight     int `json:"inFlight"`
	DepthReached int `json:"depthReached"`
}

// Job is a crawl request and its lifecycle state.
type Job struct {
	ID        string    `json:"id"`
	Spec      JobSpec   `json:"spec"`
	Status    JobStatus `json:"status"`
	Message   string    `json:"message"`
	Stats     JobStats  `json:"stats"`
	CreatedAt time.Time `json:"createdAt"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`
}

// Transition moves the job to a new status, stamping start and end times.
// Returns ECONFLICT if the state machine disallows the move.
func (j *Job) Transition(to JobStatus, now time.Time) error {
	if !j.Status.CanTransition(to) {
		return Errorf(ECONFLICT, "cannot transition job from %s to %s", j.Status, to)
	}
	j.Status = to
	if to == JobRunning {
		j.StartedAt = now
	}
	if to.Terminal() {
		j.EndedAt = now
	}
	return nil
}

// Elapsed returns the wall time the job has been running.
func (j *Job) Elapsed(now time.Time) time.Duration {
	if j.StartedAt.IsZero() {
		return 0
	}
	if !j.EndedAt.IsZero() {
		return j.EndedAt.Sub(j.StartedAt)
	}
	return now.Sub(j.StartedAt)
}

// Clone returns a deep copy safe to hand to readers.
func (j *Job) Clone() *Job {
	other := *j
	other.Spec.SearchTerms = slices.Clone(j.Spec.SearchTerms)
	other.Spec.AllowedHosts = slices.Clone(j.Spec.AllowedHosts)
	return &other
}

// JobService represents a service for persisting jobs.
type JobService interface {
	// CreateJob stores a new job. The job ID must be set.
	CreateJob(ctx context.Context, job *Job) error

	// UpdateJob overwrites the status, message, stats and times of a job.
	// Returns ENOTFOUND if the job does not exist.
	UpdateJob(ctx context.Context, job *Job) error

	// FindJobByID retrieves a job by ID.
	// Returns ENOTFOUND if the job does not exist.
	FindJobByID(ctx context.Context, id string) (*Job, error)

	// FindJobs retrieves jobs matching the filter, newest first.
	FindJobs(ctx context.Context, filter JobFilter) ([]*Job, error)
}

// JobFilter represents a filter for FindJobs.
type JobFilter struct {
	ID     *string    `json:"id"`
	Status *JobStatus `json:"status"`

	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}
