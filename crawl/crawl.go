// Package crawl provides breadth-first crawl orchestration.
// It coordinates robots checks, politeness, fetching and parsing of pages
// and runs crawl jobs in the background.
package crawl

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/fwojciec/webcrawl"
	"golang.org/x/sync/errgroup"
)

// Crawler runs a single crawl job to completion.
type Crawler struct {
	Fetcher webcrawl.Fetcher
	Parser  webcrawl.Parser

	// NewRobots returns the robots checker for one job. Nil allows
	// everything. It is not consulted for jobs that ignore robots.txt.
	NewRobots func() webcrawl.RobotsChecker

	// Sitemaps seeds the frontier for jobs with UseSitemap set.
	Sitemaps webcrawl.SitemapService

	// NewVisitedSet returns the visited set for one job. Nil uses an
	// exact in-memory set.
	NewVisitedSet func() webcrawl.VisitedSet

	// Now defaults to time.Now.
	Now func() time.Time
}

// ProgressType indicates the type of progress event.
type ProgressType int

const (
	// ProgressStatus reports a job status change.
	ProgressStatus ProgressType = iota
	// ProgressPage reports an emitted page result.
	ProgressPage
	// ProgressSkipped reports a URL denied by robots.txt.
	ProgressSkipped
)

func (t ProgressType) String() string {
	switch t {
	case ProgressStatus:
		return "status"
	case ProgressPage:
		return "page"
	case ProgressSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// ProgressEvent reports progress during a crawl. Job is a snapshot taken
// when the event was emitted.
type ProgressEvent struct {
	Type ProgressType
	Job  *webcrawl.Job
	Page *webcrawl.PageResult
	URL  string
}

// ProgressFunc is a callback for reporting crawl progress. It is called
// from a single goroutine.
type ProgressFunc func(event ProgressEvent)

// skipExtensions lists path suffixes of links that are never followed.
var skipExtensions = map[string]bool{
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true, ".ppt": true, ".pptx": true,
	".zip": true, ".tar": true, ".gz": true, ".rar": true, ".exe": true, ".dmg": true,
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true, ".svg": true, ".webp": true, ".ico": true,
	".mp3": true, ".mp4": true, ".avi": true, ".mov": true, ".wmv": true,
	".css": true, ".js": true, ".xml": true, ".rss": true, ".json": true,
}

// hasSkippedExtension reports whether rawURL names a non-HTML resource.
func hasSkippedExtension(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return skipExtensions[strings.ToLower(path.Ext(u.Path))]
}

// outcome is what a worker reports back for one frontier entry.
type outcome struct {
	entry   webcrawl.FrontierEntry
	skipped bool
	result  *webcrawl.PageResult
	links   []string
}

// run holds the per-job state. Only the coordinator goroutine touches it.
type run struct {
	*Crawler
	job      *webcrawl.Job
	jobID    string
	spec     webcrawl.JobSpec
	frontier *Frontier
	robots   webcrawl.RobotsChecker
	limiter  *DomainLimiter
	progress ProgressFunc

	// sitemap holds discovered sitemap URLs until the seed is handled.
	sitemap []string
}

// Run executes job, which must be pending, and returns when it reaches a
// terminal state. job is updated in place by the calling goroutine only;
// progress receives a snapshot with every event. An invalid spec leaves
// the job Failed and returns an EINVALID error. Cancelling ctx stops
// dispatching, abandons in-flight pages and leaves the job Cancelled.
func (c *Crawler) Run(ctx context.Context, job *webcrawl.Job, progress ProgressFunc) error {
	r := &run{Crawler: c, job: job, jobID: job.ID, progress: progress}

	spec, err := job.Spec.Validate()
	if err != nil {
		job.Message = webcrawl.ErrorMessage(err)
		if terr := job.Transition(webcrawl.JobFailed, c.now()); terr != nil {
			return terr
		}
		r.emit(ProgressEvent{Type: ProgressStatus})
		return err
	}
	job.Spec = spec
	r.spec = spec

	if err := job.Transition(webcrawl.JobRunning, c.now()); err != nil {
		return err
	}
	r.emit(ProgressEvent{Type: ProgressStatus})

	var visited webcrawl.VisitedSet
	if c.NewVisitedSet != nil {
		visited = c.NewVisitedSet()
	}
	r.frontier = NewFrontier(spec.MaxDepth, visited)
	r.limiter = NewDomainLimiter(spec.Delay)
	r.robots = webcrawl.RobotsChecker(webcrawl.AllowAll{})
	if !spec.IgnoreRobots && c.NewRobots != nil {
		r.robots = c.NewRobots()
	}

	r.frontier.Push(webcrawl.FrontierEntry{URL: spec.SeedURL})
	if spec.UseSitemap && c.Sitemaps != nil {
		r.discoverSitemap(ctx)
	}
	r.updateStats(0)

	r.walk(ctx)

	status := webcrawl.JobCompleted
	if ctx.Err() != nil {
		status = webcrawl.JobCancelled
	}
	job.Message = fmt.Sprintf("%s: %d pages crawled (%d failed, %d skipped), %d URLs discovered",
		status, job.Stats.Pages, job.Stats.Failed, job.Stats.Skipped, job.Stats.Discovered)
	if err := job.Transition(status, c.now()); err != nil {
		return err
	}
	r.emit(ProgressEvent{Type: ProgressStatus})
	return nil
}

// discoverSitemap collects sitemap URLs for the seed. Discovery errors
// leave the crawl seeded by the seed URL alone.
func (r *run) discoverSitemap(ctx context.Context) {
	urls, err := r.Sitemaps.DiscoverURLs(ctx, r.spec.SeedURL)
	if err != nil {
		return
	}
	r.sitemap = urls
}

// releaseSitemap enqueues in-scope sitemap URLs at depth 1 once the seed's
// outcome has been handled, after the seed's own links.
func (r *run) releaseSitemap(entry webcrawl.FrontierEntry) {
	if entry.Depth != 0 || r.sitemap == nil {
		return
	}
	for _, u := range r.sitemap {
		if r.follow(u) {
			r.frontier.Push(webcrawl.FrontierEntry{URL: u, Depth: 1, Referrer: r.spec.SeedURL})
		}
	}
	r.sitemap = nil
}

// follow reports whether a discovered link belongs to the crawl.
func (r *run) follow(u string) bool {
	return r.spec.InScope(u) && !hasSkippedExtension(u)
}

// walk is the coordinator loop. It dispatches entries breadth-first to a
// fixed pool of workers while the page budget allows, and folds their
// outcomes back into the frontier.
func (r *run) walk(ctx context.Context) {
	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	workCh := make(chan webcrawl.FrontierEntry)
	resultCh := make(chan outcome)

	var g errgroup.Group
	for range r.spec.Concurrency {
		g.Go(func() error {
			for entry := range workCh {
				out := r.process(workCtx, entry)
				select {
				case resultCh <- out:
				case <-workCtx.Done():
					return nil
				}
			}
			return nil
		})
	}
	defer func() {
		close(workCh)
		cancel()
		_ = g.Wait()
	}()

	inFlight := 0
	var next *webcrawl.FrontierEntry

	for {
		if next == nil && r.budgetLeft(inFlight) {
			if entry, ok := r.frontier.Pop(); ok {
				next = &entry
			}
		}
		if inFlight == 0 && (next == nil || !r.budgetLeft(0)) {
			return
		}

		// A nil channel disables the dispatch case.
		var dispatch chan webcrawl.FrontierEntry
		var entry webcrawl.FrontierEntry
		if next != nil && r.budgetLeft(inFlight) {
			dispatch = workCh
			entry = *next
		}

		select {
		case <-ctx.Done():
			return
		case dispatch <- entry:
			next = nil
			inFlight++
			r.updateStats(inFlight)
		case out := <-resultCh:
			inFlight--
			if ctx.Err() != nil {
				return
			}
			r.handle(out, inFlight)
		}
	}
}

// budgetLeft reports whether another page may be dispatched.
func (r *run) budgetLeft(inFlight int) bool {
	return r.spec.MaxPages == 0 || r.job.Stats.Pages+inFlight < r.spec.MaxPages
}

// handle records a worker outcome and enqueues the links it found.
func (r *run) handle(out outcome, inFlight int) {
	if out.skipped {
		r.job.Stats.Skipped++
		r.releaseSitemap(out.entry)
		r.updateStats(inFlight)
		r.emit(ProgressEvent{Type: ProgressSkipped, URL: out.entry.URL})
		return
	}

	res := out.result
	if res.FinalURL != "" && res.FinalURL != res.URL {
		r.frontier.MarkVisited(res.FinalURL)
	}
	if out.entry.Depth < r.spec.MaxDepth {
		for _, link := range out.links {
			if r.follow(link) {
				r.frontier.Push(webcrawl.FrontierEntry{URL: link, Depth: out.entry.Depth + 1, Referrer: res.URL})
			}
		}
	}
	r.releaseSitemap(out.entry)

	r.job.Stats.Pages++
	if res.Failed() {
		r.job.Stats.Failed++
	}
	r.job.Stats.DepthReached = max(r.job.Stats.DepthReached, res.Depth)
	r.updateStats(inFlight)
	r.emit(ProgressEvent{Type: ProgressPage, Page: res})
}

func (r *run) updateStats(inFlight int) {
	r.job.Stats.InFlight = inFlight
	r.job.Stats.Frontier = r.frontier.Len()
	r.job.Stats.Discovered = r.frontier.Visited()
}

func (r *run) emit(ev ProgressEvent) {
	if r.progress == nil {
		return
	}
	ev.Job = r.job.Clone()
	r.progress(ev)
}

// process checks robots, waits for politeness, then fetches and parses one
// entry. It runs on worker goroutines and must not touch run state other
// than the concurrency-safe collaborators.
func (r *run) process(ctx context.Context, entry webcrawl.FrontierEntry) outcome {
	out := outcome{entry: entry}
	ua := r.spec.UserAgent

	if !r.robots.Allowed(ctx, entry.URL, ua) {
		out.skipped = true
		return out
	}

	res := &webcrawl.PageResult{
		JobID:    r.jobID,
		URL:      entry.URL,
		Depth:    entry.Depth,
		Referrer: entry.Referrer,
	}
	out.result = res

	if u, err := url.Parse(entry.URL); err == nil {
		r.limiter.SetDelay(u.Host, r.robots.CrawlDelay(ctx, entry.URL, ua))
		if err := r.limiter.Wait(ctx, u.Host); err != nil {
			res.ErrorKind, res.Error = webcrawl.ECANCELED, err.Error()
			return out
		}
	}

	res.FetchedAt = r.now()
	resp, err := r.Fetcher.Fetch(ctx, entry.URL)
	res.Duration = r.now().Sub(res.FetchedAt)
	if err != nil {
		res.ErrorKind, res.Error = webcrawl.ErrorCode(err), webcrawl.ErrorMessage(err)
		return out
	}
	if resp == nil {
		res.ErrorKind, res.Error = webcrawl.EFETCH, "empty response"
		return out
	}

	res.StatusCode = resp.StatusCode
	res.ContentType = resp.Header.Get("Content-Type")
	res.ContentLength = len(resp.Body)
	res.ContentHash = ComputeHash(resp.Body)
	res.FinalURL = entry.URL
	if final, err := webcrawl.Normalize(resp.URL); err == nil {
		res.FinalURL = final
	}

	if !resp.OK() {
		res.ErrorKind, res.Error = webcrawl.EFETCH, fmt.Sprintf("HTTP %d", resp.StatusCode)
		return out
	}
	if !resp.IsHTML() {
		return out
	}

	parsed, err := r.Parser.Parse(resp.Body, res.FinalURL, r.spec.SearchTerms)
	if err != nil {
		res.ErrorKind, res.Error = webcrawl.EPARSE, webcrawl.ErrorMessage(err)
		return out
	}
	out.links = parsed.Links
	res.LinkCount = len(parsed.Links)
	res.Matches = parsed.Matches
	res.MatchCount = parsed.MatchCount()
	res.Title = parsed.Title
	res.Description = parsed.Description
	return out
}

func (c *Crawler) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}
