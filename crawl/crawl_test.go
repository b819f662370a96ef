package crawl_test

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fwojciec/webcrawl"
	"github.com/fwojciec/webcrawl/crawl"
	"github.com/fwojciec/webcrawl/goquery"
	"github.com/fwojciec/webcrawl/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seed = "https://example.com/"

// site maps paths on https://example.com to HTML bodies. Paths not in the
// map answer 404.
type site map[string]string

// linkSite is a small link graph:
//
//	/ -> /a, /b
//	/a -> /c, /
//	/b -> /c, /d
//	/c -> /e
var linkSite = site{
	"/":  `<a href="/a">a</a><a href="/b">b</a>`,
	"/a": `<p>golang here</p><a href="/c">c</a><a href="/">home</a>`,
	"/b": `<a href="/c">c</a><a href="/d">d</a>`,
	"/c": `<a href="/e">e</a>`,
	"/d": `<p>nothing</p>`,
	"/e": `<p>deep</p>`,
}

type fetchLog struct {
	mu   sync.Mutex
	urls []string
}

func (l *fetchLog) add(u string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.urls = append(l.urls, u)
}

func (l *fetchLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.urls...)
}

func (s site) fetcher(log *fetchLog) *mock.Fetcher {
	return &mock.Fetcher{
		FetchFn: func(ctx context.Context, rawURL string) (*webcrawl.Response, error) {
			if log != nil {
				log.add(rawURL)
			}
			u, _ := url.Parse(rawURL)
			body, ok := s[u.Path]
			if !ok {
				return &webcrawl.Response{URL: rawURL, StatusCode: http.StatusNotFound, Header: http.Header{}}, nil
			}
			h := http.Header{}
			h.Set("Content-Type", "text/html; charset=utf-8")
			return &webcrawl.Response{URL: rawURL, StatusCode: http.StatusOK, Header: h, Body: []byte(body)}, nil
		},
	}
}

func newCrawler(f webcrawl.Fetcher) *crawl.Crawler {
	return &crawl.Crawler{Fetcher: f, Parser: goquery.NewParser()}
}

type recorder struct {
	mu     sync.Mutex
	events []crawl.ProgressEvent
}

func (r *recorder) progress(ev crawl.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) pages() []*webcrawl.PageResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	var pages []*webcrawl.PageResult
	for _, ev := range r.events {
		if ev.Type == crawl.ProgressPage {
			pages = append(pages, ev.Page)
		}
	}
	return pages
}

func (r *recorder) urls() []string {
	var urls []string
	for _, p := range r.pages() {
		urls = append(urls, p.URL)
	}
	return urls
}

func (r *recorder) statuses() []webcrawl.JobStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	var statuses []webcrawl.JobStatus
	for _, ev := range r.events {
		if ev.Type == crawl.ProgressStatus {
			statuses = append(statuses, ev.Job.Status)
		}
	}
	return statuses
}

func newJob(spec webcrawl.JobSpec) *webcrawl.Job {
	return &webcrawl.Job{ID: "job-1", Spec: spec, Status: webcrawl.JobPending}
}

func TestCrawler_Run(t *testing.T) {
	t.Parallel()

	t.Run("visits pages breadth first up to max depth", func(t *testing.T) {
		t.Parallel()

		var rec recorder
		job := newJob(webcrawl.JobSpec{SeedURL: seed, MaxDepth: 2, Concurrency: 1})

		err := newCrawler(linkSite.fetcher(nil)).Run(context.Background(), job, rec.progress)

		require.NoError(t, err)
		assert.Equal(t, []string{
			"https://example.com/",
			"https://example.com/a",
			"https://example.com/b",
			"https://example.com/c",
			"https://example.com/d",
		}, rec.urls())

		pages := rec.pages()
		assert.Equal(t, []int{0, 1, 1, 2, 2}, []int{pages[0].Depth, pages[1].Depth, pages[2].Depth, pages[3].Depth, pages[4].Depth})
		assert.Equal(t, "https://example.com/a", pages[3].Referrer)
		assert.Equal(t, webcrawl.JobCompleted, job.Status)
		assert.Equal(t, 5, job.Stats.Pages)
		assert.Equal(t, 2, job.Stats.DepthReached)
		assert.Equal(t, 5, job.Stats.Discovered)
		assert.Equal(t, []webcrawl.JobStatus{webcrawl.JobRunning, webcrawl.JobCompleted}, rec.statuses())
	})

	t.Run("fetches each URL once with parallel workers", func(t *testing.T) {
		t.Parallel()

		var log fetchLog
		var rec recorder
		job := newJob(webcrawl.JobSpec{SeedURL: seed, MaxDepth: 5, Concurrency: 4})

		err := newCrawler(linkSite.fetcher(&log)).Run(context.Background(), job, rec.progress)

		require.NoError(t, err)
		assert.ElementsMatch(t, []string{
			"https://example.com/",
			"https://example.com/a",
			"https://example.com/b",
			"https://example.com/c",
			"https://example.com/d",
			"https://example.com/e",
		}, log.all())
		assert.Len(t, rec.pages(), 6)
		for _, p := range rec.pages() {
			assert.LessOrEqual(t, p.Depth, 5)
		}
	})

	t.Run("crawls only the seed at depth zero", func(t *testing.T) {
		t.Parallel()

		var rec recorder
		job := newJob(webcrawl.JobSpec{SeedURL: seed, MaxDepth: 0})

		require.NoError(t, newCrawler(linkSite.fetcher(nil)).Run(context.Background(), job, rec.progress))

		assert.Equal(t, []string{"https://example.com/"}, rec.urls())
		assert.Equal(t, 2, rec.pages()[0].LinkCount)
	})

	t.Run("stops at max pages", func(t *testing.T) {
		t.Parallel()

		var rec recorder
		job := newJob(webcrawl.JobSpec{SeedURL: seed, MaxDepth: 5, MaxPages: 3, Concurrency: 4})

		require.NoError(t, newCrawler(linkSite.fetcher(nil)).Run(context.Background(), job, rec.progress))

		assert.Len(t, rec.pages(), 3)
		assert.Equal(t, 3, job.Stats.Pages)
		assert.Equal(t, webcrawl.JobCompleted, job.Status)
	})

	t.Run("skips robots-denied URLs without using the page budget", func(t *testing.T) {
		t.Parallel()

		var rec recorder
		var log fetchLog
		c := newCrawler(linkSite.fetcher(&log))
		c.NewRobots = func() webcrawl.RobotsChecker {
			return &mock.RobotsChecker{
				AllowedFn: func(_ context.Context, rawURL, userAgent string) bool {
					return rawURL != "https://example.com/b"
				},
				CrawlDelayFn: func(context.Context, string, string) time.Duration { return 0 },
			}
		}
		job := newJob(webcrawl.JobSpec{SeedURL: seed, MaxDepth: 2, MaxPages: 3, Concurrency: 1})

		require.NoError(t, c.Run(context.Background(), job, rec.progress))

		assert.Equal(t, []string{"https://example.com/", "https://example.com/a", "https://example.com/c"}, rec.urls())
		assert.NotContains(t, log.all(), "https://example.com/b")
		assert.Equal(t, 1, job.Stats.Skipped)

		var skipped []string
		for _, ev := range rec.events {
			if ev.Type == crawl.ProgressSkipped {
				skipped = append(skipped, ev.URL)
			}
		}
		assert.Equal(t, []string{"https://example.com/b"}, skipped)
	})

	t.Run("ignores robots when asked", func(t *testing.T) {
		t.Parallel()

		var rec recorder
		c := newCrawler(linkSite.fetcher(nil))
		c.NewRobots = func() webcrawl.RobotsChecker {
			t.Error("robots checker should not be created")
			return nil
		}
		job := newJob(webcrawl.JobSpec{SeedURL: seed, MaxDepth: 1, IgnoreRobots: true})

		require.NoError(t, c.Run(context.Background(), job, rec.progress))

		assert.Len(t, rec.pages(), 3)
	})

	t.Run("records HTTP errors and fetch failures as failed pages", func(t *testing.T) {
		t.Parallel()

		s := site{"/": `<a href="/missing">m</a><a href="/down">d</a><a href="/ok">ok</a>`, "/ok": `<p>ok</p>`}
		base := s.fetcher(nil)
		f := &mock.Fetcher{
			FetchFn: func(ctx context.Context, rawURL string) (*webcrawl.Response, error) {
				if strings.HasSuffix(rawURL, "/down") {
					return nil, webcrawl.Errorf(webcrawl.EFETCH, "connection refused")
				}
				return base.Fetch(ctx, rawURL)
			},
		}
		var rec recorder
		job := newJob(webcrawl.JobSpec{SeedURL: seed, MaxDepth: 1, Concurrency: 1})

		require.NoError(t, newCrawler(f).Run(context.Background(), job, rec.progress))

		pages := rec.pages()
		require.Len(t, pages, 4)
		assert.Equal(t, http.StatusNotFound, pages[1].StatusCode)
		assert.Equal(t, webcrawl.EFETCH, pages[1].ErrorKind)
		assert.Equal(t, "HTTP 404", pages[1].Error)
		assert.Equal(t, 0, pages[2].StatusCode)
		assert.Equal(t, webcrawl.EFETCH, pages[2].ErrorKind)
		assert.Equal(t, "connection refused", pages[2].Error)
		assert.False(t, pages[3].Failed())
		assert.Equal(t, 2, job.Stats.Failed)
		assert.Equal(t, webcrawl.JobCompleted, job.Status)
	})

	t.Run("records a nil response as a failed fetch", func(t *testing.T) {
		t.Parallel()

		f := &mock.Fetcher{
			FetchFn: func(ctx context.Context, rawURL string) (*webcrawl.Response, error) {
				return nil, nil
			},
		}
		var rec recorder
		job := newJob(webcrawl.JobSpec{SeedURL: seed, MaxDepth: 1, Concurrency: 2})

		require.NoError(t, newCrawler(f).Run(context.Background(), job, rec.progress))

		pages := rec.pages()
		require.Len(t, pages, 1)
		assert.Equal(t, webcrawl.EFETCH, pages[0].ErrorKind)
		assert.Equal(t, "empty response", pages[0].Error)
		assert.Equal(t, webcrawl.JobCompleted, job.Status)
	})

	t.Run("marks redirect targets visited", func(t *testing.T) {
		t.Parallel()

		var log fetchLog
		f := &mock.Fetcher{
			FetchFn: func(ctx context.Context, rawURL string) (*webcrawl.Response, error) {
				log.add(rawURL)
				h := http.Header{}
				h.Set("Content-Type", "text/html")
				switch rawURL {
				case "https://example.com/":
					return &webcrawl.Response{URL: rawURL, StatusCode: 200, Header: h, Body: []byte(`<a href="/old">old</a>`)}, nil
				case "https://example.com/old":
					return &webcrawl.Response{URL: "https://example.com/new/", StatusCode: 200, Header: h, Body: []byte(`<a href="/new">self</a>`), Redirects: 1}, nil
				}
				return &webcrawl.Response{URL: rawURL, StatusCode: 200, Header: h}, nil
			},
		}
		var rec recorder
		job := newJob(webcrawl.JobSpec{SeedURL: seed, MaxDepth: 3, Concurrency: 1})

		require.NoError(t, newCrawler(f).Run(context.Background(), job, rec.progress))

		assert.Equal(t, []string{"https://example.com/", "https://example.com/old"}, log.all())
		assert.Equal(t, "https://example.com/new", rec.pages()[1].FinalURL)
	})

	t.Run("stays within allowed hosts", func(t *testing.T) {
		t.Parallel()

		var log fetchLog
		inner := site{
			"/":  `<a href="https://other.com/x">x</a><a href="https://docs.example.com/y">y</a>`,
			"/x": `<p>x</p>`,
			"/y": `<p>y</p>`,
		}.fetcher(&log)

		job := newJob(webcrawl.JobSpec{
			SeedURL:      seed,
			MaxDepth:     1,
			Concurrency:  1,
			AllowedHosts: []string{"example.com", "docs.example.com"},
		})

		require.NoError(t, newCrawler(inner).Run(context.Background(), job, nil))

		assert.Equal(t, []string{"https://example.com/", "https://docs.example.com/y"}, log.all())
	})

	t.Run("does not follow links to binary resources", func(t *testing.T) {
		t.Parallel()

		var log fetchLog
		f := site{"/": `<a href="/doc.pdf">pdf</a><a href="/img.PNG">png</a><a href="/page">page</a>`, "/page": ``}.fetcher(&log)
		job := newJob(webcrawl.JobSpec{SeedURL: seed, MaxDepth: 1, Concurrency: 1})

		require.NoError(t, newCrawler(f).Run(context.Background(), job, nil))

		assert.Equal(t, []string{"https://example.com/", "https://example.com/page"}, log.all())
	})

	t.Run("records non-HTML responses without parsing", func(t *testing.T) {
		t.Parallel()

		f := &mock.Fetcher{
			FetchFn: func(ctx context.Context, rawURL string) (*webcrawl.Response, error) {
				h := http.Header{}
				h.Set("Content-Type", "application/json")
				return &webcrawl.Response{URL: rawURL, StatusCode: 200, Header: h, Body: []byte(`{"a":"<a href='/x'>"}`)}, nil
			},
		}
		parser := &mock.Parser{
			ParseFn: func([]byte, string, []string) (*webcrawl.ParseResult, error) {
				t.Error("parser should not be called")
				return nil, errors.New("unexpected")
			},
		}
		c := &crawl.Crawler{Fetcher: f, Parser: parser}
		var rec recorder
		job := newJob(webcrawl.JobSpec{SeedURL: seed, MaxDepth: 2})

		require.NoError(t, c.Run(context.Background(), job, rec.progress))

		pages := rec.pages()
		require.Len(t, pages, 1)
		assert.Equal(t, "application/json", pages[0].ContentType)
		assert.Equal(t, 21, pages[0].ContentLength)
		assert.NotEmpty(t, pages[0].ContentHash)
		assert.False(t, pages[0].Failed())
	})

	t.Run("counts search terms per page", func(t *testing.T) {
		t.Parallel()

		var rec recorder
		job := newJob(webcrawl.JobSpec{SeedURL: seed, MaxDepth: 1, Concurrency: 1, SearchTerms: []string{"GoLang"}})

		require.NoError(t, newCrawler(linkSite.fetcher(nil)).Run(context.Background(), job, rec.progress))

		pages := rec.pages()
		require.Len(t, pages, 3)
		assert.False(t, pages[0].Matched())
		assert.Equal(t, map[string]int{"golang": 1}, pages[1].Matches)
		assert.True(t, pages[1].Matched())
	})

	t.Run("seeds the frontier from the sitemap", func(t *testing.T) {
		t.Parallel()

		var rec recorder
		c := newCrawler(linkSite.fetcher(nil))
		c.Sitemaps = &mock.SitemapService{
			DiscoverURLsFn: func(_ context.Context, baseURL string) ([]string, error) {
				assert.Equal(t, seed, baseURL)
				return []string{"https://example.com/e", "https://example.com/a", "https://other.com/z"}, nil
			},
		}
		job := newJob(webcrawl.JobSpec{SeedURL: seed, MaxDepth: 1, Concurrency: 1, UseSitemap: true})

		require.NoError(t, c.Run(context.Background(), job, rec.progress))

		assert.Equal(t, []string{
			"https://example.com/",
			"https://example.com/a",
			"https://example.com/b",
			"https://example.com/e",
		}, rec.urls())
		assert.Equal(t, seed, rec.pages()[3].Referrer)
	})

	t.Run("enqueues sitemap URLs only after the seed is fetched", func(t *testing.T) {
		t.Parallel()

		// completed records URLs as their fetch returns; the seed is slow,
		// so any URL dispatched alongside it would complete first.
		var completed fetchLog
		base := linkSite.fetcher(nil)
		f := &mock.Fetcher{
			FetchFn: func(ctx context.Context, rawURL string) (*webcrawl.Response, error) {
				if rawURL == seed {
					time.Sleep(30 * time.Millisecond)
				}
				resp, err := base.Fetch(ctx, rawURL)
				completed.add(rawURL)
				return resp, err
			},
		}
		c := newCrawler(f)
		c.Sitemaps = &mock.SitemapService{
			DiscoverURLsFn: func(context.Context, string) ([]string, error) {
				return []string{"https://example.com/d", "https://example.com/e"}, nil
			},
		}
		job := newJob(webcrawl.JobSpec{SeedURL: seed, MaxDepth: 1, Concurrency: 4, UseSitemap: true})

		require.NoError(t, c.Run(context.Background(), job, nil))

		urls := completed.all()
		require.Len(t, urls, 5)
		assert.Equal(t, seed, urls[0])
		assert.ElementsMatch(t, []string{
			"https://example.com/a",
			"https://example.com/b",
			"https://example.com/d",
			"https://example.com/e",
		}, urls[1:])
	})

	t.Run("continues without sitemap on discovery error", func(t *testing.T) {
		t.Parallel()

		var rec recorder
		c := newCrawler(linkSite.fetcher(nil))
		c.Sitemaps = &mock.SitemapService{
			DiscoverURLsFn: func(context.Context, string) ([]string, error) {
				return nil, errors.New("boom")
			},
		}
		job := newJob(webcrawl.JobSpec{SeedURL: seed, MaxDepth: 0, UseSitemap: true})

		require.NoError(t, c.Run(context.Background(), job, rec.progress))

		assert.Equal(t, []string{seed}, rec.urls())
	})

	t.Run("fails the job for an invalid seed", func(t *testing.T) {
		t.Parallel()

		var rec recorder
		job := newJob(webcrawl.JobSpec{SeedURL: "ftp://example.com"})

		err := newCrawler(linkSite.fetcher(nil)).Run(context.Background(), job, rec.progress)

		assert.Equal(t, webcrawl.EINVALID, webcrawl.ErrorCode(err))
		assert.Equal(t, webcrawl.JobFailed, job.Status)
		assert.NotEmpty(t, job.Message)
		assert.Equal(t, []webcrawl.JobStatus{webcrawl.JobFailed}, rec.statuses())
	})

	t.Run("cancels cooperatively", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		base := linkSite.fetcher(nil)
		f := &mock.Fetcher{
			FetchFn: func(ctx context.Context, rawURL string) (*webcrawl.Response, error) {
				if rawURL == seed {
					return base.Fetch(ctx, rawURL)
				}
				<-ctx.Done()
				return nil, webcrawl.Errorf(webcrawl.ECANCELED, "%v", ctx.Err())
			},
		}
		var rec recorder
		job := newJob(webcrawl.JobSpec{SeedURL: seed, MaxDepth: 3, Concurrency: 2})

		err := newCrawler(f).Run(ctx, job, func(ev crawl.ProgressEvent) {
			rec.progress(ev)
			if ev.Type == crawl.ProgressPage {
				cancel()
			}
		})

		require.NoError(t, err)
		assert.Equal(t, webcrawl.JobCancelled, job.Status)
		assert.Equal(t, []string{seed}, rec.urls())
		assert.Equal(t, []webcrawl.JobStatus{webcrawl.JobRunning, webcrawl.JobCancelled}, rec.statuses())
	})

	t.Run("waits between requests to one host", func(t *testing.T) {
		t.Parallel()

		job := newJob(webcrawl.JobSpec{SeedURL: seed, MaxDepth: 1, Delay: 50 * time.Millisecond, Concurrency: 3})

		start := time.Now()
		require.NoError(t, newCrawler(linkSite.fetcher(nil)).Run(context.Background(), job, nil))

		assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
		assert.Equal(t, 3, job.Stats.Pages)
	})

	t.Run("uses the visited set factory", func(t *testing.T) {
		t.Parallel()

		created := 0
		c := newCrawler(linkSite.fetcher(nil))
		c.NewVisitedSet = func() webcrawl.VisitedSet {
			created++
			return crawl.NewVisitedMap()
		}
		job := newJob(webcrawl.JobSpec{SeedURL: seed, MaxDepth: 1})

		require.NoError(t, c.Run(context.Background(), job, nil))

		assert.Equal(t, 1, created)
		assert.Equal(t, 3, job.Stats.Pages)
	})

	t.Run("snapshots do not change after emission", func(t *testing.T) {
		t.Parallel()

		var rec recorder
		job := newJob(webcrawl.JobSpec{SeedURL: seed, MaxDepth: 1, Concurrency: 1})

		require.NoError(t, newCrawler(linkSite.fetcher(nil)).Run(context.Background(), job, rec.progress))

		var counts []int
		for _, ev := range rec.events {
			if ev.Type == crawl.ProgressPage {
				counts = append(counts, ev.Job.Stats.Pages)
			}
		}
		assert.Equal(t, []int{1, 2, 3}, counts)
	})
}
