package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fwojciec/webcrawl"
	"github.com/fwojciec/webcrawl/crawl"
)

// Run executes the crawl command.
func (c *CrawlCmd) Run(deps *Dependencies) error {
	spec := webcrawl.JobSpec{
		SeedURL:      withScheme(c.URL),
		MaxDepth:     c.Depth,
		MaxPages:     c.MaxPages,
		SearchTerms:  c.Search,
		AllowedHosts: c.Domains,
		Delay:        c.Delay,
		IgnoreRobots: c.NoRobots,
		UseSitemap:   c.Sitemap,
		Concurrency:  c.Concurrency,
		UserAgent:    c.UserAgent,
	}

	job, err := deps.Manager.Submit(spec, c.progress(deps))
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", webcrawl.ErrorMessage(err))
		return err
	}
	fmt.Fprintf(deps.Stderr, "Crawling %s (job %s)\n", job.Spec.SeedURL, job.ID)

	final, err := deps.Manager.Wait(deps.Ctx, job.ID)
	if err != nil {
		// Interrupted: stop the job and wait for it to settle.
		_ = deps.Manager.Cancel(job.ID)
		if final, err = deps.Manager.Wait(context.Background(), job.ID); err != nil {
			return err
		}
	}

	results, err := deps.Manager.Results(job.ID)
	if err != nil {
		return err
	}
	rows := webcrawl.Rows(results)

	if err := writeTable(deps.Stdout, rows); err != nil {
		return err
	}
	fmt.Fprintf(deps.Stdout, "\n%s\n", final.Message)
	fmt.Fprintf(deps.Stdout, "Matched %d of %d pages in %s\n",
		countMatched(rows), len(rows), final.Elapsed(final.EndedAt).Round(time.Millisecond))

	if c.Output != "" {
		if err := writeCSVFile(c.Output, rows); err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", err)
			return err
		}
		fmt.Fprintf(deps.Stderr, "Wrote %d rows to %s\n", len(rows), c.Output)
	}

	if final.Status == webcrawl.JobFailed {
		return fmt.Errorf("crawl failed: %s", final.Message)
	}
	return nil
}

// progress prints one line per page result to stderr.
func (c *CrawlCmd) progress(deps *Dependencies) crawl.ProgressFunc {
	if c.Quiet {
		return nil
	}
	return func(ev crawl.ProgressEvent) {
		switch ev.Type {
		case crawl.ProgressPage:
			p := ev.Page
			status := p.Row().Status
			line := fmt.Sprintf("[%d] %s %s depth=%d", ev.Job.Stats.Pages, status, crawl.ShortURL(p.URL, 80), p.Depth)
			if p.ContentLength > 0 {
				line += " size=" + crawl.FormatSize(p.ContentLength)
			}
			if p.Matched() {
				line += fmt.Sprintf(" matches=%d", p.MatchCount)
			}
			if p.Failed() {
				line += " error=" + p.Error
			}
			fmt.Fprintln(deps.Stderr, line)
		case crawl.ProgressSkipped:
			fmt.Fprintf(deps.Stderr, "skip %s (robots.txt)\n", crawl.ShortURL(ev.URL, 80))
		}
	}
}

// withScheme prefixes https:// to a seed given without a scheme.
func withScheme(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.Contains(raw, "://") {
		return raw
	}
	return "https://" + raw
}

func countMatched(rows []webcrawl.Row) int {
	var n int
	for _, r := range rows {
		if r.Matched {
			n++
		}
	}
	return n
}

func writeCSVFile(path string, rows []webcrawl.Row) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := writeCSV(f, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
