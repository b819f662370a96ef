package main

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/fwojciec/webcrawl"
	"github.com/fwojciec/webcrawl/crawl"
	"github.com/fwojciec/webcrawl/sqlite"
)

// JobFinder looks up a single job. Both the SQLite job service and the
// Redis sink implement it.
type JobFinder interface {
	FindJobByID(ctx context.Context, id string) (*webcrawl.Job, error)
}

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx     context.Context
	Stdout  io.Writer
	Stderr  io.Writer
	Logger  *slog.Logger
	DB      *sqlite.DB
	Jobs    webcrawl.JobService
	Pages   webcrawl.PageService
	Status  JobFinder
	Manager *crawl.Manager
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	Verbose   bool   `short:"v" help:"Log every request"`
	RedisAddr string `name:"redis-addr" env:"WEBCRAWL_REDIS_ADDR" help:"Publish live job status to Redis at this address"`

	Crawl  CrawlCmd  `cmd:"" help:"Crawl a site starting from a seed URL"`
	Jobs   JobsCmd   `cmd:"" help:"List crawl jobs"`
	Status StatusCmd `cmd:"" help:"Show the status of a crawl job"`
	Pages  PagesCmd  `cmd:"" help:"List page results of a crawl job"`
	Export ExportCmd `cmd:"" help:"Export page results of a crawl job as CSV"`
}

// CrawlCmd is the "crawl" subcommand.
type CrawlCmd struct {
	URL         string        `arg:"" help:"Seed URL (https:// is assumed when no scheme is given)"`
	Depth       int           `short:"d" default:"2" help:"Maximum link depth from the seed"`
	MaxPages    int           `short:"n" name:"max-pages" default:"0" help:"Stop after this many pages (0 = unlimited)"`
	Search      []string      `short:"s" help:"Search term, case-insensitive (repeatable)"`
	Domains     []string      `help:"Allowed hosts (default: the seed's host)"`
	Delay       time.Duration `default:"1s" help:"Minimum delay between requests to one host"`
	NoRobots    bool          `name:"no-robots" help:"Ignore robots.txt"`
	Sitemap     bool          `help:"Seed the crawl from the site's sitemap"`
	Concurrency int           `short:"c" default:"4" help:"Concurrent fetch limit"`
	Timeout     time.Duration `default:"10s" help:"Per-request timeout"`
	UserAgent   string        `name:"user-agent" default:"${user_agent}" help:"User-Agent header"`
	ApproxDedup bool          `name:"approx-dedup" help:"Deduplicate with a Bloom filter for very large crawls"`
	Output      string        `short:"o" type:"path" help:"Write results as CSV to this file"`
	OutDir      string        `name:"out-dir" type:"path" help:"Write job.json, pages.jsonl and pages.csv to DIR/<job-id> when the job ends"`
	MetricsAddr string        `name:"metrics-addr" help:"Serve Prometheus metrics on this address while crawling"`
	Quiet       bool          `short:"q" help:"Do not print per-page progress"`
}

// JobsCmd is the "jobs" subcommand.
type JobsCmd struct {
	Status string `help:"Only show jobs with this status"`
	Limit  int    `default:"20" help:"Maximum number of jobs to show"`
}

// StatusCmd is the "status" subcommand.
type StatusCmd struct {
	ID string `arg:"" help:"Job ID"`
}

// PagesCmd is the "pages" subcommand.
type PagesCmd struct {
	ID      string `arg:"" help:"Job ID"`
	Matched bool   `help:"Only show pages containing a search term"`
}

// ExportCmd is the "export" subcommand.
type ExportCmd struct {
	ID      string `arg:"" help:"Job ID"`
	Output  string `short:"o" type:"path" help:"Output file (default: stdout)"`
	Matched bool   `help:"Only export pages containing a search term"`
}
