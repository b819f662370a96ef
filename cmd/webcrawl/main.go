package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fwojciec/webcrawl"
	"github.com/fwojciec/webcrawl/bloom"
	"github.com/fwojciec/webcrawl/crawl"
	"github.com/fwojciec/webcrawl/fs"
	"github.com/fwojciec/webcrawl/goquery"
	crawlhttp "github.com/fwojciec/webcrawl/http"
	"github.com/fwojciec/webcrawl/prometheus"
	"github.com/fwojciec/webcrawl/redis"
	crawlslog "github.com/fwojciec/webcrawl/slog"
	"github.com/fwojciec/webcrawl/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	m := NewMain()

	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	// Database path. Set before calling Run().
	DBPath string

	// SQLite database used by SQLite service implementations.
	DB *sqlite.DB

	// Fetcher overrides the HTTP fetcher used by crawl. Set for testing.
	Fetcher webcrawl.Fetcher

	// RetryDelays overrides the sink write backoffs. Set for testing.
	RetryDelays []time.Duration
}

// NewMain returns a new instance of Main with defaults.
func NewMain() *Main {
	return &Main{
		DBPath: defaultDBPath(),
	}
}

// Close gracefully stops the program.
func (m *Main) Close() error {
	if m.DB != nil {
		return m.DB.Close()
	}
	return nil
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	deps := &Dependencies{
		Ctx:    ctx,
		Stdout: stdout,
		Stderr: stderr,
	}

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("webcrawl"),
		kong.Description("Breadth-first web crawler with term search."),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}), // Don't exit on help
		kong.Vars{"user_agent": webcrawl.DefaultUserAgent},
		kong.Bind(deps),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'webcrawl --help' to see available commands")
	}

	cmd := args[0]
	if cmd == "help" || cmd == "--help" || cmd == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if cli.Verbose {
		level = slog.LevelDebug
	}
	deps.Logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	m.DB = sqlite.NewDB(m.DBPath)
	if err := m.DB.Open(); err != nil {
		fmt.Fprintf(stderr, "Hint: Set WEBCRAWL_DB to use a different database path\n")
		return fmt.Errorf("failed to open database at %q: %w", m.DBPath, err)
	}
	defer m.Close()

	deps.DB = m.DB
	deps.Jobs = sqlite.NewJobService(m.DB)
	deps.Pages = sqlite.NewPageService(m.DB)
	deps.Status = deps.Jobs

	var sinks crawl.MultiSink
	sinks = append(sinks, crawlslog.NewLoggingSink(sqlite.NewSink(m.DB), deps.Logger))

	if cli.RedisAddr != "" {
		rs, err := redis.Dial(ctx, cli.RedisAddr)
		if err != nil {
			fmt.Fprintln(stderr, "Hint: Unset WEBCRAWL_REDIS_ADDR to run without Redis")
			return err
		}
		defer rs.Close()
		sinks = append(sinks, rs)
		deps.Status = rs
	}

	if cmd == "crawl" {
		if cli.Crawl.OutDir != "" {
			sinks = append(sinks, fs.NewStore(cli.Crawl.OutDir))
		}
		if cli.Crawl.MetricsAddr != "" {
			metrics := prometheus.NewMetrics()
			sinks = append(sinks, metrics)
			shutdown := serveMetrics(cli.Crawl.MetricsAddr, metrics.Handler(), deps.Logger)
			defer shutdown()
		}

		deps.Manager = &crawl.Manager{
			Crawler:     m.newCrawler(&cli.Crawl, deps.Logger),
			Sink:        sinks,
			Logger:      deps.Logger,
			RetryDelays: m.RetryDelays,
		}
		defer deps.Manager.Close()
	}

	return kongCtx.Run(deps)
}

// newCrawler wires the HTTP, parsing and logging adapters for a crawl.
func (m *Main) newCrawler(c *CrawlCmd, logger *slog.Logger) *crawl.Crawler {
	var fetcher webcrawl.Fetcher = m.Fetcher
	if fetcher == nil {
		fetcher = crawlhttp.NewFetcher(
			crawlhttp.WithTimeout(c.Timeout),
			crawlhttp.WithUserAgent(c.UserAgent),
		)
	}
	fetcher = crawlslog.NewLoggingFetcher(fetcher, logger)

	crawler := &crawl.Crawler{
		Fetcher: fetcher,
		Parser:  goquery.NewParser(),
		NewRobots: func() webcrawl.RobotsChecker {
			return crawlslog.NewLoggingRobotsChecker(crawlhttp.NewRobotsChecker(fetcher), logger)
		},
		Sitemaps: crawlslog.NewLoggingSitemapService(crawlhttp.NewSitemapService(fetcher), logger),
	}

	if c.ApproxDedup {
		n := uint(approxCapacity)
		if c.MaxPages > 0 {
			n = uint(c.MaxPages) * 100
		}
		crawler.NewVisitedSet = func() webcrawl.VisitedSet {
			return bloom.NewVisitedSet(n, approxFalsePositiveRate)
		}
	}
	return crawler
}

// Bloom filter sizing for --approx-dedup.
const (
	approxCapacity          = 1_000_000
	approxFalsePositiveRate = 0.001
)

// serveMetrics exposes handler on addr until the returned func is called.
func serveMetrics(addr string, handler http.Handler, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "err", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func defaultDBPath() string {
	if path := os.Getenv("WEBCRAWL_DB"); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "webcrawl.db"
	}
	dir := filepath.Join(home, ".webcrawl")
	_ = os.MkdirAll(dir, 0755)
	return filepath.Join(dir, "webcrawl.db")
}
