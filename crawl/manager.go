package crawl

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/fwojciec/webcrawl"
	"github.com/google/uuid"
)

// Manager runs crawl jobs in the background and serves snapshots of their
// state and results.
type Manager struct {
	Crawler *Crawler

	// Sink receives every job status change and page result. Write
	// failures are retried, then logged; they never affect the crawl.
	// Members of a MultiSink are retried independently.
	Sink webcrawl.ResultSink

	// Logger defaults to discarding output.
	Logger *slog.Logger

	// RetryDelays are the sink write backoffs. Nil uses DefaultRetryDelays.
	RetryDelays []time.Duration

	// SinkBuffer is the number of pending writes queued per job and sink
	// member before the crawl blocks. Zero uses DefaultSinkBuffer.
	SinkBuffer int

	// NewID defaults to uuid.NewString.
	NewID func() string

	mu   sync.Mutex
	jobs map[string]*managedJob
	ids  []string
	wg   sync.WaitGroup
}

// DefaultSinkBuffer is the default Manager.SinkBuffer.
const DefaultSinkBuffer = 256

type managedJob struct {
	snapshot *webcrawl.Job
	results  []*webcrawl.PageResult
	cancel   context.CancelFunc
	done     chan struct{}

	writers []chan sinkWrite
	writing sync.WaitGroup
}

// sinkWrite is one queued job snapshot or page result.
type sinkWrite struct {
	job  *webcrawl.Job
	page *webcrawl.PageResult
}

// Submit validates spec, registers a pending job and starts it on its own
// goroutine. The job does not depend on the caller's lifetime; use Cancel
// to stop it. progress, if set, receives every event after the manager has
// recorded it. Returns EINVALID for an invalid spec.
func (m *Manager) Submit(spec webcrawl.JobSpec, progress ProgressFunc) (*webcrawl.Job, error) {
	spec, err := spec.Validate()
	if err != nil {
		return nil, err
	}

	job := &webcrawl.Job{
		ID:        m.newID(),
		Spec:      spec,
		Status:    webcrawl.JobPending,
		CreatedAt: m.Crawler.now(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	mj := &managedJob{snapshot: job.Clone(), cancel: cancel, done: make(chan struct{})}

	m.mu.Lock()
	if m.jobs == nil {
		m.jobs = make(map[string]*managedJob)
	}
	m.jobs[job.ID] = mj
	m.ids = append(m.ids, job.ID)
	m.mu.Unlock()

	m.startWriters(ctx, mj)
	mj.enqueue(sinkWrite{job: job.Clone()})
	submitted := job.Clone()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer close(mj.done)
		defer cancel()

		err := m.Crawler.Run(ctx, job, func(ev ProgressEvent) {
			m.record(mj, ev)
			if progress != nil {
				progress(ev)
			}
		})
		if err != nil {
			m.logger().Error("crawl job failed", "job", job.ID, "err", err)
		}
		mj.closeWriters()
	}()

	return submitted, nil
}

// record stores the event snapshot and queues it for the sink.
func (m *Manager) record(mj *managedJob, ev ProgressEvent) {
	m.mu.Lock()
	mj.snapshot = ev.Job
	if ev.Type == ProgressPage {
		mj.results = append(mj.results, ev.Page)
	}
	m.mu.Unlock()

	switch ev.Type {
	case ProgressStatus:
		mj.enqueue(sinkWrite{job: ev.Job})
	case ProgressPage:
		mj.enqueue(sinkWrite{page: ev.Page})
	}
}

// startWriters starts one goroutine per sink member for mj. Each drains its
// queue in order; the crawl blocks only when a member's queue is full.
func (m *Manager) startWriters(ctx context.Context, mj *managedJob) {
	ctx = context.WithoutCancel(ctx)
	size := m.SinkBuffer
	if size <= 0 {
		size = DefaultSinkBuffer
	}
	for _, sink := range m.sinks() {
		ch := make(chan sinkWrite, size)
		mj.writers = append(mj.writers, ch)
		mj.writing.Add(1)
		go func() {
			defer mj.writing.Done()
			for w := range ch {
				if w.job != nil {
					m.writeJob(ctx, sink, w.job)
				} else {
					m.writePage(ctx, sink, w.page)
				}
			}
		}()
	}
}

func (mj *managedJob) enqueue(w sinkWrite) {
	for _, ch := range mj.writers {
		ch <- w
	}
}

// closeWriters flushes every queued write.
func (mj *managedJob) closeWriters() {
	for _, ch := range mj.writers {
		close(ch)
	}
	mj.writing.Wait()
}

func (m *Manager) writeJob(ctx context.Context, sink webcrawl.ResultSink, job *webcrawl.Job) {
	if err := Retry(ctx, m.retryDelays(), func(ctx context.Context) error {
		return sink.WriteJob(ctx, job)
	}); err != nil {
		m.logger().Warn("sink write job failed", "job", job.ID, "status", job.Status, "err", err)
	}
}

func (m *Manager) writePage(ctx context.Context, sink webcrawl.ResultSink, page *webcrawl.PageResult) {
	if err := Retry(ctx, m.retryDelays(), func(ctx context.Context) error {
		return sink.WritePage(ctx, page)
	}); err != nil {
		m.logger().Warn("sink write page failed", "job", page.JobID, "url", page.URL, "err", err)
	}
}

// sinks splits a MultiSink so a failing member never causes a duplicate
// write to the others.
func (m *Manager) sinks() []webcrawl.ResultSink {
	switch s := m.Sink.(type) {
	case nil:
		return nil
	case MultiSink:
		return s
	default:
		return []webcrawl.ResultSink{s}
	}
}

// Job returns a snapshot of the job. Returns ENOTFOUND for unknown IDs.
func (m *Manager) Job(id string) (*webcrawl.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mj, ok := m.jobs[id]
	if !ok {
		return nil, webcrawl.Errorf(webcrawl.ENOTFOUND, "job %q not found", id)
	}
	return mj.snapshot.Clone(), nil
}

// Jobs returns snapshots of all jobs in submission order.
func (m *Manager) Jobs() []*webcrawl.Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	jobs := make([]*webcrawl.Job, 0, len(m.ids))
	for _, id := range m.ids {
		jobs = append(jobs, m.jobs[id].snapshot.Clone())
	}
	return jobs
}

// Results returns the page results emitted so far, in emission order.
// Returns ENOTFOUND for unknown IDs.
func (m *Manager) Results(id string) ([]*webcrawl.PageResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mj, ok := m.jobs[id]
	if !ok {
		return nil, webcrawl.Errorf(webcrawl.ENOTFOUND, "job %q not found", id)
	}
	return slices.Clone(mj.results), nil
}

// Cancel requests cooperative cancellation. Cancelling a finished job is a
// no-op. Returns ENOTFOUND for unknown IDs.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	mj, ok := m.jobs[id]
	m.mu.Unlock()
	if !ok {
		return webcrawl.Errorf(webcrawl.ENOTFOUND, "job %q not found", id)
	}
	mj.cancel()
	return nil
}

// Wait blocks until the job is terminal and its sink writes are flushed, and
// returns its final snapshot.
func (m *Manager) Wait(ctx context.Context, id string) (*webcrawl.Job, error) {
	m.mu.Lock()
	mj, ok := m.jobs[id]
	m.mu.Unlock()
	if !ok {
		return nil, webcrawl.Errorf(webcrawl.ENOTFOUND, "job %q not found", id)
	}

	select {
	case <-mj.done:
		return m.Job(id)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close cancels all running jobs and waits for them to finish.
func (m *Manager) Close() error {
	m.mu.Lock()
	for _, mj := range m.jobs {
		mj.cancel()
	}
	m.mu.Unlock()

	m.wg.Wait()
	return nil
}

func (m *Manager) newID() string {
	if m.NewID != nil {
		return m.NewID()
	}
	return uuid.NewString()
}

func (m *Manager) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func (m *Manager) retryDelays() []time.Duration {
	if m.RetryDelays != nil {
		return m.RetryDelays
	}
	return DefaultRetryDelays()
}
