// Package redis publishes live job status and page results to Redis so that
// other processes can follow a crawl.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fwojciec/webcrawl"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the sink.
const DefaultPrefix = "webcrawl:"

// DefaultTTL bounds how long job keys survive after their last update.
const DefaultTTL = 24 * time.Hour

var _ webcrawl.ResultSink = (*Sink)(nil)

// Sink stores each job as a JSON string under {prefix}job:{id} and appends
// page results to the list {prefix}pages:{id}. Jobs are indexed in the
// sorted set {prefix}jobs scored by creation time.
type Sink struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// Option configures a Sink.
type Option func(*Sink)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Sink) { s.prefix = prefix }
}

// WithTTL sets the key expiry. Zero disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(s *Sink) { s.ttl = ttl }
}

// WithClock overrides the clock used to trim the job index.
func WithClock(now func() time.Time) Option {
	return func(s *Sink) { s.now = now }
}

// NewSink returns a Sink writing through client.
func NewSink(client *redis.Client, opts ...Option) *Sink {
	s := &Sink{client: client, prefix: DefaultPrefix, ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dial connects to the Redis server at addr and verifies the connection.
func Dial(ctx context.Context, addr string, opts ...Option) (*Sink, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewSink(client, opts...), nil
}

// Close closes the Redis client.
func (s *Sink) Close() error {
	return s.client.Close()
}

func (s *Sink) jobKey(id string) string   { return s.prefix + "job:" + id }
func (s *Sink) pagesKey(id string) string { return s.prefix + "pages:" + id }
func (s *Sink) indexKey() string          { return s.prefix + "jobs" }

// WriteJob overwrites the job snapshot and refreshes its expiry. With a TTL
// set, index entries created more than one TTL ago are dropped first; their
// job keys have expired unless the job is still being written, in which
// case its next write indexes it again.
func (s *Sink) WriteJob(ctx context.Context, job *webcrawl.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if s.ttl > 0 {
			cutoff := s.now().Add(-s.ttl).UnixMilli()
			pipe.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("(%d", cutoff))
		}
		pipe.Set(ctx, s.jobKey(job.ID), payload, s.ttl)
		pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(job.CreatedAt.UnixMilli()), Member: job.ID})
		return nil
	})
	return err
}

// WritePage appends a result to the job's list.
func (s *Sink) WritePage(ctx context.Context, result *webcrawl.PageResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	key := s.pagesKey(result.JobID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, payload)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	return err
}

// FindJobByID reads a job snapshot. Returns ENOTFOUND if it is absent or expired.
func (s *Sink) FindJobByID(ctx context.Context, id string) (*webcrawl.Job, error) {
	val, err := s.client.Get(ctx, s.jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, webcrawl.Errorf(webcrawl.ENOTFOUND, "job not found")
	} else if err != nil {
		return nil, err
	}

	var job webcrawl.Job
	if err := json.Unmarshal(val, &job); err != nil {
		return nil, fmt.Errorf("failed to decode job: %w", err)
	}
	return &job, nil
}

// FindJobIDs lists indexed job IDs, newest first.
func (s *Sink) FindJobIDs(ctx context.Context, limit int) ([]string, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	return s.client.ZRevRange(ctx, s.indexKey(), 0, stop).Result()
}

// FindPages reads the results of a job in emission order.
func (s *Sink) FindPages(ctx context.Context, jobID string) ([]*webcrawl.PageResult, error) {
	vals, err := s.client.LRange(ctx, s.pagesKey(jobID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	pages := make([]*webcrawl.PageResult, 0, len(vals))
	for _, val := range vals {
		var r webcrawl.PageResult
		if err := json.Unmarshal([]byte(val), &r); err != nil {
			return nil, fmt.Errorf("failed to decode page: %w", err)
		}
		pages = append(pages, &r)
	}
	return pages, nil
}
