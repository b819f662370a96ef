// Package fs writes crawl results to per-job directories on disk.
package fs

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fwojciec/webcrawl"
)

// File names inside a job directory.
const (
	JobFile   = "job.json"
	PagesFile = "pages.jsonl"
	RowsFile  = "pages.csv"
)

// Ensure Store implements webcrawl.ResultSink at compile time.
var _ webcrawl.ResultSink = (*Store)(nil)

// Store implements webcrawl.ResultSink with atomic update semantics.
// Results are appended under baseDir/{job}.tmp while the job runs; when
// the job reaches a terminal state the directory is completed with the job
// snapshot and a CSV export, then renamed to baseDir/{job}.
type Store struct {
	baseDir string
}

// NewStore creates a new Store writing below baseDir.
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) tempDir(jobID string) string {
	return filepath.Join(s.baseDir, jobID+".tmp")
}

// Dir returns the final directory of a job.
func (s *Store) Dir(jobID string) string {
	return filepath.Join(s.baseDir, jobID)
}

func (s *Store) WriteJob(ctx context.Context, job *webcrawl.Job) error {
	if job.ID == "" {
		return webcrawl.Errorf(webcrawl.EINVALID, "job ID required")
	}
	dir := s.tempDir(job.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, JobFile), data, 0644); err != nil {
		return err
	}

	if !job.Status.Terminal() {
		return nil
	}
	if err := writeRows(dir); err != nil {
		return err
	}
	return s.commit(job.ID)
}

func (s *Store) WritePage(ctx context.Context, result *webcrawl.PageResult) error {
	dir := s.tempDir(result.JobID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.Marshal(result)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(filepath.Join(dir, PagesFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// commit replaces the final directory with the temp directory.
func (s *Store) commit(jobID string) error {
	if err := os.RemoveAll(s.Dir(jobID)); err != nil {
		return err
	}
	return os.Rename(s.tempDir(jobID), s.Dir(jobID))
}

// Abort discards the uncommitted results of a job.
func (s *Store) Abort(jobID string) error {
	return os.RemoveAll(s.tempDir(jobID))
}

// ReadPages reads the results of a committed job in emission order.
func (s *Store) ReadPages(jobID string) ([]*webcrawl.PageResult, error) {
	return readPages(filepath.Join(s.Dir(jobID), PagesFile))
}

func readPages(path string) ([]*webcrawl.PageResult, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return []*webcrawl.PageResult{}, nil
	} else if err != nil {
		return nil, err
	}
	defer f.Close()

	pages := []*webcrawl.PageResult{}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4<<20)
	for sc.Scan() {
		var r webcrawl.PageResult
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			return nil, fmt.Errorf("failed to decode page: %w", err)
		}
		pages = append(pages, &r)
	}
	return pages, sc.Err()
}

// writeRows renders the collected results of dir as CSV.
func writeRows(dir string) error {
	pages, err := readPages(filepath.Join(dir, PagesFile))
	if err != nil {
		return err
	}

	f, err := os.Create(filepath.Join(dir, RowsFile))
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	_ = w.Write(webcrawl.RowHeader)
	for _, row := range webcrawl.Rows(pages) {
		_ = w.Write(row.Strings())
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
