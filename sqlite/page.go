package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fwojciec/webcrawl"
	"github.com/google/uuid"
)

// Compile-time interface verification.
var _ webcrawl.PageService = (*PageService)(nil)

// PageService stores and queries page results using SQLite.
type PageService struct {
	db *DB
}

// NewPageService creates a new PageService.
func NewPageService(db *DB) *PageService {
	return &PageService{db: db}
}

const pageColumns = `job_id, url, final_url, depth, referrer, status_code, error_kind, error,
	link_count, matches, match_count, title, description, content_type, content_length,
	content_hash, duration_ms, fetched_at`

// CreatePage appends a result to its job. Results keep insertion order.
// Returns ENOTFOUND if the job does not exist.
func (s *PageService) CreatePage(ctx context.Context, r *webcrawl.PageResult) error {
	matches, err := json.Marshal(r.Matches)
	if err != nil {
		return fmt.Errorf("failed to encode matches: %w", err)
	}

	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs WHERE id = ?`, r.JobID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return webcrawl.Errorf(webcrawl.ENOTFOUND, "job not found")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pages (id, position, `+pageColumns+`)
		VALUES (?, (SELECT COALESCE(MAX(position), -1) + 1 FROM pages WHERE job_id = ?),
			?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, uuid.New().String(), r.JobID,
		r.JobID, r.URL, r.FinalURL, r.Depth, r.Referrer, r.StatusCode, r.ErrorKind, r.Error,
		r.LinkCount, string(matches), r.MatchCount, r.Title, r.Description, r.ContentType, r.ContentLength,
		r.ContentHash, r.Duration.Milliseconds(), formatTime(r.FetchedAt))
	return err
}

// FindPages retrieves results matching the filter in emission order.
func (s *PageService) FindPages(ctx context.Context, filter webcrawl.PageFilter) ([]*webcrawl.PageResult, error) {
	var query strings.Builder
	var args []any

	query.WriteString("SELECT " + pageColumns + " FROM pages WHERE 1=1")

	if filter.JobID != nil {
		query.WriteString(" AND job_id = ?")
		args = append(args, *filter.JobID)
	}
	if filter.Matched != nil {
		if *filter.Matched {
			query.WriteString(" AND match_count > 0")
		} else {
			query.WriteString(" AND match_count = 0")
		}
	}

	query.WriteString(" ORDER BY job_id, position")
	appendPagination(&query, &args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []*webcrawl.PageResult
	for rows.Next() {
		var r webcrawl.PageResult
		var matches, fetchedAt string
		var durationMS int64

		if err := rows.Scan(&r.JobID, &r.URL, &r.FinalURL, &r.Depth, &r.Referrer, &r.StatusCode,
			&r.ErrorKind, &r.Error, &r.LinkCount, &matches, &r.MatchCount, &r.Title, &r.Description,
			&r.ContentType, &r.ContentLength, &r.ContentHash, &durationMS, &fetchedAt); err != nil {
			return nil, err
		}

		if matches != "null" {
			if err := json.Unmarshal([]byte(matches), &r.Matches); err != nil {
				return nil, fmt.Errorf("failed to decode matches: %w", err)
			}
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		if r.FetchedAt, err = parseTime(fetchedAt, "fetched_at"); err != nil {
			return nil, err
		}
		pages = append(pages, &r)
	}
	return pages, rows.Err()
}
