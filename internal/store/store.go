// Package store persists listings, scrape history, and the monthly API
// usage counters behind the quota gate. Backed by sqlite so the whole tool
// runs from a single file.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jobradar/jobradar/internal/jobs"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id TEXT UNIQUE,
	title TEXT,
	company TEXT,
	location TEXT,
	lat REAL,
	lng REAL,
	work_type TEXT,
	salary_min INTEGER,
	salary_max INTEGER,
	salary_display TEXT,
	match_score INTEGER,
	match_reasons TEXT,
	description TEXT,
	apply_url TEXT,
	company_url TEXT,
	source TEXT,
	date_found TEXT,
	date_posted TEXT,
	saved INTEGER DEFAULT 0,
	hidden INTEGER DEFAULT 0
);
CREATE TABLE IF NOT EXISTS scrape_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at TEXT,
	finished_at TEXT,
	jobs_found INTEGER,
	status TEXT
);
CREATE TABLE IF NOT EXISTS api_usage (
	source TEXT,
	month TEXT,
	calls INTEGER DEFAULT 0,
	PRIMARY KEY (source, month)
);
`

type Store struct {
	db *sql.DB
}

// Open creates the database file (and parent directory) if needed and
// applies the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertListings inserts listings, ignoring job ids already present.
// Returns the number actually inserted.
func (s *Store) UpsertListings(ctx context.Context, list *jobs.Listings) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO jobs
		(job_id, title, company, location, lat, lng, work_type,
		 salary_min, salary_max, salary_display, match_score, match_reasons,
		 description, apply_url, company_url, source, date_found, date_posted)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	inserted := 0
	for _, job := range list.Items {
		res, err := stmt.ExecContext(ctx,
			job.JobID, job.Title, job.Company, job.Location,
			job.Lat, job.Lng, job.WorkType,
			job.SalaryMin, job.SalaryMax, job.SalaryDisplay,
			job.MatchScore, job.MatchReasons, job.Description,
			job.ApplyURL, job.CompanyURL, job.Source, now, job.DatePosted,
		)
		if err != nil {
			return inserted, fmt.Errorf("inserting %s: %w", job.JobID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return inserted, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// ExistingIDs returns every stored job id, used to score new jobs only.
func (s *Store) ExistingIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT job_id FROM jobs`)
	if err != nil {
		return nil, fmt.Errorf("querying job ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// UpdateScore writes the scorer's verdict back to a stored listing.
func (s *Store) UpdateScore(ctx context.Context, job *jobs.Listing) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET match_score=?, match_reasons=?, work_type=? WHERE job_id=?`,
		job.MatchScore, job.MatchReasons, job.WorkType, job.JobID,
	)
	if err != nil {
		return fmt.Errorf("updating score for %s: %w", job.JobID, err)
	}
	return nil
}

// Unscored returns stored listings with no successful score yet.
func (s *Store) Unscored(ctx context.Context, limit int) (*jobs.Listings, error) {
	q := `SELECT job_id, title, company, location, lat, lng, work_type,
		salary_min, salary_max, salary_display, match_score, match_reasons,
		description, apply_url, company_url, source, date_posted
		FROM jobs WHERE match_score = ? AND hidden = 0`
	args := []any{jobs.ScoreUnscored}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying unscored: %w", err)
	}
	defer rows.Close()

	return scanListings(rows)
}

// ListQuery filters the browse surface.
type ListQuery struct {
	WorkType string
	MinScore int
	Search   string
	Saved    bool
	Sort     string
}

var sortColumns = map[string]string{
	"match_score": "match_score DESC",
	"date_found":  "date_found DESC",
	"salary":      "salary_max DESC",
	"title":       "title ASC",
}

// List returns visible listings matching the query.
func (s *Store) List(ctx context.Context, q ListQuery) (*jobs.Listings, error) {
	query := `SELECT job_id, title, company, location, lat, lng, work_type,
		salary_min, salary_max, salary_display, match_score, match_reasons,
		description, apply_url, company_url, source, date_posted
		FROM jobs WHERE hidden = 0`
	var args []any

	if q.WorkType != "" {
		query += ` AND work_type = ?`
		args = append(args, q.WorkType)
	}
	if q.MinScore > 0 {
		query += ` AND match_score >= ?`
		args = append(args, q.MinScore)
	}
	if q.Search != "" {
		query += ` AND (title LIKE ? OR company LIKE ? OR location LIKE ?)`
		like := "%" + q.Search + "%"
		args = append(args, like, like, like)
	}
	if q.Saved {
		query += ` AND saved = 1`
	}

	order, ok := sortColumns[q.Sort]
	if !ok {
		order = sortColumns["match_score"]
	}
	query += ` ORDER BY ` + order

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying listings: %w", err)
	}
	defer rows.Close()

	return scanListings(rows)
}

// SetSaved toggles the saved flag.
func (s *Store) SetSaved(ctx context.Context, jobID string, saved bool) error {
	return s.setFlag(ctx, "saved", jobID, saved)
}

// SetHidden toggles the hidden flag.
func (s *Store) SetHidden(ctx context.Context, jobID string, hidden bool) error {
	return s.setFlag(ctx, "hidden", jobID, hidden)
}

func (s *Store) setFlag(ctx context.Context, column, jobID string, v bool) error {
	val := 0
	if v {
		val = 1
	}
	_, err := s.db.ExecContext(ctx, `UPDATE jobs SET `+column+`=? WHERE job_id=?`, val, jobID)
	if err != nil {
		return fmt.Errorf("updating %s for %s: %w", column, jobID, err)
	}
	return nil
}

// RecordScrape appends a scrape log entry.
func (s *Store) RecordScrape(ctx context.Context, started, finished time.Time, jobsFound int, status string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scrape_log (started_at, finished_at, jobs_found, status) VALUES (?,?,?,?)`,
		started.UTC().Format(time.RFC3339), finished.UTC().Format(time.RFC3339), jobsFound, status,
	)
	if err != nil {
		return fmt.Errorf("recording scrape: %w", err)
	}
	return nil
}

func currentMonth() string {
	return time.Now().UTC().Format("2006-01")
}

// AddUsage accumulates calls for a source in the current month.
func (s *Store) AddUsage(ctx context.Context, src string, calls int) error {
	if calls == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_usage (source, month, calls) VALUES (?,?,?)
		ON CONFLICT(source, month) DO UPDATE SET calls = calls + excluded.calls`,
		src, currentMonth(), calls,
	)
	if err != nil {
		return fmt.Errorf("recording usage for %s: %w", src, err)
	}
	return nil
}

// Usage returns the call count for a source in the current month.
func (s *Store) Usage(ctx context.Context, src string) (int, error) {
	var calls int
	err := s.db.QueryRowContext(ctx,
		`SELECT calls FROM api_usage WHERE source=? AND month=?`,
		src, currentMonth(),
	).Scan(&calls)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading usage for %s: %w", src, err)
	}
	return calls, nil
}

func scanListings(rows *sql.Rows) (*jobs.Listings, error) {
	list := &jobs.Listings{}
	for rows.Next() {
		job := &jobs.Listing{}
		var (
			lat, lng           sql.NullFloat64
			salMin, salMax     sql.NullInt64
			reasons, salaryTxt sql.NullString
		)
		if err := rows.Scan(
			&job.JobID, &job.Title, &job.Company, &job.Location,
			&lat, &lng, &job.WorkType,
			&salMin, &salMax, &salaryTxt,
			&job.MatchScore, &reasons, &job.Description,
			&job.ApplyURL, &job.CompanyURL, &job.Source, &job.DatePosted,
		); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if lat.Valid {
			job.Lat = &lat.Float64
		}
		if lng.Valid {
			job.Lng = &lng.Float64
		}
		if salMin.Valid {
			v := int(salMin.Int64)
			job.SalaryMin = &v
		}
		if salMax.Valid {
			v := int(salMax.Int64)
			job.SalaryMax = &v
		}
		job.SalaryDisplay = salaryTxt.String
		job.MatchReasons = reasons.String
		list.Append(job)
	}
	return list, rows.Err()
}
