package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/sells-group/company-profiler/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	batch_id     TEXT NOT NULL,
	company_row  INTEGER NOT NULL,
	company_name TEXT NOT NULL,
	company      TEXT NOT NULL,
	status       TEXT NOT NULL,
	total_cost   REAL NOT NULL DEFAULT 0,
	result       TEXT,
	created_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS page_cache (
	url        TEXT PRIMARY KEY,
	final_url  TEXT NOT NULL,
	text       TEXT NOT NULL,
	links      TEXT NOT NULL,
	fetched_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_batch_id ON runs(batch_id);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_page_cache_fetched_at ON page_cache(fetched_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) RecordRun(ctx context.Context, run *model.Run) error {
	prepareRun(run)
	companyJSON, resultJSON, err := marshalRun(run)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, batch_id, company_row, company_name, company, status, total_cost, result, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.BatchID, run.Company.Row, run.Company.Name, string(companyJSON),
		string(run.Status), run.TotalCost, resultJSON, run.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert run %s", run.ID)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, batch_id, company, status, total_cost, result, created_at FROM runs WHERE 1=1`
	var args []any
	if filter.BatchID != "" {
		query += ` AND batch_id = ?`
		args = append(args, filter.BatchID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC, company_row DESC LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

func (s *SQLiteStore) GetCachedPage(ctx context.Context, url string) (*model.CachedPage, error) {
	var (
		p         model.CachedPage
		linksJSON string
		fetched   int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT url, final_url, text, links, fetched_at FROM page_cache WHERE url = ?`, url,
	).Scan(&p.URL, &p.FinalURL, &p.Text, &linksJSON, &fetched)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get cached page %s", url)
	}
	if err := json.Unmarshal([]byte(linksJSON), &p.Links); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal cached links")
	}
	p.FetchedAt = time.Unix(0, fetched).UTC()
	return &p, nil
}

func (s *SQLiteStore) SetCachedPage(ctx context.Context, page model.CachedPage) error {
	linksJSON, err := json.Marshal(page.Links)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal cached links")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO page_cache (url, final_url, text, links, fetched_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(url) DO UPDATE SET final_url = excluded.final_url, text = excluded.text,
		 links = excluded.links, fetched_at = excluded.fetched_at`,
		page.URL, page.FinalURL, page.Text, string(linksJSON), page.FetchedAt.UnixNano(),
	)
	return eris.Wrapf(err, "sqlite: set cached page %s", page.URL)
}

func (s *SQLiteStore) DeleteExpiredPages(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM page_cache WHERE fetched_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired pages")
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: rows affected")
}

// prepareRun fills the generated fields of a run.
func prepareRun(run *model.Run) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
}

func marshalRun(run *model.Run) ([]byte, *string, error) {
	companyJSON, err := json.Marshal(run.Company)
	if err != nil {
		return nil, nil, eris.Wrap(err, "store: marshal company")
	}
	if run.Result == nil {
		return companyJSON, nil, nil
	}
	b, err := json.Marshal(run.Result)
	if err != nil {
		return nil, nil, eris.Wrap(err, "store: marshal result")
	}
	s := string(b)
	return companyJSON, &s, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var (
		r           model.Run
		companyJSON []byte
		resultJSON  []byte
		status      string
	)
	if err := row.Scan(&r.ID, &r.BatchID, &companyJSON, &status, &r.TotalCost, &resultJSON, &r.CreatedAt); err != nil {
		return nil, eris.Wrap(err, "store: scan run")
	}
	r.Status = model.RunStatus(status)
	if err := json.Unmarshal(companyJSON, &r.Company); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal company")
	}
	if len(resultJSON) > 0 {
		r.Result = &model.OutputRow{}
		if err := json.Unmarshal(resultJSON, r.Result); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal result")
		}
	}
	return &r, nil
}
