package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/company-profiler/internal/model"
)

// Pool is the subset of pgxpool.Pool used by PostgresStore. pgxmock pools
// satisfy it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a small connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 4
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	batch_id     TEXT NOT NULL,
	company_row  INTEGER NOT NULL,
	company_name TEXT NOT NULL,
	company      JSONB NOT NULL,
	status       TEXT NOT NULL,
	total_cost   DOUBLE PRECISION NOT NULL DEFAULT 0,
	result       JSONB,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS page_cache (
	url        TEXT PRIMARY KEY,
	final_url  TEXT NOT NULL,
	text       TEXT NOT NULL,
	links      JSONB NOT NULL,
	fetched_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_batch_id ON runs(batch_id);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_page_cache_fetched_at ON page_cache(fetched_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) RecordRun(ctx context.Context, run *model.Run) error {
	prepareRun(run)
	companyJSON, resultJSON, err := marshalRun(run)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, batch_id, company_row, company_name, company, status, total_cost, result, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		run.ID, run.BatchID, run.Company.Row, run.Company.Name, companyJSON,
		string(run.Status), run.TotalCost, resultJSON, run.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert run %s", run.ID)
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, batch_id, company, status, total_cost, result, created_at FROM runs
		 WHERE ($1::text = '' OR batch_id = $1) AND ($2::text = '' OR status = $2)
		 ORDER BY created_at DESC, company_row DESC LIMIT $3`,
		filter.BatchID, string(filter.Status), listLimit(filter.Limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate runs")
}

func (s *PostgresStore) GetCachedPage(ctx context.Context, url string) (*model.CachedPage, error) {
	var (
		p         model.CachedPage
		linksJSON []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT url, final_url, text, links, fetched_at FROM page_cache WHERE url = $1`, url,
	).Scan(&p.URL, &p.FinalURL, &p.Text, &linksJSON, &p.FetchedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get cached page %s", url)
	}
	if err := json.Unmarshal(linksJSON, &p.Links); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal cached links")
	}
	return &p, nil
}

func (s *PostgresStore) SetCachedPage(ctx context.Context, page model.CachedPage) error {
	linksJSON, err := json.Marshal(page.Links)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal cached links")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO page_cache (url, final_url, text, links, fetched_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (url) DO UPDATE SET final_url = EXCLUDED.final_url, text = EXCLUDED.text,
		 links = EXCLUDED.links, fetched_at = EXCLUDED.fetched_at`,
		page.URL, page.FinalURL, page.Text, linksJSON, page.FetchedAt,
	)
	return eris.Wrapf(err, "postgres: set cached page %s", page.URL)
}

func (s *PostgresStore) DeleteExpiredPages(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM page_cache WHERE fetched_at < $1`, cutoff)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired pages")
	}
	return tag.RowsAffected(), nil
}
