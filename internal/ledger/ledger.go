// Package ledger is a best-effort, Postgres-backed accessory recording
// scrape runs and served recommendation queries. It is not on the
// critical path: a ledger failure is logged and ignored, never a
// reason to fail a scrape or a query.
package ledger

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Ledger wraps a shared *sql.DB. A nil Ledger is valid and makes every
// method a no-op, so callers that run without a configured database need
// no special casing.
type Ledger struct {
	db  *sql.DB
	log *slog.Logger
}

// Open connects to dsn and returns a Ledger. Callers should apply
// migrations (see internal/ledger/migrations) before using it.
func Open(dsn string, log *slog.Logger) (*Ledger, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &Ledger{db: db, log: log}, nil
}

func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// ScrapeRunSummary is recorded once per scrape, after the pool finishes
// (successfully or fatally).
type ScrapeRunSummary struct {
	Workers  int
	Articles int
	Users    int
	Votes    int
	Err      error
}

// RecordScrapeRun persists summary. Failures to write are logged and
// swallowed.
func (l *Ledger) RecordScrapeRun(ctx context.Context, summary ScrapeRunSummary) {
	if l == nil || l.db == nil {
		return
	}
	var errMsg sql.NullString
	if summary.Err != nil {
		errMsg = sql.NullString{String: summary.Err.Error(), Valid: true}
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO scrape_runs (id, workers, articles, users, votes, error, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.NewString(), summary.Workers, summary.Articles, summary.Users, summary.Votes, errMsg, time.Now().UTC())
	if err != nil {
		l.log.Warn("failed to record scrape run", "error", err)
	}
}

// RecordQuery persists one served (or failed) recommendation query.
func (l *Ledger) RecordQuery(ctx context.Context, uid uint64, tagCount, banCount, resultCount int, latency time.Duration, queryErr error) {
	if l == nil || l.db == nil {
		return
	}
	var errMsg sql.NullString
	if queryErr != nil {
		errMsg = sql.NullString{String: queryErr.Error(), Valid: true}
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO recommendation_queries (id, uid, tag_count, ban_count, result_count, latency_ms, error, queried_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, uuid.NewString(), uid, tagCount, banCount, resultCount, latency.Milliseconds(), errMsg, time.Now().UTC())
	if err != nil {
		l.log.Warn("failed to record recommendation query", "error", err)
	}
}
