package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// sqlTimeLayout is fixed-width so stored timestamps sort as text.
const sqlTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Summary holds aggregated step totals.
type Summary struct {
	Rows              int     `json:"rows"`
	Runs              int     `json:"runs"`
	Successes         int     `json:"successes"`
	Tokens            int64   `json:"tokens"`
	CallsAPI          int64   `json:"calls_api"`
	AvgLatencySeconds float64 `json:"avg_latency_seconds"`
}

// SQLiteSink is an append-only SQLite copy of the report that supports
// aggregation queries.
type SQLiteSink struct {
	db    *sql.DB
	owned bool
}

// OpenSQLiteSink creates or opens the database at path.
func OpenSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open metrics database: %w", err)
	}
	s, err := NewSQLiteSink(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// NewSQLiteSink uses an existing connection. The caller keeps ownership.
func NewSQLiteSink(db *sql.DB) (*SQLiteSink, error) {
	s := &SQLiteSink{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate metrics schema: %w", err)
	}
	return s, nil
}

// Close closes the database when the sink opened it.
func (s *SQLiteSink) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteSink) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS metric_rows (
		id           TEXT PRIMARY KEY,
		run_id       TEXT NOT NULL,
		request_time TEXT NOT NULL,
		input_prompt TEXT NOT NULL,
		total_time_s REAL NOT NULL,
		step         TEXT NOT NULL,
		tool         TEXT NOT NULL,
		success      INTEGER NOT NULL,
		latency_s    REAL NOT NULL,
		confidence   REAL NOT NULL,
		tokens       INTEGER NOT NULL,
		calls_api    INTEGER NOT NULL,
		response     TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_metric_rows_time ON metric_rows(request_time);
	CREATE INDEX IF NOT EXISTS idx_metric_rows_run ON metric_rows(run_id);
	`)
	return err
}

func (s *SQLiteSink) Append(ctx context.Context, rows []Row) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, r := range rows {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate metric row ID: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO metric_rows
				(id, run_id, request_time, input_prompt, total_time_s, step, tool,
				 success, latency_s, confidence, tokens, calls_api, response)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id.String(),
			r.RunID,
			r.RequestTime.UTC().Format(sqlTimeLayout),
			r.InputPrompt,
			r.TotalTime.Seconds(),
			r.Step,
			r.Tool,
			r.Success,
			r.Latency.Seconds(),
			r.Confidence,
			r.Tokens,
			r.CallsAPI,
			r.Response,
		)
		if err != nil {
			return fmt.Errorf("insert metric row: %w", err)
		}
	}
	return tx.Commit()
}

// Summary aggregates rows whose request time is within [start, end).
func (s *SQLiteSink) Summary(ctx context.Context, start, end time.Time) (*Summary, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT run_id), COALESCE(SUM(success), 0),
		        COALESCE(SUM(tokens), 0), COALESCE(SUM(calls_api), 0), COALESCE(AVG(latency_s), 0)
		 FROM metric_rows
		 WHERE request_time >= ? AND request_time < ?`,
		start.UTC().Format(sqlTimeLayout),
		end.UTC().Format(sqlTimeLayout),
	)

	var sum Summary
	if err := row.Scan(&sum.Rows, &sum.Runs, &sum.Successes, &sum.Tokens, &sum.CallsAPI, &sum.AvgLatencySeconds); err != nil {
		return nil, fmt.Errorf("query metrics summary: %w", err)
	}
	return &sum, nil
}

// SummaryByStep aggregates per step within [start, end).
func (s *SQLiteSink) SummaryByStep(ctx context.Context, start, end time.Time) (map[string]*Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT step, COUNT(*), COUNT(DISTINCT run_id), COALESCE(SUM(success), 0),
		        COALESCE(SUM(tokens), 0), COALESCE(SUM(calls_api), 0), COALESCE(AVG(latency_s), 0)
		 FROM metric_rows
		 WHERE request_time >= ? AND request_time < ?
		 GROUP BY step`,
		start.UTC().Format(sqlTimeLayout),
		end.UTC().Format(sqlTimeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("query metrics by step: %w", err)
	}
	defer rows.Close()

	result := make(map[string]*Summary)
	for rows.Next() {
		var step string
		var sum Summary
		if err := rows.Scan(&step, &sum.Rows, &sum.Runs, &sum.Successes, &sum.Tokens, &sum.CallsAPI, &sum.AvgLatencySeconds); err != nil {
			return nil, fmt.Errorf("scan metrics by step: %w", err)
		}
		result[step] = &sum
	}
	return result, rows.Err()
}
