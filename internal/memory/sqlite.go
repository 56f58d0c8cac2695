package memory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps memory entries as rows, one per entry, ordered by
// sequence number.
type SQLiteStore struct {
	db    *sql.DB
	owned bool
}

// OpenSQLiteStore opens (or creates) the database at path in WAL mode.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s, err := NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// NewSQLiteStore uses an existing connection and creates the schema if
// needed. The caller keeps ownership of db.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS memory_entries (
		id TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_memory_entries_seq ON memory_entries(seq);
	`)
	return err
}

// Close closes the database when the store opened it.
func (s *SQLiteStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

// Load returns all entries in insertion order.
func (s *SQLiteStore) Load(ctx context.Context) (*Memory, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT role, content FROM memory_entries ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query memory: %w", err)
	}
	defer rows.Close()

	m := &Memory{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Role, &e.Content); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		m.ConversationHistory = append(m.ConversationHistory, e)
	}
	return m, rows.Err()
}

// Save replaces the stored entries in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, m *Memory) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM memory_entries`); err != nil {
		return fmt.Errorf("truncate memory: %w", err)
	}
	now := time.Now().UTC()
	for i, e := range m.ConversationHistory {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("entry id: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO memory_entries (id, seq, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
			id.String(), i, e.Role, e.Content, now,
		); err != nil {
			return fmt.Errorf("insert memory entry %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// Clear deletes every entry.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM memory_entries`); err != nil {
		return fmt.Errorf("clear memory: %w", err)
	}
	return nil
}
