package retrieval

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pragasv/sola-labs-demo/internal/embeddings"
)

// SQLiteIndex is a local passage index. Passages carry an optional
// embedding; with an embedder, search ranks by cosine similarity (in SQL
// through sqlite-vec when built with the sqlite_vec tag, otherwise in
// Go). Without an embedder, search falls back to term overlap.
type SQLiteIndex struct {
	db       *sql.DB
	embedder embeddings.Embedder
	useVec   bool
	owned    bool
}

// OpenSQLiteIndex opens (or creates) the index at path.
func OpenSQLiteIndex(path string, embedder embeddings.Embedder) (*SQLiteIndex, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open passage index: %w", err)
	}
	idx, err := NewSQLiteIndex(db, embedder)
	if err != nil {
		db.Close()
		return nil, err
	}
	idx.owned = true
	idx.useVec = vecEnabled && idx.detectVec()
	return idx, nil
}

// NewSQLiteIndex uses an existing connection; the caller keeps
// ownership. Ranking happens in Go.
func NewSQLiteIndex(db *sql.DB, embedder embeddings.Embedder) (*SQLiteIndex, error) {
	idx := &SQLiteIndex{db: db, embedder: embedder}
	if err := idx.migrate(); err != nil {
		return nil, fmt.Errorf("migrate passage index: %w", err)
	}
	return idx, nil
}

func (s *SQLiteIndex) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS passages (
		id           TEXT PRIMARY KEY,
		text         TEXT NOT NULL,
		filename     TEXT NOT NULL DEFAULT '',
		title        TEXT NOT NULL DEFAULT '',
		page_numbers TEXT NOT NULL DEFAULT '',
		embedding    BLOB
	);
	`)
	return err
}

// detectVec reports whether the sqlite-vec functions are loaded.
func (s *SQLiteIndex) detectVec() bool {
	var v string
	return s.db.QueryRow(`SELECT vec_version()`).Scan(&v) == nil
}

// Close closes the database when the index opened it.
func (s *SQLiteIndex) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

// Add stores a passage. A nil embedding is computed with the embedder
// when one is configured. The passage ID is returned.
func (s *SQLiteIndex) Add(ctx context.Context, p Passage, embedding []float32) (string, error) {
	if embedding == nil && s.embedder != nil {
		var err error
		if embedding, err = s.embedder.Embed(ctx, p.Text); err != nil {
			return "", fmt.Errorf("embed passage: %w", err)
		}
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	var blob []byte
	if embedding != nil {
		blob = embeddings.EncodeVector(embedding)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO passages (id, text, filename, title, page_numbers, embedding)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Text, p.Metadata.Filename, p.Metadata.Title, p.Metadata.PageNumbers, blob,
	)
	if err != nil {
		return "", fmt.Errorf("insert passage: %w", err)
	}
	return p.ID, nil
}

// Count is the number of stored passages.
func (s *SQLiteIndex) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM passages`).Scan(&n)
	return n, err
}

func (s *SQLiteIndex) Search(ctx context.Context, query string, limit int) ([]Passage, error) {
	if limit <= 0 {
		return nil, nil
	}
	if s.embedder == nil {
		return s.searchTerms(ctx, query, limit)
	}

	qvec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if s.useVec {
		return s.searchVec(ctx, qvec, limit)
	}
	return s.searchCosine(ctx, qvec, limit)
}

func (s *SQLiteIndex) searchVec(ctx context.Context, qvec []float32, limit int) ([]Passage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, filename, title, page_numbers,
		       vec_distance_cosine(embedding, ?) AS distance
		FROM passages
		WHERE embedding IS NOT NULL
		ORDER BY distance ASC
		LIMIT ?`,
		embeddings.EncodeVector(qvec), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var out []Passage
	for rows.Next() {
		var p Passage
		var distance float64
		if err := rows.Scan(&p.ID, &p.Text, &p.Metadata.Filename, &p.Metadata.Title, &p.Metadata.PageNumbers, &distance); err != nil {
			return nil, fmt.Errorf("scan passage: %w", err)
		}
		p.Score = 1 - distance
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) searchCosine(ctx context.Context, qvec []float32, limit int) ([]Passage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, filename, title, page_numbers, embedding FROM passages WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("load passages: %w", err)
	}
	defer rows.Close()

	var all []Passage
	var vectors [][]float32
	for rows.Next() {
		var p Passage
		var blob []byte
		if err := rows.Scan(&p.ID, &p.Text, &p.Metadata.Filename, &p.Metadata.Title, &p.Metadata.PageNumbers, &blob); err != nil {
			return nil, fmt.Errorf("scan passage: %w", err)
		}
		vec, err := embeddings.DecodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("passage %s: %w", p.ID, err)
		}
		all = append(all, p)
		vectors = append(vectors, vec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	top := embeddings.TopK(qvec, vectors, limit)
	out := make([]Passage, 0, len(top))
	for _, i := range top {
		p := all[i]
		p.Score = float64(embeddings.CosineSimilarity(qvec, vectors[i]))
		out = append(out, p)
	}
	return out, nil
}

// searchTerms ranks passages by how many distinct query terms they
// contain. Passages matching no term are not returned.
func (s *SQLiteIndex) searchTerms(ctx context.Context, query string, limit int) ([]Passage, error) {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, text, filename, title, page_numbers FROM passages`)
	if err != nil {
		return nil, fmt.Errorf("load passages: %w", err)
	}
	defer rows.Close()

	var out []Passage
	for rows.Next() {
		var p Passage
		if err := rows.Scan(&p.ID, &p.Text, &p.Metadata.Filename, &p.Metadata.Title, &p.Metadata.PageNumbers); err != nil {
			return nil, fmt.Errorf("scan passage: %w", err)
		}
		words := make(map[string]bool)
		for _, w := range tokenize(p.Text + " " + p.Metadata.Title) {
			words[w] = true
		}
		hits := 0
		for _, t := range terms {
			if words[t] {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		p.Score = float64(hits) / float64(len(terms))
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// tokenize lowercases s and returns its distinct words of three or more
// letters or digits.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(fields))
	var out []string
	for _, f := range fields {
		if len([]rune(f)) < 3 || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}
