package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pragasv/sola-labs-demo/internal/retrieval"
)

// runIngest loads passages from a JSON Lines file into the local SQLite
// index. Each line is a passage: {"text": ..., "metadata": {"filename":
// ..., "title": ..., "page_numbers": ...}, "embedding": [...]}. Vectors
// are stored as given; lines without one are only reachable by keyword
// search.
func runIngest(ctx context.Context, stdout io.Writer, configPath, path string) error {
	cfg, logger, err := setup(stdout, configPath)
	if err != nil {
		return err
	}
	if cfg.Retrieval.Backend != "sqlite" {
		return fmt.Errorf("ingest requires retrieval.backend sqlite (configured: %s)", cfg.Retrieval.Backend)
	}

	idx, err := openIndex(cfg, nil)
	if err != nil {
		return err
	}
	defer idx.Close()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open passages: %w", err)
	}
	defer f.Close()

	count, err := ingestPassages(ctx, idx, f)
	if err != nil {
		return fmt.Errorf("ingestion failed after %d passages: %w", count, err)
	}

	total, _ := idx.Count(ctx)
	logger.Info("ingestion complete", "added", count, "indexed", total, "source", path)
	fmt.Fprintf(stdout, "Successfully ingested %d passages from %s\n", count, path)
	return nil
}

type ingestRecord struct {
	retrieval.Passage
	Embedding []float32 `json:"embedding,omitempty"`
}

// passageAdder is the part of *retrieval.SQLiteIndex used by ingestion.
type passageAdder interface {
	Add(ctx context.Context, p retrieval.Passage, embedding []float32) (string, error)
}

func ingestPassages(ctx context.Context, idx passageAdder, r io.Reader) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4<<20)

	count := 0
	for line := 1; sc.Scan(); line++ {
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		var rec ingestRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return count, fmt.Errorf("line %d: %w", line, err)
		}
		if strings.TrimSpace(rec.Text) == "" {
			return count, fmt.Errorf("line %d: passage text is empty", line)
		}
		if _, err := idx.Add(ctx, rec.Passage, rec.Embedding); err != nil {
			return count, fmt.Errorf("line %d: %w", line, err)
		}
		count++
	}
	return count, sc.Err()
}
