package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore keeps memory in a JSON document of the form
// {"conversation_history": [{"role": ..., "content": ...}]}.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by path. The file is created on
// the first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path is the backing file.
func (s *FileStore) Path() string { return s.path }

// Load reads the file. A missing file is an empty memory.
func (s *FileStore) Load(context.Context) (*Memory, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Memory{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read memory: %w", err)
	}

	var m Memory
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse memory %s: %w", s.path, err)
	}
	return &m, nil
}

// Save writes the document atomically through a temp file and rename.
func (s *FileStore) Save(_ context.Context, m *Memory) error {
	if m.ConversationHistory == nil {
		m = &Memory{ConversationHistory: []Entry{}}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode memory: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create memory dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".memory-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write memory: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close memory: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace memory: %w", err)
	}
	return nil
}

// Clear deletes the file if it exists.
func (s *FileStore) Clear(context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear memory: %w", err)
	}
	return nil
}
