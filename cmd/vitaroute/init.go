package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pragasv/sola-labs-demo/internal/defaults"
)

// runInit prepares dir for a local deployment: a data directory and a
// starter config.yaml. Existing files are left alone.
func runInit(w io.Writer, dir string) error {
	fmt.Fprintf(w, "Initializing VitaRoute in %s\n", dir)

	dataDir := filepath.Join(dir, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dataDir, err)
	}
	fmt.Fprintf(w, "  ✓ %s\n", dataDir)

	configPath := filepath.Join(dir, "config.yaml")
	written, err := writeIfMissing(configPath, defaults.ConfigYAML, 0o600)
	if err != nil {
		return err
	}
	if written {
		fmt.Fprintf(w, "  ✓ %s\n", configPath)
	} else {
		fmt.Fprintf(w, "  - %s (exists, kept)\n", configPath)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Set OPENAI_API_KEY (or edit config.yaml), then load passages with")
	fmt.Fprintln(w, "vitaroute ingest <passages.jsonl> and start the server with vitaroute serve.")
	return nil
}

// writeIfMissing writes content to path only if nothing is there yet.
// The config can hold API keys, so callers pass a restrictive perm.
func writeIfMissing(path string, content []byte, perm os.FileMode) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.WriteFile(path, content, perm); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}
