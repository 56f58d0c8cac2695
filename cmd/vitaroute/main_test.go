package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pragasv/sola-labs-demo/internal/retrieval"
)

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), &out, &out, []string{"-o", "json", "version"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	var info map[string]string
	if err := json.Unmarshal(out.Bytes(), &info); err != nil {
		t.Fatalf("version output is not JSON: %v\n%s", err, out.String())
	}
	if info["version"] == "" {
		t.Errorf("version missing from %v", info)
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown command", []string{"frobnicate"}, "unknown command"},
		{"unknown flag", []string{"-x", "version"}, "unknown flag"},
		{"bad output", []string{"-o", "xml", "version"}, "unknown output format"},
		{"ingest without file", []string{"ingest"}, "usage"},
		{"ask without prompt", []string{"ask"}, "usage"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := run(context.Background(), &out, &out, tt.args)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestRun_Usage(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), &out, &out, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Commands:") {
		t.Errorf("usage = %q", out.String())
	}
}

func TestParseAskArgs(t *testing.T) {
	got, err := parseAskArgs([]string{"-file", "labs.txt", "what", "is", "ferritin"})
	if err != nil {
		t.Fatal(err)
	}
	want := askOptions{file: "labs.txt", prompt: "what is ferritin"}
	if diff := cmp.Diff(want, got, cmp.AllowUnexported(askOptions{})); diff != "" {
		t.Errorf("parseAskArgs mismatch (-want +got):\n%s", diff)
	}

	got, err = parseAskArgs([]string{"-file=labs.txt"})
	if err != nil || got.file != "labs.txt" || got.prompt != "" {
		t.Errorf("parseAskArgs(-file=) = %+v, %v", got, err)
	}
}

func TestParseReactArgs(t *testing.T) {
	got, err := parseReactArgs([]string{"-headline", "Sleep better", "-image", "ad.jpg", "-personas", "p.json"})
	if err != nil {
		t.Fatal(err)
	}
	want := reactOptions{headline: "Sleep better", image: "ad.jpg", personas: "p.json"}
	if diff := cmp.Diff(want, got, cmp.AllowUnexported(reactOptions{})); diff != "" {
		t.Errorf("parseReactArgs mismatch (-want +got):\n%s", diff)
	}

	for _, args := range [][]string{
		{"-headline", "h"},
		{"-image"},
		{"-color", "red", "-headline", "h", "-image", "a.png"},
	} {
		if _, err := parseReactArgs(args); err == nil {
			t.Errorf("parseReactArgs(%q) should fail", args)
		}
	}
}

func TestMimeFromExt(t *testing.T) {
	tests := map[string]string{
		"ad.JPG":  "image/jpeg",
		"ad.jpeg": "image/jpeg",
		"ad.webp": "image/webp",
		"ad.gif":  "image/gif",
		"ad.png":  "image/png",
		"ad":      "image/png",
	}
	for path, want := range tests {
		if got := mimeFromExt(path); got != want {
			t.Errorf("mimeFromExt(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestRunInit(t *testing.T) {
	old := syscall.Umask(0)
	t.Cleanup(func() { syscall.Umask(old) })

	dir := t.TempDir()
	var out bytes.Buffer
	if err := runInit(&out, dir); err != nil {
		t.Fatalf("runInit: %v", err)
	}

	if info, err := os.Stat(filepath.Join(dir, "data")); err != nil || !info.IsDir() {
		t.Errorf("data directory not created: %v", err)
	}
	cfgPath := filepath.Join(dir, "config.yaml")
	info, err := os.Stat(cfgPath)
	if err != nil {
		t.Fatalf("config.yaml not created: %v", err)
	}
	if got := info.Mode().Perm(); got != 0o600 {
		t.Errorf("config.yaml permissions = %o, want 0600", got)
	}

	// A second run keeps user edits.
	if err := os.WriteFile(cfgPath, []byte("listen:\n  port: 9000\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	out.Reset()
	if err := runInit(&out, dir); err != nil {
		t.Fatalf("second runInit: %v", err)
	}
	data, _ := os.ReadFile(cfgPath)
	if !strings.Contains(string(data), "9000") {
		t.Error("runInit overwrote an existing config")
	}
	if !strings.Contains(out.String(), "exists, kept") {
		t.Errorf("output = %q", out.String())
	}
}

type recordingAdder struct {
	added   []retrieval.Passage
	vectors [][]float32
}

func (r *recordingAdder) Add(_ context.Context, p retrieval.Passage, embedding []float32) (string, error) {
	r.added = append(r.added, p)
	r.vectors = append(r.vectors, embedding)
	return p.ID, nil
}

func TestIngestPassages(t *testing.T) {
	input := `{"id":"p1","text":"Ferritin stores iron.","metadata":{"filename":"iron.pdf","title":"Iron"},"embedding":[0.5,0.25]}

{"text":"Vitamin D supports bone health.","metadata":{"filename":"vitd.pdf"}}
`
	var idx recordingAdder
	n, err := ingestPassages(context.Background(), &idx, strings.NewReader(input))
	if err != nil {
		t.Fatalf("ingestPassages: %v", err)
	}
	if n != 2 || len(idx.added) != 2 {
		t.Fatalf("ingested %d (added %d), want 2", n, len(idx.added))
	}
	if idx.added[0].ID != "p1" || idx.added[0].Metadata.Title != "Iron" || idx.added[1].Metadata.Filename != "vitd.pdf" {
		t.Errorf("passages = %+v", idx.added)
	}
	if diff := cmp.Diff([][]float32{{0.5, 0.25}, nil}, idx.vectors); diff != "" {
		t.Errorf("vectors mismatch (-want +got):\n%s", diff)
	}
}

func TestIngestPassages_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		count int
	}{
		{"bad json", "{\"text\":\"ok\"}\nnot json\n", "line 2", 1},
		{"empty text", `{"text":"  "}`, "empty", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var idx recordingAdder
			n, err := ingestPassages(context.Background(), &idx, strings.NewReader(tt.input))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want containing %q", err, tt.want)
			}
			if n != tt.count {
				t.Errorf("count = %d, want %d", n, tt.count)
			}
		})
	}
}
