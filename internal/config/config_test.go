package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("VECTOR_SIZE", "768")
	t.Setenv("DB_PATH", filepath.Join(dir, "data", "test.db"))
	t.Setenv("RUNTIME_CONFIG", filepath.Join(dir, "missing-runtime.yaml"))
	t.Setenv("QDRANT_COLLECTION", "test-chunks")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "JSON")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.VectorSize != 768 {
		t.Errorf("vector size = %d", cfg.VectorSize)
	}
	if cfg.QdrantCollection != "test-chunks" {
		t.Errorf("collection = %s", cfg.QdrantCollection)
	}
	if cfg.LogLevel != slog.LevelDebug || cfg.LogFormat != "json" {
		t.Errorf("log settings = %v %s", cfg.LogLevel, cfg.LogFormat)
	}

	// Defaults for everything not set.
	if cfg.APIPort != "9000" || cfg.QdrantURL != "http://localhost:6333" {
		t.Errorf("defaults not applied: %+v", cfg)
	}

	// The data directory is created for the DB file.
	if _, err := os.Stat(filepath.Join(dir, "data")); err != nil {
		t.Errorf("data directory not created: %v", err)
	}

	// Missing runtime file falls back to defaults.
	if cfg.Runtime.ChunkMaxTokens != 350 || cfg.Runtime.ChunkOverlap != 60 {
		t.Errorf("runtime defaults = %+v", cfg.Runtime)
	}
	if !cfg.Runtime.Rerank || cfg.Runtime.Router {
		t.Errorf("runtime toggles = %+v", cfg.Runtime)
	}
}

func TestLoadRequiresVectorSize(t *testing.T) {
	t.Setenv("VECTOR_SIZE", "")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "VECTOR_SIZE") {
		t.Errorf("expected VECTOR_SIZE error, got %v", err)
	}

	t.Setenv("VECTOR_SIZE", "not-a-number")
	if _, err := Load(); err == nil {
		t.Error("expected error for non-numeric VECTOR_SIZE")
	}

	t.Setenv("VECTOR_SIZE", "-4")
	if _, err := Load(); err == nil {
		t.Error("expected error for non-positive VECTOR_SIZE")
	}
}

func writeRuntime(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runtime.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write runtime config: %v", err)
	}
	return path
}

func TestLoadRuntime(t *testing.T) {
	path := writeRuntime(t, `
chunk_max_tokens: 500
chunk_overlap: 100
rerank: false
router: true
retrieval:
  per_doc: 3
  neighbors: 2
`)

	runtime, err := loadRuntime(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runtime.ChunkMaxTokens != 500 || runtime.ChunkOverlap != 100 {
		t.Errorf("chunk settings = %+v", runtime)
	}
	if runtime.Rerank || !runtime.Router {
		t.Errorf("toggles = %+v", runtime)
	}
	if runtime.Retrieval["per_doc"] != 3 || runtime.Retrieval["neighbors"] != 2 {
		t.Errorf("retrieval defaults = %v", runtime.Retrieval)
	}
}

func TestLoadRuntimeInvalidValuesRedefaulted(t *testing.T) {
	path := writeRuntime(t, `
chunk_max_tokens: -10
chunk_overlap: 9999
`)

	runtime, err := loadRuntime(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runtime.ChunkMaxTokens != 350 || runtime.ChunkOverlap != 60 {
		t.Errorf("invalid values should fall back to defaults, got %+v", runtime)
	}
}

func TestLoadRuntimeMalformed(t *testing.T) {
	path := writeRuntime(t, "chunk_max_tokens: [not an int")
	if _, err := loadRuntime(path); err == nil {
		t.Error("expected an error for malformed YAML")
	}
}

func TestLoadRuntimeMissingFile(t *testing.T) {
	runtime, err := loadRuntime(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file must not error: %v", err)
	}
	if runtime.ChunkMaxTokens != 350 {
		t.Errorf("expected defaults, got %+v", runtime)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		raw  string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLogLevel(tt.raw); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, expected %v", tt.raw, got, tt.want)
		}
	}
}
