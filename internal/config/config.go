package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	LLMBaseURL         string
	LLMModelName       string
	LLMAPIKey          string
	EmbeddingBaseURL   string
	EmbeddingModelName string
	DBPath             string
	QdrantURL          string
	QdrantCollection   string
	VectorSize         int
	APIPort            string
	LogLevel           slog.Level
	LogFormat          string

	Runtime Runtime
}

// Runtime holds tuning knobs read from an optional YAML file
// (configs/runtime.yaml by default, overridable via RUNTIME_CONFIG).
// Environment and .env only carry connection settings; retrieval behavior
// lives here so it can change without re-deploying.
type Runtime struct {
	// ChunkMaxTokens is the token budget per chunk.
	ChunkMaxTokens int `yaml:"chunk_max_tokens"`
	// ChunkOverlap is the token overlap between consecutive chunks.
	ChunkOverlap int `yaml:"chunk_overlap"`
	// Rerank toggles the default reranking behavior.
	Rerank bool `yaml:"rerank"`
	// Router toggles question-type routing.
	Router bool `yaml:"router"`
	// Retrieval carries default retrieval settings (contains, year_min,
	// year_max, neighbors, per_doc, max_preview_chars, max_snippet_chars),
	// merged under per-request filters.
	Retrieval map[string]any `yaml:"retrieval"`
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or project root, it will be loaded automatically.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	// Check current directory first, then walk up to find project root (where go.mod is)
	_ = godotenv.Load() // Try current directory

	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ { // Limit search depth
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break // Reached filesystem root
			}
			dir = parent
		}
	}

	cfg := &Config{
		LLMBaseURL:         getEnv("LLM_BASE_URL", "http://localhost:8080"),
		LLMModelName:       getEnv("LLM_MODEL", "Llama-3.1-8B-Instruct"),
		LLMAPIKey:          getEnv("LLM_API_KEY", "dummy-key"),
		EmbeddingBaseURL:   getEnv("EMBEDDING_BASE_URL", "http://localhost:8081"),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL_NAME", "granite-embedding-278m-multilingual"),
		DBPath:             getEnv("DB_PATH", "./data/paperhub.db"),
		QdrantURL:          getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection:   getEnv("QDRANT_COLLECTION", "chunks"),
		APIPort:            getEnv("API_PORT", "9000"),
		LogLevel:           parseLogLevel(getEnv("LOG_LEVEL", "info")),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}

	// VECTOR_SIZE must match the output width of the embeddings model.
	// If it changes, the vector collection must be recreated.
	vectorSizeStr := getEnv("VECTOR_SIZE", "")
	if vectorSizeStr == "" {
		return nil, fmt.Errorf("VECTOR_SIZE is required")
	}
	vectorSize, err := strconv.Atoi(vectorSizeStr)
	if err != nil {
		return nil, fmt.Errorf("VECTOR_SIZE must be a valid integer: %w", err)
	}
	if vectorSize <= 0 {
		return nil, fmt.Errorf("VECTOR_SIZE must be greater than 0")
	}
	cfg.VectorSize = vectorSize

	runtime, err := loadRuntime(getEnv("RUNTIME_CONFIG", "configs/runtime.yaml"))
	if err != nil {
		return nil, err
	}
	cfg.Runtime = runtime

	// Create ./data directory if it doesn't exist (for future DB file)
	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// loadRuntime reads the runtime YAML file. A missing file yields defaults;
// a malformed file is an error.
func loadRuntime(path string) (Runtime, error) {
	runtime := defaultRuntime()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return runtime, nil
		}
		return runtime, fmt.Errorf("failed to read runtime config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &runtime); err != nil {
		return runtime, fmt.Errorf("failed to parse runtime config %s: %w", path, err)
	}

	if runtime.ChunkMaxTokens <= 0 {
		runtime.ChunkMaxTokens = defaultRuntime().ChunkMaxTokens
	}
	if runtime.ChunkOverlap < 0 || runtime.ChunkOverlap >= runtime.ChunkMaxTokens {
		runtime.ChunkOverlap = defaultRuntime().ChunkOverlap
	}

	return runtime, nil
}

func defaultRuntime() Runtime {
	return Runtime{
		ChunkMaxTokens: 350,
		ChunkOverlap:   60,
		Rerank:         true,
		Router:         false,
	}
}

// parseLogLevel maps a level name to a slog.Level, defaulting to info.
func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
