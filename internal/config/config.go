package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime settings, populated from environment variables.
type Config struct {
	Env         string
	DatabaseURL string
	Port        string

	// IMDb dataset import
	ImdbBaseURL    string
	DataDir        string
	MaxTitles      int
	TitleTypes     []string
	RefreshEvery   time.Duration
	RefreshOnStart bool

	// Embeddings (Ollama)
	OllamaHost     string
	EmbeddingModel string
	EmbeddingDim   int
	EmbedBatchSize int
	EmbedRetries   int
	EmbedBudget    time.Duration

	// Search
	EfSearch   int
	MaxResults int
}

// Load reads configuration from the environment with sensible defaults.
func Load() *Config {
	dbUser := getEnv("DB_USER", "postgres")
	dbPass := getEnv("DB_PASSWORD", "postgres")
	dbHost := getEnv("DB_HOST", "localhost")
	dbPort := getEnv("DB_PORT", "5432")
	dbName := getEnv("DB_NAME", "imdbvec")
	dbSSL := getEnv("DB_SSLMODE", "disable")

	dbURL := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		dbUser, dbPass, dbHost, dbPort, dbName, dbSSL)

	return &Config{
		Env:         getEnv("APP_ENV", "development"),
		DatabaseURL: getEnv("DATABASE_URL", dbURL),
		Port:        getEnv("PORT", "5005"),

		ImdbBaseURL:    getEnv("IMDB_BASE_URL", "https://datasets.imdbws.com"),
		DataDir:        getEnv("IMDB_DATA_DIR", "./data/imdb"),
		MaxTitles:      getEnvInt("IMDB_MAX_TITLES", 5000),
		TitleTypes:     getEnvList("IMDB_TITLE_TYPES", "movie,tvMovie"),
		RefreshEvery:   getEnvDuration("IMDB_REFRESH_INTERVAL", 0),
		RefreshOnStart: getEnvBool("IMDB_REFRESH_ON_START", false),

		OllamaHost:     getEnv("OLLAMA_HOST", "http://localhost:11434"),
		EmbeddingModel: getEnv("OLLAMA_MODEL", "nomic-embed-text"),
		EmbeddingDim:   getEnvInt("EMBEDDING_DIM", 768),
		EmbedBatchSize: getEnvInt("EMBED_BATCH_SIZE", 500),
		EmbedRetries:   getEnvInt("EMBED_MAX_RETRIES", 3),
		EmbedBudget:    getEnvDuration("EMBED_RETRY_BUDGET", 2*time.Minute),

		EfSearch:   getEnvInt("HNSW_EF_SEARCH", 200),
		MaxResults: getEnvInt("SEARCH_MAX_RESULTS", 50),
	}
}

// SourceFiles returns the dataset files a full refresh needs, in load order.
func (c *Config) SourceFiles() []string {
	return []string{
		"title.basics.tsv.gz",
		"title.ratings.tsv.gz",
		"title.principals.tsv.gz",
		"name.basics.tsv.gz",
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
