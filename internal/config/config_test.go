package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")

	cfg := Load()

	assert.Equal(t, "5005", cfg.Port)
	assert.Equal(t, "https://datasets.imdbws.com", cfg.ImdbBaseURL)
	assert.Equal(t, 5000, cfg.MaxTitles)
	assert.Equal(t, []string{"movie", "tvMovie"}, cfg.TitleTypes)
	assert.Equal(t, "nomic-embed-text", cfg.EmbeddingModel)
	assert.Equal(t, 768, cfg.EmbeddingDim)
	assert.Equal(t, 500, cfg.EmbedBatchSize)
	assert.Equal(t, 200, cfg.EfSearch)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("IMDB_MAX_TITLES", "250")
	t.Setenv("IMDB_TITLE_TYPES", "movie, short ,")
	t.Setenv("IMDB_REFRESH_INTERVAL", "6h")
	t.Setenv("IMDB_REFRESH_ON_START", "true")

	cfg := Load()
	assert.Equal(t, 250, cfg.MaxTitles)
	assert.Equal(t, []string{"movie", "short"}, cfg.TitleTypes)
	assert.Equal(t, 6*time.Hour, cfg.RefreshEvery)
	assert.True(t, cfg.RefreshOnStart)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("IMDB_MAX_TITLES", "not-a-number")
	t.Setenv("IMDB_REFRESH_INTERVAL", "soon")

	cfg := Load()
	assert.Equal(t, 5000, cfg.MaxTitles)
	assert.Equal(t, time.Duration(0), cfg.RefreshEvery)
}

func TestSourceFiles(t *testing.T) {
	cfg := Load()
	assert.Equal(t, []string{
		"title.basics.tsv.gz",
		"title.ratings.tsv.gz",
		"title.principals.tsv.gz",
		"name.basics.tsv.gz",
	}, cfg.SourceFiles())
}
