package repository

import (
	"os"
	"testing"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// repoTestDB recreates the schema in the throwaway test database; run test
// packages serially (go test -p 1) when TEST_DATABASE_URL is set.
func repoTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := InitDB(url)
	require.NoError(t, err)
	require.NoError(t, db.Exec(
		"DROP TABLE IF EXISTS title_principals, people, movies CASCADE").Error)
	require.NoError(t, Migrate(db, 3))
	return db
}

func insertMovie(t *testing.T, db *gorm.DB, tconst string, embedded bool) int64 {
	t.Helper()
	var embedding interface{}
	var modelName interface{}
	if embedded {
		embedding = pgvector.NewVector([]float32{1, 2, 3})
		modelName = "test-model"
	}
	var id int64
	require.NoError(t, db.Raw(`
		INSERT INTO movies (tconst, title_type, primary_title, rating, votes,
		                    embedding, embedding_model, embedding_updated_at)
		VALUES (?, 'movie', ?, 7.0, 1000, ?, ?, CASE WHEN ?::text IS NULL THEN NULL ELSE now() END)
		RETURNING id`,
		tconst, "Title "+tconst, embedding, modelName, modelName).Scan(&id).Error)
	return id
}

func TestFindByTconst(t *testing.T) {
	db := repoTestDB(t)
	repo := NewTitleRepository(db)
	insertMovie(t, db, "tt0000001", false)

	found, err := repo.FindByTconst("tt0000001")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "tt0000001", found.Tconst)

	missing, err := repo.FindByTconst("tt9999999")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestFindMissingEmbeddingsPaging(t *testing.T) {
	db := repoTestDB(t)
	repo := NewTitleRepository(db)

	insertMovie(t, db, "tt0000001", false)
	insertMovie(t, db, "tt0000002", true)
	insertMovie(t, db, "tt0000003", false)
	insertMovie(t, db, "tt0000004", false)

	page, err := repo.FindMissingEmbeddings(2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "tt0000001", page[0].Tconst)
	assert.Equal(t, "tt0000003", page[1].Tconst)
}

func TestSaveEmbeddingsMakesProgress(t *testing.T) {
	db := repoTestDB(t)
	repo := NewTitleRepository(db)

	id := insertMovie(t, db, "tt0000001", false)
	require.NoError(t, repo.SaveEmbeddings([]EmbeddingUpdate{{
		ID:     id,
		Vector: pgvector.NewVector([]float32{0.5, 0.5, 0.5}),
		Model:  "test-model",
		At:     time.Now(),
	}}))

	remaining, err := repo.FindMissingEmbeddings(10)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestUpdatePlotInvalidatesEmbedding(t *testing.T) {
	db := repoTestDB(t)
	repo := NewTitleRepository(db)
	insertMovie(t, db, "tt0000001", true)

	require.NoError(t, repo.UpdatePlot("tt0000001", "A new synopsis."))

	var row struct {
		Plot           *string
		EmbeddingModel *string
	}
	require.NoError(t, db.Raw(`
		SELECT plot, embedding_model FROM movies WHERE tconst = 'tt0000001'`).
		Scan(&row).Error)
	require.NotNil(t, row.Plot)
	assert.Equal(t, "A new synopsis.", *row.Plot)
	assert.Nil(t, row.EmbeddingModel, "provenance must be cleared with the plot change")

	// the row is due for re-embedding again
	page, err := repo.FindMissingEmbeddings(10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Nil(t, page[0].Embedding)
}

func TestUpdatePlotMissingTitle(t *testing.T) {
	db := repoTestDB(t)
	repo := NewTitleRepository(db)

	err := repo.UpdatePlot("tt9999999", "whatever")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
