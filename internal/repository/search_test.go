package repository

import (
	"context"
	"testing"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/imdbvec/internal/model"
	"gorm.io/gorm"
)

type searchFixture struct {
	tconst string
	vec    []float32
	rating float64
	votes  int32
	genres string
	year   int16
}

func seedSearchCatalog(t *testing.T, db *gorm.DB) {
	t.Helper()
	fixtures := []searchFixture{
		{"tt0000001", []float32{1, 0, 0}, 5.0, 100, "{Drama}", 1990},
		{"tt0000002", []float32{0, 1, 0}, 9.0, 1000000, "{Comedy}", 2005},
		{"tt0000003", []float32{1, 0, 0}, 5.0, 100, "{Drama,Action}", 1999},
	}
	for _, f := range fixtures {
		require.NoError(t, db.Exec(`
			INSERT INTO movies (tconst, title_type, primary_title, start_year,
			                    genres, rating, votes, embedding, embedding_model,
			                    embedding_updated_at)
			VALUES (?, 'movie', ?, ?, ?::text[], ?, ?, ?, 'test-model', now())`,
			f.tconst, "Title "+f.tconst, f.year, f.genres, f.rating, f.votes,
			pgvector.NewVector(f.vec)).Error)
	}

	// one title without an embedding must never be a candidate
	require.NoError(t, db.Exec(`
		INSERT INTO movies (tconst, title_type, primary_title, rating, votes)
		VALUES ('tt0000004', 'movie', 'Unembedded', 9.9, 999999)`).Error)

	require.NoError(t, db.Exec(`
		INSERT INTO people (nconst, primary_name, search_name)
		VALUES ('nm0000001', 'Some Actor', 'someactor'),
		       ('nm0000002', 'Other Person', 'otherperson')`).Error)
	require.NoError(t, db.Exec(`
		INSERT INTO title_principals (movie_id, person_id, category, ordering)
		SELECT m.id, p.id, 'actor', 1
		FROM movies m, people p
		WHERE m.tconst = 'tt0000001' AND p.nconst = 'nm0000001'`).Error)
	require.NoError(t, db.Exec(`
		INSERT INTO title_principals (movie_id, person_id, category, ordering)
		SELECT m.id, p.id, 'actress', 1
		FROM movies m, people p
		WHERE m.tconst = 'tt0000002' AND p.nconst = 'nm0000002'`).Error)
}

func searchReq(k int) *model.SearchRequest {
	return &model.SearchRequest{QueryVector: []float32{1, 0, 0}, K: k}
}

func TestSearchRanking(t *testing.T) {
	db := repoTestDB(t)
	seedSearchCatalog(t, db)
	repo := NewSearchRepository(db)

	results, err := repo.Search(context.Background(), searchReq(10), []string{"movie"}, 40)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// identical scores for tt0000001 and tt0000003 break on tconst; the
	// popular but dissimilar tt0000002 trails; tt0000004 is not a candidate
	assert.Equal(t, "tt0000001", results[0].Tconst)
	assert.Equal(t, "tt0000003", results[1].Tconst)
	assert.Equal(t, "tt0000002", results[2].Tconst)

	assert.InDelta(t, 1.0, results[0].Similarity, 1e-6)
	assert.InDelta(t, 0.0, results[2].Similarity, 1e-6)

	// cast arrives parsed and ordered
	require.Len(t, results[0].Cast, 1)
	assert.Equal(t, "nm0000001", results[0].Cast[0].ID)
	assert.Equal(t, "Some Actor", results[0].Cast[0].Name)
	assert.Empty(t, results[1].Cast)
}

func TestSearchLimitsToK(t *testing.T) {
	db := repoTestDB(t)
	seedSearchCatalog(t, db)
	repo := NewSearchRepository(db)

	results, err := repo.Search(context.Background(), searchReq(1), []string{"movie"}, 40)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "tt0000001", results[0].Tconst)
}

func TestSearchFilters(t *testing.T) {
	db := repoTestDB(t)
	seedSearchCatalog(t, db)
	repo := NewSearchRepository(db)
	ctx := context.Background()

	t.Run("genre include", func(t *testing.T) {
		req := searchReq(10)
		req.IncludeGenres = []string{"Drama"}
		results, err := repo.Search(ctx, req, []string{"movie"}, 40)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "tt0000001", results[0].Tconst)
		assert.Equal(t, "tt0000003", results[1].Tconst)
	})

	t.Run("genre exclude", func(t *testing.T) {
		req := searchReq(10)
		req.ExcludeGenres = []string{"Action", "Comedy"}
		results, err := repo.Search(ctx, req, []string{"movie"}, 40)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "tt0000001", results[0].Tconst)
	})

	t.Run("rating floor", func(t *testing.T) {
		req := searchReq(10)
		minRating := 8.0
		req.MinRating = &minRating
		results, err := repo.Search(ctx, req, []string{"movie"}, 40)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "tt0000002", results[0].Tconst)
	})

	t.Run("year range", func(t *testing.T) {
		req := searchReq(10)
		from, to := 1995, 2000
		req.FromYear, req.ToYear = &from, &to
		results, err := repo.Search(ctx, req, []string{"movie"}, 40)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "tt0000003", results[0].Tconst)
	})

	t.Run("actor pattern", func(t *testing.T) {
		req := searchReq(10)
		req.Actors = []string{"someactor"}
		results, err := repo.Search(ctx, req, []string{"movie"}, 40)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "tt0000001", results[0].Tconst)
	})

	t.Run("title type whitelist", func(t *testing.T) {
		results, err := repo.Search(ctx, searchReq(10), []string{"tvMovie"}, 40)
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestParseCast(t *testing.T) {
	assert.Empty(t, parseCast(nil))
	assert.Empty(t, parseCast([]byte("not json")))

	cast := parseCast([]byte(`[{"id":"nm1","name":"A"},{"id":"","name":"B"}]`))
	require.Len(t, cast, 1)
	assert.Equal(t, "nm1", cast[0].ID)
}
