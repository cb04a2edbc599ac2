package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/user/imdbvec/internal/model"
	"gorm.io/gorm"
)

// SearchRepository runs the hybrid nearest-neighbor query: vector similarity
// over the embedded catalog, pre-filtered by structured predicates and ranked
// by the composite popularity-aware score.
type SearchRepository struct {
	db *gorm.DB
}

func NewSearchRepository(db *gorm.DB) *SearchRepository {
	return &SearchRepository{db: db}
}

// searchRow is the raw result row; the cast list arrives as a JSON aggregate
// and is parsed into typed records exactly once, here at the storage boundary.
type searchRow struct {
	ID           int64
	Tconst       string
	PrimaryTitle *string
	StartYear    *int16
	Rating       *float64
	Votes        *int32
	Genres       pq.StringArray `gorm:"type:text[]"`
	Plot         *string
	Similarity   float64
	ActorList    []byte
}

// Search returns up to req.K candidate rows ordered by composite score with
// a deterministic tconst tie-break. Only titles with a stored embedding are
// candidates; req.Actors must already be normalized by the caller.
func (r *SearchRepository) Search(ctx context.Context, req *model.SearchRequest,
	titleTypes []string, efSearch int) ([]model.SearchResult, error) {

	where := []string{"m.embedding IS NOT NULL"}
	var args []interface{}

	if len(titleTypes) > 0 {
		lowered := make([]string, len(titleTypes))
		for i, t := range titleTypes {
			lowered[i] = strings.ToLower(t)
		}
		where = append(where, "LOWER(m.title_type) = ANY(?::text[])")
		args = append(args, pq.Array(lowered))
	}
	if req.FromYear != nil {
		where = append(where, "m.start_year >= ?")
		args = append(args, *req.FromYear)
	}
	if req.ToYear != nil {
		where = append(where, "m.start_year <= ?")
		args = append(args, *req.ToYear)
	}
	if req.MaxRuntime != nil {
		where = append(where, "m.runtime_minutes <= ?")
		args = append(args, *req.MaxRuntime)
	}
	if req.MinRating != nil {
		where = append(where, "m.rating >= ?")
		args = append(args, *req.MinRating)
	}
	if len(req.IncludeGenres) > 0 {
		where = append(where,
			"EXISTS (SELECT 1 FROM unnest(?::text[]) g WHERE g = ANY(m.genres))")
		args = append(args, pq.Array(req.IncludeGenres))
	}
	if len(req.ExcludeGenres) > 0 {
		where = append(where,
			"NOT EXISTS (SELECT 1 FROM unnest(?::text[]) g WHERE g = ANY(m.genres))")
		args = append(args, pq.Array(req.ExcludeGenres))
	}
	for _, pattern := range req.Actors {
		where = append(where, `EXISTS (
			SELECT 1
			FROM title_principals tp
			JOIN people p ON p.id = tp.person_id
			WHERE tp.movie_id = m.id
			  AND tp.category IN ('actor','actress')
			  AND p.search_name LIKE ?
		)`)
		args = append(args, "%"+pattern+"%")
	}

	vec := pgvector.NewVector(req.QueryVector)
	sql := fmt.Sprintf(`
		WITH filtered AS (
		  SELECT id, tconst, primary_title, start_year, rating, votes,
		         genres, plot, embedding
		  FROM movies m
		  WHERE %s
		)
		SELECT f.tconst,
		       f.primary_title,
		       f.start_year,
		       f.rating,
		       f.votes,
		       f.genres,
		       f.plot,
		       (1 - (f.embedding <=> ?::vector)) AS similarity,
		       actors.actor_list
		FROM filtered f
		LEFT JOIN LATERAL (
		  SELECT json_agg(obj) AS actor_list
		  FROM (
		    SELECT json_build_object('id', p.nconst, 'name', p.primary_name) AS obj
		    FROM title_principals tp
		    JOIN people p ON p.id = tp.person_id
		    WHERE tp.movie_id = f.id
		      AND tp.category IN ('actor','actress')
		    ORDER BY tp.ordering NULLS LAST, p.primary_name
		    LIMIT 5
		  ) actor_rows
		) actors ON TRUE
		ORDER BY
		  (0.60 * (1 - (f.embedding <=> ?::vector))
		   + 0.30 * LEAST(COALESCE(f.rating, 0) / 10.0, 1.0)
		   + 0.10 * LOG10(GREATEST(COALESCE(f.votes, 0), 1))) DESC,
		  f.tconst ASC
		LIMIT ?`, strings.Join(where, "\n		    AND "))

	args = append(args, vec, vec, req.K)

	var rows []searchRow
	err := r.db.WithContext(ctx).Connection(func(tx *gorm.DB) error {
		// ef_search is a session setting; pin one connection so it applies
		// to the query that follows.
		if err := tx.Exec(fmt.Sprintf("SET hnsw.ef_search = %d", efSearch)).Error; err != nil {
			return err
		}
		return tx.Raw(sql, args...).Scan(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("hybrid search: %w", err)
	}

	results := make([]model.SearchResult, 0, len(rows))
	for _, row := range rows {
		title := row.Tconst
		if row.PrimaryTitle != nil && *row.PrimaryTitle != "" {
			title = *row.PrimaryTitle
		}
		genres := []string(row.Genres)
		if genres == nil {
			genres = []string{}
		}
		results = append(results, model.SearchResult{
			Tconst:     row.Tconst,
			Title:      title,
			Year:       row.StartYear,
			Rating:     row.Rating,
			Votes:      row.Votes,
			Similarity: row.Similarity,
			Genres:     genres,
			Cast:       parseCast(row.ActorList),
			Plot:       row.Plot,
		})
	}
	return results, nil
}

// parseCast decodes the json_agg cast payload into ordered typed records.
// A malformed aggregate yields an empty cast, never a failed search.
func parseCast(raw []byte) []model.CastMember {
	if len(raw) == 0 {
		return []model.CastMember{}
	}
	var cast []model.CastMember
	if err := json.Unmarshal(raw, &cast); err != nil {
		return []model.CastMember{}
	}
	out := cast[:0]
	for _, c := range cast {
		if c.ID != "" && c.Name != "" {
			out = append(out, c)
		}
	}
	return out
}
