package importer

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Selector materializes the canonical top-N title set from staging data.
//
// The ordering key is deterministic under re-import: missing ratings sort as
// -1, missing vote counts as 0, and the trailing tconst comparison breaks all
// remaining ties, including ties at the cut-off boundary.
type Selector struct {
	titleTypes []string
}

func NewSelector(titleTypes []string) *Selector {
	lowered := make([]string, 0, len(titleTypes))
	for _, t := range titleTypes {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			lowered = append(lowered, t)
		}
	}
	return &Selector{titleTypes: lowered}
}

// SelectTopN builds tmp_ranked_titles: the whitelisted, typed, ranked
// projection of the staged snapshot, cut to maxN rows (unbounded when <= 0).
// Returns the size of the selection.
//
// All field coercion is defensive: a sentinel token, an out-of-range number
// or a malformed integer becomes NULL instead of failing the refresh.
func (s *Selector) SelectTopN(ctx context.Context, tx pgx.Tx, maxN int) (int64, error) {
	if len(s.titleTypes) == 0 {
		return 0, fmt.Errorf("title type whitelist is empty")
	}

	limitClause := ""
	if maxN > 0 {
		limitClause = fmt.Sprintf("LIMIT %d", maxN)
	}

	// CREATE TABLE AS cannot take bind parameters, so the whitelist (operator
	// config, not user input) is inlined as quoted literals.
	sql := fmt.Sprintf(`
		CREATE TEMP TABLE tmp_ranked_titles ON COMMIT DROP AS
		SELECT
		  b.tconst,
		  NULLIF(b.title_type, E'\\N') AS title_type,
		  NULLIF(b.primary_title, E'\\N') AS primary_title,
		  NULLIF(b.original_title, E'\\N') AS original_title,
		  CASE
		    WHEN b.is_adult IS NULL OR b.is_adult = E'\\N' THEN NULL
		    WHEN b.is_adult IN ('1','t','true','TRUE') THEN TRUE
		    WHEN b.is_adult IN ('0','f','false','FALSE') THEN FALSE
		    ELSE NULL
		  END AS is_adult,
		  %s AS start_year,
		  %s AS end_year,
		  %s AS runtime_minutes,
		  CASE
		    WHEN b.genres IS NULL OR b.genres = E'\\N' THEN NULL
		    ELSE string_to_array(b.genres, ',')::text[]
		  END AS genres,
		  %s AS rating,
		  %s AS votes
		FROM tmp_title_basics b
		LEFT JOIN tmp_title_ratings r ON r.tconst = b.tconst
		WHERE LOWER(b.title_type) IN (%s)
		ORDER BY
		  COALESCE(%s, -1) DESC,
		  COALESCE(%s, 0) DESC,
		  b.tconst ASC
		%s`,
		smallintExpr("b.start_year"),
		smallintExpr("b.end_year"),
		smallintExpr("b.runtime_minutes"),
		doubleExpr("r.average_rating"),
		integerExpr("r.num_votes"),
		quotedList(s.titleTypes),
		doubleExpr("r.average_rating"),
		bigintExpr("r.num_votes"),
		limitClause,
	)

	if _, err := tx.Exec(ctx, sql); err != nil {
		return 0, fmt.Errorf("rank titles: %w", err)
	}

	if err := s.logRejections(ctx, tx); err != nil {
		return 0, err
	}

	var count int64
	if err := tx.QueryRow(ctx, "SELECT COUNT(*) FROM tmp_ranked_titles").Scan(&count); err != nil {
		return 0, fmt.Errorf("count ranked titles: %w", err)
	}
	return count, nil
}

// logRejections counts fields that carried a real (non-sentinel) value the
// typed projection still had to null out, so silently degraded upstream data
// shows up in the logs instead of vanishing.
func (s *Selector) logRejections(ctx context.Context, tx pgx.Tx) error {
	sql := fmt.Sprintf(`
		SELECT
		  %s, %s, %s, %s, %s
		FROM tmp_title_basics b
		LEFT JOIN tmp_title_ratings r ON r.tconst = b.tconst
		WHERE LOWER(b.title_type) IN (%s)`,
		rejectedExpr("b.start_year", smallintExpr("b.start_year")),
		rejectedExpr("b.end_year", smallintExpr("b.end_year")),
		rejectedExpr("b.runtime_minutes", smallintExpr("b.runtime_minutes")),
		rejectedExpr("r.average_rating", doubleExpr("r.average_rating")),
		rejectedExpr("r.num_votes", integerExpr("r.num_votes")),
		quotedList(s.titleTypes),
	)

	var startYear, endYear, runtime, rating, votes int64
	if err := tx.QueryRow(ctx, sql).Scan(&startYear, &endYear, &runtime, &rating, &votes); err != nil {
		return fmt.Errorf("count coercion rejections: %w", err)
	}
	if startYear+endYear+runtime+rating+votes > 0 {
		log.Printf("[Selector] coerced malformed fields to NULL: start_year=%d end_year=%d runtime_minutes=%d rating=%d votes=%d",
			startYear, endYear, runtime, rating, votes)
	}
	return nil
}

// smallintExpr coerces a raw text column to smallint: sentinel, non-integer
// and out-of-int16-range values all become NULL.
func smallintExpr(col string) string {
	return fmt.Sprintf(`CASE
	    WHEN %[1]s IS NULL OR %[1]s = E'\\N' THEN NULL
	    WHEN %[1]s !~ '^-?\d+$' THEN NULL
	    WHEN %[1]s::bigint BETWEEN -32768 AND 32767 THEN %[1]s::smallint
	    ELSE NULL
	  END`, col)
}

func integerExpr(col string) string {
	return fmt.Sprintf(`CASE
	    WHEN %[1]s IS NULL OR %[1]s = E'\\N' THEN NULL
	    WHEN %[1]s !~ '^-?\d+$' THEN NULL
	    WHEN %[1]s::bigint BETWEEN -2147483648 AND 2147483647 THEN %[1]s::integer
	    ELSE NULL
	  END`, col)
}

func bigintExpr(col string) string {
	return fmt.Sprintf(`CASE
	    WHEN %[1]s IS NULL OR %[1]s = E'\\N' THEN NULL
	    WHEN %[1]s !~ '^-?\d+$' THEN NULL
	    ELSE %[1]s::bigint
	  END`, col)
}

func doubleExpr(col string) string {
	return fmt.Sprintf(`CASE
	    WHEN %[1]s IS NULL OR %[1]s = E'\\N' THEN NULL
	    WHEN %[1]s !~ '^-?\d+(\.\d+)?$' THEN NULL
	    ELSE %[1]s::double precision
	  END`, col)
}

// rejectedExpr counts rows where the raw column held a real value but the
// typed coercion still produced NULL.
func rejectedExpr(col, coerced string) string {
	return fmt.Sprintf(
		`COUNT(*) FILTER (WHERE %[1]s IS NOT NULL AND %[1]s <> E'\\N' AND (%[2]s) IS NULL)`,
		col, coerced)
}

func quotedList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + strings.ReplaceAll(v, "'", "''") + "'"
	}
	return strings.Join(quoted, ", ")
}
