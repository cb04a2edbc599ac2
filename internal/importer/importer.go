package importer

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Importer runs the full refresh cycle: conditional fetch, staging load,
// top-N selection, catalog upsert/delete and derived-relation resync — the
// database work all inside one transaction, so readers see either the
// previous catalog or the new one, never anything in between.
type Importer struct {
	pool     *pgxpool.Pool
	fetcher  *Fetcher
	staging  *StagingLoader
	selector *Selector
	files    []string
	maxN     int
}

func NewImporter(pool *pgxpool.Pool, fetcher *Fetcher, staging *StagingLoader,
	selector *Selector, files []string, maxN int) *Importer {
	return &Importer{
		pool:     pool,
		fetcher:  fetcher,
		staging:  staging,
		selector: selector,
		files:    files,
		maxN:     maxN,
	}
}

// RunFullRefresh executes one refresh cycle and returns the size of the
// canonical set. Any failure rolls everything back and leaves the previous
// catalog (and the previous data files) intact.
func (im *Importer) RunFullRefresh(ctx context.Context) (int64, error) {
	started := time.Now()
	log.Printf("[Importer] full refresh started (maxTitles=%d)", im.maxN)

	// 1. Fetch every source file before touching the database. A missing or
	// broken file aborts the cycle with zero observable effect.
	paths := make(map[string]string, len(im.files))
	for _, file := range im.files {
		result, err := im.fetcher.Fetch(ctx, file)
		if err != nil {
			return 0, fmt.Errorf("fetch %s: %w", file, err)
		}
		paths[file] = result.Path
	}

	conn, err := im.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin refresh transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Bulk loads of full dataset snapshots can legitimately run long.
	if _, err := tx.Exec(ctx, "SET LOCAL statement_timeout = 0"); err != nil {
		return 0, fmt.Errorf("disable statement timeout: %w", err)
	}

	// 2. Stage the raw snapshot, one temp table per file.
	if err := im.staging.CreateTables(ctx, tx); err != nil {
		return 0, err
	}
	for _, file := range im.files {
		rows, err := im.staging.Load(ctx, tx, file, paths[file])
		if err != nil {
			return 0, err
		}
		log.Printf("[Importer] staged %s: %d rows", file, rows)
	}

	// 3. Rank and select the canonical set with its typed projection.
	selected, err := im.selector.SelectTopN(ctx, tx, im.maxN)
	if err != nil {
		return 0, err
	}
	log.Printf("[Importer] selected %d titles", selected)

	// 4. Synchronize the catalog and its derived relations.
	if err := im.syncCatalog(ctx, tx); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit refresh: %w", err)
	}

	log.Printf("[Importer] full refresh finished in %s (%d titles)", time.Since(started).Round(time.Millisecond), selected)
	return selected, nil
}

// syncCatalog upserts the selection into movies, deletes titles that fell out
// of the window, and rebuilds people/title_principals scoped exactly to the
// current selection.
func (im *Importer) syncCatalog(ctx context.Context, tx pgx.Tx) error {
	// Full-replace upsert: every refresh-computed attribute reflects the
	// latest snapshot. Plot, embedding and provenance are owned by other
	// writers and are left alone.
	if _, err := tx.Exec(ctx, `
		INSERT INTO movies
		  (tconst, title_type, primary_title, original_title, is_adult,
		   start_year, end_year, runtime_minutes, genres, rating, votes, updated_at)
		SELECT
		  tconst, title_type, primary_title, original_title, is_adult,
		  start_year, end_year, runtime_minutes, genres, rating, votes, now()
		FROM tmp_ranked_titles
		ON CONFLICT (tconst) DO UPDATE SET
		  title_type      = EXCLUDED.title_type,
		  primary_title   = EXCLUDED.primary_title,
		  original_title  = EXCLUDED.original_title,
		  is_adult        = EXCLUDED.is_adult,
		  start_year      = EXCLUDED.start_year,
		  end_year        = EXCLUDED.end_year,
		  runtime_minutes = EXCLUDED.runtime_minutes,
		  genres          = EXCLUDED.genres,
		  rating          = EXCLUDED.rating,
		  votes           = EXCLUDED.votes,
		  updated_at      = EXCLUDED.updated_at`); err != nil {
		return fmt.Errorf("upsert movies: %w", err)
	}

	// Slide the window: anything not selected this cycle is gone.
	if _, err := tx.Exec(ctx, `
		DELETE FROM movies m
		WHERE NOT EXISTS (
		  SELECT 1 FROM tmp_ranked_titles t WHERE t.tconst = m.tconst
		)`); err != nil {
		return fmt.Errorf("delete stale movies: %w", err)
	}

	// Derived relations are rebuilt wholesale, never patched.
	if _, err := tx.Exec(ctx, `TRUNCATE title_principals, people RESTART IDENTITY`); err != nil {
		return fmt.Errorf("truncate derived relations: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO people (nconst, primary_name, search_name)
		SELECT DISTINCT ON (p.nconst)
		  p.nconst,
		  COALESCE(NULLIF(nb.primary_name, E'\\N'), p.nconst),
		  regexp_replace(
		    lower(COALESCE(NULLIF(nb.primary_name, E'\\N'), p.nconst)),
		    '[^a-z0-9]', '', 'g')
		FROM tmp_title_principals p
		JOIN tmp_ranked_titles t ON t.tconst = p.tconst
		LEFT JOIN tmp_name_basics nb ON nb.nconst = p.nconst
		WHERE NULLIF(p.nconst, E'\\N') IS NOT NULL
		  AND lower(COALESCE(p.category, '')) IN ('actor','actress','director','writer')
		ORDER BY p.nconst`); err != nil {
		return fmt.Errorf("rebuild people: %w", err)
	}

	// Duplicate (title, person, category) rows collapse to the one with the
	// lowest ordering, NULL orderings last.
	if _, err := tx.Exec(ctx, fmt.Sprintf(`
		INSERT INTO title_principals (movie_id, person_id, category, ordering, job, characters)
		SELECT m.id, pe.id, sp.category, sp.ordering, sp.job, sp.characters
		FROM (
		  SELECT DISTINCT ON (p.tconst, p.nconst, lower(p.category))
		    p.tconst,
		    p.nconst,
		    lower(p.category) AS category,
		    %s AS ordering,
		    NULLIF(p.job, E'\\N') AS job,
		    NULLIF(p.characters, E'\\N') AS characters
		  FROM tmp_title_principals p
		  JOIN tmp_ranked_titles t ON t.tconst = p.tconst
		  WHERE NULLIF(p.nconst, E'\\N') IS NOT NULL
		    AND lower(COALESCE(p.category, '')) IN ('actor','actress','director','writer')
		  ORDER BY p.tconst, p.nconst, lower(p.category), %s ASC NULLS LAST
		) sp
		JOIN movies m ON m.tconst = sp.tconst
		JOIN people pe ON pe.nconst = sp.nconst`,
		smallintExpr("p.ordering"), smallintExpr("p.ordering"))); err != nil {
		return fmt.Errorf("rebuild principals: %w", err)
	}

	return nil
}
