package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// InitDB opens the GORM connection used by the read path and the embedding
// backfill.
func InitDB(databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrap sql.DB: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	return db, nil
}

// InitPool opens the pgx pool the importer uses for its COPY-based refresh
// transaction.
func InitPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Migrate creates the schema, the pgvector extension and the HNSW index.
// Everything is IF NOT EXISTS so it is safe to run on every start.
func Migrate(db *gorm.DB, embeddingDim int) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS movies (
		  id                   bigserial PRIMARY KEY,
		  tconst               text NOT NULL UNIQUE,
		  title_type           text,
		  primary_title        text,
		  original_title       text,
		  is_adult             boolean,
		  start_year           smallint,
		  end_year             smallint,
		  runtime_minutes      smallint,
		  genres               text[],
		  rating               double precision,
		  votes                integer,
		  plot                 text,
		  embedding            vector(%d),
		  embedding_model      text,
		  embedding_updated_at timestamptz,
		  updated_at           timestamptz NOT NULL DEFAULT now()
		)`, embeddingDim),
		`CREATE TABLE IF NOT EXISTS people (
		  id           bigserial PRIMARY KEY,
		  nconst       text NOT NULL UNIQUE,
		  primary_name text NOT NULL,
		  search_name  text NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS title_principals (
		  movie_id   bigint NOT NULL REFERENCES movies(id) ON DELETE CASCADE,
		  person_id  bigint NOT NULL REFERENCES people(id) ON DELETE CASCADE,
		  category   text NOT NULL,
		  ordering   smallint,
		  job        text,
		  characters text,
		  UNIQUE (movie_id, person_id, category)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_movies_rating ON movies (rating)`,
		`CREATE INDEX IF NOT EXISTS idx_movies_embedding_model ON movies (id) WHERE embedding_model IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_people_search_name ON people (search_name)`,
		`CREATE INDEX IF NOT EXISTS idx_principals_movie ON title_principals (movie_id)`,
		`CREATE INDEX IF NOT EXISTS idx_movies_embedding_hnsw
		   ON movies USING hnsw (embedding vector_cosine_ops)`,
	}

	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Repositories bundles every repository behind one handle.
type Repositories struct {
	DB     *gorm.DB
	Title  *TitleRepository
	Search *SearchRepository
}

func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		DB:     db,
		Title:  NewTitleRepository(db),
		Search: NewSearchRepository(db),
	}
}
