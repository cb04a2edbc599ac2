package model

import (
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// Title is one canonical catalog record. The IMDb identifier (tconst) is the
// sole join key; everything else is replaced wholesale on each refresh.
type Title struct {
	ID             int64            `json:"id" gorm:"primaryKey"`
	Tconst         string           `json:"tconst" gorm:"uniqueIndex;not null"`
	TitleType      *string          `json:"title_type"`
	PrimaryTitle   *string          `json:"primary_title"`
	OriginalTitle  *string          `json:"original_title"`
	IsAdult        *bool            `json:"is_adult"`
	StartYear      *int16           `json:"start_year"`
	EndYear        *int16           `json:"end_year"`
	RuntimeMinutes *int16           `json:"runtime_minutes"`
	Genres         pq.StringArray   `json:"genres" gorm:"type:text[]"`
	Rating         *float64         `json:"rating" gorm:"index"`
	Votes          *int32           `json:"votes"`
	Plot           *string          `json:"plot"`
	Embedding      *pgvector.Vector `json:"-" gorm:"type:vector(768)"`
	EmbeddingModel *string          `json:"embedding_model"`
	EmbeddingAt    *time.Time       `json:"embedding_updated_at" gorm:"column:embedding_updated_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// TableName keeps the table name singular-free and explicit.
func (Title) TableName() string { return "movies" }

// Person is a cast or crew member referenced by at least one Principal.
type Person struct {
	ID          int64  `json:"id" gorm:"primaryKey"`
	Nconst      string `json:"nconst" gorm:"uniqueIndex;not null"`
	PrimaryName string `json:"primary_name" gorm:"not null"`
	// SearchName is the lowercase alphanumeric form of PrimaryName, computed
	// once at sync time so fuzzy actor matching never re-normalizes rows.
	SearchName string `json:"-" gorm:"not null;index"`
}

func (Person) TableName() string { return "people" }

// Principal links a Title to a Person in one category (actor, actress,
// director, writer). Rebuilt from scratch on every refresh.
type Principal struct {
	MovieID    int64   `json:"movie_id" gorm:"not null;index"`
	PersonID   int64   `json:"person_id" gorm:"not null"`
	Category   string  `json:"category" gorm:"not null"`
	Ordering   *int16  `json:"ordering"`
	Job        *string `json:"job"`
	Characters *string `json:"characters"`
}

func (Principal) TableName() string { return "title_principals" }

// CastMember is the strongly typed cast entry returned by search results.
type CastMember struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SearchRequest is a hybrid retrieval query: a query vector plus optional
// structured filters. All filters are no-ops when unset.
type SearchRequest struct {
	QueryVector   []float32 `json:"-"`
	IncludeGenres []string  `json:"include_genres"`
	ExcludeGenres []string  `json:"exclude_genres"`
	FromYear      *int      `json:"from_year"`
	ToYear        *int      `json:"to_year"`
	MaxRuntime    *int      `json:"max_runtime"`
	MinRating     *float64  `json:"min_rating"`
	Actors        []string  `json:"actors"`
	K             int       `json:"k" binding:"required,min=1"`
}

// SearchResult is one ranked retrieval hit.
type SearchResult struct {
	Tconst     string       `json:"tconst"`
	Title      string       `json:"title"`
	Year       *int16       `json:"year,omitempty"`
	Rating     *float64     `json:"rating,omitempty"`
	Votes      *int32       `json:"votes,omitempty"`
	Similarity float64      `json:"similarity"`
	Score      float64      `json:"score"`
	Genres     []string     `json:"genres"`
	Cast       []CastMember `json:"cast"`
	Plot       *string      `json:"plot,omitempty"`
}
