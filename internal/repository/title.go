package repository

import (
	"errors"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/user/imdbvec/internal/model"
	"gorm.io/gorm"
)

type TitleRepository struct {
	db *gorm.DB
}

func NewTitleRepository(db *gorm.DB) *TitleRepository {
	return &TitleRepository{db: db}
}

// FindByTconst returns one catalog record, or nil when absent.
func (r *TitleRepository) FindByTconst(tconst string) (*model.Title, error) {
	var title model.Title
	err := r.db.Where("tconst = ?", tconst).First(&title).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &title, nil
}

// Count returns the size of the canonical set.
func (r *TitleRepository) Count() (int64, error) {
	var n int64
	err := r.db.Model(&model.Title{}).Count(&n).Error
	return n, err
}

// FindMissingEmbeddings returns the next page of titles without embedding
// provenance, ordered by internal id so repeated calls make forward progress.
func (r *TitleRepository) FindMissingEmbeddings(limit int) ([]model.Title, error) {
	var titles []model.Title
	err := r.db.
		Where("embedding_model IS NULL").
		Order("id ASC").
		Limit(limit).
		Find(&titles).Error
	return titles, err
}

// DirectorNames returns the director names of one title in credit order.
func (r *TitleRepository) DirectorNames(movieID int64) ([]string, error) {
	var names []string
	err := r.db.Raw(`
		SELECT p.primary_name
		FROM title_principals tp
		JOIN people p ON p.id = tp.person_id
		WHERE tp.movie_id = ? AND tp.category = 'director'
		ORDER BY tp.ordering NULLS LAST, p.primary_name`, movieID).
		Scan(&names).Error
	return names, err
}

// Cast returns up to limit billed actors for one title, in credit order.
func (r *TitleRepository) Cast(movieID int64, limit int) ([]model.CastMember, error) {
	var cast []model.CastMember
	err := r.db.Raw(`
		SELECT p.nconst AS id, p.primary_name AS name
		FROM title_principals tp
		JOIN people p ON p.id = tp.person_id
		WHERE tp.movie_id = ? AND tp.category IN ('actor','actress')
		ORDER BY tp.ordering NULLS LAST, p.primary_name
		LIMIT ?`, movieID, limit).
		Scan(&cast).Error
	return cast, err
}

// EmbeddingUpdate is one computed vector ready to persist.
type EmbeddingUpdate struct {
	ID     int64
	Vector pgvector.Vector
	Model  string
	At     time.Time
}

// SaveEmbeddings persists one backfill batch in a single transaction.
func (r *TitleRepository) SaveEmbeddings(batch []EmbeddingUpdate) error {
	if len(batch) == 0 {
		return nil
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		for _, u := range batch {
			if err := tx.Exec(`
				UPDATE movies
				SET embedding = ?, embedding_model = ?, embedding_updated_at = ?
				WHERE id = ?`,
				u.Vector, u.Model, u.At, u.ID).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdatePlot stores new description text and clears the embedding plus its
// provenance in the same statement, so the stale vector can never survive a
// plot change.
func (r *TitleRepository) UpdatePlot(tconst, plot string) error {
	result := r.db.Exec(`
		UPDATE movies
		SET plot = ?, embedding = NULL, embedding_model = NULL,
		    embedding_updated_at = NULL, updated_at = now()
		WHERE tconst = ?`, plot, tconst)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
