package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/photo-contest-api/internal/models"
)

// PhotoRepository manages contest entries. It never writes the aggregate
// columns; those belong to the vote transaction.
type PhotoRepository interface {
	List(ctx context.Context) ([]models.Photo, error)
	GetByID(ctx context.Context, id string) (models.Photo, error)
	Upsert(ctx context.Context, photo *models.Photo) error
	UpsertBatch(ctx context.Context, photos []models.Photo) (int64, error)
}

type photoRepository struct {
	db *gorm.DB
}

// NewPhotoRepository constructs a photo repository implementation.
func NewPhotoRepository(db *gorm.DB) PhotoRepository {
	return &photoRepository{db: db}
}

func (r *photoRepository) List(ctx context.Context) ([]models.Photo, error) {
	var photos []models.Photo
	err := r.db.WithContext(ctx).Order("created_at ASC").Order("id ASC").Find(&photos).Error
	return photos, err
}

func (r *photoRepository) GetByID(ctx context.Context, id string) (models.Photo, error) {
	var photo models.Photo
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&photo).Error
	return photo, err
}

func (r *photoRepository) Upsert(ctx context.Context, photo *models.Photo) error {
	return r.db.WithContext(ctx).Clauses(registrationConflict()).Create(photo).Error
}

func (r *photoRepository) UpsertBatch(ctx context.Context, photos []models.Photo) (int64, error) {
	if len(photos) == 0 {
		return 0, nil
	}

	result := r.db.WithContext(ctx).Clauses(registrationConflict()).Create(&photos)
	return result.RowsAffected, result.Error
}

func registrationConflict() clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"url", "updated_at"}),
	}
}
