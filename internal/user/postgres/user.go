package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	userDatamodel "github.com/rakhadavedra/sow-analysis/internal/core/datamodel/user"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetByID(ctx context.Context, userID int64) (*userDatamodel.User, error) {
	var u userDatamodel.User
	err := r.db.WithContext(ctx).
		Where("id = ? AND deleted_at IS NULL", userID).
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repository) UpdateProfile(ctx context.Context, userID int64, updates map[string]interface{}) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&userDatamodel.User{}).
		Where("id = ? AND deleted_at IS NULL", userID).
		Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *Repository) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	return r.db.WithContext(ctx).
		Model(&userDatamodel.User{}).
		Where("id = ? AND deleted_at IS NULL", userID).
		Updates(map[string]interface{}{
			"password_hash": passwordHash,
			"updated_at":    time.Now(),
		}).Error
}
