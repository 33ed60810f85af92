package audit

import (
	"context"

	"gorm.io/gorm"

	"github.com/rakhadavedra/sow-analysis/internal/audit"
	auditDatamodel "github.com/rakhadavedra/sow-analysis/internal/core/datamodel/audit"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) Insert(ctx context.Context, entry *auditDatamodel.Entry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *Repository) List(ctx context.Context, filter audit.ListFilter) ([]auditDatamodel.Entry, int64, error) {
	query := r.db.WithContext(ctx).Model(&auditDatamodel.Entry{})

	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.ResourceType != "" {
		query = query.Where("resource_type = ?", filter.ResourceType)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []auditDatamodel.Entry
	err := query.Order("created_at DESC").
		Limit(filter.PerPage).
		Offset(filter.Offset()).
		Find(&entries).Error
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
