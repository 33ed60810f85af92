package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	documentDatamodel "github.com/rakhadavedra/sow-analysis/internal/core/datamodel/document"
	"github.com/rakhadavedra/sow-analysis/internal/document"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(ctx context.Context, doc *documentDatamodel.Document) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *Repository) GetByID(ctx context.Context, documentID int64) (*documentDatamodel.Document, error) {
	var doc documentDatamodel.Document
	if err := r.db.WithContext(ctx).First(&doc, documentID).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *Repository) List(ctx context.Context, userID int64, filter document.ListFilter) ([]documentDatamodel.Document, int64, error) {
	query := r.db.WithContext(ctx).Model(&documentDatamodel.Document{})
	if userID != 0 {
		query = query.Where("user_id = ?", userID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var docs []documentDatamodel.Document
	err := query.
		Order("uploaded_at DESC").
		Limit(filter.PerPage).
		Offset(filter.Offset()).
		Find(&docs).Error
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

func (r *Repository) UpdateStatus(ctx context.Context, documentID int64, status string, processed bool) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}
	if processed {
		updates["processed_at"] = time.Now()
	}
	return r.db.WithContext(ctx).
		Model(&documentDatamodel.Document{}).
		Where("id = ?", documentID).
		Updates(updates).Error
}

func (r *Repository) InsertResult(ctx context.Context, result *documentDatamodel.AnalysisResult) error {
	return r.db.WithContext(ctx).Create(result).Error
}

func (r *Repository) LatestResult(ctx context.Context, documentID int64) (*documentDatamodel.AnalysisResult, error) {
	var result documentDatamodel.AnalysisResult
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("created_at DESC").
		First(&result).Error
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// NextUploaded hands the worker the oldest document still waiting for a run.
func (r *Repository) NextUploaded(ctx context.Context) (*documentDatamodel.Document, error) {
	var doc documentDatamodel.Document
	err := r.db.WithContext(ctx).
		Where("status = ?", documentDatamodel.StatusUploaded).
		Order("uploaded_at ASC").
		First(&doc).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
