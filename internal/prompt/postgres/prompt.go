package prompt

import (
	"context"
	"time"

	"gorm.io/gorm"

	promptDatamodel "github.com/rakhadavedra/sow-analysis/internal/core/datamodel/prompt"
	"github.com/rakhadavedra/sow-analysis/internal/prompt"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) ActivePrompts(ctx context.Context) ([]prompt.PromptWithVariables, error) {
	return r.list(ctx, true)
}

func (r *Repository) ListPrompts(ctx context.Context) ([]prompt.PromptWithVariables, error) {
	return r.list(ctx, false)
}

func (r *Repository) list(ctx context.Context, activeOnly bool) ([]prompt.PromptWithVariables, error) {
	query := r.db.WithContext(ctx).Model(&promptDatamodel.Prompt{})
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	var prompts []promptDatamodel.Prompt
	if err := query.Order("display_order, id").Find(&prompts).Error; err != nil {
		return nil, err
	}

	result := make([]prompt.PromptWithVariables, 0, len(prompts))
	for _, p := range prompts {
		variables, err := r.variablesFor(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		result = append(result, prompt.PromptWithVariables{Prompt: p, Variables: variables})
	}
	return result, nil
}

func (r *Repository) GetPromptByID(ctx context.Context, promptID int64) (*prompt.PromptWithVariables, error) {
	var p promptDatamodel.Prompt
	if err := r.db.WithContext(ctx).Where("id = ?", promptID).First(&p).Error; err != nil {
		return nil, err
	}

	variables, err := r.variablesFor(ctx, promptID)
	if err != nil {
		return nil, err
	}
	return &prompt.PromptWithVariables{Prompt: p, Variables: variables}, nil
}

func (r *Repository) CreatePrompt(ctx context.Context, p *promptDatamodel.Prompt, variables map[string]string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		return insertVariables(tx, p.ID, variables)
	})
}

func (r *Repository) UpdatePrompt(ctx context.Context, promptID int64, updates map[string]interface{}, variables map[string]string) (int64, error) {
	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates["updated_at"] = time.Now()
		res := tx.Model(&promptDatamodel.Prompt{}).Where("id = ?", promptID).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		affected = res.RowsAffected
		if affected == 0 {
			return nil
		}

		if variables != nil {
			if err := tx.Where("prompt_id = ?", promptID).Delete(&promptDatamodel.Variable{}).Error; err != nil {
				return err
			}
			if err := insertVariables(tx, promptID, variables); err != nil {
				return err
			}
		}
		return nil
	})
	return affected, err
}

func (r *Repository) DeletePrompt(ctx context.Context, promptID int64) (int64, error) {
	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", promptID).Delete(&promptDatamodel.Prompt{})
		if res.Error != nil {
			return res.Error
		}
		affected = res.RowsAffected
		if affected == 0 {
			return nil
		}
		return tx.Where("prompt_id = ?", promptID).Delete(&promptDatamodel.Variable{}).Error
	})
	return affected, err
}

func (r *Repository) variablesFor(ctx context.Context, promptID int64) (map[string]string, error) {
	var rows []promptDatamodel.Variable
	if err := r.db.WithContext(ctx).Where("prompt_id = ?", promptID).Find(&rows).Error; err != nil {
		return nil, err
	}

	variables := make(map[string]string, len(rows))
	for _, v := range rows {
		variables[v.Name] = v.Value
	}
	return variables, nil
}

func insertVariables(tx *gorm.DB, promptID int64, variables map[string]string) error {
	for name, value := range variables {
		v := promptDatamodel.Variable{PromptID: promptID, Name: name, Value: value}
		if err := tx.Create(&v).Error; err != nil {
			return err
		}
	}
	return nil
}
