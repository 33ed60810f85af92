package prompt

import (
	"context"
	"log/slog"

	"github.com/rakhadavedra/sow-analysis/internal"
	"github.com/rakhadavedra/sow-analysis/internal/cache"
	promptDatamodel "github.com/rakhadavedra/sow-analysis/internal/core/datamodel/prompt"
)

type Service struct {
	repo   RepositoryAPI
	cache  *cache.Store
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, store *cache.Store, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		cache:  store,
		logger: logger,
	}
}

// ActivePrompts returns the rendered active prompts in display order, cached
// under the prompts category. Every document analysis starts here, so the
// cache saves one query plus variable joins per upload.
func (s *Service) ActivePrompts(ctx context.Context) ([]RenderedPrompt, error) {
	var cached []RenderedPrompt
	if s.cache.GetInto(ctx, cache.ActivePromptsKey, cache.CategoryPrompts, &cached) {
		return cached, nil
	}

	prompts, err := s.repo.ActivePrompts(ctx)
	if err != nil {
		return nil, internal.NewInternalError("loading active prompts", err)
	}

	rendered := make([]RenderedPrompt, 0, len(prompts))
	for _, p := range prompts {
		rendered = append(rendered, p.Render())
	}

	s.cache.Set(ctx, cache.ActivePromptsKey, rendered, cache.CategoryPrompts)
	return rendered, nil
}

func (s *Service) ListPrompts(ctx context.Context) ([]PromptWithVariables, error) {
	return s.repo.ListPrompts(ctx)
}

func (s *Service) CreatePrompt(ctx context.Context, dto CreatePromptDTO) (*PromptWithVariables, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	active := true
	if dto.IsActive != nil {
		active = *dto.IsActive
	}

	p := &promptDatamodel.Prompt{
		ClauseID:     dto.ClauseID,
		Title:        dto.Title,
		SystemPrompt: dto.SystemPrompt,
		IsActive:     active,
		DisplayOrder: dto.DisplayOrder,
	}

	if err := s.repo.CreatePrompt(ctx, p, dto.Variables); err != nil {
		return nil, internal.NewInternalError("creating prompt", err)
	}

	s.invalidate(ctx)
	return s.repo.GetPromptByID(ctx, p.ID)
}

func (s *Service) UpdatePrompt(ctx context.Context, promptID int64, dto UpdatePromptDTO) error {
	updates := map[string]interface{}{}
	if dto.Title != nil {
		updates["title"] = *dto.Title
	}
	if dto.SystemPrompt != nil {
		updates["system_prompt"] = *dto.SystemPrompt
	}
	if dto.IsActive != nil {
		updates["is_active"] = *dto.IsActive
	}
	if dto.DisplayOrder != nil {
		updates["display_order"] = *dto.DisplayOrder
	}

	var variables map[string]string
	if dto.Variables != nil {
		variables = *dto.Variables
	}
	if len(updates) == 0 && dto.Variables == nil {
		return nil
	}

	affected, err := s.repo.UpdatePrompt(ctx, promptID, updates, variables)
	if err != nil {
		return internal.NewInternalError("updating prompt", err)
	}
	if affected == 0 {
		return internal.NewNotFoundError("prompt not found", internal.ErrCodeRecordNotFound)
	}

	s.invalidate(ctx)
	return nil
}

func (s *Service) DeletePrompt(ctx context.Context, promptID int64) error {
	affected, err := s.repo.DeletePrompt(ctx, promptID)
	if err != nil {
		return internal.NewInternalError("deleting prompt", err)
	}
	if affected == 0 {
		return internal.NewNotFoundError("prompt not found", internal.ErrCodeRecordNotFound)
	}

	s.invalidate(ctx)
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	removed := s.cache.Invalidate(ctx, "*", cache.CategoryPrompts)
	s.logger.Debug("prompt cache invalidated", "removed", removed)
}
