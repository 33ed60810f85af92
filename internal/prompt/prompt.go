package prompt

import (
	"context"
	"strings"

	promptDatamodel "github.com/rakhadavedra/sow-analysis/internal/core/datamodel/prompt"
)

type ServiceAPI interface {
	ActivePrompts(ctx context.Context) ([]RenderedPrompt, error)
	ListPrompts(ctx context.Context) ([]PromptWithVariables, error)
	CreatePrompt(ctx context.Context, dto CreatePromptDTO) (*PromptWithVariables, error)
	UpdatePrompt(ctx context.Context, promptID int64, dto UpdatePromptDTO) error
	DeletePrompt(ctx context.Context, promptID int64) error
}

type RepositoryAPI interface {
	ActivePrompts(ctx context.Context) ([]PromptWithVariables, error)
	ListPrompts(ctx context.Context) ([]PromptWithVariables, error)
	GetPromptByID(ctx context.Context, promptID int64) (*PromptWithVariables, error)
	CreatePrompt(ctx context.Context, p *promptDatamodel.Prompt, variables map[string]string) error
	UpdatePrompt(ctx context.Context, promptID int64, updates map[string]interface{}, variables map[string]string) (int64, error)
	DeletePrompt(ctx context.Context, promptID int64) (int64, error)
}

type PromptWithVariables struct {
	promptDatamodel.Prompt
	Variables map[string]string `json:"variables" gorm:"-"`
}

// RenderedPrompt is what the analysis pipeline consumes: the clause key plus
// the system prompt with all {name} placeholders substituted.
type RenderedPrompt struct {
	ClauseID     string `json:"clause_id"`
	Title        string `json:"title"`
	SystemPrompt string `json:"system_prompt"`
	DisplayOrder int    `json:"display_order"`
}

// Render substitutes {name} placeholders with the prompt's variable values.
// Unknown placeholders are left in place.
func (p PromptWithVariables) Render() RenderedPrompt {
	text := p.SystemPrompt
	for name, value := range p.Variables {
		text = strings.ReplaceAll(text, "{"+name+"}", value)
	}
	return RenderedPrompt{
		ClauseID:     p.ClauseID,
		Title:        p.Title,
		SystemPrompt: text,
		DisplayOrder: p.DisplayOrder,
	}
}

type CreatePromptDTO struct {
	ClauseID     string            `json:"clause_id"`
	Title        string            `json:"title"`
	SystemPrompt string            `json:"system_prompt"`
	DisplayOrder int               `json:"display_order"`
	IsActive     *bool             `json:"is_active,omitempty"`
	Variables    map[string]string `json:"variables,omitempty"`
}

func (d CreatePromptDTO) Validate() error {
	if strings.TrimSpace(d.ClauseID) == "" {
		return ValidationError{Msg: "clause_id is required"}
	}
	if strings.TrimSpace(d.Title) == "" {
		return ValidationError{Msg: "title is required"}
	}
	if strings.TrimSpace(d.SystemPrompt) == "" {
		return ValidationError{Msg: "system_prompt is required"}
	}
	return nil
}

type UpdatePromptDTO struct {
	Title        *string            `json:"title,omitempty"`
	SystemPrompt *string            `json:"system_prompt,omitempty"`
	IsActive     *bool              `json:"is_active,omitempty"`
	DisplayOrder *int               `json:"display_order,omitempty"`
	Variables    *map[string]string `json:"variables,omitempty"`
}

type ValidationError struct {
	Msg string
}

func (v ValidationError) Error() string { return v.Msg }
