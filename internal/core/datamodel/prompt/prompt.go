package prompt

import "time"

type Prompt struct {
	ID           int64     `gorm:"primaryKey"`
	ClauseID     string    `gorm:"column:clause_id;uniqueIndex;not null"`
	Title        string    `gorm:"column:title;not null"`
	SystemPrompt string    `gorm:"column:system_prompt;not null"`
	IsActive     bool      `gorm:"column:is_active;default:true"`
	DisplayOrder int       `gorm:"column:display_order;default:0"`
	CreatedAt    time.Time `gorm:"column:created_at;default:now()"`
	UpdatedAt    time.Time `gorm:"column:updated_at;default:now()"`
}

func (Prompt) TableName() string { return "prompts" }

// Variable values are substituted into {name} placeholders when a prompt is
// rendered.
type Variable struct {
	ID        int64     `gorm:"primaryKey"`
	PromptID  int64     `gorm:"column:prompt_id;not null;index"`
	Name      string    `gorm:"column:name;not null"`
	Value     string    `gorm:"column:value;not null"`
	CreatedAt time.Time `gorm:"column:created_at;default:now()"`
}

func (Variable) TableName() string { return "prompt_variables" }
