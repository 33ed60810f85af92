package audit

import "time"

// Entry is append-only: rows are inserted on admin mutations and never
// updated or deleted.
type Entry struct {
	ID           int64     `gorm:"primaryKey"`
	UserID       int64     `gorm:"column:user_id;not null;index"`
	Action       string    `gorm:"column:action;not null"`
	ResourceType string    `gorm:"column:resource_type;not null;index"`
	ResourceID   *int64    `gorm:"column:resource_id"`
	Changes      string    `gorm:"column:changes;type:jsonb"`
	IPAddress    string    `gorm:"column:ip_address"`
	CreatedAt    time.Time `gorm:"column:created_at;default:now()"`
}

func (Entry) TableName() string { return "audit_log" }

const (
	ActionCreate = "CREATE"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)
