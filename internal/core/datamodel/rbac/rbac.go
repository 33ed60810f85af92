package rbac

import "time"

type Role struct {
	ID           int64     `gorm:"primaryKey"`
	Name         string    `gorm:"column:name;uniqueIndex;not null"`
	DisplayName  string    `gorm:"column:display_name;not null"`
	Description  string    `gorm:"column:description"`
	IsSystemRole bool      `gorm:"column:is_system_role;default:false"`
	CreatedAt    time.Time `gorm:"column:created_at;default:now()"`
	UpdatedAt    time.Time `gorm:"column:updated_at;default:now()"`
}

func (Role) TableName() string { return "roles" }

type Permission struct {
	ID          int64     `gorm:"primaryKey"`
	Code        string    `gorm:"column:code;uniqueIndex;not null"`
	DisplayName string    `gorm:"column:display_name;not null"`
	Category    string    `gorm:"column:category"`
	Description string    `gorm:"column:description"`
	CreatedAt   time.Time `gorm:"column:created_at;default:now()"`
}

func (Permission) TableName() string { return "permissions" }

type UserRole struct {
	ID         int64     `gorm:"primaryKey"`
	UserID     int64     `gorm:"column:user_id;not null;index"`
	RoleID     int64     `gorm:"column:role_id;not null;index"`
	AssignedBy *int64    `gorm:"column:assigned_by"`
	CreatedAt  time.Time `gorm:"column:created_at;default:now()"`
}

func (UserRole) TableName() string { return "user_roles" }

type RolePermission struct {
	ID           int64     `gorm:"primaryKey"`
	RoleID       int64     `gorm:"column:role_id;not null;index"`
	PermissionID int64     `gorm:"column:permission_id;not null;index"`
	CreatedAt    time.Time `gorm:"column:created_at;default:now()"`
}

func (RolePermission) TableName() string { return "role_permissions" }

// MenuItem rows are flat; grouping into the navigation tree happens at read
// time. RequiredPermission nil means visible to every authenticated user.
type MenuItem struct {
	ID                 int64     `gorm:"primaryKey"`
	Key                string    `gorm:"column:key;uniqueIndex;not null"`
	Label              string    `gorm:"column:label;not null"`
	Icon               string    `gorm:"column:icon"`
	Path               string    `gorm:"column:path;not null"`
	GroupName          *string   `gorm:"column:group_name"`
	GroupOrder         int       `gorm:"column:group_order;default:0"`
	GroupIcon          string    `gorm:"column:group_icon"`
	DisplayOrder       int       `gorm:"column:display_order;default:0"`
	RequiredPermission *string   `gorm:"column:required_permission"`
	IsActive           bool      `gorm:"column:is_active;default:true"`
	CreatedAt          time.Time `gorm:"column:created_at;default:now()"`
}

func (MenuItem) TableName() string { return "menu_items" }
