package user

import "time"

type User struct {
	ID           int64      `gorm:"primaryKey"`
	Email        string     `gorm:"column:email;uniqueIndex;not null"`
	FullName     string     `gorm:"column:full_name;not null"`
	PasswordHash string     `gorm:"column:password_hash;not null"`
	IsActive     bool       `gorm:"column:is_active;default:true"`
	IsVerified   bool       `gorm:"column:is_verified;default:false"`
	AvatarURL    *string    `gorm:"column:avatar_url"`
	JobTitle     *string    `gorm:"column:job_title"`
	Department   *string    `gorm:"column:department"`
	Experience   *string    `gorm:"column:experience"`
	Bio          *string    `gorm:"column:bio"`
	Phone        *string    `gorm:"column:phone"`
	Location     *string    `gorm:"column:location"`
	CreatedAt    time.Time  `gorm:"column:created_at;default:now()"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;default:now()"`
	DeletedAt    *time.Time `gorm:"column:deleted_at;index"`
}

func (User) TableName() string { return "users" }
