package user

import (
	"context"
	"strings"
	"time"

	userDatamodel "github.com/rakhadavedra/sow-analysis/internal/core/datamodel/user"
)

type ServiceAPI interface {
	GetProfile(ctx context.Context, userID int64) (*Profile, error)
	UpdateProfile(ctx context.Context, userID int64, dto UpdateProfileDTO) (*Profile, error)
	ChangePassword(ctx context.Context, userID int64, dto ChangePasswordDTO) error
}

type RepositoryAPI interface {
	GetByID(ctx context.Context, userID int64) (*userDatamodel.User, error)
	UpdateProfile(ctx context.Context, userID int64, updates map[string]interface{}) (int64, error)
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error
}

// Profile is the outward shape of the current user's account, password hash
// excluded.
type Profile struct {
	ID         int64     `json:"id"`
	Email      string    `json:"email"`
	FullName   string    `json:"full_name"`
	IsVerified bool      `json:"is_verified"`
	AvatarURL  *string   `json:"avatar_url,omitempty"`
	JobTitle   *string   `json:"job_title,omitempty"`
	Department *string   `json:"department,omitempty"`
	Experience *string   `json:"experience,omitempty"`
	Bio        *string   `json:"bio,omitempty"`
	Phone      *string   `json:"phone,omitempty"`
	Location   *string   `json:"location,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func profileFromDataModel(u *userDatamodel.User) *Profile {
	return &Profile{
		ID:         u.ID,
		Email:      u.Email,
		FullName:   u.FullName,
		IsVerified: u.IsVerified,
		AvatarURL:  u.AvatarURL,
		JobTitle:   u.JobTitle,
		Department: u.Department,
		Experience: u.Experience,
		Bio:        u.Bio,
		Phone:      u.Phone,
		Location:   u.Location,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

type UpdateProfileDTO struct {
	FullName   *string `json:"full_name,omitempty"`
	AvatarURL  *string `json:"avatar_url,omitempty"`
	JobTitle   *string `json:"job_title,omitempty"`
	Department *string `json:"department,omitempty"`
	Experience *string `json:"experience,omitempty"`
	Bio        *string `json:"bio,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	Location   *string `json:"location,omitempty"`
}

func (d UpdateProfileDTO) Validate() error {
	if d.FullName != nil && strings.TrimSpace(*d.FullName) == "" {
		return ValidationError{Msg: "full_name cannot be empty"}
	}
	return nil
}

type ChangePasswordDTO struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (d ChangePasswordDTO) Validate() error {
	if d.CurrentPassword == "" {
		return ValidationError{Msg: "current_password is required"}
	}
	if len(d.NewPassword) < 8 {
		return ValidationError{Msg: "new_password must be at least 8 characters"}
	}
	if d.NewPassword == d.CurrentPassword {
		return ValidationError{Msg: "new_password must differ from the current password"}
	}
	return nil
}

type ValidationError struct {
	Msg string
}

func (v ValidationError) Error() string { return v.Msg }
