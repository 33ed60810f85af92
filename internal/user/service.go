package user

import (
	"context"
	"log/slog"
	"time"

	"github.com/rakhadavedra/sow-analysis/internal"
	"github.com/rakhadavedra/sow-analysis/internal/auth"
)

type Service struct {
	repo       RepositoryAPI
	bcryptCost int
	logger     *slog.Logger
}

func NewService(repo RepositoryAPI, bcryptCost int, logger *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

func (s *Service) GetProfile(ctx context.Context, userID int64) (*Profile, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, internal.NewNotFoundError("user not found", internal.ErrCodeRecordNotFound)
	}
	return profileFromDataModel(u), nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID int64, dto UpdateProfileDTO) (*Profile, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"updated_at": time.Now()}
	if dto.FullName != nil {
		updates["full_name"] = *dto.FullName
	}
	if dto.AvatarURL != nil {
		updates["avatar_url"] = *dto.AvatarURL
	}
	if dto.JobTitle != nil {
		updates["job_title"] = *dto.JobTitle
	}
	if dto.Department != nil {
		updates["department"] = *dto.Department
	}
	if dto.Experience != nil {
		updates["experience"] = *dto.Experience
	}
	if dto.Bio != nil {
		updates["bio"] = *dto.Bio
	}
	if dto.Phone != nil {
		updates["phone"] = *dto.Phone
	}
	if dto.Location != nil {
		updates["location"] = *dto.Location
	}

	affected, err := s.repo.UpdateProfile(ctx, userID, updates)
	if err != nil {
		return nil, internal.NewInternalError("could not update profile", err)
	}
	if affected == 0 {
		return nil, internal.NewNotFoundError("user not found", internal.ErrCodeRecordNotFound)
	}

	s.logger.Info("profile updated", "user_id", userID)
	return s.GetProfile(ctx, userID)
}

// ChangePassword verifies the current password before storing a fresh hash.
func (s *Service) ChangePassword(ctx context.Context, userID int64, dto ChangePasswordDTO) error {
	if err := dto.Validate(); err != nil {
		return err
	}

	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return internal.NewNotFoundError("user not found", internal.ErrCodeRecordNotFound)
	}

	if err := auth.VerifyPassword(u.PasswordHash, dto.CurrentPassword); err != nil {
		return internal.NewUnauthorizedError("current password is incorrect", internal.ErrCodeInvalidCredentials)
	}

	hash, err := auth.HashPassword(dto.NewPassword, s.bcryptCost)
	if err != nil {
		return internal.NewInternalError("could not hash new password", err)
	}

	if err := s.repo.UpdatePassword(ctx, userID, hash); err != nil {
		return internal.NewInternalError("could not update password", err)
	}

	s.logger.Info("password changed", "user_id", userID)
	return nil
}
