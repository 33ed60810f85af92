package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	auditDatamodel "github.com/rakhadavedra/sow-analysis/internal/core/datamodel/audit"
)

// Service appends audit entries for admin mutations. Recording is best
// effort: a failed insert is logged, never surfaced, so auditing can not
// break the operation it describes.
type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (s *Service) Record(ctx context.Context, userID int64, action, resourceType string, resourceID *int64, changes interface{}, ipAddress string) {
	var changesJSON string
	if changes != nil {
		raw, err := json.Marshal(changes)
		if err != nil {
			s.logger.Error("audit: marshaling changes failed", "error", err, "resource_type", resourceType)
		} else {
			changesJSON = string(raw)
		}
	}

	entry := &auditDatamodel.Entry{
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Changes:      changesJSON,
		IPAddress:    ipAddress,
	}

	if err := s.repo.Insert(ctx, entry); err != nil {
		s.logger.Error("audit: insert failed",
			"error", err,
			"user_id", userID,
			"action", action,
			"resource_type", resourceType)
	}
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]auditDatamodel.Entry, int64, error) {
	filter.Normalize()
	return s.repo.List(ctx, filter)
}
