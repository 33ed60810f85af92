package audit

import (
	"context"

	auditDatamodel "github.com/rakhadavedra/sow-analysis/internal/core/datamodel/audit"
)

type ServiceAPI interface {
	Record(ctx context.Context, userID int64, action, resourceType string, resourceID *int64, changes interface{}, ipAddress string)
	List(ctx context.Context, filter ListFilter) ([]auditDatamodel.Entry, int64, error)
}

type RepositoryAPI interface {
	Insert(ctx context.Context, entry *auditDatamodel.Entry) error
	List(ctx context.Context, filter ListFilter) ([]auditDatamodel.Entry, int64, error)
}

// ListFilter narrows the audit trail listing. Zero values mean no filter.
type ListFilter struct {
	UserID       int64
	ResourceType string
	Action       string
	Page         int
	PerPage      int
}

func (f *ListFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 || f.PerPage > 100 {
		f.PerPage = 20
	}
}

func (f ListFilter) Offset() int {
	return (f.Page - 1) * f.PerPage
}
