package authz

import (
	"context"

	rbacDatamodel "github.com/rakhadavedra/sow-analysis/internal/core/datamodel/rbac"
)

type ServiceAPI interface {
	ResolvePermissions(ctx context.Context, userID int64) ([]string, error)
	BuildMenu(ctx context.Context, userID int64) ([]MenuNode, error)
	InvalidateUser(ctx context.Context, userID int64)
	InvalidateRole(ctx context.Context, roleID int64) error
}

type RepositoryAPI interface {
	PermissionsForUser(ctx context.Context, userID int64) ([]string, error)
	EntitledMenuItems(ctx context.Context, userID int64) ([]rbacDatamodel.MenuItem, error)
	UserIDsWithRole(ctx context.Context, roleID int64) ([]int64, error)
}

// MenuItemNode is one navigation entry inside a group or at top level.
type MenuItemNode struct {
	Key          string `json:"key"`
	Label        string `json:"label"`
	Icon         string `json:"icon,omitempty"`
	Path         string `json:"path"`
	DisplayOrder int    `json:"display_order"`
}

// MenuNode is one element of the composed navigation tree: either a named
// group with items, or a single top-level item. Group nodes have a non-empty
// GroupName; item nodes fill the item fields instead.
type MenuNode struct {
	GroupName  string         `json:"group_name,omitempty"`
	GroupOrder int            `json:"group_order"`
	GroupIcon  string         `json:"group_icon,omitempty"`
	Items      []MenuItemNode `json:"items,omitempty"`

	Key          string `json:"key,omitempty"`
	Label        string `json:"label,omitempty"`
	Icon         string `json:"icon,omitempty"`
	Path         string `json:"path,omitempty"`
	DisplayOrder int    `json:"display_order"`
}

func (n MenuNode) IsGroup() bool {
	return n.GroupName != ""
}

// Permission codes referenced across handlers. These mirror the seeded
// reference data.
const (
	PermUserManage     = "user.manage"
	PermRoleManage     = "role.manage"
	PermPermissionView = "permission.view"
	PermPromptManage   = "prompt.manage"
	PermDocumentUpload = "document.upload"
	PermDocumentView   = "document.view"
	PermAuditView      = "audit.view"
	PermCacheView      = "cache.view"
)
