package authz

import (
	"context"

	rbacDatamodel "github.com/rakhadavedra/sow-analysis/internal/core/datamodel/rbac"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) PermissionsForUser(ctx context.Context, userID int64) ([]string, error) {
	query := `
		SELECT DISTINCT p.code
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		JOIN user_roles ur ON ur.role_id = rp.role_id
		JOIN users u ON u.id = ur.user_id
		WHERE ur.user_id = ? AND u.is_active = true AND u.deleted_at IS NULL`

	rows, err := r.db.WithContext(ctx).Raw(query, userID).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// EntitledMenuItems filters in SQL: items requiring no permission plus items
// whose required permission the user holds through some role.
func (r *Repository) EntitledMenuItems(ctx context.Context, userID int64) ([]rbacDatamodel.MenuItem, error) {
	query := `
		SELECT m.id, m.key, m.label, m.icon, m.path,
		       m.group_name, m.group_order, m.group_icon,
		       m.display_order, m.required_permission, m.is_active
		FROM menu_items m
		WHERE m.is_active = true
		  AND (m.required_permission IS NULL
		       OR m.required_permission IN (
		           SELECT p.code
		           FROM permissions p
		           JOIN role_permissions rp ON rp.permission_id = p.id
		           JOIN user_roles ur ON ur.role_id = rp.role_id
		           WHERE ur.user_id = ?))
		ORDER BY m.group_order, m.display_order, m.id`

	rows, err := r.db.WithContext(ctx).Raw(query, userID).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []rbacDatamodel.MenuItem
	for rows.Next() {
		var item rbacDatamodel.MenuItem
		if err := rows.Scan(
			&item.ID, &item.Key, &item.Label, &item.Icon, &item.Path,
			&item.GroupName, &item.GroupOrder, &item.GroupIcon,
			&item.DisplayOrder, &item.RequiredPermission, &item.IsActive,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *Repository) UserIDsWithRole(ctx context.Context, roleID int64) ([]int64, error) {
	query := `SELECT user_id FROM user_roles WHERE role_id = ?`

	rows, err := r.db.WithContext(ctx).Raw(query, roleID).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var userIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		userIDs = append(userIDs, id)
	}
	return userIDs, rows.Err()
}
