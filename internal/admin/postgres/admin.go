package admin

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/rakhadavedra/sow-analysis/internal/admin"
	rbacDatamodel "github.com/rakhadavedra/sow-analysis/internal/core/datamodel/rbac"
	userDatamodel "github.com/rakhadavedra/sow-analysis/internal/core/datamodel/user"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) CreateUser(ctx context.Context, u *userDatamodel.User, roleIDs []int64, assignedBy int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(u).Error; err != nil {
			return err
		}
		return insertUserRoles(tx, u.ID, roleIDs, assignedBy)
	})
}

func (r *Repository) GetUserByID(ctx context.Context, userID int64) (*admin.UserWithRoles, error) {
	var u admin.UserWithRoles
	err := r.db.WithContext(ctx).
		Where("id = ? AND deleted_at IS NULL", userID).
		First(&u.User).Error
	if err != nil {
		return nil, err
	}

	roles, err := r.rolesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	u.Roles = roles
	return &u, nil
}

func (r *Repository) ListUsers(ctx context.Context, filter admin.UserListFilter) ([]admin.UserWithRoles, int64, error) {
	query := r.db.WithContext(ctx).Model(&userDatamodel.User{}).Where("deleted_at IS NULL")
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where("email LIKE ? OR full_name LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []userDatamodel.User
	err := query.Order("created_at DESC").
		Limit(filter.PerPage).
		Offset(filter.Offset()).
		Find(&users).Error
	if err != nil {
		return nil, 0, err
	}

	result := make([]admin.UserWithRoles, 0, len(users))
	for _, u := range users {
		roles, err := r.rolesForUser(ctx, u.ID)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, admin.UserWithRoles{User: u, Roles: roles})
	}
	return result, total, nil
}

func (r *Repository) UpdateUser(ctx context.Context, userID int64, updates map[string]interface{}) (int64, error) {
	updates["updated_at"] = time.Now()
	res := r.db.WithContext(ctx).
		Model(&userDatamodel.User{}).
		Where("id = ? AND deleted_at IS NULL", userID).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *Repository) SoftDeleteUser(ctx context.Context, userID int64) (int64, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&userDatamodel.User{}).
		Where("id = ? AND deleted_at IS NULL", userID).
		Updates(map[string]interface{}{"deleted_at": now, "is_active": false, "updated_at": now})
	return res.RowsAffected, res.Error
}

func (r *Repository) ReplaceUserRoles(ctx context.Context, userID int64, roleIDs []int64, assignedBy int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&rbacDatamodel.UserRole{}).Error; err != nil {
			return err
		}
		return insertUserRoles(tx, userID, roleIDs, assignedBy)
	})
}

func (r *Repository) EmailTaken(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&userDatamodel.User{}).
		Where("email = ?", email).
		Count(&count).Error
	return count > 0, err
}

func (r *Repository) CreateRole(ctx context.Context, role *rbacDatamodel.Role, permissionIDs []int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(role).Error; err != nil {
			return err
		}
		return insertRolePermissions(tx, role.ID, permissionIDs)
	})
}

func (r *Repository) GetRoleByID(ctx context.Context, roleID int64) (*admin.RoleWithPermissions, error) {
	var role admin.RoleWithPermissions
	if err := r.db.WithContext(ctx).Where("id = ?", roleID).First(&role.Role).Error; err != nil {
		return nil, err
	}

	perms, err := r.permissionsForRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	role.Permissions = perms
	return &role, nil
}

func (r *Repository) ListRoles(ctx context.Context) ([]admin.RoleWithPermissions, error) {
	var roles []rbacDatamodel.Role
	if err := r.db.WithContext(ctx).Order("name").Find(&roles).Error; err != nil {
		return nil, err
	}

	result := make([]admin.RoleWithPermissions, 0, len(roles))
	for _, role := range roles {
		perms, err := r.permissionsForRole(ctx, role.ID)
		if err != nil {
			return nil, err
		}
		result = append(result, admin.RoleWithPermissions{Role: role, Permissions: perms})
	}
	return result, nil
}

// UpdateRole guards system roles in the WHERE clause itself: the update
// silently affects zero rows when the role is protected.
func (r *Repository) UpdateRole(ctx context.Context, roleID int64, updates map[string]interface{}, permissionIDs []int64) (int64, error) {
	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(updates) == 0 {
			updates = map[string]interface{}{}
		}
		updates["updated_at"] = time.Now()

		res := tx.Model(&rbacDatamodel.Role{}).
			Where("id = ? AND is_system_role = ?", roleID, false).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		affected = res.RowsAffected
		if affected == 0 {
			return nil
		}

		if permissionIDs != nil {
			if err := tx.Where("role_id = ?", roleID).Delete(&rbacDatamodel.RolePermission{}).Error; err != nil {
				return err
			}
			if err := insertRolePermissions(tx, roleID, permissionIDs); err != nil {
				return err
			}
		}
		return nil
	})
	return affected, err
}

func (r *Repository) DeleteRole(ctx context.Context, roleID int64) (int64, error) {
	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND is_system_role = ?", roleID, false).
			Delete(&rbacDatamodel.Role{})
		if res.Error != nil {
			return res.Error
		}
		affected = res.RowsAffected
		if affected == 0 {
			return nil
		}

		if err := tx.Where("role_id = ?", roleID).Delete(&rbacDatamodel.RolePermission{}).Error; err != nil {
			return err
		}
		return tx.Where("role_id = ?", roleID).Delete(&rbacDatamodel.UserRole{}).Error
	})
	return affected, err
}

func (r *Repository) ListPermissions(ctx context.Context) ([]rbacDatamodel.Permission, error) {
	var perms []rbacDatamodel.Permission
	err := r.db.WithContext(ctx).Order("category, code").Find(&perms).Error
	return perms, err
}

func (r *Repository) rolesForUser(ctx context.Context, userID int64) ([]rbacDatamodel.Role, error) {
	query := `
		SELECT r.id, r.name, r.display_name, r.description, r.is_system_role, r.created_at, r.updated_at
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = ?
		ORDER BY r.name`

	rows, err := r.db.WithContext(ctx).Raw(query, userID).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles := make([]rbacDatamodel.Role, 0)
	for rows.Next() {
		var role rbacDatamodel.Role
		if err := rows.Scan(
			&role.ID, &role.Name, &role.DisplayName, &role.Description,
			&role.IsSystemRole, &role.CreatedAt, &role.UpdatedAt,
		); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (r *Repository) permissionsForRole(ctx context.Context, roleID int64) ([]rbacDatamodel.Permission, error) {
	query := `
		SELECT p.id, p.code, p.display_name, p.category, p.description, p.created_at
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		WHERE rp.role_id = ?
		ORDER BY p.code`

	rows, err := r.db.WithContext(ctx).Raw(query, roleID).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	perms := make([]rbacDatamodel.Permission, 0)
	for rows.Next() {
		var perm rbacDatamodel.Permission
		if err := rows.Scan(
			&perm.ID, &perm.Code, &perm.DisplayName, &perm.Category,
			&perm.Description, &perm.CreatedAt,
		); err != nil {
			return nil, err
		}
		perms = append(perms, perm)
	}
	return perms, rows.Err()
}

func insertUserRoles(tx *gorm.DB, userID int64, roleIDs []int64, assignedBy int64) error {
	for _, roleID := range roleIDs {
		ur := rbacDatamodel.UserRole{UserID: userID, RoleID: roleID}
		if assignedBy != 0 {
			ur.AssignedBy = &assignedBy
		}
		if err := tx.Create(&ur).Error; err != nil {
			return err
		}
	}
	return nil
}

func insertRolePermissions(tx *gorm.DB, roleID int64, permissionIDs []int64) error {
	for _, permissionID := range permissionIDs {
		rp := rbacDatamodel.RolePermission{RoleID: roleID, PermissionID: permissionID}
		if err := tx.Create(&rp).Error; err != nil {
			return err
		}
	}
	return nil
}
