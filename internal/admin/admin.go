package admin

import (
	"context"
	"strings"

	rbacDatamodel "github.com/rakhadavedra/sow-analysis/internal/core/datamodel/rbac"
	userDatamodel "github.com/rakhadavedra/sow-analysis/internal/core/datamodel/user"
)

type ServiceAPI interface {
	CreateUser(ctx context.Context, actor Actor, dto CreateUserDTO) (*UserWithRoles, error)
	GetUser(ctx context.Context, userID int64) (*UserWithRoles, error)
	ListUsers(ctx context.Context, filter UserListFilter) ([]UserWithRoles, int64, error)
	UpdateUser(ctx context.Context, actor Actor, userID int64, dto UpdateUserDTO) (*UserWithRoles, error)
	DeleteUser(ctx context.Context, actor Actor, userID int64) error
	AssignRoles(ctx context.Context, actor Actor, userID int64, dto AssignRolesDTO) error

	CreateRole(ctx context.Context, actor Actor, dto CreateRoleDTO) (*RoleWithPermissions, error)
	ListRoles(ctx context.Context) ([]RoleWithPermissions, error)
	UpdateRole(ctx context.Context, actor Actor, roleID int64, dto UpdateRoleDTO) error
	DeleteRole(ctx context.Context, actor Actor, roleID int64) error

	ListPermissions(ctx context.Context) ([]rbacDatamodel.Permission, error)
}

type RepositoryAPI interface {
	CreateUser(ctx context.Context, u *userDatamodel.User, roleIDs []int64, assignedBy int64) error
	GetUserByID(ctx context.Context, userID int64) (*UserWithRoles, error)
	ListUsers(ctx context.Context, filter UserListFilter) ([]UserWithRoles, int64, error)
	UpdateUser(ctx context.Context, userID int64, updates map[string]interface{}) (int64, error)
	SoftDeleteUser(ctx context.Context, userID int64) (int64, error)
	ReplaceUserRoles(ctx context.Context, userID int64, roleIDs []int64, assignedBy int64) error
	EmailTaken(ctx context.Context, email string) (bool, error)

	CreateRole(ctx context.Context, role *rbacDatamodel.Role, permissionIDs []int64) error
	GetRoleByID(ctx context.Context, roleID int64) (*RoleWithPermissions, error)
	ListRoles(ctx context.Context) ([]RoleWithPermissions, error)
	UpdateRole(ctx context.Context, roleID int64, updates map[string]interface{}, permissionIDs []int64) (int64, error)
	DeleteRole(ctx context.Context, roleID int64) (int64, error)

	ListPermissions(ctx context.Context) ([]rbacDatamodel.Permission, error)
}

// Invalidator is the cache surface the admin service pokes after mutations.
type Invalidator interface {
	InvalidateUser(ctx context.Context, userID int64)
	InvalidateRole(ctx context.Context, roleID int64) error
}

// Actor identifies who performed an admin mutation, for the audit trail.
type Actor struct {
	UserID    int64
	IPAddress string
}

type UserWithRoles struct {
	userDatamodel.User
	Roles []rbacDatamodel.Role `json:"roles" gorm:"-"`
}

type RoleWithPermissions struct {
	rbacDatamodel.Role
	Permissions []rbacDatamodel.Permission `json:"permissions" gorm:"-"`
}

type UserListFilter struct {
	Search  string
	Page    int
	PerPage int
}

func (f *UserListFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 || f.PerPage > 100 {
		f.PerPage = 20
	}
}

func (f UserListFilter) Offset() int {
	return (f.Page - 1) * f.PerPage
}

type CreateUserDTO struct {
	Email      string  `json:"email"`
	FullName   string  `json:"full_name"`
	Password   string  `json:"password"`
	JobTitle   *string `json:"job_title,omitempty"`
	Department *string `json:"department,omitempty"`
	RoleIDs    []int64 `json:"role_ids"`
}

func (d CreateUserDTO) Validate() error {
	if strings.TrimSpace(d.Email) == "" {
		return ValidationError{Msg: "email is required"}
	}
	if !strings.Contains(d.Email, "@") {
		return ValidationError{Msg: "email is invalid"}
	}
	if strings.TrimSpace(d.FullName) == "" {
		return ValidationError{Msg: "full_name is required"}
	}
	if len(d.Password) < 8 {
		return ValidationError{Msg: "password must be at least 8 characters"}
	}
	return nil
}

type UpdateUserDTO struct {
	FullName   *string `json:"full_name,omitempty"`
	IsActive   *bool   `json:"is_active,omitempty"`
	JobTitle   *string `json:"job_title,omitempty"`
	Department *string `json:"department,omitempty"`
}

func (d UpdateUserDTO) Validate() error {
	if d.FullName != nil && strings.TrimSpace(*d.FullName) == "" {
		return ValidationError{Msg: "full_name cannot be empty"}
	}
	return nil
}

type AssignRolesDTO struct {
	RoleIDs []int64 `json:"role_ids"`
}

type CreateRoleDTO struct {
	Name          string  `json:"name"`
	DisplayName   string  `json:"display_name"`
	Description   string  `json:"description"`
	PermissionIDs []int64 `json:"permission_ids"`
}

func (d CreateRoleDTO) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return ValidationError{Msg: "name is required"}
	}
	if strings.TrimSpace(d.DisplayName) == "" {
		return ValidationError{Msg: "display_name is required"}
	}
	return nil
}

type UpdateRoleDTO struct {
	DisplayName   *string  `json:"display_name,omitempty"`
	Description   *string  `json:"description,omitempty"`
	PermissionIDs *[]int64 `json:"permission_ids,omitempty"`
}

type ValidationError struct {
	Msg string
}

func (v ValidationError) Error() string { return v.Msg }
