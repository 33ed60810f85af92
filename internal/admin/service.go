package admin

import (
	"context"
	"log/slog"

	"github.com/rakhadavedra/sow-analysis/internal"
	"github.com/rakhadavedra/sow-analysis/internal/audit"
	"github.com/rakhadavedra/sow-analysis/internal/cache"
	auditDatamodel "github.com/rakhadavedra/sow-analysis/internal/core/datamodel/audit"
	rbacDatamodel "github.com/rakhadavedra/sow-analysis/internal/core/datamodel/rbac"
	userDatamodel "github.com/rakhadavedra/sow-analysis/internal/core/datamodel/user"
)

// PasswordHasher hashes new user passwords with the configured cost.
type PasswordHasher interface {
	HashPassword(password string) (string, error)
}

type Service struct {
	repo        RepositoryAPI
	invalidator Invalidator
	auditor     audit.ServiceAPI
	hasher      PasswordHasher
	cache       *cache.Store
	logger      *slog.Logger
}

func NewService(repo RepositoryAPI, invalidator Invalidator, auditor audit.ServiceAPI, hasher PasswordHasher, store *cache.Store, logger *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		invalidator: invalidator,
		auditor:     auditor,
		hasher:      hasher,
		cache:       store,
		logger:      logger,
	}
}

const (
	resourceUser = "user"
	resourceRole = "role"
)

func (s *Service) CreateUser(ctx context.Context, actor Actor, dto CreateUserDTO) (*UserWithRoles, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	taken, err := s.repo.EmailTaken(ctx, dto.Email)
	if err != nil {
		return nil, internal.NewInternalError("checking email availability", err)
	}
	if taken {
		return nil, internal.NewConflictError("email is already registered", internal.ErrCodeDuplicateRecord)
	}

	hash, err := s.hasher.HashPassword(dto.Password)
	if err != nil {
		return nil, internal.NewInternalError("hashing password", err)
	}

	u := &userDatamodel.User{
		Email:        dto.Email,
		FullName:     dto.FullName,
		PasswordHash: hash,
		IsActive:     true,
		JobTitle:     dto.JobTitle,
		Department:   dto.Department,
	}

	if err := s.repo.CreateUser(ctx, u, dto.RoleIDs, actor.UserID); err != nil {
		return nil, internal.NewInternalError("creating user", err)
	}

	s.auditor.Record(ctx, actor.UserID, auditDatamodel.ActionCreate, resourceUser, &u.ID,
		map[string]interface{}{"email": dto.Email, "full_name": dto.FullName, "role_ids": dto.RoleIDs},
		actor.IPAddress)

	return s.repo.GetUserByID(ctx, u.ID)
}

func (s *Service) GetUser(ctx context.Context, userID int64) (*UserWithRoles, error) {
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, internal.NewNotFoundError("user not found", internal.ErrCodeRecordNotFound)
	}
	return u, nil
}

func (s *Service) ListUsers(ctx context.Context, filter UserListFilter) ([]UserWithRoles, int64, error) {
	filter.Normalize()
	return s.repo.ListUsers(ctx, filter)
}

func (s *Service) UpdateUser(ctx context.Context, actor Actor, userID int64, dto UpdateUserDTO) (*UserWithRoles, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	updates := map[string]interface{}{}
	if dto.FullName != nil {
		updates["full_name"] = *dto.FullName
	}
	if dto.IsActive != nil {
		updates["is_active"] = *dto.IsActive
	}
	if dto.JobTitle != nil {
		updates["job_title"] = *dto.JobTitle
	}
	if dto.Department != nil {
		updates["department"] = *dto.Department
	}
	if len(updates) == 0 {
		return s.GetUser(ctx, userID)
	}

	affected, err := s.repo.UpdateUser(ctx, userID, updates)
	if err != nil {
		return nil, internal.NewInternalError("updating user", err)
	}
	if affected == 0 {
		return nil, internal.NewNotFoundError("user not found", internal.ErrCodeRecordNotFound)
	}

	s.auditor.Record(ctx, actor.UserID, auditDatamodel.ActionUpdate, resourceUser, &userID, updates, actor.IPAddress)

	// Deactivation cuts off cached grants immediately.
	if dto.IsActive != nil && !*dto.IsActive {
		s.invalidator.InvalidateUser(ctx, userID)
	}

	return s.repo.GetUserByID(ctx, userID)
}

// DeleteUser soft-deletes: the row stays for audit history, the account can
// no longer authenticate.
func (s *Service) DeleteUser(ctx context.Context, actor Actor, userID int64) error {
	affected, err := s.repo.SoftDeleteUser(ctx, userID)
	if err != nil {
		return internal.NewInternalError("deleting user", err)
	}
	if affected == 0 {
		return internal.NewNotFoundError("user not found", internal.ErrCodeRecordNotFound)
	}

	s.auditor.Record(ctx, actor.UserID, auditDatamodel.ActionDelete, resourceUser, &userID, nil, actor.IPAddress)
	s.invalidator.InvalidateUser(ctx, userID)
	return nil
}

// AssignRoles replaces the user's role set wholesale inside one transaction.
func (s *Service) AssignRoles(ctx context.Context, actor Actor, userID int64, dto AssignRolesDTO) error {
	if _, err := s.repo.GetUserByID(ctx, userID); err != nil {
		return internal.NewNotFoundError("user not found", internal.ErrCodeRecordNotFound)
	}

	if err := s.repo.ReplaceUserRoles(ctx, userID, dto.RoleIDs, actor.UserID); err != nil {
		return internal.NewInternalError("assigning roles", err)
	}

	s.auditor.Record(ctx, actor.UserID, auditDatamodel.ActionUpdate, resourceUser, &userID,
		map[string]interface{}{"role_ids": dto.RoleIDs}, actor.IPAddress)
	s.invalidator.InvalidateUser(ctx, userID)
	return nil
}

func (s *Service) CreateRole(ctx context.Context, actor Actor, dto CreateRoleDTO) (*RoleWithPermissions, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	role := &rbacDatamodel.Role{
		Name:        dto.Name,
		DisplayName: dto.DisplayName,
		Description: dto.Description,
	}

	if err := s.repo.CreateRole(ctx, role, dto.PermissionIDs); err != nil {
		return nil, internal.NewInternalError("creating role", err)
	}

	s.auditor.Record(ctx, actor.UserID, auditDatamodel.ActionCreate, resourceRole, &role.ID,
		map[string]interface{}{"name": dto.Name, "permission_ids": dto.PermissionIDs},
		actor.IPAddress)
	s.dropRolesCache(ctx)

	return s.repo.GetRoleByID(ctx, role.ID)
}

// ListRoles serves cache-aside from the warmed roles:all entry, refreshed on
// every role mutation.
func (s *Service) ListRoles(ctx context.Context) ([]RoleWithPermissions, error) {
	var cached []RoleWithPermissions
	if s.cache.GetInto(ctx, cache.AllRolesKey, cache.CategoryRoles, &cached) {
		return cached, nil
	}

	roles, err := s.repo.ListRoles(ctx)
	if err != nil {
		return nil, internal.NewInternalError("listing roles", err)
	}
	s.cache.Set(ctx, cache.AllRolesKey, roles, cache.CategoryRoles)
	return roles, nil
}

// UpdateRole refuses system roles. The guard lives in the repository's WHERE
// clause, so a concurrent flag change can not slip through.
func (s *Service) UpdateRole(ctx context.Context, actor Actor, roleID int64, dto UpdateRoleDTO) error {
	updates := map[string]interface{}{}
	if dto.DisplayName != nil {
		updates["display_name"] = *dto.DisplayName
	}
	if dto.Description != nil {
		updates["description"] = *dto.Description
	}

	var permissionIDs []int64
	if dto.PermissionIDs != nil {
		permissionIDs = *dto.PermissionIDs
	}
	if len(updates) == 0 && dto.PermissionIDs == nil {
		return nil
	}

	affected, err := s.repo.UpdateRole(ctx, roleID, updates, permissionIDs)
	if err != nil {
		return internal.NewInternalError("updating role", err)
	}
	if affected == 0 {
		return s.roleUpdateRejected(ctx, roleID)
	}

	s.auditor.Record(ctx, actor.UserID, auditDatamodel.ActionUpdate, resourceRole, &roleID, updates, actor.IPAddress)
	s.dropRolesCache(ctx)

	if dto.PermissionIDs != nil {
		if err := s.invalidator.InvalidateRole(ctx, roleID); err != nil {
			s.logger.Error("role cache invalidation failed", "role_id", roleID, "error", err)
		}
	}
	return nil
}

func (s *Service) DeleteRole(ctx context.Context, actor Actor, roleID int64) error {
	// Fan out before the membership rows disappear with the role.
	if err := s.invalidator.InvalidateRole(ctx, roleID); err != nil {
		s.logger.Error("role cache invalidation failed", "role_id", roleID, "error", err)
	}

	affected, err := s.repo.DeleteRole(ctx, roleID)
	if err != nil {
		return internal.NewInternalError("deleting role", err)
	}
	if affected == 0 {
		return s.roleUpdateRejected(ctx, roleID)
	}

	s.auditor.Record(ctx, actor.UserID, auditDatamodel.ActionDelete, resourceRole, &roleID, nil, actor.IPAddress)
	s.dropRolesCache(ctx)
	return nil
}

// ListPermissions is reference data that only changes by migration, so the
// warmed permissions:all entry can serve until its TTL.
func (s *Service) ListPermissions(ctx context.Context) ([]rbacDatamodel.Permission, error) {
	var cached []rbacDatamodel.Permission
	if s.cache.GetInto(ctx, cache.AllPermissionsKey, cache.CategoryPermissions, &cached) {
		return cached, nil
	}

	perms, err := s.repo.ListPermissions(ctx)
	if err != nil {
		return nil, internal.NewInternalError("listing permissions", err)
	}
	s.cache.Set(ctx, cache.AllPermissionsKey, perms, cache.CategoryPermissions)
	return perms, nil
}

func (s *Service) dropRolesCache(ctx context.Context) {
	s.cache.Delete(ctx, cache.AllRolesKey, cache.CategoryRoles)
}

// roleUpdateRejected distinguishes a missing role from a protected one.
func (s *Service) roleUpdateRejected(ctx context.Context, roleID int64) error {
	role, err := s.repo.GetRoleByID(ctx, roleID)
	if err != nil || role == nil {
		return internal.NewNotFoundError("role not found", internal.ErrCodeRecordNotFound)
	}
	if role.IsSystemRole {
		return internal.NewForbiddenError("system roles cannot be modified", internal.ErrCodeSystemRoleLocked)
	}
	return internal.NewNotFoundError("role not found", internal.ErrCodeRecordNotFound)
}

// referenceLoader adapts the repository to the cache warmup contract, so the
// warmed entries carry the same shapes the list endpoints serve.
type referenceLoader struct {
	repo RepositoryAPI
}

func NewReferenceLoader(repo RepositoryAPI) cache.ReferenceLoader {
	return referenceLoader{repo: repo}
}

func (l referenceLoader) AllRoles(ctx context.Context) (interface{}, error) {
	return l.repo.ListRoles(ctx)
}

func (l referenceLoader) AllPermissions(ctx context.Context) (interface{}, error) {
	return l.repo.ListPermissions(ctx)
}
