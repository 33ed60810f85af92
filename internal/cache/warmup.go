package cache

import (
	"context"
)

// ReferenceLoader supplies the reference data preloaded at startup.
type ReferenceLoader interface {
	AllRoles(ctx context.Context) (interface{}, error)
	AllPermissions(ctx context.Context) (interface{}, error)
}

// Warm preloads the roles and permissions categories so the first request
// after a deploy does not pay the cold-start penalty. Failures are logged and
// swallowed: a cold cache fills lazily.
func (s *Store) Warm(ctx context.Context, loader ReferenceLoader) {
	rolesLoaded := false
	if roles, err := loader.AllRoles(ctx); err != nil {
		s.logger.Warn("cache warmup: loading roles failed", "error", err)
	} else {
		s.Set(ctx, AllRolesKey, roles, CategoryRoles)
		rolesLoaded = true
	}

	permsLoaded := false
	if perms, err := loader.AllPermissions(ctx); err != nil {
		s.logger.Warn("cache warmup: loading permissions failed", "error", err)
	} else {
		s.Set(ctx, AllPermissionsKey, perms, CategoryPermissions)
		permsLoaded = true
	}

	s.logger.Info("cache warmup complete",
		"roles_loaded", rolesLoaded,
		"permissions_loaded", permsLoaded)
}
