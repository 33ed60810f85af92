package authz

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/rakhadavedra/sow-analysis/internal/cache"
)

// Resolver computes a user's effective permission set: the union of
// permissions granted through every role the user holds. Results are served
// cache-aside under the permissions category.
type Resolver struct {
	repo   RepositoryAPI
	cache  *cache.Store
	logger *slog.Logger
}

func NewResolver(repo RepositoryAPI, store *cache.Store, logger *slog.Logger) *Resolver {
	return &Resolver{
		repo:   repo,
		cache:  store,
		logger: logger,
	}
}

// ResolvePermissions returns the deduplicated permission codes for the user.
// A user with no rows (including a nonexistent user) resolves to an empty set.
func (r *Resolver) ResolvePermissions(ctx context.Context, userID int64) ([]string, error) {
	key := cache.UserPermissionsKey(userID)

	var cached []string
	if r.cache.GetInto(ctx, key, cache.CategoryPermissions, &cached) {
		return cached, nil
	}

	codes, err := r.repo.PermissionsForUser(ctx, userID)
	if err != nil {
		r.logger.Error("resolving permissions failed", "user_id", userID, "error", err)
		return nil, fmt.Errorf("resolve permissions for user %d: %w", userID, err)
	}

	codes = dedupeSorted(codes)
	r.cache.Set(ctx, key, codes, cache.CategoryPermissions)
	return codes, nil
}

// InvalidateUser drops the user's cached permission set and composed menu.
// Called whenever the user's role assignments change; menus depend
// transitively on permissions, so both categories are purged.
func (r *Resolver) InvalidateUser(ctx context.Context, userID int64) {
	prefix := cache.UserPrefix(userID)
	r.cache.Invalidate(ctx, prefix, cache.CategoryPermissions)
	r.cache.Invalidate(ctx, prefix, cache.CategoryMenus)
}

// InvalidateRole fans out to every user currently holding the role. Stale
// grants are security-sensitive, so this runs proactively rather than waiting
// for TTL expiry.
func (r *Resolver) InvalidateRole(ctx context.Context, roleID int64) error {
	userIDs, err := r.repo.UserIDsWithRole(ctx, roleID)
	if err != nil {
		return fmt.Errorf("find users with role %d: %w", roleID, err)
	}

	for _, userID := range userIDs {
		r.InvalidateUser(ctx, userID)
	}
	r.cache.Delete(ctx, cache.AllRolesKey, cache.CategoryRoles)

	r.logger.Info("invalidated role caches", "role_id", roleID, "affected_users", len(userIDs))
	return nil
}

func dedupeSorted(codes []string) []string {
	if codes == nil {
		return []string{}
	}
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
