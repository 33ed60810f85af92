package auth

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/rakhadavedra/sow-analysis/internal"
	"github.com/rakhadavedra/sow-analysis/internal/authz"
	"github.com/rakhadavedra/sow-analysis/internal/transport"
)

// RBACAuthorization gates routes on permission codes carried by the session
// user. Permission resolution already happened in the auth middleware, so the
// checks here are pure slice membership.
type RBACAuthorization struct {
	*transport.BaseHandler
	logger *slog.Logger
}

func NewRBACAuthorization(logger *slog.Logger) *RBACAuthorization {
	return &RBACAuthorization{
		BaseHandler: transport.NewBaseHandler(logger),
		logger:      logger,
	}
}

// Check denies with a body naming the missing permission code, so API
// consumers can tell which grant to request.
func (ra *RBACAuthorization) Check(next http.HandlerFunc, permission string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := internal.UserFromContext(r.Context())
		if !ok || user == nil {
			ra.logger.Warn("authorization check failed: user not found in context")
			ra.HandleServiceError(w, internal.NewUnauthorizedError("authentication required", internal.ErrCodeInvalidToken))
			return
		}

		if !user.HasPermission(permission) {
			ra.logger.WarnContext(r.Context(), "access denied: insufficient permissions",
				"user_id", user.ID,
				"required_permission", permission,
				"user_permissions", user.Permissions)
			ra.HandleServiceError(w, internal.NewForbiddenError(
				fmt.Sprintf("permission required: %s", permission),
				internal.ErrCodePermissionDenied))
			return
		}

		next.ServeHTTP(w, r)
	}
}

// Require returns a chi-compatible middleware enforcing one permission code.
func (ra *RBACAuthorization) Require(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return ra.Check(next.ServeHTTP, permission)
	}
}

func (ra *RBACAuthorization) RequireUserManage() func(http.Handler) http.Handler {
	return ra.Require(authz.PermUserManage)
}

func (ra *RBACAuthorization) RequireRoleManage() func(http.Handler) http.Handler {
	return ra.Require(authz.PermRoleManage)
}

func (ra *RBACAuthorization) RequirePermissionView() func(http.Handler) http.Handler {
	return ra.Require(authz.PermPermissionView)
}

func (ra *RBACAuthorization) RequirePromptManage() func(http.Handler) http.Handler {
	return ra.Require(authz.PermPromptManage)
}

func (ra *RBACAuthorization) RequireDocumentUpload() func(http.Handler) http.Handler {
	return ra.Require(authz.PermDocumentUpload)
}

func (ra *RBACAuthorization) RequireDocumentView() func(http.Handler) http.Handler {
	return ra.Require(authz.PermDocumentView)
}

func (ra *RBACAuthorization) RequireAuditView() func(http.Handler) http.Handler {
	return ra.Require(authz.PermAuditView)
}

func (ra *RBACAuthorization) RequireCacheView() func(http.Handler) http.Handler {
	return ra.Require(authz.PermCacheView)
}
