package rest

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/rakhadavedra/sow-analysis/internal/admin"
	"github.com/rakhadavedra/sow-analysis/internal/auth"
	"github.com/rakhadavedra/sow-analysis/internal/cache"
	"github.com/rakhadavedra/sow-analysis/internal/document"
	"github.com/rakhadavedra/sow-analysis/internal/prompt"
	"github.com/rakhadavedra/sow-analysis/internal/report"
	"github.com/rakhadavedra/sow-analysis/internal/transport/middleware"
	"github.com/rakhadavedra/sow-analysis/internal/transport/swagger"
	"github.com/rakhadavedra/sow-analysis/internal/user"
)

// Handlers bundles everything the router mounts. Nil entries are skipped so
// partial wiring (tests, the worker process) still builds a router.
type Handlers struct {
	Auth     *auth.Handler
	RBAC     *auth.RBACAuthorization
	User     *user.Handler
	Document *document.Handler
	Report   *report.Handler
	Prompt   *prompt.Handler
	Admin    *admin.Handler
	Cache    *cache.Store
}

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, h Handlers, allowedOrigins string, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)

	router.Use(middleware.CORS(allowedOrigins))
	router.Use(middleware.RequestID)
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))

	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		if h.Auth != nil {
			r.Route("/auth", func(sr chi.Router) {
				sr.Post("/login", h.Auth.Login)
				sr.Post("/refresh", h.Auth.RefreshToken)
				sr.Post("/logout", h.Auth.Logout)
			})
		}

		if h.Auth == nil || h.RBAC == nil {
			return
		}

		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)

			pr.Get("/auth/me", h.Auth.Me)
			pr.Get("/menu", h.Auth.GetMenu)

			if h.User != nil {
				pr.Route("/users/me", func(ur chi.Router) {
					ur.Get("/", h.User.GetCurrentUser)
					ur.Patch("/", h.User.UpdateProfile)
					ur.Post("/password", h.User.ChangePassword)
				})
			}

			if h.Document != nil {
				pr.Route("/documents", func(dr chi.Router) {
					dr.With(h.RBAC.RequireDocumentUpload()).Post("/", h.Document.Upload)
					dr.Get("/", h.Document.ListDocuments)
					dr.Get("/{id}", h.Document.GetDocument)
					dr.Get("/{id}/result", h.Document.GetResult)
					dr.Post("/{id}/analyze", h.Document.Analyze)
					if h.Report != nil {
						dr.Get("/{id}/report", h.Report.DownloadReport)
					}
				})
			}

			if h.Prompt != nil {
				pr.Group(func(pmr chi.Router) {
					pmr.Use(h.RBAC.RequirePromptManage())
					pmr.Route("/prompts", func(ppr chi.Router) {
						ppr.Get("/", h.Prompt.ListPrompts)
						ppr.Post("/", h.Prompt.CreatePrompt)
						ppr.Patch("/{id}", h.Prompt.UpdatePrompt)
						ppr.Delete("/{id}", h.Prompt.DeletePrompt)
					})
				})
			}

			if h.Admin != nil {
				pr.Route("/admin", func(ar chi.Router) {
					ar.Group(func(ur chi.Router) {
						ur.Use(h.RBAC.RequireUserManage())
						ur.Route("/users", func(uur chi.Router) {
							uur.Get("/", h.Admin.ListUsers)
							uur.Post("/", h.Admin.CreateUser)
							uur.Get("/{id}", h.Admin.GetUser)
							uur.Patch("/{id}", h.Admin.UpdateUser)
							uur.Delete("/{id}", h.Admin.DeleteUser)
							uur.Put("/{id}/roles", h.Admin.AssignRoles)
						})
					})

					ar.Group(func(rr chi.Router) {
						rr.Use(h.RBAC.RequireRoleManage())
						rr.Route("/roles", func(rrr chi.Router) {
							rrr.Get("/", h.Admin.ListRoles)
							rrr.Post("/", h.Admin.CreateRole)
							rrr.Patch("/{id}", h.Admin.UpdateRole)
							rrr.Delete("/{id}", h.Admin.DeleteRole)
						})
					})

					ar.With(h.RBAC.RequirePermissionView()).Get("/permissions", h.Admin.ListPermissions)
					ar.With(h.RBAC.RequireAuditView()).Get("/audit-log", h.Admin.ListAuditLog)

					if h.Cache != nil {
						ar.With(h.RBAC.RequireCacheView()).Get("/cache/stats", cacheStatsHandler(h.Cache))
					}
				})
			}
		})
	})
}

func cacheStatsHandler(store *cache.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"stats": store.Stats()})
	}
}
