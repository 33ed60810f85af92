package admin

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/rakhadavedra/sow-analysis/internal"
	"github.com/rakhadavedra/sow-analysis/internal/audit"
	"github.com/rakhadavedra/sow-analysis/internal/transport"
	"github.com/rakhadavedra/sow-analysis/pkg/logger"
)

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
	Auditor audit.ServiceAPI
}

func NewHandler(service ServiceAPI, auditor audit.ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
		Auditor:     auditor,
	}
}

func (h *Handler) actor(r *http.Request) (Actor, bool) {
	user, ok := internal.UserFromContext(r.Context())
	if !ok || user == nil {
		return Actor{}, false
	}

	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			ip = host
		} else {
			ip = r.RemoteAddr
		}
	}
	return Actor{UserID: user.ID, IPAddress: ip}, true
}

func (h *Handler) pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(r)
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto CreateUserDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.Service.CreateUser(r.Context(), actor, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("admin created user", "user_id", user.ID, "actor_id", actor.UserID)
	h.WriteJSON(w, http.StatusCreated, user)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(r, "id")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	user, err := h.Service.GetUser(r.Context(), userID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	filter := UserListFilter{
		Search: r.URL.Query().Get("search"),
	}
	if page, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
		filter.Page = page
	}
	if perPage, err := strconv.Atoi(r.URL.Query().Get("per_page")); err == nil {
		filter.PerPage = perPage
	}

	users, total, err := h.Service.ListUsers(r.Context(), filter)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	filter.Normalize()
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"users":    users,
		"total":    total,
		"page":     filter.Page,
		"per_page": filter.PerPage,
	})
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(r)
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	userID, ok := h.pathID(r, "id")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	var dto UpdateUserDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.Service.UpdateUser(r.Context(), actor, userID, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(r)
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	userID, ok := h.pathID(r, "id")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	if err := h.Service.DeleteUser(r.Context(), actor, userID); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("admin deleted user", "user_id", userID, "actor_id", actor.UserID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AssignRoles(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(r)
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	userID, ok := h.pathID(r, "id")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	var dto AssignRolesDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.Service.AssignRoles(r.Context(), actor, userID, dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("admin replaced user roles", "user_id", userID, "role_count", len(dto.RoleIDs), "actor_id", actor.UserID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CreateRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(r)
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto CreateRoleDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	role, err := h.Service.CreateRole(r.Context(), actor, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, role)
}

func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.Service.ListRoles(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"roles": roles})
}

func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(r)
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	roleID, ok := h.pathID(r, "id")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, "invalid role ID")
		return
	}

	var dto UpdateRoleDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.Service.UpdateRole(r.Context(), actor, roleID, dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(r)
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	roleID, ok := h.pathID(r, "id")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, "invalid role ID")
		return
	}

	if err := h.Service.DeleteRole(r.Context(), actor, roleID); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("admin deleted role", "role_id", roleID, "actor_id", actor.UserID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	permissions, err := h.Service.ListPermissions(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"permissions": permissions})
}

func (h *Handler) ListAuditLog(w http.ResponseWriter, r *http.Request) {
	filter := audit.ListFilter{
		ResourceType: r.URL.Query().Get("resource_type"),
		Action:       r.URL.Query().Get("action"),
	}
	if userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64); err == nil {
		filter.UserID = userID
	}
	if page, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
		filter.Page = page
	}
	if perPage, err := strconv.Atoi(r.URL.Query().Get("per_page")); err == nil {
		filter.PerPage = perPage
	}

	entries, total, err := h.Auditor.List(r.Context(), filter)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	filter.Normalize()
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entries":  entries,
		"total":    total,
		"page":     filter.Page,
		"per_page": filter.PerPage,
	})
}
