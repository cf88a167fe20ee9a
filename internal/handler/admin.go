package handler

import (
	"encoding/json"
	"net/http"

	"tradehub-rest-api/internal/repository"
	"tradehub-rest-api/internal/service"
	"tradehub-rest-api/pkg/apierror"
	"tradehub-rest-api/pkg/response"
)

// AdminHandler exposes the moderation surface: flagged/frozen account lists,
// account status toggles and system statistics.
type AdminHandler struct {
	directory *service.TradingUserDirectory
	lifecycle *service.TransactionLifecycleManager
	store     repository.Store
}

// NewAdminHandler creates a new admin handler. store may be nil.
func NewAdminHandler(directory *service.TradingUserDirectory, lifecycle *service.TransactionLifecycleManager, store repository.Store) *AdminHandler {
	return &AdminHandler{directory: directory, lifecycle: lifecycle, store: store}
}

// Flagged handles GET /api/v1/admin/flagged
func (h *AdminHandler) Flagged(w http.ResponseWriter, r *http.Request) {
	usernames := h.directory.FlaggedUsernames()
	response.OK(w, map[string]interface{}{
		"usernames": usernames,
		"count":     len(usernames),
	})
}

// Frozen handles GET /api/v1/admin/frozen
func (h *AdminHandler) Frozen(w http.ResponseWriter, r *http.Request) {
	usernames := h.directory.FrozenUsernames()
	response.OK(w, map[string]interface{}{
		"usernames": usernames,
		"count":     len(usernames),
	})
}

// Freeze handles POST /api/v1/admin/users/{id}/freeze
func (h *AdminHandler) Freeze(w http.ResponseWriter, r *http.Request) {
	id, apiErr := userIDParam(r)
	if apiErr != nil {
		response.Error(w, apiErr)
		return
	}

	if err := h.directory.Freeze(r.Context(), id); err != nil {
		response.Error(w, mapServiceError(err))
		return
	}
	response.NoContent(w)
}

// Unfreeze handles POST /api/v1/admin/users/{id}/unfreeze
func (h *AdminHandler) Unfreeze(w http.ResponseWriter, r *http.Request) {
	id, apiErr := userIDParam(r)
	if apiErr != nil {
		response.Error(w, apiErr)
		return
	}

	if err := h.directory.Unfreeze(r.Context(), id); err != nil {
		response.Error(w, mapServiceError(err))
		return
	}
	response.NoContent(w)
}

// Vacation handles POST /api/v1/admin/users/{id}/vacation
func (h *AdminHandler) Vacation(w http.ResponseWriter, r *http.Request) {
	id, apiErr := userIDParam(r)
	if apiErr != nil {
		response.Error(w, apiErr)
		return
	}

	var req struct {
		On bool `json:"on"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON"))
		return
	}

	ok, err := h.directory.SetVacation(r.Context(), id, req.On)
	if err != nil {
		response.Error(w, mapServiceError(err))
		return
	}
	if !ok {
		response.Error(w, apierror.Conflict("a frozen account cannot change vacation status"))
		return
	}
	response.NoContent(w)
}

// Stats handles GET /api/v1/admin/stats
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"users":                  h.directory.UserCount(),
		"flagged":                len(h.directory.FlaggedUsernames()),
		"frozen":                 len(h.directory.FrozenUsernames()),
		"transactions":           h.lifecycle.Count(),
		"transactions_by_status": h.lifecycle.CountByStatus(),
	}

	if h.store != nil {
		if storeStats, err := h.store.Stats(r.Context()); err == nil {
			stats["store"] = storeStats
		}
	}

	response.OK(w, stats)
}
