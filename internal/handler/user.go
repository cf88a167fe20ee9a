package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"tradehub-rest-api/internal/model"
	"tradehub-rest-api/internal/service"
	"tradehub-rest-api/pkg/apierror"
	"tradehub-rest-api/pkg/response"
	"tradehub-rest-api/pkg/uid"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// UserHandler handles trading-user HTTP requests.
type UserHandler struct {
	directory *service.TradingUserDirectory
	lifecycle *service.TransactionLifecycleManager
}

// NewUserHandler creates a new user handler.
func NewUserHandler(directory *service.TradingUserDirectory, lifecycle *service.TransactionLifecycleManager) *UserHandler {
	return &UserHandler{directory: directory, lifecycle: lifecycle}
}

// userView is the API shape of a trading user; credentials never leave the
// service.
type userView struct {
	ID                  uuid.UUID        `json:"id"`
	Username            string           `json:"username"`
	City                string           `json:"city"`
	Status              model.UserStatus `json:"status"`
	Flagged             bool             `json:"flagged"`
	BorrowThreshold     int              `json:"borrow_threshold"`
	WeeklyThreshold     int              `json:"weekly_threshold"`
	IncompleteThreshold int              `json:"incomplete_threshold"`
	CurrentTransactions []uuid.UUID      `json:"current_transactions"`
}

func viewOf(u *model.TradingUser) userView {
	return userView{
		ID:                  u.ID,
		Username:            u.Username,
		City:                u.City,
		Status:              u.Status,
		Flagged:             u.Flagged,
		BorrowThreshold:     u.BorrowThreshold,
		WeeklyThreshold:     u.WeeklyThreshold,
		IncompleteThreshold: u.IncompleteThreshold,
		CurrentTransactions: u.CurrentTransactions,
	}
}

// mapServiceError translates service sentinels into API errors.
func mapServiceError(err error) *apierror.Error {
	switch {
	case errors.Is(err, service.ErrInvalidTransaction):
		return apierror.NotFound("transaction not found")
	case errors.Is(err, service.ErrInvalidTradingUser):
		return apierror.NotFound("trading user not found")
	case errors.Is(err, service.ErrUsernameTaken):
		return apierror.Conflict("username already taken")
	case errors.Is(err, service.ErrPartyUnavailable):
		return apierror.Conflict("a party is frozen or on vacation")
	case errors.Is(err, service.ErrItemNotOwned):
		return apierror.Conflict("item is not in its owner's inventory")
	case errors.Is(err, service.ErrWeeklyLimit):
		return apierror.Conflict("weekly transaction threshold reached")
	case errors.Is(err, service.ErrBadTransactionShape):
		return apierror.BadRequest("invalid request shape")
	}
	return apierror.InternalError("")
}

// userIDParam parses the {id} URL parameter.
func userIDParam(r *http.Request) (uuid.UUID, *apierror.Error) {
	raw := chi.URLParam(r, "id")
	id, err := uid.Parse(raw)
	if err != nil {
		return uuid.Nil, apierror.BadRequest("invalid user id")
	}
	return id, nil
}

// Register handles POST /api/v1/users
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		City     string `json:"city"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON"))
		return
	}
	if req.Username == "" || req.Password == "" {
		response.Error(w, apierror.BadRequest("username and password are required"))
		return
	}

	u, err := h.directory.AddTradingUser(r.Context(), req.Username, req.Password, req.City)
	if err != nil {
		response.Error(w, mapServiceError(err))
		return
	}
	snap, err := h.directory.UserSnapshot(u.ID)
	if err != nil {
		response.Error(w, mapServiceError(err))
		return
	}
	response.Created(w, viewOf(snap))
}

// Get handles GET /api/v1/users/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, apiErr := userIDParam(r)
	if apiErr != nil {
		response.Error(w, apiErr)
		return
	}

	u, err := h.directory.UserSnapshot(id)
	if err != nil {
		response.Error(w, mapServiceError(err))
		return
	}
	response.OK(w, viewOf(u))
}

// ByCity handles GET /api/v1/users?city=...
func (h *UserHandler) ByCity(w http.ResponseWriter, r *http.Request) {
	city := r.URL.Query().Get("city")
	if city == "" {
		response.OK(w, map[string]interface{}{"usernames": h.directory.AllUsernames()})
		return
	}

	users := h.directory.UsersByCity(city)
	views := make([]userView, 0, len(users))
	for _, u := range users {
		views = append(views, viewOf(u))
	}
	response.OK(w, map[string]interface{}{"city": city, "users": views})
}

// CurrentTransactions handles GET /api/v1/users/{id}/transactions
func (h *UserHandler) CurrentTransactions(w http.ResponseWriter, r *http.Request) {
	id, apiErr := userIDParam(r)
	if apiErr != nil {
		response.Error(w, apiErr)
		return
	}

	transactions, err := h.lifecycle.CurrentTransactionsOf(id)
	if err != nil {
		response.Error(w, mapServiceError(err))
		return
	}
	response.OK(w, map[string]interface{}{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

// History handles GET /api/v1/users/{id}/history
func (h *UserHandler) History(w http.ResponseWriter, r *http.Request) {
	id, apiErr := userIDParam(r)
	if apiErr != nil {
		response.Error(w, apiErr)
		return
	}

	u, err := h.directory.UserSnapshot(id)
	if err != nil {
		response.Error(w, mapServiceError(err))
		return
	}
	response.OK(w, u.History)
}

// Holdings handles GET /api/v1/users/{id}/holdings
func (h *UserHandler) Holdings(w http.ResponseWriter, r *http.Request) {
	id, apiErr := userIDParam(r)
	if apiErr != nil {
		response.Error(w, apiErr)
		return
	}

	view, err := h.directory.HoldingsView(r.Context(), id)
	if err != nil {
		response.Error(w, mapServiceError(err))
		return
	}
	response.Raw(w, http.StatusOK, view)
}

// RegisterItem handles POST /api/v1/users/{id}/items
func (h *UserHandler) RegisterItem(w http.ResponseWriter, r *http.Request) {
	id, apiErr := userIDParam(r)
	if apiErr != nil {
		response.Error(w, apiErr)
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		response.Error(w, apierror.BadRequest("item name is required"))
		return
	}

	item, err := h.directory.RegisterItem(r.Context(), id, req.Name)
	if err != nil {
		response.Error(w, mapServiceError(err))
		return
	}
	response.Created(w, item)
}

// listParam returns the target list, defaulting to the wishlist.
func listParam(r *http.Request) string {
	if list := r.URL.Query().Get("list"); list == service.ListInventory {
		return service.ListInventory
	}
	return service.ListWishlist
}

// AddItem handles PUT /api/v1/users/{id}/items/{item_id}?list=inventory|wishlist
func (h *UserHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	id, apiErr := userIDParam(r)
	if apiErr != nil {
		response.Error(w, apiErr)
		return
	}
	itemID, err := uid.Parse(chi.URLParam(r, "item_id"))
	if err != nil {
		response.Error(w, apierror.BadRequest("invalid item id"))
		return
	}

	added, err := h.directory.AddItem(r.Context(), id, itemID, listParam(r))
	if err != nil {
		response.Error(w, mapServiceError(err))
		return
	}
	response.OK(w, map[string]interface{}{"added": added})
}

// RemoveItem handles DELETE /api/v1/users/{id}/items/{item_id}?list=inventory|wishlist
func (h *UserHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, apiErr := userIDParam(r)
	if apiErr != nil {
		response.Error(w, apiErr)
		return
	}
	itemID, err := uid.Parse(chi.URLParam(r, "item_id"))
	if err != nil {
		response.Error(w, apierror.BadRequest("invalid item id"))
		return
	}

	if err := h.directory.RemoveItem(r.Context(), id, itemID, listParam(r)); err != nil {
		response.Error(w, mapServiceError(err))
		return
	}
	response.NoContent(w)
}

// ChangePassword handles PUT /api/v1/users/{id}/password
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	id, apiErr := userIDParam(r)
	if apiErr != nil {
		response.Error(w, apiErr)
		return
	}

	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password == "" {
		response.Error(w, apierror.BadRequest("password is required"))
		return
	}

	if err := h.directory.ChangePassword(r.Context(), id, req.Password); err != nil {
		response.Error(w, mapServiceError(err))
		return
	}
	response.NoContent(w)
}

// ChangeThreshold handles PUT /api/v1/users/{id}/thresholds
func (h *UserHandler) ChangeThreshold(w http.ResponseWriter, r *http.Request) {
	id, apiErr := userIDParam(r)
	if apiErr != nil {
		response.Error(w, apiErr)
		return
	}

	var req struct {
		Kind  string `json:"kind"` // borrow, weekly or incomplete
		Value int    `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON"))
		return
	}
	if req.Value < 0 {
		response.Error(w, apierror.BadRequest("threshold value must be non-negative"))
		return
	}

	if err := h.directory.ChangeThreshold(r.Context(), id, req.Kind, req.Value); err != nil {
		if errors.Is(err, service.ErrBadTransactionShape) {
			response.Error(w, apierror.BadRequest("threshold kind must be borrow, weekly or incomplete"))
			return
		}
		response.Error(w, mapServiceError(err))
		return
	}
	response.NoContent(w)
}

// Thresholds handles GET /api/v1/users/{id}/thresholds
func (h *UserHandler) Thresholds(w http.ResponseWriter, r *http.Request) {
	id, apiErr := userIDParam(r)
	if apiErr != nil {
		response.Error(w, apiErr)
		return
	}

	u, err := h.directory.UserSnapshot(id)
	if err != nil {
		response.Error(w, mapServiceError(err))
		return
	}
	response.OK(w, map[string]int{
		"borrow":     u.BorrowThreshold,
		"weekly":     u.WeeklyThreshold,
		"incomplete": u.IncompleteThreshold,
	})
}
