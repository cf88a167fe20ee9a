package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"tradehub-rest-api/internal/model"
	"tradehub-rest-api/internal/service"
	"tradehub-rest-api/pkg/apierror"
	"tradehub-rest-api/pkg/response"
	"tradehub-rest-api/pkg/uid"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// TransactionHandler handles transaction HTTP requests.
type TransactionHandler struct {
	lifecycle *service.TransactionLifecycleManager
}

// NewTransactionHandler creates a new transaction handler.
func NewTransactionHandler(lifecycle *service.TransactionLifecycleManager) *TransactionHandler {
	return &TransactionHandler{lifecycle: lifecycle}
}

// transactionIDParam parses the {id} URL parameter.
func transactionIDParam(r *http.Request) (uuid.UUID, *apierror.Error) {
	id, err := uid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, apierror.BadRequest("invalid transaction id")
	}
	return id, nil
}

// meetingRequest is the wire shape of a proposed meeting.
type meetingRequest struct {
	Location string `json:"location"`
	Date     string `json:"date"`
	Time     string `json:"time"`
}

// Create handles POST /api/v1/transactions
func (h *TransactionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		User1     string           `json:"user1"`
		User2     string           `json:"user2"`
		Items     []string         `json:"items"`
		Direction string           `json:"direction"`
		Kind      string           `json:"kind"`
		Meetings  []meetingRequest `json:"meetings"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON"))
		return
	}

	user1, err := uid.Parse(req.User1)
	if err != nil {
		response.Error(w, apierror.BadRequest("invalid user1 id"))
		return
	}
	user2, err := uid.Parse(req.User2)
	if err != nil {
		response.Error(w, apierror.BadRequest("invalid user2 id"))
		return
	}

	items := make([]uuid.UUID, 0, len(req.Items))
	for _, raw := range req.Items {
		itemID, err := uid.Parse(raw)
		if err != nil {
			response.Error(w, apierror.BadRequest("invalid item id"))
			return
		}
		items = append(items, itemID)
	}

	meetings := make([]model.Meeting, 0, len(req.Meetings))
	for _, m := range req.Meetings {
		meetings = append(meetings, model.NewMeeting(m.Location, m.Date, m.Time))
	}

	t, err := h.lifecycle.CreateTransaction(
		r.Context(),
		user1, user2, items,
		model.TransactionDirection(req.Direction),
		model.TransactionKind(req.Kind),
		meetings,
	)
	if err != nil {
		response.Error(w, mapServiceError(err))
		return
	}
	response.Created(w, t.Snapshot())
}

// Get handles GET /api/v1/transactions/{id}
func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, apiErr := transactionIDParam(r)
	if apiErr != nil {
		response.Error(w, apiErr)
		return
	}

	t, err := h.lifecycle.GetTransaction(id)
	if err != nil {
		response.Error(w, mapServiceError(err))
		return
	}
	response.OK(w, t.Snapshot())
}

// Remove handles DELETE /api/v1/transactions/{id}
func (h *TransactionHandler) Remove(w http.ResponseWriter, r *http.Request) {
	id, apiErr := transactionIDParam(r)
	if apiErr != nil {
		response.Error(w, apiErr)
		return
	}

	if err := h.lifecycle.RemoveTransaction(id); err != nil {
		response.Error(w, mapServiceError(err))
		return
	}
	response.NoContent(w)
}

// EditMeeting handles PUT /api/v1/transactions/{id}/meetings/{n}.
// A successful field change is finalized immediately: the edit counts
// against the user's quota, their status slot resets to pending, and the
// overall status is recomputed. A rejected edit reports applied=false with
// nothing mutated.
func (h *TransactionHandler) EditMeeting(w http.ResponseWriter, r *http.Request) {
	id, apiErr := transactionIDParam(r)
	if apiErr != nil {
		response.Error(w, apiErr)
		return
	}

	meetingNum, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil || meetingNum < 0 {
		response.Error(w, apierror.BadRequest("invalid meeting number"))
		return
	}

	var req struct {
		UserID string `json:"user_id"`
		Field  string `json:"field"` // location, date or time
		Value  string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON"))
		return
	}
	userID, err := uid.Parse(req.UserID)
	if err != nil {
		response.Error(w, apierror.BadRequest("invalid user id"))
		return
	}

	applied, err := h.lifecycle.EditMeeting(meetingNum, id, userID, req.Field, req.Value)
	if err != nil {
		response.Error(w, mapServiceError(err))
		return
	}

	if applied {
		if err := h.lifecycle.RecordUserEdit(meetingNum, id, userID); err != nil {
			response.Error(w, mapServiceError(err))
			return
		}
		if _, err := h.lifecycle.UpdateStatusForUser(r.Context(), userID, id, model.ActionEdited); err != nil {
			response.Error(w, mapServiceError(err))
			return
		}
	}

	t, err := h.lifecycle.GetTransaction(id)
	if err != nil {
		response.Error(w, mapServiceError(err))
		return
	}
	response.OK(w, map[string]interface{}{
		"applied": applied,
		"status":  t.Snapshot().Status,
	})
}

// Action handles POST /api/v1/transactions/{id}/actions.
// The acting user's status slot is updated and the overall status advances
// immediately when the strategy finds a transition.
func (h *TransactionHandler) Action(w http.ResponseWriter, r *http.Request) {
	id, apiErr := transactionIDParam(r)
	if apiErr != nil {
		response.Error(w, apiErr)
		return
	}

	var req struct {
		UserID string `json:"user_id"`
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON"))
		return
	}
	userID, err := uid.Parse(req.UserID)
	if err != nil {
		response.Error(w, apierror.BadRequest("invalid user id"))
		return
	}
	action, ok := model.ParseAction(req.Action)
	if !ok {
		response.Error(w, apierror.BadRequest("unknown action"))
		return
	}

	changed, err := h.lifecycle.UpdateStatusForUser(r.Context(), userID, id, action)
	if err != nil {
		response.Error(w, mapServiceError(err))
		return
	}

	// A cancelled transaction is gone from the registry by the time we
	// report back.
	status := model.StatusCancelled
	if t, err := h.lifecycle.GetTransaction(id); err == nil {
		status = t.Snapshot().Status
	}
	response.OK(w, map[string]interface{}{
		"status_changed": changed,
		"status":         status,
	})
}
