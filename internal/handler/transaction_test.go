package handler_test

import (
	"context"
	"net/http"
	"testing"

	"tradehub-rest-api/internal/model"
	"tradehub-rest-api/internal/service"

	"github.com/stretchr/testify/assert"
)

type party struct {
	id     string
	itemID string
}

// seedParties registers two users, one inventory item each.
func seedParties(t *testing.T, directory *service.TradingUserDirectory) (party, party) {
	t.Helper()
	alice, err := directory.AddTradingUser(context.Background(), "alice", "secret", "Toronto")
	assert.NoError(t, err)
	bob, err := directory.AddTradingUser(context.Background(), "bob", "secret", "Toronto")
	assert.NoError(t, err)

	itemA, err := directory.RegisterItem(context.Background(), alice.ID, "chess set")
	assert.NoError(t, err)
	itemB, err := directory.RegisterItem(context.Background(), bob.ID, "go board")
	assert.NoError(t, err)

	return party{alice.ID.String(), itemA.ID.String()}, party{bob.ID.String(), itemB.ID.String()}
}

func createTransaction(t *testing.T, api http.Handler, alice, bob party, kind string, meetings []map[string]string) string {
	t.Helper()
	w := doJSON(t, api, http.MethodPost, "/api/v1/transactions", map[string]interface{}{
		"user1":     alice.id,
		"user2":     bob.id,
		"items":     []string{alice.itemID},
		"direction": "one_way",
		"kind":      kind,
		"meetings":  meetings,
	})
	assert.Equal(t, http.StatusCreated, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, "pending", env.Data["status"])
	return env.Data["id"].(string)
}

func postAction(t *testing.T, api http.Handler, txID, userID, action string) envelope {
	t.Helper()
	w := doJSON(t, api, http.MethodPost, "/api/v1/transactions/"+txID+"/actions", map[string]string{
		"user_id": userID,
		"action":  action,
	})
	assert.Equal(t, http.StatusOK, w.Code)
	return decodeEnvelope(t, w)
}

func TestTransactionLifecycleOverHTTP(t *testing.T) {
	api, directory, _ := newTestAPI()
	alice, bob := seedParties(t, directory)

	txID := createTransaction(t, api, alice, bob, "permanent", []map[string]string{
		{"location": "library", "date": "2026-09-05", "time": "14:00"},
	})

	env := postAction(t, api, txID, alice.id, "confirm_meeting_details")
	assert.Equal(t, false, env.Data["status_changed"])
	env = postAction(t, api, txID, bob.id, "confirm_meeting_details")
	assert.Equal(t, true, env.Data["status_changed"])
	assert.Equal(t, "confirmed", env.Data["status"])

	postAction(t, api, txID, alice.id, "confirm_meetup")
	env = postAction(t, api, txID, bob.id, "confirm_meetup")
	assert.Equal(t, "completed", env.Data["status"])

	// The receiving side now holds the item.
	w := doJSON(t, api, http.MethodGet, "/api/v1/users/"+bob.id+"/holdings", nil)
	assert.Contains(t, w.Body.String(), alice.itemID)
}

func TestTransactionCreateRejections(t *testing.T) {
	api, directory, _ := newTestAPI()
	alice, bob := seedParties(t, directory)

	// Item count inconsistent with direction.
	w := doJSON(t, api, http.MethodPost, "/api/v1/transactions", map[string]interface{}{
		"user1": alice.id, "user2": bob.id,
		"items":     []string{alice.itemID, bob.itemID},
		"direction": "one_way", "kind": "virtual",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Item not in user1's inventory.
	w = doJSON(t, api, http.MethodPost, "/api/v1/transactions", map[string]interface{}{
		"user1": alice.id, "user2": bob.id,
		"items":     []string{bob.itemID},
		"direction": "one_way", "kind": "virtual",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Malformed user id.
	w = doJSON(t, api, http.MethodPost, "/api/v1/transactions", map[string]interface{}{
		"user1": "nope", "user2": bob.id,
		"items":     []string{alice.itemID},
		"direction": "one_way", "kind": "virtual",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTransactionCancelOverHTTP(t *testing.T) {
	api, directory, _ := newTestAPI()
	alice, bob := seedParties(t, directory)

	txID := createTransaction(t, api, alice, bob, "virtual", nil)

	env := postAction(t, api, txID, bob.id, "cancel")
	assert.Equal(t, true, env.Data["status_changed"])
	assert.Equal(t, "cancelled", env.Data["status"])

	// Cancelled negotiations leave the registry entirely.
	w := doJSON(t, api, http.MethodGet, "/api/v1/transactions/"+txID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEditMeetingOverHTTP(t *testing.T) {
	api, directory, _ := newTestAPI()
	alice, bob := seedParties(t, directory)

	txID := createTransaction(t, api, alice, bob, "permanent", []map[string]string{
		{"location": "library", "date": "2026-09-05", "time": "14:00"},
	})

	w := doJSON(t, api, http.MethodPut, "/api/v1/transactions/"+txID+"/meetings/0", map[string]string{
		"user_id": bob.id, "field": "location", "value": "cafe",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, true, env.Data["applied"])
	assert.Equal(t, "pending", env.Data["status"])

	// Unknown field is a rejected edit, not an error.
	w = doJSON(t, api, http.MethodPut, "/api/v1/transactions/"+txID+"/meetings/0", map[string]string{
		"user_id": bob.id, "field": "venue", "value": "park",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	env = decodeEnvelope(t, w)
	assert.Equal(t, false, env.Data["applied"])

	// Out-of-range meeting number.
	w = doJSON(t, api, http.MethodPut, "/api/v1/transactions/"+txID+"/meetings/5", map[string]string{
		"user_id": bob.id, "field": "location", "value": "park",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Exhaust bob's quota; the third failing edit reports applied=false.
	for i := 0; i < model.DefaultMaxMeetingEdits-1; i++ {
		w = doJSON(t, api, http.MethodPut, "/api/v1/transactions/"+txID+"/meetings/0", map[string]string{
			"user_id": bob.id, "field": "location", "value": "cafe",
		})
		assert.Equal(t, http.StatusOK, w.Code)
	}
	w = doJSON(t, api, http.MethodPut, "/api/v1/transactions/"+txID+"/meetings/0", map[string]string{
		"user_id": bob.id, "field": "location", "value": "park",
	})
	env = decodeEnvelope(t, w)
	assert.Equal(t, false, env.Data["applied"])
}

func TestHealthEndpoints(t *testing.T) {
	api, _, _ := newTestAPI()

	for _, path := range []string{"/api/status", "/api/v1/health", "/api/v1/ready"} {
		w := doJSON(t, api, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}
