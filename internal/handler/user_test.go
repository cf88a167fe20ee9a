package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"tradehub-rest-api/internal/handler"
	"tradehub-rest-api/internal/middleware"
	"tradehub-rest-api/internal/router"
	"tradehub-rest-api/internal/service"

	"github.com/stretchr/testify/assert"
)

// newTestAPI wires the full stack with no store, no cache and auth disabled.
func newTestAPI() (http.Handler, *service.TradingUserDirectory, *service.TransactionLifecycleManager) {
	directory := service.NewTradingUserDirectory(nil, nil, 0)
	lifecycle := service.NewTransactionLifecycleManager(directory, nil)

	r := router.New(router.Config{
		Handler:            handler.New("test"),
		UserHandler:        handler.NewUserHandler(directory, lifecycle),
		TransactionHandler: handler.NewTransactionHandler(lifecycle),
		AdminHandler:       handler.NewAdminHandler(directory, lifecycle, nil),
		AuthMiddleware:     middleware.NewAuthMiddleware(middleware.AuthConfig{}),
	})
	return r, directory, lifecycle
}

func doJSON(t *testing.T, api http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	api.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body %s)", err, w.Body.String())
	}
	return env
}

func TestRegisterUser(t *testing.T) {
	api, _, _ := newTestAPI()

	w := doJSON(t, api, http.MethodPost, "/api/v1/users", map[string]string{
		"username": "alice", "password": "secret", "city": "Toronto",
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	env := decodeEnvelope(t, w)
	assert.True(t, env.Success)
	assert.Equal(t, "alice", env.Data["username"])
	assert.Equal(t, "active", env.Data["status"])
	assert.NotContains(t, env.Data, "password")
}

func TestRegisterUserConflict(t *testing.T) {
	api, _, _ := newTestAPI()

	doJSON(t, api, http.MethodPost, "/api/v1/users", map[string]string{"username": "alice", "password": "a"})
	w := doJSON(t, api, http.MethodPost, "/api/v1/users", map[string]string{"username": "alice", "password": "b"})

	assert.Equal(t, http.StatusConflict, w.Code)
	env := decodeEnvelope(t, w)
	assert.False(t, env.Success)
	assert.Equal(t, "CONFLICT", env.Error.Code)
}

func TestRegisterUserBadRequest(t *testing.T) {
	api, _, _ := newTestAPI()

	w := doJSON(t, api, http.MethodPost, "/api/v1/users", map[string]string{"username": "alice"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetUser(t *testing.T) {
	api, directory, _ := newTestAPI()
	u, err := directory.AddTradingUser(context.Background(), "alice", "secret", "Toronto")
	assert.NoError(t, err)

	w := doJSON(t, api, http.MethodGet, "/api/v1/users/"+u.ID.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, "alice", env.Data["username"])

	w = doJSON(t, api, http.MethodGet, "/api/v1/users/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, api, http.MethodGet, "/api/v1/users/00000000-0000-0000-0000-000000000001", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListUsersByCity(t *testing.T) {
	api, directory, _ := newTestAPI()
	_, _ = directory.AddTradingUser(context.Background(), "alice", "secret", "Toronto")
	_, _ = directory.AddTradingUser(context.Background(), "bob", "secret", "Montreal")

	w := doJSON(t, api, http.MethodGet, "/api/v1/users?city=toronto", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	users := env.Data["users"].([]interface{})
	assert.Len(t, users, 1)

	// Without a city filter the endpoint lists every username.
	w = doJSON(t, api, http.MethodGet, "/api/v1/users", nil)
	env = decodeEnvelope(t, w)
	assert.ElementsMatch(t, []interface{}{"alice", "bob"}, env.Data["usernames"])
}

func TestItemEndpoints(t *testing.T) {
	api, directory, _ := newTestAPI()
	u, _ := directory.AddTradingUser(context.Background(), "alice", "secret", "Toronto")

	w := doJSON(t, api, http.MethodPost, "/api/v1/users/"+u.ID.String()+"/items", map[string]string{"name": "chess set"})
	assert.Equal(t, http.StatusCreated, w.Code)
	env := decodeEnvelope(t, w)
	itemID := env.Data["id"].(string)

	// The holdings view reflects the new inventory entry.
	w = doJSON(t, api, http.MethodGet, "/api/v1/users/"+u.ID.String()+"/holdings", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var view struct {
		Inventory []string `json:"inventory"`
		Wishlist  []string `json:"wishlist"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, []string{itemID}, view.Inventory)

	// Wishlist add is the default list; a duplicate add reports added=false.
	w = doJSON(t, api, http.MethodPut, "/api/v1/users/"+u.ID.String()+"/items/"+itemID, nil)
	env = decodeEnvelope(t, w)
	assert.Equal(t, true, env.Data["added"])
	w = doJSON(t, api, http.MethodPut, "/api/v1/users/"+u.ID.String()+"/items/"+itemID, nil)
	env = decodeEnvelope(t, w)
	assert.Equal(t, false, env.Data["added"])

	w = doJSON(t, api, http.MethodDelete, "/api/v1/users/"+u.ID.String()+"/items/"+itemID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestThresholdEndpoints(t *testing.T) {
	api, directory, _ := newTestAPI()
	u, _ := directory.AddTradingUser(context.Background(), "alice", "secret", "Toronto")

	w := doJSON(t, api, http.MethodPut, "/api/v1/users/"+u.ID.String()+"/thresholds", map[string]interface{}{
		"kind": "borrow", "value": 4,
	})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, api, http.MethodPut, "/api/v1/users/"+u.ID.String()+"/thresholds", map[string]interface{}{
		"kind": "daily", "value": 4,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, api, http.MethodGet, "/api/v1/users/"+u.ID.String()+"/thresholds", nil)
	env := decodeEnvelope(t, w)
	assert.Equal(t, float64(4), env.Data["borrow"])
}

func TestAdminEndpoints(t *testing.T) {
	api, directory, _ := newTestAPI()
	u, _ := directory.AddTradingUser(context.Background(), "alice", "secret", "Toronto")

	w := doJSON(t, api, http.MethodPost, "/api/v1/admin/users/"+u.ID.String()+"/freeze", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, api, http.MethodGet, "/api/v1/admin/frozen", nil)
	env := decodeEnvelope(t, w)
	assert.ElementsMatch(t, []interface{}{"alice"}, env.Data["usernames"])

	// A frozen account cannot enter vacation mode.
	w = doJSON(t, api, http.MethodPost, "/api/v1/admin/users/"+u.ID.String()+"/vacation", map[string]bool{"on": true})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, api, http.MethodPost, "/api/v1/admin/users/"+u.ID.String()+"/unfreeze", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, api, http.MethodGet, "/api/v1/admin/stats", nil)
	env = decodeEnvelope(t, w)
	assert.Equal(t, float64(1), env.Data["users"])
}

func TestAuthGate(t *testing.T) {
	directory := service.NewTradingUserDirectory(nil, nil, 0)
	lifecycle := service.NewTransactionLifecycleManager(directory, nil)
	api := router.New(router.Config{
		Handler:        handler.New("test"),
		UserHandler:    handler.NewUserHandler(directory, lifecycle),
		AuthMiddleware: middleware.NewAuthMiddleware(middleware.AuthConfig{APIKeys: []string{"k1"}}),
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	w := httptest.NewRecorder()
	api.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	req.Header.Set("X-API-Key", "k1")
	w = httptest.NewRecorder()
	api.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// The public status endpoint stays open.
	req = httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w = httptest.NewRecorder()
	api.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
