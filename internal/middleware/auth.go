package middleware

import (
	"net/http"
	"strings"

	"tradehub-rest-api/pkg/apierror"
	"tradehub-rest-api/pkg/response"
)

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	// APIKeys are the accepted client keys. An empty list disables auth,
	// for development.
	APIKeys []string
}

// NewAuthMiddleware creates an API-key check with injected configuration.
// User-level login is the presentation layer's concern; this gate only keeps
// unknown clients off the mutating surface.
func NewAuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	keys := make(map[string]struct{}, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		if k != "" {
			keys[k] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(keys) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				auth := r.Header.Get("Authorization")
				if strings.HasPrefix(auth, "Bearer ") {
					apiKey = strings.TrimPrefix(auth, "Bearer ")
				}
			}

			if _, ok := keys[apiKey]; !ok {
				response.Error(w, apierror.Unauthorized("Authentication required. Use the X-API-Key header."))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
