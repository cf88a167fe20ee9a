package middleware

import (
	"log"
	"net/http"
	"runtime/debug"

	"tradehub-rest-api/pkg/apierror"
	"tradehub-rest-api/pkg/response"
)

// Recovery converts panics into 500 responses instead of dropped
// connections.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("PANIC: %v\n%s", err, debug.Stack())
				response.Error(w, apierror.InternalError("internal server error"))
			}
		}()

		next.ServeHTTP(w, r)
	})
}
