// Package middleware provides HTTP middleware for the persona chat API.
package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS returns middleware that handles CORS headers for allowedOrigins.
// Credentials are only allowed when every origin is listed explicitly; a
// "*" entry would otherwise echo any origin with credentials and enable CSRF.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	wildcard := false
	for _, o := range allowedOrigins {
		if o == "*" {
			wildcard = true
			break
		}
	}

	c := cors.New(cors.Options{
		AllowedOrigins:       allowedOrigins,
		AllowedMethods:       []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:       []string{"Content-Type", "X-Session-ID", "X-Request-ID"},
		AllowCredentials:     !wildcard,
		OptionsSuccessStatus: http.StatusOK,
	})
	return c.Handler
}
