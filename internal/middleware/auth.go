package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"boxshop-api/pkg/apierror"
)

// ClientKey is the context key for the authenticated API key.
const ClientKey contextKey = "client_key"

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	APIKeys []string
}

// NewAuthMiddleware creates an API key middleware. With no keys configured
// every request is let through (development).
func NewAuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip auth for health check endpoints
			if r.URL.Path == "/api/v1/health" || r.URL.Path == "/api/v1/ready" {
				next.ServeHTTP(w, r)
				return
			}

			// Admin endpoints authenticate with X-Admin-Key instead
			if strings.HasPrefix(r.URL.Path, "/api/v1/admin") {
				next.ServeHTTP(w, r)
				return
			}

			if len(cfg.APIKeys) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			apiKey := extractAPIKey(r)
			if apiKey == "" {
				writeError(w, apierror.Unauthorized("Authentication required. Use X-API-Key header."))
				return
			}
			if !isValidKey(apiKey, cfg.APIKeys) {
				writeError(w, apierror.Unauthorized("Invalid API key"))
				return
			}

			ctx := context.WithValue(r.Context(), ClientKey, apiKey)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects requests without the configured X-Admin-Key. An empty
// admin key disables the admin surface entirely.
func RequireAdmin(adminKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminKey == "" {
				writeError(w, apierror.Forbidden("Admin access is not configured"))
				return
			}
			key := r.Header.Get("X-Admin-Key")
			if key == "" {
				writeError(w, apierror.Unauthorized("X-Admin-Key header required"))
				return
			}
			if subtle.ConstantTimeCompare([]byte(key), []byte(adminKey)) != 1 {
				writeError(w, apierror.Forbidden("Invalid admin key"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeError writes an API error response.
func writeError(w http.ResponseWriter, err *apierror.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	w.Write(err.ToJSON())
}

func extractAPIKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// isValidKey checks if the provided key is in the valid keys list.
func isValidKey(key string, validKeys []string) bool {
	for _, valid := range validKeys {
		if valid != "" && subtle.ConstantTimeCompare([]byte(key), []byte(valid)) == 1 {
			return true
		}
	}
	return false
}

// GetClientKey returns the API key the request authenticated with.
func GetClientKey(ctx context.Context) string {
	if key, ok := ctx.Value(ClientKey).(string); ok {
		return key
	}
	return ""
}
