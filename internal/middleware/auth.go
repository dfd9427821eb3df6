package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
)

type contextKey string

const (
	ClinicKey contextKey = "clinic"
	APIKeyKey contextKey = "api_key"
)

// APIKeyAuth validates API key from Authorization header. Keys map clinic ID
// to its key, so a valid key also pins which clinic the caller belongs to.
func APIKeyAuth(validKeys map[string]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip auth for health and metrics
			if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				http.Error(w, "missing Authorization header", http.StatusUnauthorized)
				return
			}

			// Support both "Bearer <key>" and "<key>" formats
			apiKey := strings.TrimPrefix(auth, "Bearer ")
			apiKey = strings.TrimSpace(apiKey)

			if apiKey == "" {
				http.Error(w, "invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			// Constant-time comparison to prevent timing attacks
			valid := false
			var clinic string
			for c, key := range validKeys {
				if subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) == 1 {
					valid = true
					clinic = c
					break
				}
			}

			if !valid {
				http.Error(w, "invalid API key", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ClinicKey, clinic)
			ctx = context.WithValue(ctx, APIKeyKey, apiKey)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClinicFromContext extracts the authenticated clinic from context
func GetClinicFromContext(ctx context.Context) string {
	if clinic, ok := ctx.Value(ClinicKey).(string); ok {
		return clinic
	}
	return ""
}

// ClinicAllowed reports whether the authenticated clinic may act on the
// clinic named in the URL. With auth disabled there is no authenticated
// clinic and every path clinic is allowed.
func ClinicAllowed(ctx context.Context, pathClinic string) bool {
	auth := GetClinicFromContext(ctx)
	return auth == "" || auth == pathClinic
}
