package middleware

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"
)

// SessionAuthenticator resolves bearer tokens to users and blocks cross-user
// access on the /api/user/{userId}/... routes.
type SessionAuthenticator struct {
	DB *sql.DB
}

func NewSessionAuthenticator(db *sql.DB) *SessionAuthenticator {
	return &SessionAuthenticator{DB: db}
}

func (sa *SessionAuthenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sa.shouldSkip(r) {
			next.ServeHTTP(w, r)
			return
		}

		token := bearerToken(r)
		if token == "" {
			respondAuthError(w, http.StatusUnauthorized, "missing_token")
			return
		}

		var sessionUserID string
		err := sa.DB.QueryRow(`
			SELECT user_id FROM sessions
			 WHERE token = $1 AND expires_at > NOW()
		`, token).Scan(&sessionUserID)
		if err == sql.ErrNoRows {
			respondAuthError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		if err != nil {
			respondAuthError(w, http.StatusInternalServerError, "session_lookup_failed")
			return
		}

		if pathUserID := extractUserID(r); pathUserID != "" && pathUserID != sessionUserID {
			respondAuthError(w, http.StatusForbidden, "forbidden")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// shouldSkip lists the routes that work without a session: health, auth
// itself, the stateless generation functions, Stripe callbacks, the public
// pricing table, and the WS endpoint (which carries its token in the query).
func (sa *SessionAuthenticator) shouldSkip(r *http.Request) bool {
	skipPaths := []string{
		"/health",
		"/api/auth",
		"/functions",
		"/webhook/stripe",
		"/api/billing/tiers",
		"/api/events",
	}

	for _, path := range skipPaths {
		if strings.HasPrefix(r.URL.Path, path) {
			return true
		}
	}
	return false
}

// extractUserID pulls the user id from path segments like /api/user/{userId}/posts.
func extractUserID(r *http.Request) string {
	parts := strings.Split(r.URL.Path, "/")
	for i, part := range parts {
		if part == "user" && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return ""
}

func bearerToken(r *http.Request) string {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

func respondAuthError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}
