package middleware

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"
)

// PlanEnforcer blocks campaign creation once the subscription's monthly post
// quota is spent. Per-campaign platform limits are checked by the campaign
// handler, which sees the request body.
type PlanEnforcer struct {
	DB *sql.DB
}

func NewPlanEnforcer(db *sql.DB) *PlanEnforcer {
	return &PlanEnforcer{DB: db}
}

func (pe *PlanEnforcer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !pe.applies(r) {
			next.ServeHTTP(w, r)
			return
		}

		userID := extractUserID(r)
		if userID == "" {
			next.ServeHTTP(w, r)
			return
		}

		var tier string
		var postsLimit, used int
		err := pe.DB.QueryRow(`
			SELECT tier, posts_limit, current_month_posts
			FROM subscriptions
			WHERE user_id = $1
		`, userID).Scan(&tier, &postsLimit, &used)
		if err == sql.ErrNoRows {
			// No subscription row yet means onboarding is incomplete; the
			// handler will reject for other reasons, so let it through.
			next.ServeHTTP(w, r)
			return
		}
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		if used >= postsLimit {
			respondLimitExceeded(w, tier, postsLimit, used)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (pe *PlanEnforcer) applies(r *http.Request) bool {
	return r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/campaigns")
}

func respondLimitExceeded(w http.ResponseWriter, tier string, postsLimit, used int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusPaymentRequired)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":               "plan_limit_exceeded",
		"message":             "Your current plan has reached its monthly post limit",
		"tier":                tier,
		"posts_limit":         postsLimit,
		"current_month_posts": used,
		"upgrade_url":         "/dashboard?tab=billing",
	})
}
