package handlers

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"time"
)

type insightsResponse struct {
	Insights    json.RawMessage `json:"insights"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// GetInsightsForUser returns the stored strategy report, generating one on
// first access so the insights tab is never empty after onboarding.
func (h *Handler) GetInsightsForUser(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	userID := pathVar(r, "userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	var blob []byte
	var generatedAt time.Time
	err := h.db.QueryRow(`
		SELECT insights_json, generated_at FROM business_insights WHERE user_id = $1
	`, userID).Scan(&blob, &generatedAt)
	if err == nil {
		writeJSON(w, http.StatusOK, insightsResponse{Insights: blob, GeneratedAt: generatedAt})
		return
	}
	if err != sql.ErrNoRows {
		log.Printf("[Insights][Get] query error userId=%s err=%v", userID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.generateAndStoreInsights(w, r, userID)
}

// RegenerateInsightsForUser discards the stored report and builds a fresh one.
func (h *Handler) RegenerateInsightsForUser(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	userID := pathVar(r, "userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	h.generateAndStoreInsights(w, r, userID)
}

func (h *Handler) generateAndStoreInsights(w http.ResponseWriter, r *http.Request, userID string) {
	profile, err := h.profileForGeneration(userID)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "profile_not_found")
		return
	}
	if err != nil {
		log.Printf("[Insights][Generate] profile error userId=%s err=%v", userID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	apiKey := ""
	if profile.OpenAIAPIKey != nil {
		apiKey = *profile.OpenAIAPIKey
	}

	blob, err := h.gen.GenerateInsights(r.Context(), generationProfile(profile), apiKey)
	if err != nil {
		log.Printf("[Insights][Generate] canceled userId=%s err=%v", userID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var generatedAt time.Time
	err = h.db.QueryRow(`
		INSERT INTO business_insights (id, user_id, insights_json, generated_at, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			insights_json = $3,
			generated_at  = NOW(),
			updated_at    = NOW()
		RETURNING generated_at
	`, "ins_"+randHex(12), userID, []byte(blob)).Scan(&generatedAt)
	if err != nil {
		log.Printf("[Insights][Generate] upsert error userId=%s err=%v", userID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.Printf("[Insights][Generate] ok userId=%s bytes=%d", userID, len(blob))
	writeJSON(w, http.StatusOK, insightsResponse{Insights: blob, GeneratedAt: generatedAt})
}
