package generate

import (
	"encoding/json"
	"log"
	"net/http"
)

// Handler exposes the gateway as stateless HTTP endpoints. These never fail the
// caller: the only non-2xx response is a 500 for a body that cannot be parsed.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type generatePostsRequest struct {
	Profile    Profile `json:"profile"`
	Topic      string  `json:"topic"`
	Platform   string  `json:"platform"`
	Count      int     `json:"count"`
	UserAPIKey string  `json:"userApiKey"`
}

type generateInsightsRequest struct {
	Profile    Profile `json:"profile"`
	UserAPIKey string  `json:"userApiKey"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// GeneratePosts handles POST /functions/generate-posts.
func (h *Handler) GeneratePosts(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	var req generatePostsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error(), "posts": []string{}})
		return
	}

	posts, err := h.svc.GeneratePosts(r.Context(), req.Profile, req.Topic, req.Platform, req.Count, req.UserAPIKey)
	if err != nil {
		// Context cancellation; the client is gone, but keep the contract anyway.
		log.Printf("[Generate][Posts] canceled err=%v", err)
		posts = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"posts": posts})
}

// GenerateInsights handles POST /functions/generate-insights.
func (h *Handler) GenerateInsights(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	var req generateInsightsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error(), "insights": nil})
		return
	}

	insights, err := h.svc.GenerateInsights(r.Context(), req.Profile, req.UserAPIKey)
	if err != nil {
		log.Printf("[Generate][Insights] canceled err=%v", err)
		writeJSON(w, http.StatusOK, map[string]any{"insights": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"insights": insights})
}
