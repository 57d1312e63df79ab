package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/stillherehq/stillhere-backend/internal/generate"
)

// contentGenerator is what the campaign and insights flows need from the
// Completion Gateway. Satisfied by *generate.Service; stubbed in tests.
type contentGenerator interface {
	GeneratePosts(ctx context.Context, profile generate.Profile, topic, platform string, count int, userAPIKey string) ([]string, error)
	GenerateInsights(ctx context.Context, profile generate.Profile, userAPIKey string) (json.RawMessage, error)
}

type Handler struct {
	db  *sql.DB
	rt  *realtimeHub
	gen contentGenerator

	// scraperURL is the website-extraction collaborator; empty disables scraping.
	scraperURL string
}

func New(db *sql.DB, gen contentGenerator, scraperURL string) *Handler {
	return &Handler{db: db, rt: newRealtimeHub(), gen: gen, scraperURL: scraperURL}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
