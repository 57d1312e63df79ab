package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stillherehq/stillhere-backend/internal/generate"
)

// stubGenerator lets tests control generation outcomes without HTTP calls.
type stubGenerator struct {
	posts       []string
	postsErr    error
	insights    json.RawMessage
	insightsErr error

	lastPlatform string
	lastCount    int
}

func (s *stubGenerator) GeneratePosts(ctx context.Context, profile generate.Profile, topic, platform string, count int, userAPIKey string) ([]string, error) {
	s.lastPlatform = platform
	s.lastCount = count
	if s.postsErr != nil {
		return nil, s.postsErr
	}
	if s.posts != nil {
		return s.posts, nil
	}
	out := make([]string, count)
	for i := range out {
		out[i] = "generated post"
	}
	return out, nil
}

func (s *stubGenerator) GenerateInsights(ctx context.Context, profile generate.Profile, userAPIKey string) (json.RawMessage, error) {
	if s.insightsErr != nil {
		return nil, s.insightsErr
	}
	if s.insights != nil {
		return s.insights, nil
	}
	return json.RawMessage(`{"quickWins":[]}`), nil
}

func TestHealth_OK(t *testing.T) {
	h := New(nil, &stubGenerator{}, "")
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	h.Health(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	var out map[string]bool
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode json: %v body=%q", err, rr.Body.String())
	}
	if out["ok"] != true {
		t.Fatalf("expected ok=true got %#v", out)
	}
}

func TestParseLimit(t *testing.T) {
	mk := func(q string) *http.Request {
		return httptest.NewRequest(http.MethodGet, "/x"+q, nil)
	}
	if got := parseLimit(mk(""), 50, 1, 200); got != 50 {
		t.Fatalf("default: got %d", got)
	}
	if got := parseLimit(mk("?limit=10"), 50, 1, 200); got != 10 {
		t.Fatalf("explicit: got %d", got)
	}
	if got := parseLimit(mk("?limit=999"), 50, 1, 200); got != 200 {
		t.Fatalf("clamp max: got %d", got)
	}
	if got := parseLimit(mk("?limit=0"), 50, 1, 200); got != 1 {
		t.Fatalf("clamp min: got %d", got)
	}
	if got := parseLimit(mk("?limit=abc"), 50, 1, 200); got != -1 {
		t.Fatalf("invalid: got %d", got)
	}
}

func TestRandHex(t *testing.T) {
	a := randHex(12)
	b := randHex(12)
	if len(a) != 24 {
		t.Fatalf("expected 24 hex chars, got %d", len(a))
	}
	if a == b {
		t.Fatal("expected distinct values")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("hello", 3); got != "hel" {
		t.Fatalf("got %q", got)
	}
	if got := truncate("hi", 10); got != "hi" {
		t.Fatalf("got %q", got)
	}
	if got := truncate("hi", 0); got != "" {
		t.Fatalf("got %q", got)
	}
}
