package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"

	"github.com/stillherehq/stillhere-backend/internal/models"
)

func campaignRows(platforms string, postCount int) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{"id", "user_id", "name", "platform", "platforms", "topic", "post_count", "frequency", "status", "created_at", "updated_at"}).
		AddRow("camp1", "u1", "Launch", "twitter", []byte(platforms), "Product updates", postCount, "weekly", "active", now, now)
}

func subscriptionLimitRows(postsLimit, platformsLimit, used int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"posts_limit", "platforms_limit", "current_month_posts"}).
		AddRow(postsLimit, platformsLimit, used)
}

func expectCampaignFanOut(mock sqlmock.Sqlmock, postCount int) {
	mock.ExpectQuery(`FROM subscriptions`).
		WithArgs("u1").
		WillReturnRows(subscriptionLimitRows(100, 10, 0))
	mock.ExpectQuery(`FROM user_profiles`).
		WithArgs("u1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`INSERT INTO campaigns`).
		WillReturnRows(campaignRows("{twitter,linkedin}", postCount))
	for i := 0; i < postCount; i++ {
		mock.ExpectExec(`INSERT INTO posts`).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectExec(`UPDATE subscriptions`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO notifications`).
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func TestCreateCampaignForUser_SplitsAndTruncates(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer func() { _ = db.Close() }()

	gen := &stubGenerator{}
	h := New(db, gen, "")

	// 5 posts over 2 platforms: 3 per platform, combined 6, trimmed to 5.
	expectCampaignFanOut(mock, 5)

	body := `{"name":"Launch","platforms":["twitter","linkedin"],"topic":"Product updates","post_count":5,"frequency":"weekly"}`
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/user/u1/campaigns", strings.NewReader(body))
	req = mux.SetURLVars(req, map[string]string{"userId": "u1"})

	h.CreateCampaignForUser(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%q", rr.Code, rr.Body.String())
	}
	if gen.lastCount != 3 {
		t.Fatalf("expected 3 posts per platform, got %d", gen.lastCount)
	}

	var out struct {
		Campaign models.Campaign `json:"campaign"`
		Posts    []models.Post   `json:"posts"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode json: %v body=%q", err, rr.Body.String())
	}
	if len(out.Posts) != 5 {
		t.Fatalf("expected 5 posts, got %d", len(out.Posts))
	}
	for _, p := range out.Posts {
		if p.Status != models.PostStatusDraft {
			t.Fatalf("expected draft posts, got %q", p.Status)
		}
	}
	if len(out.Campaign.Platforms) != 2 {
		t.Fatalf("expected 2 platforms on campaign, got %#v", out.Campaign.Platforms)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestCreateCampaignForUser_GenerationFailureUsesPlaceholders(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer func() { _ = db.Close() }()

	gen := &stubGenerator{postsErr: errors.New("upstream down")}
	h := New(db, gen, "")

	expectCampaignFanOut(mock, 2)

	body := `{"name":"Launch","platforms":["twitter"],"topic":"Spring sale","post_count":2}`
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/user/u1/campaigns", strings.NewReader(body))
	req = mux.SetURLVars(req, map[string]string{"userId": "u1"})

	h.CreateCampaignForUser(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%q", rr.Code, rr.Body.String())
	}
	var out struct {
		Posts []models.Post `json:"posts"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if len(out.Posts) != 2 {
		t.Fatalf("expected 2 placeholder posts, got %d", len(out.Posts))
	}
	want := "Great content about Spring sale coming soon from our company!"
	if out.Posts[0].Content != want {
		t.Fatalf("expected placeholder %q, got %q", want, out.Posts[0].Content)
	}
}

func TestCreateCampaignForUser_PlatformLimitExceeded(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer func() { _ = db.Close() }()

	h := New(db, &stubGenerator{}, "")

	mock.ExpectQuery(`FROM subscriptions`).
		WithArgs("u1").
		WillReturnRows(subscriptionLimitRows(100, 1, 0))

	body := `{"name":"Launch","platforms":["twitter","linkedin"],"topic":"x","post_count":2}`
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/user/u1/campaigns", strings.NewReader(body))
	req = mux.SetURLVars(req, map[string]string{"userId": "u1"})

	h.CreateCampaignForUser(rr, req)

	if rr.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402 got %d body=%q", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "plan_limit_exceeded") {
		t.Fatalf("expected plan_limit_exceeded in %q", rr.Body.String())
	}
}

func TestCreateCampaignForUser_MonthlyQuotaExceeded(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer func() { _ = db.Close() }()

	h := New(db, &stubGenerator{}, "")

	// Free tier, nothing used yet: a single oversized campaign must still be
	// rejected before any posts are written.
	mock.ExpectQuery(`FROM subscriptions`).
		WithArgs("u1").
		WillReturnRows(subscriptionLimitRows(3, 1, 0))

	body := `{"name":"Launch","platforms":["twitter"],"topic":"x","post_count":100}`
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/user/u1/campaigns", strings.NewReader(body))
	req = mux.SetURLVars(req, map[string]string{"userId": "u1"})

	h.CreateCampaignForUser(rr, req)

	if rr.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402 got %d body=%q", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "plan_limit_exceeded") {
		t.Fatalf("expected plan_limit_exceeded in %q", rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"posts_limit":3`) {
		t.Fatalf("expected posts_limit in %q", rr.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no posts should be persisted: %v", err)
	}
}

func TestCreateCampaignForUser_QuotaCountsExistingUsage(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer func() { _ = db.Close() }()

	h := New(db, &stubGenerator{}, "")

	// 10 of 12 used: a 3-post campaign goes one over the line.
	mock.ExpectQuery(`FROM subscriptions`).
		WithArgs("u1").
		WillReturnRows(subscriptionLimitRows(12, 3, 10))

	body := `{"name":"Launch","platforms":["twitter"],"topic":"x","post_count":3}`
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/user/u1/campaigns", strings.NewReader(body))
	req = mux.SetURLVars(req, map[string]string{"userId": "u1"})

	h.CreateCampaignForUser(rr, req)

	if rr.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402 got %d body=%q", rr.Code, rr.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no posts should be persisted: %v", err)
	}
}

func TestCreateCampaignForUser_Validation(t *testing.T) {
	h := New(nil, &stubGenerator{}, "")

	cases := []struct {
		name string
		body string
	}{
		{"missing name", `{"platforms":["twitter"],"topic":"x","post_count":1}`},
		{"missing topic", `{"name":"c","platforms":["twitter"],"post_count":1}`},
		{"no platforms", `{"name":"c","platforms":[],"topic":"x","post_count":1}`},
		{"zero posts", `{"name":"c","platforms":["twitter"],"topic":"x","post_count":0}`},
		{"too many posts", `{"name":"c","platforms":["twitter"],"topic":"x","post_count":101}`},
		{"bad frequency", `{"name":"c","platforms":["twitter"],"topic":"x","post_count":1,"frequency":"hourly"}`},
	}
	for _, c := range cases {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/user/u1/campaigns", strings.NewReader(c.body))
		req = mux.SetURLVars(req, map[string]string{"userId": "u1"})

		h.CreateCampaignForUser(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 got %d", c.name, rr.Code)
		}
	}
}

func TestListCampaignsForUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer func() { _ = db.Close() }()

	h := New(db, &stubGenerator{}, "")
	mock.ExpectQuery(`FROM campaigns`).
		WithArgs("u1").
		WillReturnRows(campaignRows("{twitter}", 3))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/user/u1/campaigns", nil)
	req = mux.SetURLVars(req, map[string]string{"userId": "u1"})

	h.ListCampaignsForUser(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%q", rr.Code, rr.Body.String())
	}
	var out []models.Campaign
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if len(out) != 1 || out[0].Name != "Launch" {
		t.Fatalf("unexpected campaigns %#v", out)
	}
}
