package handlers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"

	"github.com/stillherehq/stillhere-backend/internal/models"
)

func newMockHandler(t *testing.T) (*Handler, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	h := New(db, &stubGenerator{}, "")
	return h, mock, func() { _ = db.Close() }
}

func postRows(status string, scheduledFor any) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{"id", "user_id", "campaign_id", "platform", "content", "status", "scheduled_for", "created_at", "updated_at"}).
		AddRow("p1", "u1", "camp1", "twitter", "hello", status, scheduledFor, now, now)
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{models.PostStatusDraft, models.PostStatusScheduled, true},
		{models.PostStatusDraft, models.PostStatusRejected, true},
		{models.PostStatusDraft, models.PostStatusApproved, true},
		{models.PostStatusScheduled, models.PostStatusScheduled, true},
		{models.PostStatusScheduled, models.PostStatusRejected, false},
		{models.PostStatusRejected, models.PostStatusScheduled, false},
		{models.PostStatusPublished, models.PostStatusScheduled, false},
		{models.PostStatusApproved, models.PostStatusScheduled, false},
	}
	for _, c := range cases {
		if got := canTransition(c.from, c.to); got != c.want {
			t.Fatalf("canTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestListPostsForUser_QueueFilter(t *testing.T) {
	h, mock, done := newMockHandler(t)
	defer done()

	mock.ExpectQuery(`SELECT .+ FROM posts WHERE user_id = \$1 AND status = \$2`).
		WithArgs("u1", models.PostStatusDraft, 200).
		WillReturnRows(postRows(models.PostStatusDraft, nil))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/user/u1/posts?queue=true", nil)
	req = mux.SetURLVars(req, map[string]string{"userId": "u1"})

	h.ListPostsForUser(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%q", rr.Code, rr.Body.String())
	}
	var out []models.Post
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if len(out) != 1 || out[0].Status != models.PostStatusDraft {
		t.Fatalf("unexpected posts %#v", out)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestUpdatePostForUser_EditDraft(t *testing.T) {
	h, mock, done := newMockHandler(t)
	defer done()

	mock.ExpectQuery(`SELECT status FROM posts`).
		WithArgs("u1", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(models.PostStatusDraft))
	mock.ExpectQuery(`UPDATE posts SET content`).
		WithArgs("new content", "u1", "p1").
		WillReturnRows(postRows(models.PostStatusDraft, nil))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/user/u1/posts/p1", strings.NewReader(`{"content":"new content"}`))
	req = mux.SetURLVars(req, map[string]string{"userId": "u1", "id": "p1"})

	h.UpdatePostForUser(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%q", rr.Code, rr.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestUpdatePostForUser_ScheduledPostConflicts(t *testing.T) {
	h, mock, done := newMockHandler(t)
	defer done()

	mock.ExpectQuery(`SELECT status FROM posts`).
		WithArgs("u1", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(models.PostStatusScheduled))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/user/u1/posts/p1", strings.NewReader(`{"content":"x"}`))
	req = mux.SetURLVars(req, map[string]string{"userId": "u1", "id": "p1"})

	h.UpdatePostForUser(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d body=%q", rr.Code, rr.Body.String())
	}
}

func TestSchedulePostForUser_Success(t *testing.T) {
	h, mock, done := newMockHandler(t)
	defer done()

	date := time.Now().UTC().AddDate(0, 0, 7).Format("2006-01-02")
	when, _ := time.Parse("2006-01-02 15:04", date+" 10:30")

	mock.ExpectQuery(`SELECT status FROM posts`).
		WithArgs("u1", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(models.PostStatusDraft))
	mock.ExpectQuery(`UPDATE posts SET status`).
		WithArgs(models.PostStatusScheduled, when, "u1", "p1").
		WillReturnRows(postRows(models.PostStatusScheduled, when))
	mock.ExpectExec(`INSERT INTO notifications`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	body := fmt.Sprintf(`{"date":%q,"time":"10:30"}`, date)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/user/u1/posts/p1/schedule", strings.NewReader(body))
	req = mux.SetURLVars(req, map[string]string{"userId": "u1", "id": "p1"})

	h.SchedulePostForUser(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%q", rr.Code, rr.Body.String())
	}
	var out models.Post
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if out.Status != models.PostStatusScheduled {
		t.Fatalf("expected scheduled status got %q", out.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestSchedulePostForUser_PastDateRejected(t *testing.T) {
	h, _, done := newMockHandler(t)
	defer done()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/user/u1/posts/p1/schedule", strings.NewReader(`{"date":"2020-01-01","time":"09:00"}`))
	req = mux.SetURLVars(req, map[string]string{"userId": "u1", "id": "p1"})

	h.SchedulePostForUser(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%q", rr.Code, rr.Body.String())
	}
}

func TestSchedulePostForUser_RescheduleAllowed(t *testing.T) {
	h, mock, done := newMockHandler(t)
	defer done()

	date := time.Now().UTC().AddDate(0, 0, 3).Format("2006-01-02")
	when, _ := time.Parse("2006-01-02 15:04", date+" 09:00")

	mock.ExpectQuery(`SELECT status FROM posts`).
		WithArgs("u1", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(models.PostStatusScheduled))
	mock.ExpectQuery(`UPDATE posts SET status`).
		WithArgs(models.PostStatusScheduled, when, "u1", "p1").
		WillReturnRows(postRows(models.PostStatusScheduled, when))
	mock.ExpectExec(`INSERT INTO notifications`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	body := fmt.Sprintf(`{"date":%q}`, date)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/user/u1/posts/p1/schedule", strings.NewReader(body))
	req = mux.SetURLVars(req, map[string]string{"userId": "u1", "id": "p1"})

	h.SchedulePostForUser(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%q", rr.Code, rr.Body.String())
	}
}

func TestRejectPostForUser_FromDraft(t *testing.T) {
	h, mock, done := newMockHandler(t)
	defer done()

	mock.ExpectQuery(`SELECT status FROM posts`).
		WithArgs("u1", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(models.PostStatusDraft))
	mock.ExpectQuery(`UPDATE posts SET status`).
		WithArgs(models.PostStatusRejected, "u1", "p1").
		WillReturnRows(postRows(models.PostStatusRejected, nil))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/user/u1/posts/p1/reject", nil)
	req = mux.SetURLVars(req, map[string]string{"userId": "u1", "id": "p1"})

	h.RejectPostForUser(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%q", rr.Code, rr.Body.String())
	}
}

func TestRejectPostForUser_FromScheduledConflicts(t *testing.T) {
	h, mock, done := newMockHandler(t)
	defer done()

	mock.ExpectQuery(`SELECT status FROM posts`).
		WithArgs("u1", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(models.PostStatusScheduled))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/user/u1/posts/p1/reject", nil)
	req = mux.SetURLVars(req, map[string]string{"userId": "u1", "id": "p1"})

	h.RejectPostForUser(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d body=%q", rr.Code, rr.Body.String())
	}
}

func TestApprovePostForUser_NotFound(t *testing.T) {
	h, mock, done := newMockHandler(t)
	defer done()

	mock.ExpectQuery(`SELECT status FROM posts`).
		WithArgs("u1", "missing").
		WillReturnError(sql.ErrNoRows)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/user/u1/posts/missing/approve", nil)
	req = mux.SetURLVars(req, map[string]string{"userId": "u1", "id": "missing"})

	h.ApprovePostForUser(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d body=%q", rr.Code, rr.Body.String())
	}
}

func TestDeletePostForUser_NotFound(t *testing.T) {
	h, mock, done := newMockHandler(t)
	defer done()

	mock.ExpectExec(`DELETE FROM posts`).
		WithArgs("u1", "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/user/u1/posts/missing", nil)
	req = mux.SetURLVars(req, map[string]string{"userId": "u1", "id": "missing"})

	h.DeletePostForUser(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d body=%q", rr.Code, rr.Body.String())
	}
}
