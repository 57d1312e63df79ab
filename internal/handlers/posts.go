package handlers

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/stillherehq/stillhere-backend/internal/models"
)

// allowedTransitions is the post lifecycle. Scheduled posts may be
// rescheduled; everything else is a one-way move out of draft.
var allowedTransitions = map[string]map[string]bool{
	models.PostStatusDraft: {
		models.PostStatusScheduled: true,
		models.PostStatusRejected:  true,
		models.PostStatusApproved:  true,
	},
	models.PostStatusScheduled: {
		models.PostStatusScheduled: true,
	},
}

func canTransition(from, to string) bool {
	return allowedTransitions[from][to]
}

func scanPost(scanner interface {
	Scan(dest ...any) error
}) (models.Post, error) {
	var p models.Post
	var campaignID sql.NullString
	var scheduledFor sql.NullTime
	err := scanner.Scan(&p.ID, &p.UserID, &campaignID, &p.Platform, &p.Content, &p.Status, &scheduledFor, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}
	p.CampaignID = nullStringPtr(campaignID)
	p.ScheduledFor = nullTimePtr(scheduledFor)
	return p, nil
}

const postColumns = `id, user_id, campaign_id, platform, content, status, scheduled_for, created_at, updated_at`

// ListPostsForUser returns the user's posts newest first. ?queue=true narrows
// to drafts awaiting approval; ?status= filters on one lifecycle status.
func (h *Handler) ListPostsForUser(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	userID := pathVar(r, "userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	status := strings.TrimSpace(r.URL.Query().Get("status"))
	if strings.TrimSpace(strings.ToLower(r.URL.Query().Get("queue"))) == "true" {
		status = models.PostStatusDraft
	}
	limit := parseLimit(r, 200, 1, 500)
	if limit <= 0 {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	q := `SELECT ` + postColumns + ` FROM posts WHERE user_id = $1`
	args := []any{userID}
	if status != "" {
		q += " AND status = $2"
		args = append(args, status)
	}
	q += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args)+1)
	args = append(args, limit)

	rows, err := h.db.Query(q, args...)
	if err != nil {
		log.Printf("[Posts][List] query error userId=%s err=%v", userID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer rows.Close()

	out := []models.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			log.Printf("[Posts][List] scan error userId=%s err=%v", userID, err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		log.Printf("[Posts][List] rows error userId=%s err=%v", userID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type updatePostRequest struct {
	Content *string `json:"content,omitempty"`
}

// UpdatePostForUser edits draft content. Only drafts are editable.
func (h *Handler) UpdatePostForUser(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPut) {
		return
	}
	userID := pathVar(r, "userId")
	id := pathVar(r, "id")
	if userID == "" || id == "" {
		writeError(w, http.StatusBadRequest, "userId and id are required")
		return
	}
	var req updatePostRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Content == nil || strings.TrimSpace(*req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	current, err := h.postStatus(userID, id)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		log.Printf("[Posts][Update] query error userId=%s id=%s err=%v", userID, id, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if current != models.PostStatusDraft {
		writeError(w, http.StatusConflict, fmt.Sprintf("cannot edit a %s post", current))
		return
	}

	p, err := scanPost(h.db.QueryRow(`
		UPDATE posts SET content = $1, updated_at = NOW()
		 WHERE user_id = $2 AND id = $3
		RETURNING `+postColumns+`
	`, *req.Content, userID, id))
	if err != nil {
		log.Printf("[Posts][Update] exec error userId=%s id=%s err=%v", userID, id, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type schedulePostRequest struct {
	Date string `json:"date"` // YYYY-MM-DD
	Time string `json:"time"` // HH:MM
}

// SchedulePostForUser moves a draft (or an already scheduled post) to a
// future publish slot. Past dates are rejected; today is allowed.
func (h *Handler) SchedulePostForUser(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	userID := pathVar(r, "userId")
	id := pathVar(r, "id")
	if userID == "" || id == "" {
		writeError(w, http.StatusBadRequest, "userId and id are required")
		return
	}
	var req schedulePostRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Time == "" {
		req.Time = "09:00"
	}
	when, err := time.Parse("2006-01-02 15:04", req.Date+" "+req.Time)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD and time HH:MM")
		return
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	if when.Before(today) {
		writeError(w, http.StatusBadRequest, "cannot schedule in the past")
		return
	}

	current, err := h.postStatus(userID, id)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		log.Printf("[Posts][Schedule] query error userId=%s id=%s err=%v", userID, id, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !canTransition(current, models.PostStatusScheduled) {
		writeError(w, http.StatusConflict, fmt.Sprintf("cannot schedule a %s post", current))
		return
	}

	p, err := scanPost(h.db.QueryRow(`
		UPDATE posts SET status = $1, scheduled_for = $2, updated_at = NOW()
		 WHERE user_id = $3 AND id = $4
		RETURNING `+postColumns+`
	`, models.PostStatusScheduled, when, userID, id))
	if err != nil {
		log.Printf("[Posts][Schedule] exec error userId=%s id=%s err=%v", userID, id, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.createNotification(userID, "scheduled", "Post scheduled",
		fmt.Sprintf("Post scheduled for %s on %s", when.Format("Jan 2 at 3:04 PM"), p.Platform), nil)
	h.emitEvent(userID, realtimeEvent{Type: "post.updated", PostID: id, Status: models.PostStatusScheduled})

	log.Printf("[Posts][Schedule] ok userId=%s id=%s at=%s", userID, id, when.Format(time.RFC3339))
	writeJSON(w, http.StatusOK, p)
}

// RejectPostForUser marks a draft rejected so it leaves the approval queue.
func (h *Handler) RejectPostForUser(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	h.transitionPost(w, r, models.PostStatusRejected)
}

// ApprovePostForUser accepts a draft without picking a publish slot yet.
func (h *Handler) ApprovePostForUser(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	h.transitionPost(w, r, models.PostStatusApproved)
}

func (h *Handler) transitionPost(w http.ResponseWriter, r *http.Request, to string) {
	userID := pathVar(r, "userId")
	id := pathVar(r, "id")
	if userID == "" || id == "" {
		writeError(w, http.StatusBadRequest, "userId and id are required")
		return
	}

	current, err := h.postStatus(userID, id)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		log.Printf("[Posts][Transition] query error userId=%s id=%s err=%v", userID, id, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !canTransition(current, to) {
		writeError(w, http.StatusConflict, fmt.Sprintf("cannot move a %s post to %s", current, to))
		return
	}

	p, err := scanPost(h.db.QueryRow(`
		UPDATE posts SET status = $1, updated_at = NOW()
		 WHERE user_id = $2 AND id = $3
		RETURNING `+postColumns+`
	`, to, userID, id))
	if err != nil {
		log.Printf("[Posts][Transition] exec error userId=%s id=%s err=%v", userID, id, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.emitEvent(userID, realtimeEvent{Type: "post.updated", PostID: id, Status: to})
	log.Printf("[Posts][Transition] ok userId=%s id=%s from=%s to=%s", userID, id, current, to)
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) DeletePostForUser(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodDelete) {
		return
	}
	userID := pathVar(r, "userId")
	id := pathVar(r, "id")
	if userID == "" || id == "" {
		writeError(w, http.StatusBadRequest, "userId and id are required")
		return
	}
	res, err := h.db.Exec(`DELETE FROM posts WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		log.Printf("[Posts][Delete] exec error userId=%s id=%s err=%v", userID, id, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) postStatus(userID, id string) (string, error) {
	var status string
	err := h.db.QueryRow(`SELECT status FROM posts WHERE user_id = $1 AND id = $2`, userID, id).Scan(&status)
	return status, err
}
