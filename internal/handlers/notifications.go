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

// timeAgo renders the relative label shown next to each notification.
func timeAgo(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "Just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("Jan 2, 2006")
	}
}

func (h *Handler) ListNotificationsForUser(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	userID := pathVar(r, "userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	limit := parseLimit(r, 50, 1, 200)
	if limit <= 0 {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	onlyUnread := strings.TrimSpace(strings.ToLower(r.URL.Query().Get("unread"))) == "true"

	q := `
		SELECT id, user_id, type, title, message, read, action_url, created_at
		FROM notifications
		WHERE user_id = $1
	`
	args := []any{userID}
	if onlyUnread {
		q += " AND read = FALSE"
	}
	q += " ORDER BY created_at DESC LIMIT $2"
	args = append(args, limit)

	rows, err := h.db.Query(q, args...)
	if err != nil {
		log.Printf("[Notifications][List] query error userId=%s err=%v", userID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer rows.Close()

	now := time.Now().UTC()
	out := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		var actionURL sql.NullString
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.Read, &actionURL, &n.CreatedAt); err != nil {
			log.Printf("[Notifications][List] scan error userId=%s err=%v", userID, err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		n.ActionURL = nullStringPtr(actionURL)
		n.TimeAgo = timeAgo(n.CreatedAt, now)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		log.Printf("[Notifications][List] rows error userId=%s err=%v", userID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) MarkNotificationReadForUser(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	userID := pathVar(r, "userId")
	id := pathVar(r, "id")
	if userID == "" || id == "" {
		writeError(w, http.StatusBadRequest, "userId and id are required")
		return
	}
	res, err := h.db.Exec(`
		UPDATE notifications
		   SET read = TRUE, updated_at = NOW()
		 WHERE user_id = $1 AND id = $2
	`, userID, id)
	if err != nil {
		log.Printf("[Notifications][Read] exec error userId=%s id=%s err=%v", userID, truncate(id, 80), err)
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

func (h *Handler) MarkAllNotificationsReadForUser(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	userID := pathVar(r, "userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	res, err := h.db.Exec(`
		UPDATE notifications
		   SET read = TRUE, updated_at = NOW()
		 WHERE user_id = $1 AND read = FALSE
	`, userID)
	if err != nil {
		log.Printf("[Notifications][ReadAll] exec error userId=%s err=%v", userID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	n, _ := res.RowsAffected()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "updated": n})
}

// DismissNotificationForUser removes the notification outright. Dismiss is a
// hard delete, not a soft hide.
func (h *Handler) DismissNotificationForUser(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodDelete) {
		return
	}
	userID := pathVar(r, "userId")
	id := pathVar(r, "id")
	if userID == "" || id == "" {
		writeError(w, http.StatusBadRequest, "userId and id are required")
		return
	}
	res, err := h.db.Exec(`
		DELETE FROM notifications WHERE user_id = $1 AND id = $2
	`, userID, id)
	if err != nil {
		log.Printf("[Notifications][Dismiss] exec error userId=%s id=%s err=%v", userID, truncate(id, 80), err)
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

func (h *Handler) createNotification(userID, typ, title, message string, actionURL *string) string {
	id := fmt.Sprintf("n_%d", time.Now().UTC().UnixNano())
	_, err := h.db.Exec(`
		INSERT INTO notifications (id, user_id, type, title, message, read, action_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6, NOW(), NOW())
	`, id, userID, typ, title, message, actionURL)
	if err != nil {
		log.Printf("[Notifications][Create] insert error userId=%s type=%s err=%v", userID, typ, err)
		return ""
	}
	log.Printf("[Notifications][Create] ok userId=%s id=%s type=%s", userID, id, typ)

	// Realtime badge/toast.
	h.emitEvent(userID, realtimeEvent{
		Type:           "notification.created",
		NotificationID: id,
		Status:         typ,
	})
	return id
}
