package handlers

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/stillherehq/stillhere-backend/internal/models"
)

type upsertCredentialRequest struct {
	Credentials map[string]string `json:"credentials"`
}

// UpsertCredentialForUser connects a platform by storing its credential map.
// An api_key entry is the minimum; reconnecting overwrites the stored map.
func (h *Handler) UpsertCredentialForUser(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPut) {
		return
	}
	userID := pathVar(r, "userId")
	platform := pathVar(r, "platform")
	if userID == "" || platform == "" {
		writeError(w, http.StatusBadRequest, "userId and platform are required")
		return
	}
	var req upsertCredentialRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Credentials["api_key"]) == "" {
		writeError(w, http.StatusBadRequest, "credentials.api_key is required")
		return
	}

	blob, err := json.Marshal(req.Credentials)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid credentials")
		return
	}

	var c models.PlatformCredential
	var connectedAt sql.NullTime
	var stored []byte
	err = h.db.QueryRow(`
		INSERT INTO platform_credentials (id, user_id, platform, credentials, is_connected, connected_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, NOW(), NOW(), NOW())
		ON CONFLICT (user_id, platform) DO UPDATE SET
			credentials  = $4,
			is_connected = TRUE,
			connected_at = NOW(),
			updated_at   = NOW()
		RETURNING id, user_id, platform, credentials, is_connected, connected_at, created_at, updated_at
	`, "cred_"+randHex(12), userID, platform, blob).Scan(
		&c.ID, &c.UserID, &c.Platform, &stored, &c.IsConnected, &connectedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		log.Printf("[Credentials][Upsert] error userId=%s platform=%s err=%v", userID, platform, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := json.Unmarshal(stored, &c.Credentials); err != nil {
		c.Credentials = req.Credentials
	}
	c.ConnectedAt = nullTimePtr(connectedAt)

	log.Printf("[Credentials][Upsert] ok userId=%s platform=%s", userID, platform)
	writeJSON(w, http.StatusOK, c)
}

// DeleteCredentialForUser disconnects a platform and removes the stored secrets.
func (h *Handler) DeleteCredentialForUser(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodDelete) {
		return
	}
	userID := pathVar(r, "userId")
	platform := pathVar(r, "platform")
	if userID == "" || platform == "" {
		writeError(w, http.StatusBadRequest, "userId and platform are required")
		return
	}
	res, err := h.db.Exec(`
		DELETE FROM platform_credentials WHERE user_id = $1 AND platform = $2
	`, userID, platform)
	if err != nil {
		log.Printf("[Credentials][Delete] exec error userId=%s platform=%s err=%v", userID, platform, err)
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

// ListCredentialsForUser returns connection status per platform. Secret values
// never leave the server; only the credential key names are reported.
func (h *Handler) ListCredentialsForUser(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	userID := pathVar(r, "userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	rows, err := h.db.Query(`
		SELECT id, user_id, platform, credentials, is_connected, connected_at, created_at, updated_at
		FROM platform_credentials
		WHERE user_id = $1
		ORDER BY platform ASC
	`, userID)
	if err != nil {
		log.Printf("[Credentials][List] query error userId=%s err=%v", userID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer rows.Close()

	type credentialStatus struct {
		ID          string     `json:"id"`
		UserID      string     `json:"user_id"`
		Platform    string     `json:"platform"`
		Fields      []string   `json:"fields"`
		IsConnected bool       `json:"is_connected"`
		ConnectedAt *time.Time `json:"connected_at,omitempty"`
	}

	out := []credentialStatus{}
	for rows.Next() {
		var cs credentialStatus
		var blob []byte
		var connectedAt sql.NullTime
		var createdAt, updatedAt sql.NullTime
		if err := rows.Scan(&cs.ID, &cs.UserID, &cs.Platform, &blob, &cs.IsConnected, &connectedAt, &createdAt, &updatedAt); err != nil {
			log.Printf("[Credentials][List] scan error userId=%s err=%v", userID, err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		var creds map[string]string
		if err := json.Unmarshal(blob, &creds); err == nil {
			for k := range creds {
				cs.Fields = append(cs.Fields, k)
			}
			sort.Strings(cs.Fields)
		}
		cs.ConnectedAt = nullTimePtr(connectedAt)
		out = append(out, cs)
	}
	if err := rows.Err(); err != nil {
		log.Printf("[Credentials][List] rows error userId=%s err=%v", userID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}
