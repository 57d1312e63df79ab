package handlers

import (
	"database/sql"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const sessionTTL = 30 * 24 * time.Hour

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
}

func (h *Handler) createSession(userID string) (string, error) {
	token := randHex(24)
	_, err := h.db.Exec(`
		INSERT INTO sessions (token, user_id, created_at, expires_at)
		VALUES ($1, $2, NOW(), $3)
	`, token, userID, time.Now().UTC().Add(sessionTTL))
	if err != nil {
		return "", err
	}
	return token, nil
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "valid email is required")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("[Auth][Signup] hash error err=%v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	id := "u_" + randHex(12)
	_, err = h.db.Exec(`
		INSERT INTO users (id, email, password_hash, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
	`, id, req.Email, string(hash), strings.TrimSpace(req.Name))
	if err != nil {
		// Unique violation on email is the common failure here.
		log.Printf("[Auth][Signup] insert error email=%s err=%v", req.Email, err)
		writeError(w, http.StatusConflict, "email already registered")
		return
	}

	token, err := h.createSession(id)
	if err != nil {
		log.Printf("[Auth][Signup] session error userId=%s err=%v", id, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	log.Printf("[Auth][Signup] ok userId=%s email=%s", id, req.Email)
	writeJSON(w, http.StatusCreated, authResponse{Token: token, UserID: id, Email: req.Email, Name: strings.TrimSpace(req.Name)})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	var (
		id   string
		hash string
		name sql.NullString
	)
	err := h.db.QueryRow(`
		SELECT id, password_hash, name FROM users WHERE email = $1
	`, req.Email).Scan(&id, &hash, &name)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		log.Printf("[Auth][Login] query error email=%s err=%v", req.Email, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.createSession(id)
	if err != nil {
		log.Printf("[Auth][Login] session error userId=%s err=%v", id, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	log.Printf("[Auth][Login] ok userId=%s", id)
	writeJSON(w, http.StatusOK, authResponse{Token: token, UserID: id, Email: req.Email, Name: name.String})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusBadRequest, "missing token")
		return
	}
	if _, err := h.db.Exec(`DELETE FROM sessions WHERE token = $1`, token); err != nil {
		log.Printf("[Auth][Logout] exec error err=%v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func bearerToken(r *http.Request) string {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}
