package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/stillherehq/stillhere-backend/internal/models"
)

type upsertProfileRequest struct {
	Role                *string `json:"role,omitempty"`
	CompanyName         *string `json:"company_name,omitempty"`
	Industry            *string `json:"industry,omitempty"`
	BusinessDescription *string `json:"business_description,omitempty"`
	Tone                *string `json:"tone,omitempty"`
	OnboardingCompleted *bool   `json:"onboarding_completed,omitempty"`
	WebsiteURL          *string `json:"website_url,omitempty"`
	OpenAIAPIKey        *string `json:"openai_api_key,omitempty"`
	TargetAudience      *string `json:"target_audience,omitempty"`
	ValueProposition    *string `json:"value_proposition,omitempty"`
	Competitors         *string `json:"competitors,omitempty"`
	BusinessGoals       *string `json:"business_goals,omitempty"`
}

func scanProfile(row *sql.Row) (models.UserProfile, error) {
	var p models.UserProfile
	var role, company, industry, desc, websiteURL, websiteContent, apiKey, audience, valueProp, competitors, goals sql.NullString
	err := row.Scan(
		&p.ID, &p.UserID, &role, &company, &industry, &desc, &p.Tone, &p.OnboardingCompleted,
		&websiteURL, &websiteContent, &apiKey, &audience, &valueProp, &competitors, &goals,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return p, err
	}
	p.Role = nullStringPtr(role)
	p.CompanyName = nullStringPtr(company)
	p.Industry = nullStringPtr(industry)
	p.BusinessDescription = nullStringPtr(desc)
	p.WebsiteURL = nullStringPtr(websiteURL)
	p.WebsiteContent = nullStringPtr(websiteContent)
	p.OpenAIAPIKey = nullStringPtr(apiKey)
	p.TargetAudience = nullStringPtr(audience)
	p.ValueProposition = nullStringPtr(valueProp)
	p.Competitors = nullStringPtr(competitors)
	p.BusinessGoals = nullStringPtr(goals)
	return p, nil
}

const profileColumns = `
	id, user_id, role, company_name, industry, business_description, tone, onboarding_completed,
	website_url, website_content, openai_api_key, target_audience, value_proposition, competitors, business_goals,
	created_at, updated_at
`

func (h *Handler) GetProfileForUser(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	userID := pathVar(r, "userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	p, err := scanProfile(h.db.QueryRow(`
		SELECT `+profileColumns+` FROM user_profiles WHERE user_id = $1
	`, userID))
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "profile_not_found")
		return
	}
	if err != nil {
		log.Printf("[Profile][Get] query error userId=%s err=%v", userID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpsertProfileForUser creates or updates the onboarding profile. Fields left
// out of the request are preserved. Completing onboarding also provisions the
// free-tier subscription so plan limits apply from the first campaign.
func (h *Handler) UpsertProfileForUser(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPut) {
		return
	}
	userID := pathVar(r, "userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	var req upsertProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	// Fetch page text before the upsert so the stored row and the response
	// both carry it. Best effort; a scraper outage never fails onboarding.
	var websiteContent *string
	if req.WebsiteURL != nil && strings.TrimSpace(*req.WebsiteURL) != "" {
		if content := h.fetchWebsiteContent(userID, strings.TrimSpace(*req.WebsiteURL)); content != "" {
			websiteContent = &content
		}
	}

	id := "prof_" + randHex(12)
	p, err := scanProfile(h.db.QueryRow(`
		INSERT INTO user_profiles (
			id, user_id, role, company_name, industry, business_description, tone, onboarding_completed,
			website_url, openai_api_key, target_audience, value_proposition, competitors, business_goals, website_content,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, 'professional'), COALESCE($8, FALSE), $9, $10, $11, $12, $13, $14, $15, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			role                 = COALESCE($3, user_profiles.role),
			company_name         = COALESCE($4, user_profiles.company_name),
			industry             = COALESCE($5, user_profiles.industry),
			business_description = COALESCE($6, user_profiles.business_description),
			tone                 = COALESCE($7, user_profiles.tone),
			onboarding_completed = COALESCE($8, user_profiles.onboarding_completed),
			website_url          = COALESCE($9, user_profiles.website_url),
			openai_api_key       = COALESCE($10, user_profiles.openai_api_key),
			target_audience      = COALESCE($11, user_profiles.target_audience),
			value_proposition    = COALESCE($12, user_profiles.value_proposition),
			competitors          = COALESCE($13, user_profiles.competitors),
			business_goals       = COALESCE($14, user_profiles.business_goals),
			website_content      = COALESCE($15, user_profiles.website_content),
			updated_at           = NOW()
		RETURNING `+profileColumns+`
	`, id, userID, req.Role, req.CompanyName, req.Industry, req.BusinessDescription, req.Tone, req.OnboardingCompleted,
		req.WebsiteURL, req.OpenAIAPIKey, req.TargetAudience, req.ValueProposition, req.Competitors, req.BusinessGoals,
		websiteContent))
	if err != nil {
		log.Printf("[Profile][Upsert] error userId=%s err=%v", userID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if p.OnboardingCompleted {
		if err := h.ensureFreeSubscription(userID); err != nil {
			log.Printf("[Profile][Upsert] subscription error userId=%s err=%v", userID, err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	writeJSON(w, http.StatusOK, p)
}

// ensureFreeSubscription provisions the free tier without downgrading an
// existing paid subscription.
func (h *Handler) ensureFreeSubscription(userID string) error {
	_, err := h.db.Exec(`
		INSERT INTO subscriptions (id, user_id, tier, posts_limit, platforms_limit, current_month_posts, billing_cycle_start, created_at, updated_at)
		VALUES ($1, $2, 'free', 3, 1, 0, NOW(), NOW(), NOW())
		ON CONFLICT (user_id) DO NOTHING
	`, "sub_"+randHex(12), userID)
	return err
}

// fetchWebsiteContent asks the extraction service for page text to ground
// prompts on. Failures are logged and reported as empty content.
func (h *Handler) fetchWebsiteContent(userID, websiteURL string) string {
	if h.scraperURL == "" {
		return ""
	}
	body, err := json.Marshal(map[string]string{"url": websiteURL})
	if err != nil {
		return ""
	}
	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Post(h.scraperURL, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("[Profile][Scrape] request error userId=%s err=%v", userID, err)
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("[Profile][Scrape] status=%d userId=%s", resp.StatusCode, userID)
		return ""
	}
	var out struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		log.Printf("[Profile][Scrape] decode error userId=%s err=%v", userID, err)
		return ""
	}
	if strings.TrimSpace(out.Content) == "" {
		return ""
	}
	return truncate(out.Content, 10000)
}

func (h *Handler) profileForGeneration(userID string) (models.UserProfile, error) {
	return scanProfile(h.db.QueryRow(`
		SELECT `+profileColumns+` FROM user_profiles WHERE user_id = $1
	`, userID))
}
