package handlers

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/stillherehq/stillhere-backend/internal/generate"
	"github.com/stillherehq/stillhere-backend/internal/models"
)

var validFrequencies = map[string]bool{
	"daily":    true,
	"weekly":   true,
	"biweekly": true,
	"monthly":  true,
}

type createCampaignRequest struct {
	Name      string   `json:"name"`
	Platforms []string `json:"platforms"`
	Topic     string   `json:"topic"`
	PostCount int      `json:"post_count"`
	Frequency string   `json:"frequency"`
}

func generationProfile(p models.UserProfile) generate.Profile {
	deref := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}
	return generate.Profile{
		CompanyName:         deref(p.CompanyName),
		Industry:            deref(p.Industry),
		Tone:                p.Tone,
		BusinessDescription: deref(p.BusinessDescription),
		WebsiteContent:      deref(p.WebsiteContent),
		TargetAudience:      deref(p.TargetAudience),
		ValueProposition:    deref(p.ValueProposition),
		Competitors:         deref(p.Competitors),
		BusinessGoals:       deref(p.BusinessGoals),
	}
}

// CreateCampaignForUser creates the campaign row, fans generation out across
// the selected platforms, and files the results as draft posts awaiting
// approval. Generation never blocks campaign creation: a platform whose
// generation fails gets placeholder content instead.
func (h *Handler) CreateCampaignForUser(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	userID := pathVar(r, "userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	var req createCampaignRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Topic = strings.TrimSpace(req.Topic)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Topic == "" {
		writeError(w, http.StatusBadRequest, "topic is required")
		return
	}
	if len(req.Platforms) == 0 {
		writeError(w, http.StatusBadRequest, "at least one platform is required")
		return
	}
	if req.PostCount < 1 || req.PostCount > 100 {
		writeError(w, http.StatusBadRequest, "post_count must be between 1 and 100")
		return
	}
	if req.Frequency == "" {
		req.Frequency = "weekly"
	}
	if !validFrequencies[req.Frequency] {
		writeError(w, http.StatusBadRequest, "invalid frequency")
		return
	}

	var postsLimit, platformsLimit, usedThisMonth int
	err := h.db.QueryRow(`
		SELECT posts_limit, platforms_limit, current_month_posts FROM subscriptions WHERE user_id = $1
	`, userID).Scan(&postsLimit, &platformsLimit, &usedThisMonth)
	if err != nil && err != sql.ErrNoRows {
		log.Printf("[Campaigns][Create] subscription error userId=%s err=%v", userID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err == nil {
		// The route-level quota gate only sees exhausted plans; the requested
		// post_count is only visible here, so the combined check lives here.
		if usedThisMonth+req.PostCount > postsLimit {
			writeJSON(w, http.StatusPaymentRequired, map[string]any{
				"error":       "plan_limit_exceeded",
				"message":     "This campaign would exceed your monthly post limit",
				"posts_limit": postsLimit,
				"posts_used":  usedThisMonth,
				"upgrade_url": "/dashboard?tab=billing",
			})
			return
		}
		if len(req.Platforms) > platformsLimit {
			writeJSON(w, http.StatusPaymentRequired, map[string]any{
				"error":           "plan_limit_exceeded",
				"message":         "Your current plan allows fewer platforms per campaign",
				"platforms_limit": platformsLimit,
				"upgrade_url":     "/dashboard?tab=billing",
			})
			return
		}
	}

	profile, err := h.profileForGeneration(userID)
	if err != nil && err != sql.ErrNoRows {
		log.Printf("[Campaigns][Create] profile error userId=%s err=%v", userID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	genProfile := generationProfile(profile)
	company := genProfile.CompanyName
	if company == "" {
		company = "our company"
	}
	apiKey := ""
	if profile.OpenAIAPIKey != nil {
		apiKey = *profile.OpenAIAPIKey
	}

	// Spread post_count across platforms, rounding up so every platform gets
	// at least one post. The combined list is trimmed back to post_count.
	perPlatform := (req.PostCount + len(req.Platforms) - 1) / len(req.Platforms)

	type platformPost struct {
		platform string
		content  string
	}
	drafts := make([]platformPost, 0, perPlatform*len(req.Platforms))
	for _, platform := range req.Platforms {
		contents, genErr := h.gen.GeneratePosts(r.Context(), genProfile, req.Topic, platform, perPlatform, apiKey)
		if genErr != nil {
			log.Printf("[Campaigns][Create] generation failed userId=%s platform=%s err=%v", userID, platform, genErr)
			contents = nil
			for i := 0; i < perPlatform; i++ {
				contents = append(contents, fmt.Sprintf("Great content about %s coming soon from %s!", req.Topic, company))
			}
		}
		for _, c := range contents {
			drafts = append(drafts, platformPost{platform: platform, content: c})
		}
	}
	if len(drafts) > req.PostCount {
		drafts = drafts[:req.PostCount]
	}

	campaignID := "camp_" + randHex(12)
	var campaign models.Campaign
	var topic sql.NullString
	err = h.db.QueryRow(`
		INSERT INTO campaigns (id, user_id, name, platform, platforms, topic, post_count, frequency, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'active', NOW(), NOW())
		RETURNING id, user_id, name, platform, platforms, topic, post_count, frequency, status, created_at, updated_at
	`, campaignID, userID, req.Name, req.Platforms[0], pq.Array(req.Platforms), req.Topic, req.PostCount, req.Frequency).Scan(
		&campaign.ID, &campaign.UserID, &campaign.Name, &campaign.Platform, pq.Array(&campaign.Platforms),
		&topic, &campaign.PostCount, &campaign.Frequency, &campaign.Status, &campaign.CreatedAt, &campaign.UpdatedAt,
	)
	if err != nil {
		log.Printf("[Campaigns][Create] insert error userId=%s err=%v", userID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	campaign.Topic = nullStringPtr(topic)

	posts := make([]models.Post, 0, len(drafts))
	now := time.Now().UTC()
	for _, d := range drafts {
		p := models.Post{
			ID:         "post_" + randHex(12),
			UserID:     userID,
			CampaignID: &campaignID,
			Platform:   d.platform,
			Content:    d.content,
			Status:     models.PostStatusDraft,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if _, err := h.db.Exec(`
			INSERT INTO posts (id, user_id, campaign_id, platform, content, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		`, p.ID, p.UserID, campaignID, p.Platform, p.Content, p.Status); err != nil {
			log.Printf("[Campaigns][Create] post insert error userId=%s campaignId=%s err=%v", userID, campaignID, err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		posts = append(posts, p)
	}

	if _, err := h.db.Exec(`
		UPDATE subscriptions
		   SET current_month_posts = current_month_posts + $1, updated_at = NOW()
		 WHERE user_id = $2
	`, len(posts), userID); err != nil {
		log.Printf("[Campaigns][Create] usage update error userId=%s err=%v", userID, err)
	}

	queueURL := "/dashboard?tab=queue"
	h.createNotification(userID, "pending", "Posts ready for review",
		fmt.Sprintf("%d new posts pending approval", len(posts)), &queueURL)

	log.Printf("[Campaigns][Create] ok userId=%s campaignId=%s posts=%d platforms=%d",
		userID, campaignID, len(posts), len(req.Platforms))
	writeJSON(w, http.StatusCreated, map[string]any{"campaign": campaign, "posts": posts})
}

func (h *Handler) ListCampaignsForUser(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	userID := pathVar(r, "userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	rows, err := h.db.Query(`
		SELECT id, user_id, name, platform, platforms, topic, post_count, frequency, status, created_at, updated_at
		FROM campaigns
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		log.Printf("[Campaigns][List] query error userId=%s err=%v", userID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer rows.Close()

	out := []models.Campaign{}
	for rows.Next() {
		var c models.Campaign
		var topic sql.NullString
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Platform, pq.Array(&c.Platforms),
			&topic, &c.PostCount, &c.Frequency, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			log.Printf("[Campaigns][List] scan error userId=%s err=%v", userID, err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		c.Topic = nullStringPtr(topic)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		log.Printf("[Campaigns][List] rows error userId=%s err=%v", userID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}
