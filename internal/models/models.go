package models

import (
	"encoding/json"
	"time"
)

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type UserProfile struct {
	ID                  string    `json:"id"`
	UserID              string    `json:"user_id"`
	Role                *string   `json:"role,omitempty"`
	CompanyName         *string   `json:"company_name,omitempty"`
	Industry            *string   `json:"industry,omitempty"`
	BusinessDescription *string   `json:"business_description,omitempty"`
	Tone                string    `json:"tone"`
	OnboardingCompleted bool      `json:"onboarding_completed"`
	WebsiteURL          *string   `json:"website_url,omitempty"`
	WebsiteContent      *string   `json:"website_content,omitempty"`
	OpenAIAPIKey        *string   `json:"openai_api_key,omitempty"`
	TargetAudience      *string   `json:"target_audience,omitempty"`
	ValueProposition    *string   `json:"value_proposition,omitempty"`
	Competitors         *string   `json:"competitors,omitempty"`
	BusinessGoals       *string   `json:"business_goals,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

type Campaign struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Platform  string    `json:"platform"`
	Platforms []string  `json:"platforms"`
	Topic     *string   `json:"topic,omitempty"`
	PostCount int       `json:"post_count"`
	Frequency string    `json:"frequency"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Post statuses recognized by the transition table in handlers.
const (
	PostStatusDraft     = "draft"
	PostStatusScheduled = "scheduled"
	PostStatusPublished = "published"
	PostStatusRejected  = "rejected"
	PostStatusApproved  = "approved"
)

type Post struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	CampaignID   *string    `json:"campaign_id,omitempty"`
	Platform     string     `json:"platform"`
	Content      string     `json:"content"`
	Status       string     `json:"status"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type PlatformCredential struct {
	ID          string            `json:"id"`
	UserID      string            `json:"user_id"`
	Platform    string            `json:"platform"`
	Credentials map[string]string `json:"credentials"`
	IsConnected bool              `json:"is_connected"`
	ConnectedAt *time.Time        `json:"connected_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

type BusinessInsights struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	InsightsJSON json.RawMessage `json:"insights_json"`
	GeneratedAt  time.Time       `json:"generated_at"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	ActionURL *string   `json:"action_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// TimeAgo is a render-time relative label ("5m ago"); never stored.
	TimeAgo string `json:"time_ago,omitempty"`
}

type Subscription struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	Tier              string    `json:"tier"`
	PostsLimit        int       `json:"posts_limit"`
	PlatformsLimit    int       `json:"platforms_limit"`
	CurrentMonthPosts int       `json:"current_month_posts"`
	BillingCycleStart time.Time `json:"billing_cycle_start"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
