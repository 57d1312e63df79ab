package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Profile is the business-profile fragment callers send with generation requests.
// Field names match the stored user_profiles columns.
type Profile struct {
	CompanyName         string `json:"company_name,omitempty"`
	Industry            string `json:"industry,omitempty"`
	Tone                string `json:"tone,omitempty"`
	BusinessDescription string `json:"business_description,omitempty"`
	WebsiteContent      string `json:"website_content,omitempty"`
	TargetAudience      string `json:"target_audience,omitempty"`
	ValueProposition    string `json:"value_proposition,omitempty"`
	Competitors         string `json:"competitors,omitempty"`
	BusinessGoals       string `json:"business_goals,omitempty"`
}

// platformLimits maps platform ids to their post character limits.
var platformLimits = map[string]int{
	"twitter":   280,
	"linkedin":  3000,
	"instagram": 2200,
	"facebook":  63206,
	"tiktok":    2200,
	"youtube":   5000,
	"threads":   500,
	"pinterest": 500,
	"bluesky":   300,
	"mastodon":  500,
}

// CharLimit returns the character limit for a platform (280 for unknown platforms).
func CharLimit(platform string) int {
	if n, ok := platformLimits[platform]; ok {
		return n
	}
	return 280
}

// Service wraps the external completion API with prompt construction and
// deterministic fallback content. It is stateless between calls.
type Service struct {
	client  *http.Client
	limiter *rate.Limiter
	apiKey  string
	apiBase string
}

func NewService() *Service {
	return &Service{
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(2), 4),
		apiKey:  os.Getenv("OPENAI_API_KEY"),
		apiBase: "https://api.openai.com",
	}
}

// NewServiceWith is used by tests to point the service at a stub API.
func NewServiceWith(client *http.Client, apiKey, apiBase string) *Service {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Service{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(2), 4),
		apiKey:  apiKey,
		apiBase: strings.TrimRight(apiBase, "/"),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

var fenceRe = regexp.MustCompile("```json\n?|\n?```")

// chat performs one completion call and returns the assistant message content.
func (s *Service) chat(ctx context.Context, apiKey string, req chatRequest) (string, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, "POST", s.apiBase+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := s.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", fmt.Errorf("completion_non_2xx status=%d", res.StatusCode)
	}

	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("completion_empty_choices")
	}
	return out.Choices[0].Message.Content, nil
}

// GeneratePosts returns count post candidates for one platform. The external API
// is tried first when a key is available; any API failure falls back to the
// template table, so the returned slice is never short of count. The error return
// is reserved for context cancellation.
func (s *Service) GeneratePosts(ctx context.Context, profile Profile, topic, platform string, count int, userAPIKey string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	apiKey := userAPIKey
	if apiKey == "" {
		apiKey = s.apiKey
	}

	posts := []string{}
	if apiKey != "" {
		content, err := s.chat(ctx, apiKey, chatRequest{
			Model: "gpt-4o-mini",
			Messages: []chatMessage{
				{Role: "system", Content: postsSystemPrompt(profile, platform)},
				{Role: "user", Content: fmt.Sprintf("Generate %d unique %s posts about: %s. Return as JSON array of strings only.", count, platform, topic)},
			},
			Temperature: 0.8,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Printf("[Generate][Posts] api_failed platform=%s err=%v", platform, err)
		} else {
			cleaned := fenceRe.ReplaceAllString(content, "")
			var parsed []string
			if jsonErr := json.Unmarshal([]byte(cleaned), &parsed); jsonErr == nil {
				posts = append(posts, parsed...)
			} else {
				posts = append(posts, content)
			}
		}
	}

	if len(posts) == 0 {
		templates := MockPostTemplates(topic, profile)
		for i := 0; i < count; i++ {
			posts = append(posts, templates[i%len(templates)])
		}
	}
	return posts, nil
}

func postsSystemPrompt(profile Profile, platform string) string {
	company := profile.CompanyName
	if company == "" {
		company = "the company"
	}
	industry := profile.Industry
	if industry == "" {
		industry = "tech"
	}
	tone := profile.Tone
	if tone == "" {
		tone = "professional"
	}
	description := profile.BusinessDescription
	if description == "" {
		description = "A growing company"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a social media content expert. Generate engaging %s posts for a %s company called %q.\n", platform, industry, company)
	fmt.Fprintf(&b, "Tone: %s.\n", tone)
	fmt.Fprintf(&b, "Business: %s.\n", description)
	if profile.WebsiteContent != "" {
		fmt.Fprintf(&b, "Website context: %s\n", truncate(profile.WebsiteContent, 500))
	}
	fmt.Fprintf(&b, "Keep posts under %d characters. Include relevant hashtags for %s. Do not use emojis.", CharLimit(platform), platform)
	return b.String()
}

// GenerateInsights returns the four-section strategy report as raw JSON. Falls
// back to the deterministic mock report on any API failure, so the result is
// always a non-null object.
func (s *Service) GenerateInsights(ctx context.Context, profile Profile, userAPIKey string) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	apiKey := userAPIKey
	if apiKey == "" {
		apiKey = s.apiKey
	}

	if apiKey != "" {
		content, err := s.chat(ctx, apiKey, chatRequest{
			Model: "gpt-4o-mini",
			Messages: []chatMessage{
				{Role: "system", Content: insightsSystemPrompt},
				{Role: "user", Content: insightsUserPrompt(profile)},
			},
			Temperature:    0.7,
			ResponseFormat: &responseFormat{Type: "json_object"},
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Printf("[Generate][Insights] api_failed err=%v", err)
		} else if json.Valid([]byte(content)) {
			return json.RawMessage(content), nil
		}
	}

	mock, err := json.Marshal(MockInsights(profile))
	if err != nil {
		return nil, err
	}
	return mock, nil
}

const insightsSystemPrompt = `You are a business strategist and content marketing expert. Analyze the business information provided and generate actionable insights. Return a JSON object with the following structure:
{
  "businessSummary": {
    "overview": "2-3 sentence overview of the business",
    "strengths": ["strength1", "strength2", "strength3"],
    "targetPersona": "Description of ideal customer persona"
  },
  "contentStrategy": {
    "pillars": [
      {"name": "Pillar name", "description": "Brief description", "examples": ["example topic 1", "example topic 2"]}
    ],
    "bestPlatforms": [{"platform": "platform name", "reason": "why it fits"}],
    "postingFrequency": "Recommended frequency with reasoning"
  },
  "competitivePositioning": {
    "differentiation": "How to stand out from competitors",
    "gaps": ["gap1", "gap2"],
    "uniqueAngles": ["angle1", "angle2", "angle3"]
  },
  "quickWins": [
    {"action": "Specific action", "impact": "Expected impact", "effort": "Low/Medium/High"}
  ]
}`

func insightsUserPrompt(p Profile) string {
	orElse := func(s, def string) string {
		if s == "" {
			return def
		}
		return s
	}
	website := "Not available"
	if p.WebsiteContent != "" {
		website = truncate(p.WebsiteContent, 1000)
	}
	return fmt.Sprintf(`Analyze this business and generate insights:

Company: %s
Industry: %s
Business Description: %s
Target Audience: %s
Value Proposition: %s
Competitors: %s
Business Goals: %s
Tone: %s
Website Content: %s

Generate comprehensive, actionable insights based on this information.`,
		orElse(p.CompanyName, "Unknown"),
		orElse(p.Industry, "Unknown"),
		orElse(p.BusinessDescription, "Not provided"),
		orElse(p.TargetAudience, "Not specified"),
		orElse(p.ValueProposition, "Not specified"),
		orElse(p.Competitors, "Not specified"),
		orElse(p.BusinessGoals, "Not specified"),
		orElse(p.Tone, "professional"),
		website)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
