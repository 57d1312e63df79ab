package generate

import "fmt"

// InsightsReport is the four-section strategy object returned by the insights
// endpoint. JSON keys match what clients already render.
type InsightsReport struct {
	BusinessSummary        BusinessSummary        `json:"businessSummary"`
	ContentStrategy        ContentStrategy        `json:"contentStrategy"`
	CompetitivePositioning CompetitivePositioning `json:"competitivePositioning"`
	QuickWins              []QuickWin             `json:"quickWins"`
}

type BusinessSummary struct {
	Overview      string   `json:"overview"`
	Strengths     []string `json:"strengths"`
	TargetPersona string   `json:"targetPersona"`
}

type ContentPillar struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Examples    []string `json:"examples"`
}

type PlatformFit struct {
	Platform string `json:"platform"`
	Reason   string `json:"reason"`
}

type ContentStrategy struct {
	Pillars          []ContentPillar `json:"pillars"`
	BestPlatforms    []PlatformFit   `json:"bestPlatforms"`
	PostingFrequency string          `json:"postingFrequency"`
}

type CompetitivePositioning struct {
	Differentiation string   `json:"differentiation"`
	Gaps            []string `json:"gaps"`
	UniqueAngles    []string `json:"uniqueAngles"`
}

type QuickWin struct {
	Action string `json:"action"`
	Impact string `json:"impact"`
	Effort string `json:"effort"`
}

// MockInsights builds the deterministic fallback report from the profile's
// company, industry and goal fields.
func MockInsights(p Profile) InsightsReport {
	company := p.CompanyName
	if company == "" {
		company = "Your company"
	}
	industry := p.Industry
	if industry == "" {
		industry = "technology"
	}
	goals := p.BusinessGoals
	if goals == "" {
		goals = "brand awareness"
	}

	targetPersona := p.TargetAudience
	if targetPersona == "" {
		targetPersona = fmt.Sprintf("Decision-makers and professionals in %s looking for solutions that save time and improve outcomes.", industry)
	}
	differentiation := p.ValueProposition
	if differentiation == "" {
		differentiation = fmt.Sprintf("Focus on what makes %s unique - whether it is speed, quality, price, or customer experience. Lead with this in all content.", company)
	}
	quickWinTopic := "customer success stories"
	if goals == "thought_leadership" || goals == "thought leadership" {
		quickWinTopic = "industry insights"
	}

	return InsightsReport{
		BusinessSummary: BusinessSummary{
			Overview: fmt.Sprintf("%s operates in the %s space, focusing on delivering value to their target market. Based on the business description and goals, there is significant opportunity for growth through strategic content marketing.", company, industry),
			Strengths: []string{
				fmt.Sprintf("Strong positioning in the %s market", industry),
				"Clear understanding of target audience needs",
				"Differentiated value proposition",
			},
			TargetPersona: targetPersona,
		},
		ContentStrategy: ContentStrategy{
			Pillars: []ContentPillar{
				{
					Name:        "Educational Content",
					Description: fmt.Sprintf("Share expertise and insights about %s", industry),
					Examples:    []string{"How-to guides", "Industry trend analysis", "Best practices"},
				},
				{
					Name:        "Behind the Scenes",
					Description: "Build trust by showing the human side",
					Examples:    []string{"Team stories", "Product development journey", "Company culture"},
				},
				{
					Name:        "Customer Success",
					Description: "Showcase results and build social proof",
					Examples:    []string{"Case studies", "Testimonials", "Before/after stories"},
				},
				{
					Name:        "Thought Leadership",
					Description: "Position as an industry authority",
					Examples:    []string{"Industry predictions", "Opinion pieces", "Expert interviews"},
				},
			},
			BestPlatforms: []PlatformFit{
				{Platform: "LinkedIn", Reason: fmt.Sprintf("Ideal for %s B2B content and professional networking", industry)},
				{Platform: "Twitter/X", Reason: "Great for quick updates, engagement, and industry conversations"},
				{Platform: "Instagram", Reason: "Visual storytelling and brand personality"},
			},
			PostingFrequency: "Start with 3-4 posts per week across platforms. Consistency matters more than volume. Focus on quality and engagement over quantity.",
		},
		CompetitivePositioning: CompetitivePositioning{
			Differentiation: differentiation,
			Gaps: []string{
				"Competitors may not be active on all platforms - claim your space",
				"Most competitors focus on product features - you can focus on customer outcomes",
				"There may be underserved audience segments to target",
			},
			UniqueAngles: []string{
				"Share the founder story and company mission",
				"Be more transparent about processes and pricing",
				"Create content that competitors are not creating",
				"Engage more authentically with your community",
			},
		},
		QuickWins: []QuickWin{
			{
				Action: "Optimize your LinkedIn company page with updated messaging and visuals",
				Impact: "Better first impressions and increased follower conversion",
				Effort: "Low",
			},
			{
				Action: "Create a content calendar for the next 30 days",
				Impact: "Consistent posting and reduced daily decision fatigue",
				Effort: "Medium",
			},
			{
				Action: fmt.Sprintf("Write 3 posts about %s", quickWinTopic),
				Impact: "Immediate content to publish and test engagement",
				Effort: "Low",
			},
		},
	}
}
