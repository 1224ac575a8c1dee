// internal/payload/schemas.go
package payload

// Per-agent result schemas. These mirror the JSON the agent runtime
// produces for each of the six campaign agents.

type PlatformInfo struct {
	Platform string `json:"platform"`
	Reason   string `json:"reason"`
}

type AudienceGroup struct {
	Name         string         `json:"name"`
	Demographics string         `json:"demographics"`
	Platforms    []PlatformInfo `json:"platforms"`
}

// AudienceAnalysis is the audience agent's output.
type AudienceAnalysis struct {
	Audiences []AudienceGroup `json:"audiences"`
}

type PlatformBudget struct {
	Platform   string  `json:"platform"`
	Amount     float64 `json:"amount"`
	Percentage float64 `json:"percentage"`
}

type AudienceBudget struct {
	Audience  string           `json:"audience"`
	Total     float64          `json:"total"`
	Platforms []PlatformBudget `json:"platforms"`
}

// BudgetAllocation is the budget agent's output.
type BudgetAllocation struct {
	TotalBudget float64          `json:"total_budget"`
	Allocations []AudienceBudget `json:"allocations"`
}

type AdPrompt struct {
	AdType string `json:"ad_type"`
	Prompt string `json:"prompt"`
	CTA    string `json:"cta"`
}

type PlatformPrompts struct {
	Platform string     `json:"platform"`
	Prompts  []AdPrompt `json:"prompts"`
}

type AudiencePrompts struct {
	Audience  string            `json:"audience"`
	Platforms []PlatformPrompts `json:"platforms"`
}

// PromptStrategy is the prompt agent's output.
type PromptStrategy struct {
	AudiencePrompts []AudiencePrompts `json:"audience_prompts"`
}

// GeneratedAd is one produced advertisement awaiting review.
type GeneratedAd struct {
	AssetID  string `json:"asset_id"`
	Audience string `json:"audience"`
	Platform string `json:"platform"`
	AdType   string `json:"ad_type"`
	Content  string `json:"content"`
	Status   string `json:"status"`
}

// ContentGeneration is the content agent's output.
type ContentGeneration struct {
	Ads []GeneratedAd `json:"ads"`
}

type CalculatedMetrics struct {
	Audience     string  `json:"audience"`
	Platform     string  `json:"platform"`
	Impressions  int     `json:"impressions"`
	Clicks       int     `json:"clicks"`
	Redirects    int     `json:"redirects"`
	Conversions  int     `json:"conversions"`
	Likes        int     `json:"likes"`
	Cost         float64 `json:"cost"`
	Revenue      float64 `json:"revenue"`
	ROI          float64 `json:"roi"`
	CTR          float64 `json:"ctr"`
	RedirectRate float64 `json:"redirect_rate"`
}

// PerformanceAnalysis is the analytics agent's output.
type PerformanceAnalysis struct {
	ProductCost     float64             `json:"product_cost"`
	TotalRevenue    float64             `json:"total_revenue"`
	TotalCost       float64             `json:"total_cost"`
	OverallROI      float64             `json:"overall_roi"`
	PlatformMetrics []CalculatedMetrics `json:"platform_metrics"`
	BestPerforming  string              `json:"best_performing"`
	WorstPerforming string              `json:"worst_performing"`
}

type BudgetChange struct {
	Audience  string  `json:"audience"`
	Platform  string  `json:"platform"`
	OldAmount float64 `json:"old_amount"`
	NewAmount float64 `json:"new_amount"`
	Change    float64 `json:"change"`
}

// OptimizationDecision is the optimization agent's output.
type OptimizationDecision struct {
	Summary         string         `json:"summary"`
	Recommendations []string       `json:"recommendations"`
	BudgetChanges   []BudgetChange `json:"budget_changes"`
}
