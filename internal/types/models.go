// internal/types/models.go
package types

import (
	"encoding/json"
	"time"
)

// ResultStatus is the completion state reported for an agent result.
type ResultStatus string

const (
	ResultPending   ResultStatus = "pending"
	ResultCompleted ResultStatus = "completed"
	ResultError     ResultStatus = "error"
)

// AgentResult is one agent's latest output as observed by polling.
// Payload is kept raw; internal/payload decodes it per agent name.
type AgentResult struct {
	Agent     string          `json:"agent"`
	Status    ResultStatus    `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// CampaignConfig is the input to a new campaign run.
type CampaignConfig struct {
	Product     string  `json:"product"`
	ProductCost float64 `json:"product_cost"`
	Budget      float64 `json:"budget"`
}

// Session aggregates everything known about one campaign run.
type Session struct {
	ID          SessionID              `json:"id"`
	Config      CampaignConfig         `json:"config"`
	CreatedAt   time.Time              `json:"created_at"`
	Results     map[string]AgentResult `json:"results"`
	LastUpdated time.Time              `json:"last_updated"`
}

// NewSession creates an empty Session for the given id and config.
func NewSession(id SessionID, config CampaignConfig) *Session {
	now := time.Now()
	return &Session{
		ID:          id,
		Config:      config,
		CreatedAt:   now,
		Results:     make(map[string]AgentResult),
		LastUpdated: now,
	}
}

// ContentItem identifies one generated ad awaiting review. Identity is
// immutable; Content may be replaced by a revision.
type ContentItem struct {
	ID       ItemID `json:"id"`
	Audience string `json:"audience"`
	Platform string `json:"platform"`
	AdType   string `json:"ad_type"`
	Content  string `json:"content"`
}

// ApprovalState is the review state of a single content item.
type ApprovalState string

const (
	ApprovalPending           ApprovalState = "pending"
	ApprovalApproved          ApprovalState = "approved"
	ApprovalRevisionRequested ApprovalState = "revision_requested"
	ApprovalRevising          ApprovalState = "revising"
	ApprovalRevisionReady     ApprovalState = "revision_ready"
)

// RevisionEntry is one requested change. The history it belongs to is
// append-only.
type RevisionEntry struct {
	ID       RevisionID `json:"id"`
	At       time.Time  `json:"at"`
	Feedback string     `json:"feedback"`
	Revised  string     `json:"revised_content,omitempty"`
}

// ApprovalStatus tracks one item's review lifecycle.
type ApprovalStatus struct {
	ItemID    ItemID          `json:"item_id"`
	State     ApprovalState   `json:"state"`
	Feedback  string          `json:"feedback,omitempty"`
	Revisions []RevisionEntry `json:"revisions,omitempty"`
}

// BulkReport is the partial-success result of a bulk approval operation.
type BulkReport struct {
	Succeeded []ItemID          `json:"succeeded"`
	Failed    map[ItemID]string `json:"failed,omitempty"`
}

// NavigationGuidance is derived, non-authoritative UI advice recomputed
// from the workflow stage.
type NavigationGuidance struct {
	RecommendedTab string `json:"recommended_tab"`
	Message        string `json:"message"`
	Percentage     int    `json:"percentage"`
}
