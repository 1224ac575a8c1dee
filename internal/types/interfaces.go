// internal/types/interfaces.go
package types

import (
	"context"
)

// FeedbackAction is the kind of decision submitted for a content item.
type FeedbackAction string

const (
	ActionApprove FeedbackAction = "approve"
	ActionRevise  FeedbackAction = "revise"
)

// AgentResultProvider fetches the latest result for one agent of a
// session. A missing result is reported via ErrResultNotFound so callers
// can distinguish "not produced yet" from a transport failure.
type AgentResultProvider interface {
	Get(ctx context.Context, sessionID SessionID, agent string) (*AgentResult, error)
}

// ApprovalSubmissionService records an approve/revise decision with the
// agent runtime.
type ApprovalSubmissionService interface {
	Submit(ctx context.Context, sessionID SessionID, itemID ItemID, action FeedbackAction, feedback string) error
}

// CampaignStartService asks the agent runtime to begin a campaign run.
type CampaignStartService interface {
	Start(ctx context.Context, config CampaignConfig) (SessionID, error)
}

// AnalyticsTriggerService asks the agent runtime to run the analytics and
// optimization agents for an approved campaign.
type AnalyticsTriggerService interface {
	ProceedToAnalytics(ctx context.Context, sessionID SessionID) error
}
