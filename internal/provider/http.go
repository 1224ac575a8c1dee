// Package provider implements the external collaborator contracts
// against the agent runtime's REST API. The core never owns persistence
// or agent execution; everything here is a network call with a bounded
// timeout.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/user/campaignd/internal/types"
)

// Client talks to the agent runtime over HTTP. It implements
// AgentResultProvider, ApprovalSubmissionService, CampaignStartService
// and AnalyticsTriggerService.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	retry   *RetryPolicy
}

var (
	_ types.AgentResultProvider       = (*Client)(nil)
	_ types.ApprovalSubmissionService = (*Client)(nil)
	_ types.CampaignStartService      = (*Client)(nil)
	_ types.AnalyticsTriggerService   = (*Client)(nil)
)

// NewClient creates a Client for the runtime at baseURL with the given
// per-request timeout. apiKey may be empty when the runtime runs
// unauthenticated.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		retry:   DefaultRetryPolicy(),
	}
}

// agentResultResponse is the runtime's envelope for one agent result.
type agentResultResponse struct {
	Agent     string          `json:"agent"`
	Status    string          `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
	Result    json.RawMessage `json:"result"`
}

// Get fetches the latest result for one agent of a session. A 404 means
// the agent has not produced a result yet.
func (c *Client) Get(ctx context.Context, sessionID types.SessionID, agent string) (*types.AgentResult, error) {
	url := fmt.Sprintf("%s/api/session/%s/agent/%s", c.baseURL, sessionID, agent)

	var body []byte
	err := c.retry.Execute(ctx, func() error {
		var err error
		body, err = c.get(ctx, url)
		return err
	})
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return nil, types.ErrResultNotFound
		}
		return nil, err
	}

	var resp agentResultResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode %s result: %w", agent, err)
	}

	status := types.ResultStatus(resp.Status)
	switch status {
	case types.ResultPending, types.ResultCompleted, types.ResultError:
	default:
		status = types.ResultCompleted
	}

	return &types.AgentResult{
		Agent:     agent,
		Status:    status,
		Timestamp: resp.Timestamp,
		Payload:   resp.Result,
	}, nil
}

// Submit records an approve/revise decision for one content item.
func (c *Client) Submit(ctx context.Context, sessionID types.SessionID, itemID types.ItemID, action types.FeedbackAction, feedback string) error {
	payload := map[string]string{
		"session_id":    string(sessionID),
		"item_id":       string(itemID),
		"feedback_type": string(action),
	}
	if feedback != "" {
		payload["feedback"] = feedback
	}
	_, err := c.post(ctx, c.baseURL+"/api/campaign/feedback", payload)
	return err
}

// Start asks the runtime to begin a campaign run and returns the
// allocated session id.
func (c *Client) Start(ctx context.Context, config types.CampaignConfig) (types.SessionID, error) {
	body, err := c.post(ctx, c.baseURL+"/api/campaign/start", config)
	if err != nil {
		return "", err
	}

	var resp struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode start response: %w", err)
	}
	if resp.SessionID == "" {
		return "", fmt.Errorf("start response missing session_id")
	}
	return types.SessionID(resp.SessionID), nil
}

// ProceedToAnalytics asks the runtime to run the analytics and
// optimization agents.
func (c *Client) ProceedToAnalytics(ctx context.Context, sessionID types.SessionID) error {
	_, err := c.post(ctx, c.baseURL+"/api/campaign/proceed", map[string]string{
		"session_id": string(sessionID),
	})
	return err
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	return c.do(req)
}

func (c *Client) post(ctx context.Context, url string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s %s: not found", req.Method, req.URL.Path)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
