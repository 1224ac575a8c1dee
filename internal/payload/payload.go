// Package payload decodes raw agent result payloads into their per-agent
// schemas. The campaign core treats results as a tagged union keyed by
// agent name; a malformed payload yields a ParseError rather than being
// passed through untyped.
package payload

import (
	"encoding/json"
	"fmt"
)

// Agent names as reported by the agent runtime.
const (
	AgentAudience     = "audience"
	AgentBudget       = "budget"
	AgentPrompts      = "prompts"
	AgentContent      = "content"
	AgentAnalytics    = "analytics"
	AgentOptimization = "optimization"
)

// Agents lists every agent the workflow observes, in pipeline order.
var Agents = []string{
	AgentAudience,
	AgentBudget,
	AgentPrompts,
	AgentContent,
	AgentAnalytics,
	AgentOptimization,
}

// Known returns true if name is one of the six campaign agents.
func Known(name string) bool {
	for _, a := range Agents {
		if a == name {
			return true
		}
	}
	return false
}

// ParseError reports a payload that does not match its agent's schema.
type ParseError struct {
	Agent string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s payload: %v", e.Agent, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse decodes raw into the schema for the named agent. The returned
// value is a pointer to one of the schema structs in this package.
func Parse(agent string, raw json.RawMessage) (any, error) {
	var (
		out any
		err error
	)
	switch agent {
	case AgentAudience:
		v := &AudienceAnalysis{}
		err = json.Unmarshal(raw, v)
		out = v
	case AgentBudget:
		v := &BudgetAllocation{}
		err = json.Unmarshal(raw, v)
		out = v
	case AgentPrompts:
		v := &PromptStrategy{}
		err = json.Unmarshal(raw, v)
		out = v
	case AgentContent:
		v := &ContentGeneration{}
		err = json.Unmarshal(raw, v)
		out = v
	case AgentAnalytics:
		v := &PerformanceAnalysis{}
		err = json.Unmarshal(raw, v)
		out = v
	case AgentOptimization:
		v := &OptimizationDecision{}
		err = json.Unmarshal(raw, v)
		out = v
	default:
		return nil, &ParseError{Agent: agent, Err: fmt.Errorf("unknown agent")}
	}
	if err != nil {
		return nil, &ParseError{Agent: agent, Err: err}
	}
	return out, nil
}

// ParseContent decodes a content agent payload, the one schema the
// approval workflow depends on directly.
func ParseContent(raw json.RawMessage) (*ContentGeneration, error) {
	v := &ContentGeneration{}
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, &ParseError{Agent: AgentContent, Err: err}
	}
	return v, nil
}
