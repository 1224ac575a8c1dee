// internal/orchestrator/status.go
package orchestrator

import (
	"fmt"

	"github.com/user/campaignd/internal/gate"
	"github.com/user/campaignd/internal/stage"
	"github.com/user/campaignd/internal/types"
)

// Status is the derived view of the active campaign, safe to serialize
// straight to the API.
type Status struct {
	SessionID  types.SessionID          `json:"session_id,omitempty"`
	Active     bool                     `json:"active"`
	Stage      string                   `json:"stage"`
	Progress   int                      `json:"progress"`
	Completed  []string                 `json:"completed_stages,omitempty"`
	CanProceed bool                     `json:"can_proceed"`
	Degraded   bool                     `json:"connectivity_degraded,omitempty"`
	Guidance   types.NavigationGuidance `json:"guidance"`
	Tabs       []gate.Tab               `json:"reachable_tabs"`
}

// Status returns the current derived view. With no active campaign it
// reports the setup stage.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	store := o.store
	machine := o.machine
	current := o.current
	degraded := o.degraded
	o.mu.Unlock()

	st := Status{
		Stage:    current.Stage.String(),
		Progress: current.Progress,
		Degraded: degraded,
		Guidance: stage.Guidance(current),
		Tabs:     o.gate.ReachableSet(current.Stage),
	}
	for _, s := range current.Completed {
		st.Completed = append(st.Completed, s.String())
	}
	if store != nil {
		st.SessionID = store.SessionID()
		st.Active = true
	}
	if machine != nil {
		st.CanProceed = machine.CanProceed()
	}
	return st
}

// Approvals returns the current approval statuses in observation order,
// or nil with no active campaign.
func (o *Orchestrator) Approvals() []types.ApprovalStatus {
	o.mu.Lock()
	machine := o.machine
	o.mu.Unlock()

	if machine == nil {
		return nil
	}
	return machine.Statuses()
}

// Approval returns one item's approval status.
func (o *Orchestrator) Approval(id types.ItemID) (types.ApprovalStatus, error) {
	o.mu.Lock()
	machine := o.machine
	o.mu.Unlock()

	if machine == nil {
		return types.ApprovalStatus{}, types.ErrSessionNotFound
	}
	status, ok := machine.Status(id)
	if !ok {
		return types.ApprovalStatus{}, &types.ValidationError{Field: "item_id", Reason: fmt.Sprintf("unknown item %s", id)}
	}
	return status, nil
}

// Items returns the known content items in observation order.
func (o *Orchestrator) Items() []types.ContentItem {
	o.mu.Lock()
	machine := o.machine
	o.mu.Unlock()

	if machine == nil {
		return nil
	}
	return machine.Items()
}
