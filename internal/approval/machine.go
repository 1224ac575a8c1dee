// Package approval implements the per-item human review lifecycle for
// generated campaign content. Valid transitions:
//
//	pending → approved (terminal)
//	pending → revision_requested → revising → revision_ready
//	revision_ready → approved | revision_requested
//
// All mutations are serialized through the machine's lock; external
// submissions are confirmed before local state advances, so a failed
// submission leaves no partial change behind.
package approval

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/user/campaignd/internal/types"
)

// Policy configures optional review constraints.
type Policy struct {
	// BlockBulkDuringRevision rejects bulk approval while any item is
	// mid-revision. The default permits it, matching the original
	// reviewer workflow.
	BlockBulkDuringRevision bool
}

// Machine tracks the approval status of every observed content item in
// one session.
type Machine struct {
	mu        sync.Mutex
	sessionID types.SessionID
	submitter types.ApprovalSubmissionService
	policy    Policy

	items    map[types.ItemID]types.ContentItem
	statuses map[types.ItemID]*types.ApprovalStatus
	order    []types.ItemID
}

// New creates an empty Machine for the given session.
func New(sessionID types.SessionID, submitter types.ApprovalSubmissionService, policy Policy) *Machine {
	return &Machine{
		sessionID: sessionID,
		submitter: submitter,
		policy:    policy,
		items:     make(map[types.ItemID]types.ContentItem),
		statuses:  make(map[types.ItemID]*types.ApprovalStatus),
	}
}

// Observe registers content items as they appear in agent results. An
// item gets exactly one ApprovalStatus, created on first observation;
// re-observing an item refreshes its content reference but never touches
// its review state.
func (m *Machine) Observe(items []types.ContentItem) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, item := range items {
		if existing, ok := m.items[item.ID]; ok {
			existing.Content = item.Content
			m.items[item.ID] = existing
			continue
		}
		m.items[item.ID] = item
		m.statuses[item.ID] = &types.ApprovalStatus{
			ItemID: item.ID,
			State:  types.ApprovalPending,
		}
		m.order = append(m.order, item.ID)
	}
}

// Approve marks an item approved. Valid from pending and revision_ready;
// a no-op if the item is already approved. The external submission is
// confirmed before local state changes.
func (m *Machine) Approve(ctx context.Context, id types.ItemID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.approveLocked(ctx, id)
}

func (m *Machine) approveLocked(ctx context.Context, id types.ItemID) error {
	status, ok := m.statuses[id]
	if !ok {
		return &types.ValidationError{Field: "item_id", Reason: fmt.Sprintf("unknown item %s", id)}
	}

	switch status.State {
	case types.ApprovalApproved:
		return nil
	case types.ApprovalPending, types.ApprovalRevisionReady:
	default:
		return &types.ValidationError{
			Field:  "item_id",
			Reason: fmt.Sprintf("item %s cannot be approved while %s", id, status.State),
		}
	}

	if err := m.submitter.Submit(ctx, m.sessionID, id, types.ActionApprove, ""); err != nil {
		return &types.SubmissionError{Action: "approve", Err: err}
	}

	status.State = types.ApprovalApproved
	return nil
}

// RequestRevision asks the external revision collaborator to rework an
// item. Blank feedback is rejected before any mutation or external call.
// Valid from pending and revision_ready.
func (m *Machine) RequestRevision(ctx context.Context, id types.ItemID, feedback string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestRevisionLocked(ctx, id, feedback)
}

func (m *Machine) requestRevisionLocked(ctx context.Context, id types.ItemID, feedback string) error {
	if strings.TrimSpace(feedback) == "" {
		return &types.ValidationError{Field: "feedback", Reason: "feedback is required for revision"}
	}

	status, ok := m.statuses[id]
	if !ok {
		return &types.ValidationError{Field: "item_id", Reason: fmt.Sprintf("unknown item %s", id)}
	}

	switch status.State {
	case types.ApprovalPending, types.ApprovalRevisionReady:
	default:
		return &types.ValidationError{
			Field:  "item_id",
			Reason: fmt.Sprintf("item %s cannot be revised while %s", id, status.State),
		}
	}

	if err := m.submitter.Submit(ctx, m.sessionID, id, types.ActionRevise, feedback); err != nil {
		return &types.SubmissionError{Action: "revise", Err: err}
	}

	status.State = types.ApprovalRevisionRequested
	status.Feedback = feedback
	status.Revisions = append(status.Revisions, types.RevisionEntry{
		ID:       types.NewRevisionID(),
		At:       time.Now(),
		Feedback: feedback,
	})
	return nil
}

// MarkRevising records that the revision collaborator has picked up the
// item. Only meaningful from revision_requested; anything else is a
// duplicate or stale signal and is ignored.
func (m *Machine) MarkRevising(id types.ItemID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if status, ok := m.statuses[id]; ok && status.State == types.ApprovalRevisionRequested {
		status.State = types.ApprovalRevising
	}
}

// CompleteRevision is the explicit external completion callback. It
// advances the item to revision_ready, records the revised content on the
// latest history entry, and replaces the item's content reference.
func (m *Machine) CompleteRevision(id types.ItemID, revised string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	status, ok := m.statuses[id]
	if !ok {
		return &types.ValidationError{Field: "item_id", Reason: fmt.Sprintf("unknown item %s", id)}
	}

	switch status.State {
	case types.ApprovalRevisionRequested, types.ApprovalRevising:
	default:
		return &types.ValidationError{
			Field:  "item_id",
			Reason: fmt.Sprintf("no revision in flight for item %s (state %s)", id, status.State),
		}
	}

	status.State = types.ApprovalRevisionReady
	if n := len(status.Revisions); n > 0 {
		status.Revisions[n-1].Revised = revised
	}
	if revised != "" {
		item := m.items[id]
		item.Content = revised
		m.items[id] = item
	}
	return nil
}

// BulkApprove applies Approve to each id independently; one item's
// failure does not block the others. The report lists every outcome.
func (m *Machine) BulkApprove(ctx context.Context, ids []types.ItemID) (types.BulkReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.policy.BlockBulkDuringRevision {
		for _, status := range m.statuses {
			if status.State == types.ApprovalRevisionRequested || status.State == types.ApprovalRevising {
				return types.BulkReport{}, &types.ValidationError{
					Field:  "items",
					Reason: fmt.Sprintf("bulk approval blocked: item %s is mid-revision", status.ItemID),
				}
			}
		}
	}

	report := types.BulkReport{Failed: make(map[types.ItemID]string)}
	for _, id := range ids {
		if err := m.approveLocked(ctx, id); err != nil {
			report.Failed[id] = err.Error()
			continue
		}
		report.Succeeded = append(report.Succeeded, id)
	}
	return report, nil
}

// BulkRevise applies RequestRevision with shared feedback to each id
// independently. Blank feedback fails the whole call up front, before any
// item is touched.
func (m *Machine) BulkRevise(ctx context.Context, ids []types.ItemID, feedback string) (types.BulkReport, error) {
	if strings.TrimSpace(feedback) == "" {
		return types.BulkReport{}, &types.ValidationError{Field: "feedback", Reason: "feedback is required for revision"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	report := types.BulkReport{Failed: make(map[types.ItemID]string)}
	for _, id := range ids {
		if err := m.requestRevisionLocked(ctx, id, feedback); err != nil {
			report.Failed[id] = err.Error()
			continue
		}
		report.Succeeded = append(report.Succeeded, id)
	}
	return report, nil
}

// CanProceed reports whether every known item is approved. It is false
// while no items have been observed.
func (m *Machine) CanProceed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.statuses) == 0 {
		return false
	}
	for _, status := range m.statuses {
		if status.State != types.ApprovalApproved {
			return false
		}
	}
	return true
}

// Status returns a copy of one item's approval status.
func (m *Machine) Status(id types.ItemID) (types.ApprovalStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status, ok := m.statuses[id]
	if !ok {
		return types.ApprovalStatus{}, false
	}
	return copyStatus(status), true
}

// Statuses returns copies of every approval status in observation order.
func (m *Machine) Statuses() []types.ApprovalStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]types.ApprovalStatus, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, copyStatus(m.statuses[id]))
	}
	return out
}

// Items returns copies of the known content items in observation order.
func (m *Machine) Items() []types.ContentItem {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]types.ContentItem, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.items[id])
	}
	return out
}

// History returns a copy of one item's revision history.
func (m *Machine) History(id types.ItemID) []types.RevisionEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	status, ok := m.statuses[id]
	if !ok {
		return nil
	}
	return append([]types.RevisionEntry(nil), status.Revisions...)
}

// Reset clears all items, statuses and revision history. Used only by the
// explicit new-campaign action.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = make(map[types.ItemID]types.ContentItem)
	m.statuses = make(map[types.ItemID]*types.ApprovalStatus)
	m.order = nil
}

// Export returns the items and statuses for snapshot persistence.
func (m *Machine) Export() ([]types.ContentItem, map[types.ItemID]types.ApprovalStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := make([]types.ContentItem, 0, len(m.order))
	statuses := make(map[types.ItemID]types.ApprovalStatus, len(m.statuses))
	for _, id := range m.order {
		items = append(items, m.items[id])
		statuses[id] = copyStatus(m.statuses[id])
	}
	return items, statuses
}

// Load restores items and statuses from a snapshot, replacing any current
// state.
func (m *Machine) Load(items []types.ContentItem, statuses map[types.ItemID]types.ApprovalStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = make(map[types.ItemID]types.ContentItem, len(items))
	m.statuses = make(map[types.ItemID]*types.ApprovalStatus, len(statuses))
	m.order = nil
	for _, item := range items {
		m.items[item.ID] = item
		m.order = append(m.order, item.ID)
		if status, ok := statuses[item.ID]; ok {
			restored := copyStatus(&status)
			m.statuses[item.ID] = &restored
		} else {
			m.statuses[item.ID] = &types.ApprovalStatus{ItemID: item.ID, State: types.ApprovalPending}
		}
	}
}

func copyStatus(s *types.ApprovalStatus) types.ApprovalStatus {
	copied := *s
	copied.Revisions = append([]types.RevisionEntry(nil), s.Revisions...)
	return copied
}
