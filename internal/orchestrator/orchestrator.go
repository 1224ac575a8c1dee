// Package orchestrator owns the campaign session and wires the polling
// monitor, stage engine and approval machine together. There are no
// ambient singletons: every piece of campaign state hangs off the
// Orchestrator, and views read derived snapshots rather than mutating it.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/user/campaignd/internal/approval"
	"github.com/user/campaignd/internal/gate"
	"github.com/user/campaignd/internal/payload"
	"github.com/user/campaignd/internal/poll"
	"github.com/user/campaignd/internal/session"
	"github.com/user/campaignd/internal/stage"
	"github.com/user/campaignd/internal/types"
)

// Services bundles the external collaborators the orchestrator depends
// on. They are typically all implemented by one provider.Client.
type Services struct {
	Starter   types.CampaignStartService
	Submitter types.ApprovalSubmissionService
	Analytics types.AnalyticsTriggerService
}

// Orchestrator coordinates one campaign run at a time. All mutations are
// serialized through its lock; the polling monitor's notifications and
// user actions never write concurrently.
type Orchestrator struct {
	services  Services
	monitor   *poll.Monitor
	snapshots *session.SnapshotStore
	gate      *gate.Gate
	policy    approval.Policy

	proceedGuard *semaphore.Weighted

	mu       sync.Mutex
	store    *session.Store
	machine  *approval.Machine
	current  stage.Result
	degraded bool
}

// New creates an Orchestrator with no active campaign. The monitor's
// notifications are subscribed here, before any polling starts.
func New(services Services, monitor *poll.Monitor, snapshots *session.SnapshotStore, g *gate.Gate, policy approval.Policy) *Orchestrator {
	o := &Orchestrator{
		services:     services,
		monitor:      monitor,
		snapshots:    snapshots,
		gate:         g,
		policy:       policy,
		proceedGuard: semaphore.NewWeighted(1),
	}
	monitor.Subscribe(o.handleNotification)
	monitor.OnDegraded(o.handleDegraded)
	return o
}

// StartCampaign asks the runtime to begin a campaign, allocates a fresh
// session around the returned id, clears all derived and approval state,
// and starts polling. Any previous campaign is discarded.
func (o *Orchestrator) StartCampaign(ctx context.Context, config types.CampaignConfig) (types.SessionID, error) {
	if strings.TrimSpace(config.Product) == "" {
		return "", &types.ValidationError{Field: "product", Reason: "product description is required"}
	}
	if config.Budget <= 0 {
		return "", &types.ValidationError{Field: "budget", Reason: "budget must be positive"}
	}
	if config.ProductCost <= 0 {
		return "", &types.ValidationError{Field: "product_cost", Reason: "product cost must be positive"}
	}

	id, err := o.services.Starter.Start(ctx, config)
	if err != nil {
		return "", &types.SubmissionError{Action: "start campaign", Err: err}
	}

	o.mu.Lock()
	o.store = session.NewStore(id, config)
	o.machine = approval.New(id, o.services.Submitter, o.policy)
	o.current = stage.Result{Stage: stage.Executing, Progress: 10}
	o.degraded = false
	store := o.store
	o.mu.Unlock()

	if err := o.monitor.Start(store); err != nil {
		return "", fmt.Errorf("start polling: %w", err)
	}

	o.persist()
	slog.Info("campaign started", "session_id", string(id), "product", config.Product)
	return id, nil
}

// Resume restores a persisted campaign and starts polling it again.
func (o *Orchestrator) Resume(id types.SessionID) error {
	snap, err := o.snapshots.Load(id)
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.store = session.Restore(&snap.Session)
	o.machine = approval.New(id, o.services.Submitter, o.policy)
	o.machine.Load(snap.Items, snap.Approvals)
	// The persisted stage clamps the evaluation: a proceed confirmed just
	// before shutdown must resume at analyzing even though the analytics
	// result has not arrived yet.
	prev := stage.Result{Stage: stage.FromName(snap.Stage), Progress: snap.Progress}
	o.current = stage.Evaluate(snap.Session, prev)
	o.degraded = false
	store := o.store
	o.mu.Unlock()

	if err := o.monitor.Start(store); err != nil {
		return fmt.Errorf("start polling: %w", err)
	}

	slog.Info("campaign resumed", "session_id", string(id), "stage", o.Status().Stage)
	return nil
}

// Reset stops polling and clears the session, approval state and
// revision history. Only an explicit new-campaign action reaches here.
func (o *Orchestrator) Reset() {
	o.monitor.Stop()

	o.mu.Lock()
	if o.machine != nil {
		o.machine.Reset()
	}
	o.store = nil
	o.machine = nil
	o.current = stage.Result{}
	o.degraded = false
	o.mu.Unlock()

	slog.Info("campaign state reset")
}

// handleNotification reacts to one genuinely changed agent result: it
// registers any newly generated content items and re-derives the stage.
func (o *Orchestrator) handleNotification(n poll.Notification) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.store == nil || o.store.SessionID() != n.SessionID {
		// Superseded session; the monitor's generation check catches most
		// of these, this is the last line of defense.
		return
	}

	if n.Result.Agent == payload.AgentContent && n.Result.Status == types.ResultCompleted {
		content, err := payload.ParseContent(n.Result.Payload)
		if err != nil {
			slog.Error("malformed content payload", "session_id", string(n.SessionID), "error", err)
		} else {
			o.machine.Observe(contentItems(content))
		}
	}

	prev := o.current
	o.current = stage.Evaluate(o.store.Snapshot(), prev)
	if o.current.Stage != prev.Stage || o.current.Progress != prev.Progress {
		slog.Info("workflow advanced",
			"session_id", string(n.SessionID),
			"stage", o.current.Stage.String(),
			"progress", o.current.Progress,
		)
		o.persistLocked()
	}
}

func (o *Orchestrator) handleDegraded(degraded bool) {
	o.mu.Lock()
	o.degraded = degraded
	o.mu.Unlock()
}

// Approve marks one item approved.
func (o *Orchestrator) Approve(ctx context.Context, id types.ItemID) error {
	machine, err := o.activeMachine()
	if err != nil {
		return err
	}
	if err := machine.Approve(ctx, id); err != nil {
		return err
	}
	o.persist()
	return nil
}

// RequestRevision asks for one item to be reworked.
func (o *Orchestrator) RequestRevision(ctx context.Context, id types.ItemID, feedback string) error {
	machine, err := o.activeMachine()
	if err != nil {
		return err
	}
	if err := machine.RequestRevision(ctx, id, feedback); err != nil {
		return err
	}
	o.persist()
	return nil
}

// BulkApprove approves each item independently and reports per-item
// outcomes.
func (o *Orchestrator) BulkApprove(ctx context.Context, ids []types.ItemID) (types.BulkReport, error) {
	machine, err := o.activeMachine()
	if err != nil {
		return types.BulkReport{}, err
	}
	report, err := machine.BulkApprove(ctx, ids)
	if err != nil {
		return report, err
	}
	o.persist()
	return report, nil
}

// BulkRevise requests revision for each item independently with shared
// feedback.
func (o *Orchestrator) BulkRevise(ctx context.Context, ids []types.ItemID, feedback string) (types.BulkReport, error) {
	machine, err := o.activeMachine()
	if err != nil {
		return types.BulkReport{}, err
	}
	report, err := machine.BulkRevise(ctx, ids, feedback)
	if err != nil {
		return report, err
	}
	o.persist()
	return report, nil
}

// CompleteRevision is the external revision collaborator's completion
// callback. It never arrives via polling.
func (o *Orchestrator) CompleteRevision(id types.ItemID, revised string) error {
	machine, err := o.activeMachine()
	if err != nil {
		return err
	}
	if err := machine.CompleteRevision(id, revised); err != nil {
		return err
	}
	o.persist()
	return nil
}

// MarkRevising records the runtime's acknowledgement that it picked up
// a revision request. Duplicate or stale acknowledgements are ignored
// by the state machine.
func (o *Orchestrator) MarkRevising(id types.ItemID) error {
	machine, err := o.activeMachine()
	if err != nil {
		return err
	}
	machine.MarkRevising(id)
	o.persist()
	return nil
}

// Proceed is the sole path from approving to analyzing. It is guarded so
// rapid duplicate calls issue exactly one analytics trigger, and the
// stage advances only after the trigger is confirmed.
func (o *Orchestrator) Proceed(ctx context.Context) error {
	if !o.proceedGuard.TryAcquire(1) {
		return &types.ValidationError{Field: "proceed", Reason: "proceed already in flight"}
	}
	defer o.proceedGuard.Release(1)

	o.mu.Lock()
	if o.store == nil || o.machine == nil {
		o.mu.Unlock()
		return types.ErrSessionNotFound
	}
	if o.current.Stage != stage.Approving {
		reason := fmt.Sprintf("cannot proceed from stage %s", o.current.Stage)
		o.mu.Unlock()
		return &types.ValidationError{Field: "stage", Reason: reason}
	}
	sessionID := o.store.SessionID()
	machine := o.machine
	o.mu.Unlock()

	if !machine.CanProceed() {
		return &types.ValidationError{Field: "items", Reason: "all content items must be approved first"}
	}

	if err := o.services.Analytics.ProceedToAnalytics(ctx, sessionID); err != nil {
		return &types.SubmissionError{Action: "proceed to analytics", Err: err}
	}

	o.mu.Lock()
	if o.current.Stage < stage.Analyzing {
		o.current.Stage = stage.Analyzing
		o.current.Completed = nil
		for s := stage.Setup; s < o.current.Stage; s++ {
			o.current.Completed = append(o.current.Completed, s)
		}
	}
	o.persistLocked()
	o.mu.Unlock()

	slog.Info("proceeding to analytics", "session_id", string(sessionID))
	return nil
}

func (o *Orchestrator) activeMachine() (*approval.Machine, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.machine == nil {
		return nil, types.ErrSessionNotFound
	}
	return o.machine, nil
}

// persist saves the current session and approval state. Persistence
// failures are logged, never fatal; the in-memory state stays
// authoritative.
func (o *Orchestrator) persist() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.persistLocked()
}

func (o *Orchestrator) persistLocked() {
	if o.store == nil || o.snapshots == nil {
		return
	}
	snap := &session.Snapshot{
		Session:  o.store.Snapshot(),
		Stage:    o.current.Stage.String(),
		Progress: o.current.Progress,
	}
	if o.machine != nil {
		snap.Items, snap.Approvals = o.machine.Export()
	}
	if err := o.snapshots.Save(snap); err != nil {
		slog.Warn("snapshot save failed", "session_id", string(snap.Session.ID), "error", err)
	}
}

// contentItems converts a content payload into review items keyed by
// asset id.
func contentItems(content *payload.ContentGeneration) []types.ContentItem {
	items := make([]types.ContentItem, 0, len(content.Ads))
	for _, ad := range content.Ads {
		if ad.AssetID == "" {
			continue
		}
		items = append(items, types.ContentItem{
			ID:       types.ItemID(ad.AssetID),
			Audience: ad.Audience,
			Platform: ad.Platform,
			AdType:   ad.AdType,
			Content:  ad.Content,
		})
	}
	return items
}
