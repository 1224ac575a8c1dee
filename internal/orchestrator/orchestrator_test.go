package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/user/campaignd/internal/approval"
	"github.com/user/campaignd/internal/gate"
	"github.com/user/campaignd/internal/payload"
	"github.com/user/campaignd/internal/poll"
	"github.com/user/campaignd/internal/session"
	"github.com/user/campaignd/internal/types"
)

type fakeServices struct {
	mu           sync.Mutex
	startErr     error
	proceedErr   error
	proceedCalls int
	proceedBlock chan struct{}
	submitCalls  int
}

func (f *fakeServices) Start(ctx context.Context, config types.CampaignConfig) (types.SessionID, error) {
	if f.startErr != nil {
		return "", f.startErr
	}
	return "session-test0001", nil
}

func (f *fakeServices) Submit(ctx context.Context, sessionID types.SessionID, itemID types.ItemID, action types.FeedbackAction, feedback string) error {
	f.mu.Lock()
	f.submitCalls++
	f.mu.Unlock()
	return nil
}

func (f *fakeServices) ProceedToAnalytics(ctx context.Context, sessionID types.SessionID) error {
	f.mu.Lock()
	f.proceedCalls++
	block := f.proceedBlock
	err := f.proceedErr
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return err
}

func (f *fakeServices) Get(ctx context.Context, sessionID types.SessionID, agent string) (*types.AgentResult, error) {
	return nil, types.ErrResultNotFound
}

func newTestOrchestrator(t *testing.T, svc *fakeServices) *Orchestrator {
	t.Helper()
	monitor := poll.NewMonitor(svc, time.Hour, time.Second)
	snapshots := session.NewSnapshotStore(t.TempDir())
	o := New(Services{Starter: svc, Submitter: svc, Analytics: svc},
		monitor, snapshots, gate.New(gate.ModeStrict), approval.Policy{})
	t.Cleanup(monitor.Stop)
	return o
}

// deliver mirrors the monitor's notification path: validate the
// payload, apply to the store, then notify.
func deliver(o *Orchestrator, result types.AgentResult) {
	if result.Status == types.ResultCompleted {
		if _, err := payload.Parse(result.Agent, result.Payload); err != nil {
			return
		}
	}
	o.mu.Lock()
	store := o.store
	o.mu.Unlock()
	store.Apply(result)
	o.handleNotification(poll.Notification{SessionID: store.SessionID(), Result: result})
}

func completedResult(agent string, raw string) types.AgentResult {
	return types.AgentResult{
		Agent:     agent,
		Status:    types.ResultCompleted,
		Timestamp: time.Now(),
		Payload:   json.RawMessage(raw),
	}
}

const contentPayload = `{"ads": [
	{"asset_id": "ad-1", "audience": "makers", "platform": "instagram", "ad_type": "image", "content": "copy one"},
	{"asset_id": "ad-2", "audience": "makers", "platform": "facebook", "ad_type": "video", "content": "copy two"}
]}`

func startTestCampaign(t *testing.T, o *Orchestrator) types.SessionID {
	t.Helper()
	id, err := o.StartCampaign(context.Background(),
		types.CampaignConfig{Product: "solar lantern", ProductCost: 12.5, Budget: 5000})
	if err != nil {
		t.Fatalf("StartCampaign: %v", err)
	}
	return id
}

func TestStartCampaignValidation(t *testing.T) {
	o := newTestOrchestrator(t, &fakeServices{})
	ctx := context.Background()

	tests := []types.CampaignConfig{
		{Product: "", ProductCost: 1, Budget: 100},
		{Product: "p", ProductCost: 1, Budget: 0},
		{Product: "p", ProductCost: 0, Budget: 100},
		{Product: "   ", ProductCost: 1, Budget: 100},
	}
	for _, cfg := range tests {
		if _, err := o.StartCampaign(ctx, cfg); !types.IsValidation(err) {
			t.Errorf("config %+v: expected validation error, got %v", cfg, err)
		}
	}
}

func TestStartCampaignRuntimeFailure(t *testing.T) {
	svc := &fakeServices{startErr: errors.New("runtime down")}
	o := newTestOrchestrator(t, svc)

	_, err := o.StartCampaign(context.Background(),
		types.CampaignConfig{Product: "p", ProductCost: 1, Budget: 100})
	var serr *types.SubmissionError
	if !errors.As(err, &serr) {
		t.Fatalf("expected submission error, got %v", err)
	}
	if o.Status().Active {
		t.Error("failed start left an active campaign")
	}
}

func TestStartCampaignInitialStatus(t *testing.T) {
	o := newTestOrchestrator(t, &fakeServices{})
	id := startTestCampaign(t, o)

	st := o.Status()
	if !st.Active || st.SessionID != id {
		t.Errorf("status = %+v", st)
	}
	if st.Stage != "executing" || st.Progress != 10 {
		t.Errorf("stage = %s/%d, want executing/10", st.Stage, st.Progress)
	}
	if st.CanProceed {
		t.Error("canProceed true with no items")
	}
}

func TestNotificationAdvancesStage(t *testing.T) {
	o := newTestOrchestrator(t, &fakeServices{})
	startTestCampaign(t, o)

	deliver(o, completedResult(payload.AgentAudience, `{"audiences": []}`))
	if st := o.Status(); st.Stage != "reviewing" || st.Progress != 25 {
		t.Errorf("stage = %s/%d, want reviewing/25", st.Stage, st.Progress)
	}

	deliver(o, completedResult(payload.AgentContent, contentPayload))
	st := o.Status()
	if st.Stage != "approving" || st.Progress != 75 {
		t.Errorf("stage = %s/%d, want approving/75", st.Stage, st.Progress)
	}

	items := o.Items()
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	approvals := o.Approvals()
	for _, a := range approvals {
		if a.State != types.ApprovalPending {
			t.Errorf("item %s state = %s", a.ItemID, a.State)
		}
	}
}

func TestMalformedPayloadDoesNotAdvance(t *testing.T) {
	o := newTestOrchestrator(t, &fakeServices{})
	startTestCampaign(t, o)

	deliver(o, completedResult(payload.AgentContent, `{"ads": "broken"}`))

	// A rejected payload leaves both the stage and the item set alone.
	if st := o.Status(); st.Stage != "executing" || st.Progress != 10 {
		t.Errorf("stage = %s/%d, want executing/10", st.Stage, st.Progress)
	}
	if len(o.Items()) != 0 {
		t.Errorf("malformed payload produced items: %v", o.Items())
	}

	deliver(o, completedResult(payload.AgentAudience, `{"audiences": "broken"}`))
	if st := o.Status(); st.Stage != "executing" {
		t.Errorf("stage = %s after malformed audience payload, want executing", st.Stage)
	}
}

func TestProceedTriggersAnalyticsExactlyOnce(t *testing.T) {
	svc := &fakeServices{}
	o := newTestOrchestrator(t, svc)
	startTestCampaign(t, o)
	ctx := context.Background()

	deliver(o, completedResult(payload.AgentContent, contentPayload))
	if err := o.Approve(ctx, "ad-1"); err != nil {
		t.Fatal(err)
	}
	if err := o.Approve(ctx, "ad-2"); err != nil {
		t.Fatal(err)
	}
	if !o.Status().CanProceed {
		t.Fatal("canProceed false with all items approved")
	}

	if err := o.Proceed(ctx); err != nil {
		t.Fatalf("Proceed: %v", err)
	}
	if st := o.Status(); st.Stage != "analyzing" {
		t.Errorf("stage = %s, want analyzing", st.Stage)
	}

	// A duplicate proceed after the stage advanced is invalid and issues
	// no second trigger.
	if err := o.Proceed(ctx); !types.IsValidation(err) {
		t.Errorf("duplicate proceed: %v", err)
	}
	if svc.proceedCalls != 1 {
		t.Errorf("analytics triggered %d times, want 1", svc.proceedCalls)
	}
}

func TestConcurrentProceedIssuesOneTrigger(t *testing.T) {
	svc := &fakeServices{proceedBlock: make(chan struct{})}
	o := newTestOrchestrator(t, svc)
	startTestCampaign(t, o)
	ctx := context.Background()

	deliver(o, completedResult(payload.AgentContent, contentPayload))
	if err := o.Approve(ctx, "ad-1"); err != nil {
		t.Fatal(err)
	}
	if err := o.Approve(ctx, "ad-2"); err != nil {
		t.Fatal(err)
	}

	firstDone := make(chan error, 1)
	go func() { firstDone <- o.Proceed(ctx) }()

	// Wait until the first proceed is inside the analytics call.
	for {
		svc.mu.Lock()
		started := svc.proceedCalls > 0
		svc.mu.Unlock()
		if started {
			break
		}
		time.Sleep(time.Millisecond)
	}

	// The overlapping call is rejected by the guard.
	if err := o.Proceed(ctx); !types.IsValidation(err) {
		t.Errorf("overlapping proceed: %v", err)
	}

	close(svc.proceedBlock)
	if err := <-firstDone; err != nil {
		t.Fatalf("first proceed: %v", err)
	}
	if svc.proceedCalls != 1 {
		t.Errorf("analytics triggered %d times, want 1", svc.proceedCalls)
	}
}

func TestProceedRequiresApprovals(t *testing.T) {
	svc := &fakeServices{}
	o := newTestOrchestrator(t, svc)
	startTestCampaign(t, o)
	ctx := context.Background()

	deliver(o, completedResult(payload.AgentContent, contentPayload))
	if err := o.Approve(ctx, "ad-1"); err != nil {
		t.Fatal(err)
	}

	if err := o.Proceed(ctx); !types.IsValidation(err) {
		t.Errorf("proceed with pending item: %v", err)
	}
	if svc.proceedCalls != 0 {
		t.Errorf("analytics triggered with pending approvals")
	}
}

func TestProceedFailureKeepsStage(t *testing.T) {
	svc := &fakeServices{proceedErr: errors.New("runtime down")}
	o := newTestOrchestrator(t, svc)
	startTestCampaign(t, o)
	ctx := context.Background()

	deliver(o, completedResult(payload.AgentContent, contentPayload))
	o.Approve(ctx, "ad-1")
	o.Approve(ctx, "ad-2")

	err := o.Proceed(ctx)
	var serr *types.SubmissionError
	if !errors.As(err, &serr) {
		t.Fatalf("expected submission error, got %v", err)
	}
	if st := o.Status(); st.Stage != "approving" {
		t.Errorf("stage advanced despite failed trigger: %s", st.Stage)
	}

	// The trigger is retryable once the runtime recovers.
	svc.mu.Lock()
	svc.proceedErr = nil
	svc.mu.Unlock()
	if err := o.Proceed(ctx); err != nil {
		t.Errorf("retry proceed: %v", err)
	}
}

func TestRevisionFlowThroughOrchestrator(t *testing.T) {
	o := newTestOrchestrator(t, &fakeServices{})
	startTestCampaign(t, o)
	ctx := context.Background()

	deliver(o, completedResult(payload.AgentContent, contentPayload))

	if err := o.RequestRevision(ctx, "ad-1", "add a call to action"); err != nil {
		t.Fatal(err)
	}
	if err := o.MarkRevising("ad-1"); err != nil {
		t.Fatal(err)
	}
	if err := o.CompleteRevision("ad-1", "copy one, now act"); err != nil {
		t.Fatal(err)
	}

	status, err := o.Approval("ad-1")
	if err != nil {
		t.Fatal(err)
	}
	if status.State != types.ApprovalRevisionReady {
		t.Errorf("state = %s", status.State)
	}
	if err := o.Approve(ctx, "ad-1"); err != nil {
		t.Errorf("approve revised item: %v", err)
	}
}

func TestSnapshotRoundTripViaResume(t *testing.T) {
	svc := &fakeServices{}
	monitor := poll.NewMonitor(svc, time.Hour, time.Second)
	snapshots := session.NewSnapshotStore(t.TempDir())
	o := New(Services{Starter: svc, Submitter: svc, Analytics: svc},
		monitor, snapshots, gate.New(gate.ModeStrict), approval.Policy{})

	id := startTestCampaign(t, o)
	ctx := context.Background()
	deliver(o, completedResult(payload.AgentAudience, `{"audiences": []}`))
	deliver(o, completedResult(payload.AgentContent, contentPayload))
	if err := o.Approve(ctx, "ad-1"); err != nil {
		t.Fatal(err)
	}
	before := o.Status()
	monitor.Stop()

	// A fresh process over the same data directory.
	monitor2 := poll.NewMonitor(svc, time.Hour, time.Second)
	o2 := New(Services{Starter: svc, Submitter: svc, Analytics: svc},
		monitor2, snapshots, gate.New(gate.ModeStrict), approval.Policy{})
	t.Cleanup(monitor2.Stop)

	if err := o2.Resume(id); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	after := o2.Status()

	if after.Stage != before.Stage || after.Progress != before.Progress {
		t.Errorf("stage after resume = %s/%d, want %s/%d", after.Stage, after.Progress, before.Stage, before.Progress)
	}
	if after.CanProceed != before.CanProceed {
		t.Errorf("canProceed after resume = %v, want %v", after.CanProceed, before.CanProceed)
	}

	status, err := o2.Approval("ad-1")
	if err != nil {
		t.Fatal(err)
	}
	if status.State != types.ApprovalApproved {
		t.Errorf("ad-1 state after resume = %s", status.State)
	}
}

func TestResumeAfterProceedKeepsAnalyzing(t *testing.T) {
	svc := &fakeServices{}
	monitor := poll.NewMonitor(svc, time.Hour, time.Second)
	snapshots := session.NewSnapshotStore(t.TempDir())
	o := New(Services{Starter: svc, Submitter: svc, Analytics: svc},
		monitor, snapshots, gate.New(gate.ModeStrict), approval.Policy{})

	id := startTestCampaign(t, o)
	ctx := context.Background()
	deliver(o, completedResult(payload.AgentContent, contentPayload))
	o.Approve(ctx, "ad-1")
	o.Approve(ctx, "ad-2")
	if err := o.Proceed(ctx); err != nil {
		t.Fatalf("Proceed: %v", err)
	}
	monitor.Stop()

	// Restart before the analytics result ever arrives. The cached
	// results alone would only derive approving.
	monitor2 := poll.NewMonitor(svc, time.Hour, time.Second)
	o2 := New(Services{Starter: svc, Submitter: svc, Analytics: svc},
		monitor2, snapshots, gate.New(gate.ModeStrict), approval.Policy{})
	t.Cleanup(monitor2.Stop)

	if err := o2.Resume(id); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if st := o2.Status(); st.Stage != "analyzing" {
		t.Errorf("stage after resume = %s/%d, want analyzing", st.Stage, st.Progress)
	}
}

func TestResumeUnknownSession(t *testing.T) {
	o := newTestOrchestrator(t, &fakeServices{})
	if err := o.Resume("session-missing1"); !errors.Is(err, types.ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestReset(t *testing.T) {
	o := newTestOrchestrator(t, &fakeServices{})
	startTestCampaign(t, o)
	deliver(o, completedResult(payload.AgentContent, contentPayload))

	o.Reset()

	st := o.Status()
	if st.Active {
		t.Error("active after reset")
	}
	if st.Stage != "setup" || st.Progress != 0 {
		t.Errorf("stage = %s/%d, want setup/0", st.Stage, st.Progress)
	}
	if len(o.Items()) != 0 {
		t.Error("items survived reset")
	}
	if err := o.Approve(context.Background(), "ad-1"); !errors.Is(err, types.ErrSessionNotFound) {
		t.Errorf("approve after reset: %v", err)
	}
}

func TestStaleNotificationIgnored(t *testing.T) {
	o := newTestOrchestrator(t, &fakeServices{})
	startTestCampaign(t, o)

	// A notification for a superseded session must not touch state.
	o.handleNotification(poll.Notification{
		SessionID: "session-old00001",
		Result:    completedResult(payload.AgentContent, contentPayload),
	})
	if len(o.Items()) != 0 {
		t.Error("stale notification registered items")
	}
	if st := o.Status(); st.Stage != "executing" {
		t.Errorf("stale notification moved stage to %s", st.Stage)
	}
}

func TestStatusReachableTabsFollowStage(t *testing.T) {
	o := newTestOrchestrator(t, &fakeServices{})

	if tabs := o.Status().Tabs; len(tabs) != 1 || tabs[0] != gate.TabSetup {
		t.Errorf("setup tabs = %v", tabs)
	}

	startTestCampaign(t, o)
	deliver(o, completedResult(payload.AgentContent, contentPayload))

	tabs := o.Status().Tabs
	want := []gate.Tab{gate.TabSetup, gate.TabProgress, gate.TabContent, gate.TabApproval}
	if len(tabs) != len(want) {
		t.Fatalf("tabs = %v, want %v", tabs, want)
	}
	for i := range want {
		if tabs[i] != want[i] {
			t.Errorf("tabs[%d] = %s, want %s", i, tabs[i], want[i])
		}
	}
}
