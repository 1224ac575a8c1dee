package session

import (
	"testing"
	"time"

	"github.com/user/campaignd/internal/types"
)

func testConfig() types.CampaignConfig {
	return types.CampaignConfig{Product: "solar lantern", ProductCost: 12.5, Budget: 5000}
}

func TestApplyNewResult(t *testing.T) {
	store := NewStore("session-abc12345", testConfig())

	r := types.AgentResult{Agent: "audience", Status: types.ResultCompleted, Timestamp: time.Now()}
	if !store.Apply(r) {
		t.Fatal("expected first apply to report a change")
	}

	got, ok := store.Get("audience")
	if !ok {
		t.Fatal("result not cached")
	}
	if got.Status != types.ResultCompleted {
		t.Errorf("status = %s", got.Status)
	}
}

func TestApplyDuplicateTimestamp(t *testing.T) {
	store := NewStore("session-abc12345", testConfig())
	ts := time.Now()

	first := types.AgentResult{Agent: "audience", Status: types.ResultCompleted, Timestamp: ts}
	store.Apply(first)
	if store.Apply(first) {
		t.Error("duplicate timestamp must not report a change")
	}
}

func TestApplyStaleResult(t *testing.T) {
	store := NewStore("session-abc12345", testConfig())
	now := time.Now()

	store.Apply(types.AgentResult{Agent: "budget", Status: types.ResultCompleted, Timestamp: now})
	stale := types.AgentResult{Agent: "budget", Status: types.ResultPending, Timestamp: now.Add(-time.Minute)}
	if store.Apply(stale) {
		t.Error("stale result must not report a change")
	}

	got, _ := store.Get("budget")
	if got.Status != types.ResultCompleted {
		t.Errorf("stale result overwrote cache: %s", got.Status)
	}
}

func TestApplyNewerResultWins(t *testing.T) {
	store := NewStore("session-abc12345", testConfig())
	now := time.Now()

	store.Apply(types.AgentResult{Agent: "content", Status: types.ResultPending, Timestamp: now})
	newer := types.AgentResult{Agent: "content", Status: types.ResultCompleted, Timestamp: now.Add(time.Second)}
	if !store.Apply(newer) {
		t.Fatal("newer result must report a change")
	}
	got, _ := store.Get("content")
	if got.Status != types.ResultCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	store := NewStore("session-abc12345", testConfig())
	store.Apply(types.AgentResult{Agent: "audience", Status: types.ResultCompleted, Timestamp: time.Now()})

	snap := store.Snapshot()
	snap.Results["injected"] = types.AgentResult{Agent: "injected"}

	if _, ok := store.Get("injected"); ok {
		t.Error("mutating a snapshot leaked into the store")
	}
}

func TestRestore(t *testing.T) {
	sess := types.NewSession("session-restored", testConfig())
	sess.Results["audience"] = types.AgentResult{Agent: "audience", Status: types.ResultCompleted, Timestamp: time.Now()}

	store := Restore(sess)
	if store.SessionID() != "session-restored" {
		t.Errorf("session id = %s", store.SessionID())
	}
	if _, ok := store.Get("audience"); !ok {
		t.Error("restored result missing")
	}
}
