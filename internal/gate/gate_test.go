package gate

import (
	"testing"

	"github.com/user/campaignd/internal/stage"
)

func TestStrictModeSetup(t *testing.T) {
	g := New(ModeStrict)
	set := g.ReachableSet(stage.Setup)
	if len(set) != 1 || set[0] != TabSetup {
		t.Errorf("reachable at setup = %v, want [setup]", set)
	}
}

func TestStrictModeProgression(t *testing.T) {
	g := New(ModeStrict)

	tests := []struct {
		stage stage.Stage
		count int
	}{
		{stage.Setup, 1},
		{stage.Executing, 2},
		{stage.Reviewing, 3},
		{stage.Approving, 4},
		{stage.Analyzing, 5},
		{stage.Optimizing, 6},
	}
	for _, tt := range tests {
		set := g.ReachableSet(tt.stage)
		if len(set) != tt.count {
			t.Errorf("stage %s: reachable = %v, want %d tabs", tt.stage, set, tt.count)
		}
	}
}

func TestStrictModeNeverLocksEarlierTabs(t *testing.T) {
	g := New(ModeStrict)
	for _, tab := range AllTabs {
		if !g.Reachable(stage.Optimizing, tab) {
			t.Errorf("tab %s unreachable at optimizing", tab)
		}
	}
}

func TestStrictModeBlocksAhead(t *testing.T) {
	g := New(ModeStrict)
	if g.Reachable(stage.Reviewing, TabApproval) {
		t.Error("approval tab reachable before approving stage")
	}
	if g.Reachable(stage.Approving, TabAnalytics) {
		t.Error("analytics tab reachable before analyzing stage")
	}
}

func TestGuidedModeAllowsEverything(t *testing.T) {
	g := New(ModeGuided)
	for _, tab := range AllTabs {
		if !g.Reachable(stage.Setup, tab) {
			t.Errorf("guided mode blocked tab %s", tab)
		}
	}
	if len(g.ReachableSet(stage.Setup)) != len(AllTabs) {
		t.Error("guided mode must report every tab reachable")
	}
}

func TestUnknownModeFallsBackToStrict(t *testing.T) {
	g := New(Mode("relaxed"))
	if g.Mode() != ModeStrict {
		t.Errorf("mode = %s, want strict", g.Mode())
	}
	if g.Reachable(stage.Setup, TabApproval) {
		t.Error("unknown mode must behave strictly")
	}
}

func TestUnknownTabUnreachable(t *testing.T) {
	g := New(ModeStrict)
	if g.Reachable(stage.Optimizing, Tab("reports")) {
		t.Error("unregistered tab must be unreachable in strict mode")
	}
}
