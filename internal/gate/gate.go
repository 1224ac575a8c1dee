// Package gate maps the workflow stage to the set of reachable UI
// destinations. It is a pure derivation; it never consults or mutates
// session state.
package gate

import (
	"github.com/user/campaignd/internal/stage"
)

// Tab is a navigable dashboard destination.
type Tab string

const (
	TabSetup        Tab = "setup"
	TabProgress     Tab = "progress"
	TabContent      Tab = "content"
	TabApproval     Tab = "approval"
	TabAnalytics    Tab = "analytics"
	TabOptimization Tab = "optimization"
)

// AllTabs lists every destination in display order.
var AllTabs = []Tab{
	TabSetup,
	TabProgress,
	TabContent,
	TabApproval,
	TabAnalytics,
	TabOptimization,
}

// Mode selects how unreached destinations are handled.
type Mode string

const (
	// ModeStrict hard-disables destinations the workflow has not reached.
	ModeStrict Mode = "strict"
	// ModeGuided leaves every destination reachable and only changes the
	// guidance text.
	ModeGuided Mode = "guided"
)

// unlockedAt is the minimum stage at which each tab becomes reachable.
var unlockedAt = map[Tab]stage.Stage{
	TabSetup:        stage.Setup,
	TabProgress:     stage.Executing,
	TabContent:      stage.Reviewing,
	TabApproval:     stage.Approving,
	TabAnalytics:    stage.Analyzing,
	TabOptimization: stage.Optimizing,
}

// Gate reports destination reachability for a given mode.
type Gate struct {
	mode Mode
}

// New creates a Gate. An unrecognized mode falls back to strict.
func New(mode Mode) *Gate {
	if mode != ModeGuided {
		mode = ModeStrict
	}
	return &Gate{mode: mode}
}

// Mode returns the configured mode.
func (g *Gate) Mode() Mode { return g.mode }

// Reachable reports whether tab may be navigated to at the given stage.
// In guided mode every tab is reachable.
func (g *Gate) Reachable(s stage.Stage, tab Tab) bool {
	if g.mode == ModeGuided {
		return true
	}
	min, ok := unlockedAt[tab]
	if !ok {
		return false
	}
	return s >= min
}

// ReachableSet returns all tabs reachable at the given stage, in display
// order.
func (g *Gate) ReachableSet(s stage.Stage) []Tab {
	tabs := make([]Tab, 0, len(AllTabs))
	for _, tab := range AllTabs {
		if g.Reachable(s, tab) {
			tabs = append(tabs, tab)
		}
	}
	return tabs
}
