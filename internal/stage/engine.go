// Package stage derives the campaign workflow stage and canonical
// progress percentage from the accumulated agent results. Derivation is a
// pure function of (snapshot, previous result) and never regresses, even
// when a stale read re-evaluates an earlier predicate false.
package stage

import (
	"github.com/user/campaignd/internal/payload"
	"github.com/user/campaignd/internal/types"
)

// Stage is a discrete milestone in the campaign lifecycle. The numeric
// order is the lifecycle order.
type Stage int

const (
	Setup Stage = iota
	Executing
	Reviewing
	Approving
	Analyzing
	Optimizing
)

var stageNames = map[Stage]string{
	Setup:      "setup",
	Executing:  "executing",
	Reviewing:  "reviewing",
	Approving:  "approving",
	Analyzing:  "analyzing",
	Optimizing: "optimizing",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "unknown"
}

// FromName maps a stage name back to its Stage. Unknown names map to
// Setup, the floor every evaluation clamps against.
func FromName(name string) Stage {
	for s, n := range stageNames {
		if n == name {
			return s
		}
	}
	return Setup
}

// Result is the derived workflow position.
type Result struct {
	Stage     Stage
	Progress  int
	Completed []Stage
}

// milestone maps one completed agent to the stage and minimum progress it
// unlocks. Milestones are evaluated in pipeline order and the furthest
// reached one wins.
type milestone struct {
	agent    string
	stage    Stage
	progress int
}

var milestones = []milestone{
	{payload.AgentAudience, Reviewing, 25},
	{payload.AgentBudget, Reviewing, 40},
	{payload.AgentPrompts, Reviewing, 55},
	{payload.AgentContent, Approving, 75},
	{payload.AgentAnalytics, Analyzing, 90},
	{payload.AgentOptimization, Optimizing, 100},
}

// Evaluate derives the stage and progress for the given session snapshot,
// clamped so it never falls below prev. Identical input yields identical
// output.
func Evaluate(snap types.Session, prev Result) Result {
	derived := Result{Stage: Setup, Progress: 0}

	for _, m := range milestones {
		r, ok := snap.Results[m.agent]
		if !ok || r.Status != types.ResultCompleted {
			continue
		}
		if m.stage > derived.Stage {
			derived.Stage = m.stage
		}
		if m.progress > derived.Progress {
			derived.Progress = m.progress
		}
	}

	// A running campaign with no completed milestone is still executing.
	if derived.Stage == Setup && len(snap.Results) > 0 {
		derived.Stage = Executing
		derived.Progress = 10
	}

	// Never regress on a stale read.
	if prev.Stage > derived.Stage {
		derived.Stage = prev.Stage
	}
	if prev.Progress > derived.Progress {
		derived.Progress = prev.Progress
	}

	for s := Setup; s < derived.Stage; s++ {
		derived.Completed = append(derived.Completed, s)
	}
	return derived
}
