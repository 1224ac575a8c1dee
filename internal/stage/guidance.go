// internal/stage/guidance.go
package stage

import (
	"github.com/user/campaignd/internal/types"
)

// guidanceText holds the recommended tab and operator message per stage.
var guidanceText = map[Stage]struct {
	tab     string
	message string
}{
	Setup:      {"setup", "Configure the product and budget, then start the campaign."},
	Executing:  {"progress", "Agents are running. Results appear as they complete."},
	Reviewing:  {"content", "Review audience, budget and prompt results as they arrive."},
	Approving:  {"approval", "Approve each ad or request a revision to continue."},
	Analyzing:  {"analytics", "Performance analysis is available."},
	Optimizing: {"optimization", "Budget optimization recommendations are ready."},
}

// Guidance derives non-authoritative navigation advice from a workflow
// result. It is recomputed on every stage change and owns no state.
func Guidance(r Result) types.NavigationGuidance {
	g := guidanceText[r.Stage]
	return types.NavigationGuidance{
		RecommendedTab: g.tab,
		Message:        g.message,
		Percentage:     r.Progress,
	}
}
