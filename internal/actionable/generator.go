package actionable

import (
	"fmt"
	"strings"

	"github.com/bbarnes4318/hoppy/internal/aggregator"
	"github.com/bbarnes4318/hoppy/internal/types"
)

type ActionCard struct {
	Insight string `json:"insight"`
	Action  string `json:"action"`
	Impact  string `json:"impact"`
}

// threshold is the failure share above which a status is called out.
const threshold = 0.35

var remedies = map[types.Status]ActionCard{
	types.StatusDownloadFailed: {
		Action: "Check that recording links are public and direct; refresh expired share links",
		Impact: "Recover calls dropped before transcription",
	},
	types.StatusConversionFailed: {
		Action: "Verify the ffmpeg install and the source encodings",
		Impact: "Unblock long recordings",
	},
	types.StatusTranscriptionFailed: {
		Action: "Check speech endpoint health or switch to the fast tier",
		Impact: "Restore transcripts for downloaded calls",
	},
	types.StatusAnalysisFailed: {
		Action: "Check the analysis API key and quota",
		Impact: "Restore billable and application flags",
	},
	types.StatusSaveFailed: {
		Action: "Check free disk space and output directory permissions",
		Impact: "Keep finished work from being lost",
	},
	types.StatusCriticalError: {
		Action: "Inspect the logs for panic stacks",
		Impact: "Remove unexpected crashes",
	},
}

// Generate picks the dominant failure status of a run and suggests a fix.
func Generate(t aggregator.Tally) ActionCard {
	worst := types.Status("")
	highest := 0.0
	if t.Total > 0 {
		for _, s := range types.Statuses() {
			if s == types.StatusSuccess {
				continue
			}
			if share := float64(t.ByStatus[s]) / float64(t.Total); share > highest {
				highest = share
				worst = s
			}
		}
	}
	if highest >= threshold && worst != "" {
		card := remedies[worst]
		card.Insight = fmt.Sprintf("High %s rate (%.0f%%)", strings.ToLower(string(worst)), highest*100)
		return card
	}
	return ActionCard{
		Insight: "No dominant failure pattern",
		Action:  "Monitor the next runs",
		Impact:  "Low immediate intervention",
	}
}
