package actionable

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bbarnes4318/hoppy/internal/aggregator"
	"github.com/bbarnes4318/hoppy/internal/types"
)

func tally(counts map[types.Status]int) aggregator.Tally {
	var outs []types.ProcessingOutcome
	for s, n := range counts {
		for i := 0; i < n; i++ {
			outs = append(outs, types.ProcessingOutcome{Status: s})
		}
	}
	return aggregator.Aggregate(outs)
}

func TestGenerateDominantFailure(t *testing.T) {
	card := Generate(tally(map[types.Status]int{
		types.StatusSuccess:        2,
		types.StatusDownloadFailed: 3,
		types.StatusSaveFailed:     1,
	}))
	assert.Equal(t, "High download failed rate (50%)", card.Insight)
	assert.Contains(t, card.Action, "share links")
}

func TestGenerateHealthyRun(t *testing.T) {
	card := Generate(tally(map[types.Status]int{
		types.StatusSuccess:        9,
		types.StatusAnalysisFailed: 1,
	}))
	assert.Equal(t, "No dominant failure pattern", card.Insight)
}

func TestGenerateEmptyRun(t *testing.T) {
	card := Generate(aggregator.Tally{})
	assert.Equal(t, "No dominant failure pattern", card.Insight)
}

func TestEveryFailureHasRemedy(t *testing.T) {
	for _, s := range types.Statuses() {
		if s == types.StatusSuccess {
			continue
		}
		assert.NotEmpty(t, remedies[s].Action, s)
	}
}
