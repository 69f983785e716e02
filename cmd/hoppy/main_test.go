package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbarnes4318/hoppy/internal/aggregator"
	"github.com/bbarnes4318/hoppy/internal/config"
	"github.com/bbarnes4318/hoppy/internal/extractor"
	"github.com/bbarnes4318/hoppy/internal/ledger"
	"github.com/bbarnes4318/hoppy/internal/logger"
	"github.com/bbarnes4318/hoppy/internal/types"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"run", "runs", "outcomes"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRunCommand_Flags(t *testing.T) {
	flag := runCmd.Flags().Lookup("skip-existing")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)

	limit := runCmd.Flags().Lookup("limit")
	require.NotNil(t, limit)
	assert.Equal(t, "0", limit.DefValue)
}

func TestChatClientSelection(t *testing.T) {
	a := config.AnalysisConfig{Provider: "openai", BaseURL: "http://localhost", APIKey: "k", Model: "m"}
	_, ok := chatClient(a, logger.Discard()).(*extractor.OpenAIChat)
	assert.True(t, ok)

	a.Provider = "anthropic"
	_, ok = chatClient(a, logger.Discard()).(*extractor.AnthropicChat)
	assert.True(t, ok)
}

func TestFormatTally(t *testing.T) {
	tally := aggregator.Aggregate([]types.ProcessingOutcome{
		{Status: types.StatusSuccess, Billable: true, SaleOrApplication: true},
		{Status: types.StatusDownloadFailed},
	})
	var buf bytes.Buffer
	formatTally(&buf, tally)

	out := buf.String()
	for _, s := range types.Statuses() {
		assert.Contains(t, out, string(s))
	}
	assert.Contains(t, out, "Processed")
	assert.Regexp(t, `Applications submitted\s+1`, out)
}

func TestFormatRuns(t *testing.T) {
	start := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Second)
	var buf bytes.Buffer
	formatRuns(&buf, []ledger.Run{
		{ID: "0f4e2b7c-1111-2222-3333-444444444444", Input: "urls.txt", Total: 3,
			Counts: map[types.Status]int{types.StatusSuccess: 2}, StartedAt: start, FinishedAt: &end},
		{ID: "short", Input: "calls.xlsx", StartedAt: start},
	})

	out := buf.String()
	assert.Contains(t, out, "0f4e2b7c")
	assert.NotContains(t, out, "0f4e2b7c-1111")
	assert.Contains(t, out, "1m30s")
	assert.Contains(t, out, "running")
}

func TestFormatOutcomes(t *testing.T) {
	var buf bytes.Buffer
	formatOutcomes(&buf, []types.ProcessingOutcome{
		{Item: types.SourceItem{Index: 0, Locator: "https://example.com/a.mp3"}, Status: types.StatusSuccess,
			Stage: types.StageSaved, Billable: true},
		{Item: types.SourceItem{Index: 1, Locator: "missing.wav"}, Status: types.StatusDownloadFailed,
			Stage: types.StageStarted, Detail: "invalid locator"},
	})

	out := buf.String()
	assert.Contains(t, out, "Download Failed")
	assert.Contains(t, out, "invalid locator")
	assert.Contains(t, out, "YES")
}

func TestShorten(t *testing.T) {
	assert.Equal(t, "abc", shorten("abc", 5))
	assert.Equal(t, "ab...", shorten("abcdefgh", 5))
}
