// Package extractor turns transcripts into structured call facts via a
// hosted text-analysis service.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bbarnes4318/hoppy/internal/logger"
	"github.com/bbarnes4318/hoppy/internal/types"
)

// ErrAnalysis marks a failed analysis call. The accompanying record holds
// sentinel values.
var ErrAnalysis = errors.New("analysis failed")

type Analyzer struct {
	chat     ChatClient
	maxChars int
	timeout  time.Duration
	now      func() time.Time
	log      *logger.Logger
}

func NewAnalyzer(chat ChatClient, maxChars int, timeout time.Duration, log *logger.Logger) *Analyzer {
	if log == nil {
		log = logger.Discard()
	}
	return &Analyzer{
		chat:     chat,
		maxChars: maxChars,
		timeout:  timeout,
		now:      time.Now,
		log:      log.Component("extractor"),
	}
}

// Analyze extracts the rubric fields from text. A reply that cannot be
// parsed yields sentinel values and no error; a failed call yields sentinel
// values and an error wrapping ErrAnalysis.
func (a *Analyzer) Analyze(ctx context.Context, text string) (types.AnalysisRecord, error) {
	if strings.TrimSpace(text) == "" {
		rec := Sentinel()
		rec.Detail = "empty transcript"
		return rec, nil
	}

	prompt, truncated := BuildPrompt(text, a.maxChars, a.now())
	if truncated {
		a.log.WithField("max_chars", a.maxChars).Info("transcript truncated for analysis")
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := a.chat.Complete(ctx, SystemPrompt, prompt)
	if err != nil {
		rec := Sentinel()
		rec.Truncated = truncated
		rec.Detail = err.Error()
		if errors.Is(err, ErrMalformedReply) {
			a.log.WithError(err).Warn("unusable analysis reply")
			return rec, nil
		}
		return rec, fmt.Errorf("%w: %v", ErrAnalysis, err)
	}

	rec := Parse(reply)
	rec.Truncated = truncated
	rec.Raw = reply
	a.log.WithField("duration_ms", time.Since(start).Milliseconds()).
		WithField("billable", rec.Billable).
		WithField("application_submitted", rec.SaleOrApplication).
		Info("analysis parsed")
	return rec, nil
}
