// Package pipeline runs a batch of locators through the processor one at a
// time and summarizes the run.
package pipeline

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/bbarnes4318/hoppy/internal/actionable"
	"github.com/bbarnes4318/hoppy/internal/aggregator"
	"github.com/bbarnes4318/hoppy/internal/logger"
	"github.com/bbarnes4318/hoppy/internal/types"
)

type ItemProcessor interface {
	Process(ctx context.Context, locator string, index int) types.ProcessingOutcome
}

// Recorder persists run bookkeeping. Failures are logged and never stop a run.
type Recorder interface {
	StartRun(ctx context.Context, runID, input string, total int, startedAt time.Time) error
	RecordOutcome(ctx context.Context, runID string, o types.ProcessingOutcome) error
	FinishRun(ctx context.Context, runID string, counts map[types.Status]int, finishedAt time.Time) error
}

type Options struct {
	// RunID labels the run; a random id is used when empty.
	RunID string
	// Input names the batch source for the ledger.
	Input string
	// SkipExisting drops locators for which Done reports true.
	SkipExisting bool
	Done         func(locator string) bool
	// Limit caps the number of processed items; zero means no cap.
	Limit int
}

type Report struct {
	RunID     string                    `json:"run_id"`
	Input     string                    `json:"input"`
	Started   time.Time                 `json:"started"`
	Finished  time.Time                 `json:"finished"`
	Outcomes  []types.ProcessingOutcome `json:"outcomes"`
	Tally     aggregator.Tally          `json:"tally"`
	Skipped   int                       `json:"skipped"`
	Cancelled bool                      `json:"cancelled"`
	Action    actionable.ActionCard     `json:"action"`
}

type Pipeline struct {
	proc     ItemProcessor
	recorder Recorder
	opts     Options
	log      *logger.Logger
	now      func() time.Time
	reclaim  func()
}

// New builds a pipeline. recorder may be nil.
func New(proc ItemProcessor, recorder Recorder, opts Options, log *logger.Logger) *Pipeline {
	if log == nil {
		log = logger.Discard()
	}
	if opts.RunID == "" {
		opts.RunID = uuid.New().String()
	}
	return &Pipeline{
		proc:     proc,
		recorder: recorder,
		opts:     opts,
		log:      &logger.Logger{Entry: log.Component("pipeline").WithField("run_id", opts.RunID)},
		now:      time.Now,
		reclaim:  debug.FreeOSMemory,
	}
}

type job struct {
	index   int
	locator string
}

// Run processes locators sequentially. Item i is fully finished, files
// included, before item i+1 starts. A cancelled context stops the run
// before the next item.
func (p *Pipeline) Run(ctx context.Context, locators []string) Report {
	rep := Report{RunID: p.opts.RunID, Input: p.opts.Input, Started: p.now()}
	jobs := p.plan(locators, &rep)

	log := &logger.Logger{Entry: p.log.WithField("items", len(jobs))}
	log.WithField("skipped", rep.Skipped).Info("run started")
	if p.recorder != nil {
		if err := p.recorder.StartRun(ctx, rep.RunID, rep.Input, len(jobs), rep.Started); err != nil {
			log.WithError(err).Warn("ledger: start run")
		}
	}

	for n, j := range jobs {
		if ctx.Err() != nil {
			rep.Cancelled = true
			log.WithField("remaining", len(jobs)-n).Warn("run cancelled")
			break
		}
		log.WithField("item", n+1).WithField("locator", j.locator).
			Infof("processing %d/%d", n+1, len(jobs))

		out := p.proc.Process(ctx, j.locator, j.index)
		rep.Outcomes = append(rep.Outcomes, out)

		if p.recorder != nil {
			if err := p.recorder.RecordOutcome(context.WithoutCancel(ctx), rep.RunID, out); err != nil {
				log.WithError(err).Warn("ledger: record outcome")
			}
		}
		p.reclaim()
	}

	rep.Finished = p.now()
	rep.Tally = aggregator.Aggregate(rep.Outcomes)
	rep.Action = actionable.Generate(rep.Tally)
	if p.recorder != nil {
		if err := p.recorder.FinishRun(context.WithoutCancel(ctx), rep.RunID, rep.Tally.ByStatus, rep.Finished); err != nil {
			log.WithError(err).Warn("ledger: finish run")
		}
	}
	p.summarize(rep)
	return rep
}

func (p *Pipeline) plan(locators []string, rep *Report) []job {
	jobs := make([]job, 0, len(locators))
	for i, loc := range locators {
		if p.opts.SkipExisting && p.opts.Done != nil && p.opts.Done(loc) {
			rep.Skipped++
			continue
		}
		if p.opts.Limit > 0 && len(jobs) >= p.opts.Limit {
			break
		}
		jobs = append(jobs, job{index: i, locator: loc})
	}
	return jobs
}

func (p *Pipeline) summarize(rep Report) {
	log := p.log.WithField("total", rep.Tally.Total).
		WithField("billable", rep.Tally.Billable).
		WithField("applications", rep.Tally.SaleOrApplication).
		WithField("success_rate", rep.Tally.SuccessRate()).
		WithField("duration_ms", rep.Finished.Sub(rep.Started).Milliseconds())
	log.Info("run finished")
	for _, s := range types.Statuses() {
		p.log.WithField("status", s).WithField("count", rep.Tally.ByStatus[s]).Info("status count")
	}
	p.log.WithField("action", rep.Action.Action).WithField("impact", rep.Action.Impact).Info(rep.Action.Insight)
}
