// Package processor runs one source item through every pipeline stage and
// reports a single typed outcome for it.
package processor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/bbarnes4318/hoppy/internal/ingest"
	"github.com/bbarnes4318/hoppy/internal/logger"
	"github.com/bbarnes4318/hoppy/internal/media"
	"github.com/bbarnes4318/hoppy/internal/source"
	"github.com/bbarnes4318/hoppy/internal/transcription"
	"github.com/bbarnes4318/hoppy/internal/types"
)

var errEmptyTranscript = errors.New("empty transcript")

type Acquirer interface {
	Acquire(ctx context.Context, res source.Resolution) (types.MediaAsset, error)
	Prepare(ctx context.Context, asset types.MediaAsset) ([]types.MediaAsset, error)
}

type Attributor interface {
	Attribute(ctx context.Context, parts []types.MediaAsset, offsets []float64, tr types.Transcript) types.Transcript
}

type Analyzer interface {
	Analyze(ctx context.Context, text string) (types.AnalysisRecord, error)
}

// Store persists per-item files and aggregate blocks.
type Store interface {
	Save(item types.SourceItem, tr types.Transcript, rec types.AnalysisRecord, aggregate bool) error
}

type Ingester interface {
	Ingest(ctx context.Context, rec ingest.Record) error
}

// Deps are the stage collaborators. Ingester may be nil.
type Deps struct {
	Acquirer   Acquirer
	Engine     transcription.Engine
	Attributor Attributor
	Analyzer   Analyzer
	Store      Store
	Ingester   Ingester
	// SegmentSeconds is the length of each split part, used to place part
	// transcripts on the recording's timeline.
	SegmentSeconds int
}

type Processor struct {
	deps   Deps
	engine transcription.Engine
	log    *logger.Logger
	now    func() time.Time
}

func New(deps Deps, log *logger.Logger) *Processor {
	if log == nil {
		log = logger.Discard()
	}
	return &Processor{
		deps:   deps,
		engine: deps.Engine,
		log:    log.Component("processor"),
		now:    time.Now,
	}
}

// Engine returns the speech engine handle later items will use.
func (p *Processor) Engine() transcription.Engine { return p.engine }

// Process runs locator through every stage. It never panics and never
// returns without an outcome; owned media is removed before it returns.
func (p *Processor) Process(ctx context.Context, locator string, index int) (out types.ProcessingOutcome) {
	out = types.ProcessingOutcome{
		Item:      types.SourceItem{Index: index, Locator: locator},
		Stage:     types.StageStarted,
		StartedAt: p.now(),
	}
	var owned []types.MediaAsset
	log := p.log.WithItem(out.Item)

	defer func() {
		if r := recover(); r != nil {
			out.Status = types.StatusCriticalError
			out.Detail = fmt.Sprintf("panic: %v", r)
			log.WithField("stack", string(debug.Stack())).
				Errorf("item panicked: %v", r)
		}
		media.Remove(owned...)
		out.FinishedAt = p.now()

		entry := log.WithField("kind", string(out.Item.Kind)).
			WithField("status", out.Status).
			WithField("stage", out.Stage).
			WithField("duration_ms", out.FinishedAt.Sub(out.StartedAt).Milliseconds())
		if out.Status == types.StatusSuccess {
			entry.Info("item finished")
		} else {
			entry.WithField("detail", out.Detail).Warn("item failed")
		}
	}()

	err := p.run(ctx, &out, &owned, log)
	out.Status = types.StatusOf(err)
	out.Detail = detailOf(err)
	return out
}

func (p *Processor) run(ctx context.Context, out *types.ProcessingOutcome, owned *[]types.MediaAsset, log *logger.Logger) error {
	res, err := source.Resolve(out.Item.Locator, out.Item.Index)
	out.Item = res.Item
	if err != nil {
		return types.Fail(types.StatusDownloadFailed, err)
	}
	log = &logger.Logger{Entry: log.WithField("kind", string(out.Item.Kind))}
	log.WithField("strategy", res.Strategy).Info("processing item")

	asset, err := p.deps.Acquirer.Acquire(ctx, res)
	if err != nil {
		return types.Fail(types.StatusDownloadFailed, err)
	}
	*owned = append(*owned, asset)
	out.Stage = types.StageDownloaded

	parts, err := p.deps.Acquirer.Prepare(ctx, asset)
	if err != nil {
		return types.Fail(types.StatusConversionFailed, err)
	}
	*owned = append(*owned, parts...)

	tr, offsets, err := p.transcribe(ctx, parts, log)
	if err != nil {
		return types.Fail(types.StatusTranscriptionFailed, err)
	}
	if tr.Empty() {
		return types.Fail(types.StatusTranscriptionFailed, errEmptyTranscript)
	}
	out.Stage = types.StageTranscribed

	if p.deps.Attributor != nil {
		tr = p.deps.Attributor.Attribute(ctx, parts, offsets, tr)
	}
	out.Stage = types.StageAttributed

	rec, analysisErr := p.deps.Analyzer.Analyze(ctx, tr.FullText)
	if analysisErr == nil {
		out.Stage = types.StageAnalyzed
		out.Billable = rec.Billable
		out.SaleOrApplication = rec.SaleOrApplication
	}

	// Failed analyses keep their per-item files but stay out of the aggregates.
	if err := p.deps.Store.Save(out.Item, tr, rec, analysisErr == nil); err != nil {
		return types.Fail(types.StatusSaveFailed, err)
	}
	if analysisErr != nil {
		return types.Fail(types.StatusAnalysisFailed, analysisErr)
	}
	out.Stage = types.StageSaved

	if p.deps.Ingester != nil {
		if err := p.deps.Ingester.Ingest(ctx, ingest.BuildRecord(out.Item, tr, rec, out.StartedAt)); err != nil {
			log.WithError(err).Warn("downstream ingest failed")
		}
	}
	return nil
}

// transcribe recognizes each part in order with the current engine handle,
// adopting the replacement handle after a degrade.
func (p *Processor) transcribe(ctx context.Context, parts []types.MediaAsset, log *logger.Logger) (types.Transcript, []float64, error) {
	transcripts := make([]types.Transcript, 0, len(parts))
	offsets := make([]float64, len(parts))
	for i, part := range parts {
		offsets[i] = float64(i * p.deps.SegmentSeconds)
		tr, engine, err := transcription.Run(ctx, p.engine, part.Path, log)
		p.engine = engine
		if err != nil {
			return types.Transcript{}, nil, err
		}
		transcripts = append(transcripts, tr)
	}
	return transcription.Concat(transcripts, offsets), offsets, nil
}

func detailOf(err error) string {
	if err == nil {
		return ""
	}
	var se *types.StageError
	if errors.As(err, &se) && se.Err != nil {
		return se.Err.Error()
	}
	return err.Error()
}
