package processor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbarnes4318/hoppy/internal/ingest"
	"github.com/bbarnes4318/hoppy/internal/media"
	"github.com/bbarnes4318/hoppy/internal/source"
	"github.com/bbarnes4318/hoppy/internal/transcription"
	"github.com/bbarnes4318/hoppy/internal/types"
)

const remote = "https://example.com/calls/call-1.mp3"

type fakeAcquirer struct {
	dir        string
	parts      int
	acquireErr error
	prepareErr error
	supplied   bool

	asset    types.MediaAsset
	prepared []types.MediaAsset
}

func (f *fakeAcquirer) Acquire(_ context.Context, res source.Resolution) (types.MediaAsset, error) {
	if f.acquireErr != nil {
		return types.MediaAsset{}, fmt.Errorf("%w: %v", media.ErrDownload, f.acquireErr)
	}
	if f.supplied {
		f.asset = types.MediaAsset{Path: res.FetchURL, ByteSize: 10, Extension: ".mp3"}
		return f.asset, nil
	}
	f.asset = touch(f.dir, "download.mp3")
	return f.asset, nil
}

func (f *fakeAcquirer) Prepare(_ context.Context, asset types.MediaAsset) ([]types.MediaAsset, error) {
	if f.prepareErr != nil {
		return nil, fmt.Errorf("%w: %v", media.ErrConversion, f.prepareErr)
	}
	if f.parts <= 1 {
		f.prepared = []types.MediaAsset{asset}
		return f.prepared, nil
	}
	for i := 0; i < f.parts; i++ {
		f.prepared = append(f.prepared, touch(f.dir, fmt.Sprintf("part_%03d.mp3", i)))
	}
	return f.prepared, nil
}

func touch(dir, name string) types.MediaAsset {
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("ID3 audio"), 0o644); err != nil {
		panic(err)
	}
	return types.MediaAsset{Path: p, ByteSize: 9, Extension: ".mp3", Owned: true}
}

type fakeEngine struct {
	model    string
	err      error
	text     string
	calls    int
	degraded *fakeEngine
}

func (e *fakeEngine) Transcribe(context.Context, string) (types.Transcript, error) {
	e.calls++
	if e.err != nil {
		return types.Transcript{}, e.err
	}
	if e.text == "" {
		return types.Transcript{}, nil
	}
	return types.Transcript{
		FullText: e.text,
		Segments: []types.TranscriptSegment{{Start: 1, End: 4, Text: e.text}},
	}, nil
}

func (e *fakeEngine) Degrade() (transcription.Engine, error) {
	if e.degraded == nil {
		return nil, errors.New("nothing smaller")
	}
	return e.degraded, nil
}

func (e *fakeEngine) Model() string { return e.model }

type labelAttributor struct{ label string }

func (a labelAttributor) Attribute(_ context.Context, _ []types.MediaAsset, _ []float64, tr types.Transcript) types.Transcript {
	segs := make([]types.TranscriptSegment, len(tr.Segments))
	for i, s := range tr.Segments {
		s.Speaker = a.label
		segs[i] = s
	}
	tr.Segments = segs
	return tr
}

type analyzerFunc func(ctx context.Context, text string) (types.AnalysisRecord, error)

func (f analyzerFunc) Analyze(ctx context.Context, text string) (types.AnalysisRecord, error) {
	return f(ctx, text)
}

func saleAnalyzer(_ context.Context, _ string) (types.AnalysisRecord, error) {
	return types.AnalysisRecord{
		Billable:          true,
		BillableReason:    "qualified",
		SaleOrApplication: true,
		SaleReason:        "application taken",
		Supporting:        map[string]string{"Monthly Premium": "$42.50"},
	}, nil
}

type saveCall struct {
	item      types.SourceItem
	tr        types.Transcript
	rec       types.AnalysisRecord
	aggregate bool
}

type fakeStore struct {
	err   error
	saves []saveCall
}

func (s *fakeStore) Save(item types.SourceItem, tr types.Transcript, rec types.AnalysisRecord, aggregate bool) error {
	s.saves = append(s.saves, saveCall{item, tr, rec, aggregate})
	return s.err
}

type fakeIngester struct {
	err     error
	records []ingest.Record
}

func (f *fakeIngester) Ingest(_ context.Context, rec ingest.Record) error {
	f.records = append(f.records, rec)
	return f.err
}

type fixture struct {
	acq    *fakeAcquirer
	engine *fakeEngine
	store  *fakeStore
	ing    *fakeIngester
	deps   Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		acq:    &fakeAcquirer{dir: t.TempDir()},
		engine: &fakeEngine{model: "base", text: "hello I would like to apply"},
		store:  &fakeStore{},
		ing:    &fakeIngester{},
	}
	f.deps = Deps{
		Acquirer:       f.acq,
		Engine:         f.engine,
		Attributor:     labelAttributor{label: "Agent"},
		Analyzer:       analyzerFunc(saleAnalyzer),
		Store:          f.store,
		Ingester:       f.ing,
		SegmentSeconds: 300,
	}
	return f
}

func (f *fixture) process(locator string) types.ProcessingOutcome {
	return New(f.deps, nil).Process(context.Background(), locator, 3)
}

func TestProcessSuccess(t *testing.T) {
	f := newFixture(t)
	out := f.process(remote)

	assert.Equal(t, types.StatusSuccess, out.Status)
	assert.Equal(t, types.StageSaved, out.Stage)
	assert.Empty(t, out.Detail)
	assert.True(t, out.Billable)
	assert.True(t, out.SaleOrApplication)
	assert.Equal(t, types.KindRemoteURL, out.Item.Kind)
	assert.Equal(t, 3, out.Item.Index)
	assert.False(t, out.FinishedAt.Before(out.StartedAt))

	require.Len(t, f.store.saves, 1)
	save := f.store.saves[0]
	assert.True(t, save.aggregate)
	assert.Equal(t, "Agent", save.tr.Segments[0].Speaker)

	require.Len(t, f.ing.records, 1)
	require.NotNil(t, f.ing.records[0].SaleAmountCents)
	assert.Equal(t, int64(4250), *f.ing.records[0].SaleAmountCents)

	assert.NoFileExists(t, f.acq.asset.Path, "owned download removed")
}

func TestProcessInvalidLocator(t *testing.T) {
	f := newFixture(t)
	out := f.process("definitely not a locator")

	assert.Equal(t, types.StatusDownloadFailed, out.Status)
	assert.Equal(t, types.StageStarted, out.Stage)
	assert.Contains(t, out.Detail, "invalid locator")
	assert.Empty(t, f.store.saves)
}

func TestProcessDownloadFailure(t *testing.T) {
	f := newFixture(t)
	f.acq.acquireErr = errors.New("404 not found")
	out := f.process(remote)

	assert.Equal(t, types.StatusDownloadFailed, out.Status)
	assert.Contains(t, out.Detail, "404")
	assert.Zero(t, f.engine.calls)
}

func TestProcessConversionFailureCleansDownload(t *testing.T) {
	f := newFixture(t)
	f.acq.prepareErr = errors.New("ffmpeg exited 1")
	out := f.process(remote)

	assert.Equal(t, types.StatusConversionFailed, out.Status)
	assert.Equal(t, types.StageDownloaded, out.Stage)
	assert.NoFileExists(t, f.acq.asset.Path)
}

func TestProcessEmptyTranscript(t *testing.T) {
	f := newFixture(t)
	f.engine.text = ""
	called := false
	f.deps.Analyzer = analyzerFunc(func(context.Context, string) (types.AnalysisRecord, error) {
		called = true
		return types.AnalysisRecord{}, nil
	})
	out := f.process(remote)

	assert.Equal(t, types.StatusTranscriptionFailed, out.Status)
	assert.Equal(t, "empty transcript", out.Detail)
	assert.False(t, called)
	assert.Empty(t, f.store.saves)
}

func TestProcessDegradedEngineCarriesOver(t *testing.T) {
	f := newFixture(t)
	tiny := &fakeEngine{model: "tiny", text: "small model text"}
	f.engine.err = fmt.Errorf("%w: cuda", transcription.ErrOutOfMemory)
	f.engine.degraded = tiny

	p := New(f.deps, nil)
	first := p.Process(context.Background(), remote, 0)
	second := p.Process(context.Background(), remote, 1)

	assert.Equal(t, types.StatusSuccess, first.Status)
	assert.Equal(t, types.StatusSuccess, second.Status)
	assert.Same(t, tiny, p.Engine())
	assert.Equal(t, 1, f.engine.calls, "original handle abandoned after degrade")
	assert.Equal(t, 2, tiny.calls)
}

func TestProcessTranscriptionFailure(t *testing.T) {
	f := newFixture(t)
	f.engine.err = errors.New("connection refused")
	out := f.process(remote)

	assert.Equal(t, types.StatusTranscriptionFailed, out.Status)
	assert.Equal(t, types.StageDownloaded, out.Stage)
}

func TestProcessAnalysisFailureSavesWithoutAggregate(t *testing.T) {
	f := newFixture(t)
	f.deps.Analyzer = analyzerFunc(func(context.Context, string) (types.AnalysisRecord, error) {
		return types.AnalysisRecord{SaleOrApplication: false}, errors.New("analysis failed: 401")
	})
	out := f.process(remote)

	assert.Equal(t, types.StatusAnalysisFailed, out.Status)
	assert.Equal(t, types.StageAttributed, out.Stage)
	require.Len(t, f.store.saves, 1)
	assert.False(t, f.store.saves[0].aggregate)
	assert.Empty(t, f.ing.records)
}

func TestProcessSaveFailure(t *testing.T) {
	f := newFixture(t)
	f.store.err = errors.New("disk full")
	out := f.process(remote)

	assert.Equal(t, types.StatusSaveFailed, out.Status)
	assert.Equal(t, "disk full", out.Detail)
	assert.Empty(t, f.ing.records)
}

func TestProcessPanicIsCritical(t *testing.T) {
	f := newFixture(t)
	f.deps.Analyzer = analyzerFunc(func(context.Context, string) (types.AnalysisRecord, error) {
		panic("boom")
	})
	out := f.process(remote)

	assert.Equal(t, types.StatusCriticalError, out.Status)
	assert.Contains(t, out.Detail, "boom")
	assert.NoFileExists(t, f.acq.asset.Path)
	assert.False(t, out.FinishedAt.IsZero())
}

func TestProcessSparesSuppliedFile(t *testing.T) {
	f := newFixture(t)
	f.acq.supplied = true
	local := filepath.Join(t.TempDir(), "call.mp3")
	require.NoError(t, os.WriteFile(local, []byte("ID3 audio"), 0o644))

	out := f.process(local)

	assert.Equal(t, types.StatusSuccess, out.Status)
	assert.Equal(t, types.KindLocalFile, out.Item.Kind)
	assert.FileExists(t, local)
}

func TestProcessIngestFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.ing.err = errors.New("dashboard down")
	out := f.process(remote)

	assert.Equal(t, types.StatusSuccess, out.Status)
	assert.Len(t, f.ing.records, 1)
}

func TestProcessSplitPartsShareTimeline(t *testing.T) {
	f := newFixture(t)
	f.acq.parts = 2
	out := f.process(remote)

	require.Equal(t, types.StatusSuccess, out.Status)
	require.Len(t, f.store.saves, 1)
	segs := f.store.saves[0].tr.Segments
	require.Len(t, segs, 2)
	assert.InDelta(t, 1, segs[0].Start, 1e-9)
	assert.InDelta(t, 301, segs[1].Start, 1e-9)
	for _, p := range f.acq.prepared {
		assert.NoFileExists(t, p.Path)
	}
}
