package aggregator

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bbarnes4318/hoppy/internal/extractor"
	"github.com/bbarnes4318/hoppy/internal/media"
	"github.com/bbarnes4318/hoppy/internal/types"
)

// Aggregate file names, partitioned by the sale/application flag.
const (
	SubmittedTranscripts    = "applications_submitted_transcripts.txt"
	NotSubmittedTranscripts = "applications_not_submitted_transcripts.txt"
	SubmittedAnalysis       = "applications_submitted_analysis.txt"
	NotSubmittedAnalysis    = "applications_not_submitted_analysis.txt"
)

// Writer persists per-item files and appends to the partitioned aggregate
// files. Aggregates are only ever appended to; each run opens its own
// session block in a file before its first entry there.
type Writer struct {
	transcriptsDir string
	analysisDir    string
	runID          string
	session        string
	opened         map[string]bool
	now            func() time.Time
}

func NewWriter(transcriptsDir, analysisDir, runID string, started time.Time) *Writer {
	return &Writer{
		transcriptsDir: transcriptsDir,
		analysisDir:    analysisDir,
		runID:          runID,
		session:        started.Format("20060102_150405"),
		opened:         map[string]bool{},
		now:            time.Now,
	}
}

// ItemPaths returns the per-item transcript and analysis file paths.
func (w *Writer) ItemPaths(locator string) (string, string) {
	stem := media.Stem(locator)
	return filepath.Join(w.transcriptsDir, stem+"_transcript.txt"),
		filepath.Join(w.analysisDir, stem+"_analysis.txt")
}

// Done reports whether the item's analysis file already exists.
func (w *Writer) Done(locator string) bool {
	_, analysis := w.ItemPaths(locator)
	_, err := os.Stat(analysis)
	return err == nil
}

// Save writes the per-item files and, when aggregate is set, appends the
// item to the aggregate files of its partition.
func (w *Writer) Save(item types.SourceItem, tr types.Transcript, rec types.AnalysisRecord, aggregate bool) error {
	for _, d := range []string{w.transcriptsDir, w.analysisDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}

	trPath, anPath := w.ItemPaths(item.Locator)
	analysis := extractor.Render(rec)
	if err := writeFile(trPath, TranscriptDocument(tr)); err != nil {
		return err
	}
	if err := writeFile(anPath, analysis); err != nil {
		return err
	}
	if !aggregate {
		return nil
	}

	at := w.now().Format("2006-01-02 15:04:05")
	trFile, anFile := NotSubmittedTranscripts, NotSubmittedAnalysis
	if rec.SaleOrApplication {
		trFile, anFile = SubmittedTranscripts, SubmittedAnalysis
	}
	trBody := "TRANSCRIPT (WITH SPEAKER LABELS):\n" + SpeakerLines(tr)
	if err := w.appendBlock(filepath.Join(w.transcriptsDir, trFile), callBlock(item, rec.SaleOrApplication, at, trBody)); err != nil {
		return err
	}
	return w.appendBlock(filepath.Join(w.analysisDir, anFile), callBlock(item, rec.SaleOrApplication, at, "ANALYSIS:\n"+analysis))
}

func (w *Writer) appendBlock(path, block string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open aggregate %s: %w", path, err)
	}
	defer f.Close()

	if !w.opened[path] {
		if _, err := f.WriteString(sessionHeader(w.session, w.runID)); err != nil {
			return fmt.Errorf("append session header %s: %w", path, err)
		}
		w.opened[path] = true
	}
	if _, err := f.WriteString(block); err != nil {
		return fmt.Errorf("append %s: %w", path, err)
	}
	return f.Sync()
}

// writeFile replaces path atomically.
func writeFile(path, body string) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(body), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
