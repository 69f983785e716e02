// Package transcription turns audio files into timestamped transcripts
// through a speech recognition engine.
package transcription

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bbarnes4318/hoppy/internal/logger"
	"github.com/bbarnes4318/hoppy/internal/types"
)

var (
	// ErrOutOfMemory marks engine failures caused by memory exhaustion.
	ErrOutOfMemory = errors.New("speech engine out of memory")
	// ErrTranscription is the terminal recognition failure for an item.
	ErrTranscription = errors.New("transcription failed")
)

// Engine is a loaded speech recognition model.
type Engine interface {
	Transcribe(ctx context.Context, path string) (types.Transcript, error)
	// Degrade returns a new engine on the smallest model with conservative
	// decoding. The receiver stays usable.
	Degrade() (Engine, error)
	Model() string
}

// Tier is a set of decoding parameters.
type Tier struct {
	Name                    string  `json:"name"`
	Model                   string  `json:"model"`
	BeamSize                int     `json:"beam_size"`
	VADFilter               bool    `json:"vad_filter"`
	ConditionOnPreviousText bool    `json:"condition_on_previous_text"`
	ChunkLength             int     `json:"chunk_length"`
	Temperature             float64 `json:"temperature"`
}

var tiers = map[string]Tier{
	"fast":     {Name: "fast", Model: "tiny", BeamSize: 1, VADFilter: true, ChunkLength: 30},
	"balanced": {Name: "balanced", Model: "base", BeamSize: 2, VADFilter: true, ChunkLength: 30},
	"accurate": {Name: "accurate", Model: "small", BeamSize: 5, ConditionOnPreviousText: true, ChunkLength: 30},
}

// ConservativeTier is used after a memory failure.
func ConservativeTier() Tier {
	return Tier{Name: "conservative", Model: "tiny", BeamSize: 1, VADFilter: true, ChunkLength: 15}
}

// TierByName returns the named tier. forceTiny swaps in the tiny model while
// keeping the tier's other decoding settings.
func TierByName(name string, forceTiny bool) (Tier, error) {
	t, ok := tiers[strings.ToLower(name)]
	if !ok {
		return Tier{}, fmt.Errorf("unknown speed tier %q", name)
	}
	if forceTiny {
		t.Model = "tiny"
	}
	return t, nil
}

// Run transcribes path with engine. A memory failure degrades the engine
// once and retries once. The returned engine is the handle later items
// should use; it differs from the input only after a degrade.
func Run(ctx context.Context, engine Engine, path string, log *logger.Logger) (types.Transcript, Engine, error) {
	if log == nil {
		log = logger.Discard()
	}
	tr, err := engine.Transcribe(ctx, path)
	if err == nil {
		return Normalize(tr), engine, nil
	}
	if !errors.Is(err, ErrOutOfMemory) {
		return types.Transcript{}, engine, fmt.Errorf("%w: %v", ErrTranscription, err)
	}

	log.WithError(err).WithField("model", engine.Model()).Warn("memory failure, reloading smallest model")
	degraded, derr := engine.Degrade()
	if derr != nil {
		return types.Transcript{}, engine, fmt.Errorf("%w: reload after %v: %v", ErrTranscription, err, derr)
	}

	tr, err = degraded.Transcribe(ctx, path)
	if err != nil {
		return types.Transcript{}, degraded, fmt.Errorf("%w: retry on %s: %v", ErrTranscription, degraded.Model(), err)
	}
	log.WithField("model", degraded.Model()).Info("retry succeeded on degraded model")
	return Normalize(tr), degraded, nil
}

// Normalize enforces segment ordering and bounds and derives the full text
// when the engine omitted it.
func Normalize(tr types.Transcript) types.Transcript {
	segs := make([]types.TranscriptSegment, 0, len(tr.Segments))
	for _, s := range tr.Segments {
		s.Text = strings.TrimSpace(s.Text)
		if s.Text == "" {
			continue
		}
		if s.Start < 0 {
			s.Start = 0
		}
		if s.End < s.Start {
			s.End = s.Start
		}
		if s.Speaker == "" {
			s.Speaker = types.UnknownSpeaker
		}
		segs = append(segs, s)
	}
	sort.SliceStable(segs, func(i, j int) bool { return segs[i].Start < segs[j].Start })

	full := strings.TrimSpace(tr.FullText)
	if full == "" && len(segs) > 0 {
		texts := make([]string, len(segs))
		for i, s := range segs {
			texts[i] = s.Text
		}
		full = strings.Join(texts, " ")
	}
	return types.Transcript{FullText: full, Language: tr.Language, Segments: segs}
}

// Concat joins transcripts of consecutive media parts, shifting each part's
// segments by its offset in seconds.
func Concat(parts []types.Transcript, offsets []float64) types.Transcript {
	var out types.Transcript
	var texts []string
	for i, p := range parts {
		var off float64
		if i < len(offsets) {
			off = offsets[i]
		}
		for _, s := range p.Segments {
			s.Start += off
			s.End += off
			out.Segments = append(out.Segments, s)
		}
		if p.FullText != "" {
			texts = append(texts, p.FullText)
		}
		if out.Language == "" {
			out.Language = p.Language
		}
	}
	out.FullText = strings.Join(texts, " ")
	return out
}
