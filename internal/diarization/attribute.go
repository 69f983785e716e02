// Package diarization labels transcript segments with speakers.
package diarization

import (
	"context"
	"sort"
	"strings"

	"github.com/bbarnes4318/hoppy/internal/logger"
	"github.com/bbarnes4318/hoppy/internal/types"
)

// Diarizer produces speaker turns for an audio file.
type Diarizer interface {
	Diarize(ctx context.Context, path string) ([]types.SpeakerTurn, error)
}

// AssignSpeaker returns the speaker whose turn overlaps seg the most. Ties
// go to the earliest-starting turn; no overlap yields UnknownSpeaker. turns
// must be sorted by start.
func AssignSpeaker(seg types.TranscriptSegment, turns []types.SpeakerTurn) string {
	best := types.UnknownSpeaker
	var bestOverlap float64
	for _, t := range turns {
		overlap := min(seg.End, t.End) - max(seg.Start, t.Start)
		if overlap > bestOverlap {
			bestOverlap = overlap
			best = t.Speaker
		}
	}
	return best
}

// Attribute returns a copy of segments with speaker labels set. Segment
// boundaries are unchanged.
func Attribute(segments []types.TranscriptSegment, turns []types.SpeakerTurn) []types.TranscriptSegment {
	sorted := make([]types.SpeakerTurn, len(turns))
	copy(sorted, turns)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	out := make([]types.TranscriptSegment, len(segments))
	for i, s := range segments {
		s.Speaker = AssignSpeaker(s, sorted)
		out[i] = s
	}
	return out
}

// Block is a run of consecutive segments by one speaker.
type Block struct {
	Speaker string
	Start   float64
	End     float64
	Text    string
}

// Merge collapses consecutive same-speaker segments for display.
func Merge(segments []types.TranscriptSegment) []Block {
	var out []Block
	for _, s := range segments {
		if n := len(out); n > 0 && out[n-1].Speaker == s.Speaker {
			out[n-1].End = s.End
			out[n-1].Text = strings.TrimSpace(out[n-1].Text + " " + s.Text)
			continue
		}
		out = append(out, Block{Speaker: s.Speaker, Start: s.Start, End: s.End, Text: s.Text})
	}
	return out
}

// Attributor applies a Diarizer to a transcript. Diarization problems never
// fail an item; segments fall back to UnknownSpeaker.
type Attributor struct {
	diarizer Diarizer
	log      *logger.Logger
}

// NewAttributor accepts a nil diarizer, in which case every segment is
// labeled UnknownSpeaker.
func NewAttributor(d Diarizer, log *logger.Logger) *Attributor {
	if log == nil {
		log = logger.Discard()
	}
	return &Attributor{diarizer: d, log: log.Component("diarization")}
}

// Attribute diarizes each media part and labels tr. offsets holds the start
// time of each part within the whole recording.
func (a *Attributor) Attribute(ctx context.Context, parts []types.MediaAsset, offsets []float64, tr types.Transcript) types.Transcript {
	out := tr
	if a.diarizer == nil {
		out.Segments = Attribute(tr.Segments, nil)
		return out
	}

	var turns []types.SpeakerTurn
	for i, p := range parts {
		got, err := a.diarizer.Diarize(ctx, p.Path)
		if err != nil {
			a.log.WithError(err).WithField("path", p.Path).Warn("diarization failed, speakers left unknown")
			out.Segments = Attribute(tr.Segments, nil)
			return out
		}
		var off float64
		if i < len(offsets) {
			off = offsets[i]
		}
		for _, t := range got {
			t.Start += off
			t.End += off
			turns = append(turns, t)
		}
	}
	out.Segments = Attribute(tr.Segments, turns)
	a.log.WithField("turns", len(turns)).Debug("speakers attributed")
	return out
}
