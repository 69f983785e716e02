package aggregator

import (
	"fmt"
	"strings"

	"github.com/bbarnes4318/hoppy/internal/diarization"
	"github.com/bbarnes4318/hoppy/internal/types"
)

const (
	timestampedHeader = "=== FULL TRANSCRIPT WITH TIMESTAMPS ==="
	continuousHeader  = "=== FULL TRANSCRIPT (CONTINUOUS TEXT) ==="
	sessionRule       = "================================================================================"
	blockRule         = "------------------------------------------------------------"
)

// FormatTimestamp renders seconds as MM:SS, or HH:MM:SS from one hour on.
func FormatTimestamp(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	total := int(sec)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// SegmentLines renders one timestamped line per segment.
func SegmentLines(tr types.Transcript) string {
	var b strings.Builder
	for _, s := range tr.Segments {
		fmt.Fprintf(&b, "[%s - %s] %s: %s\n", FormatTimestamp(s.Start), FormatTimestamp(s.End), s.Speaker, s.Text)
	}
	return b.String()
}

// SpeakerLines renders merged speaker blocks, one per line.
func SpeakerLines(tr types.Transcript) string {
	var b strings.Builder
	for _, blk := range diarization.Merge(tr.Segments) {
		fmt.Fprintf(&b, "[%s - %s] %s: %s\n", FormatTimestamp(blk.Start), FormatTimestamp(blk.End), blk.Speaker, blk.Text)
	}
	return b.String()
}

// TranscriptDocument is the per-item transcript file body.
func TranscriptDocument(tr types.Transcript) string {
	var b strings.Builder
	b.WriteString(timestampedHeader + "\n\n")
	b.WriteString(SegmentLines(tr))
	b.WriteString("\n" + continuousHeader + "\n\n")
	b.WriteString(tr.FullText)
	b.WriteString("\n")
	return b.String()
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}

func sessionHeader(session, runID string) string {
	return fmt.Sprintf("\n%s\nSESSION: %s (run %s)\n%s\n\n", sessionRule, session, runID, sessionRule)
}

func callBlock(item types.SourceItem, sale bool, at, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "--- CALL %d (Application Submitted: %s) ---\n", item.Index+1, yesNo(sale))
	fmt.Fprintf(&b, "URL: %s\n", item.Locator)
	fmt.Fprintf(&b, "Timestamp: %s\n\n", at)
	b.WriteString(strings.TrimRight(body, "\n"))
	b.WriteString("\n\n" + blockRule + "\n\n")
	return b.String()
}
