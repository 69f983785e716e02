package types

import "time"

// Sentinels used when a field is absent from an analysis reply.
const (
	NotProvided    = "Not Provided"
	UnknownSpeaker = "Unknown"
)

type SourceKind string

const (
	KindRemoteURL      SourceKind = "remote_url"
	KindStreamingVideo SourceKind = "streaming_video"
	KindLocalFile      SourceKind = "local_file"
)

// MediaExtensions is the accepted media extension allow-list.
var MediaExtensions = []string{".mp3", ".wav", ".m4a", ".ogg", ".flac", ".mp4", ".mov", ".wmv", ".avi", ".mkv", ".webm"}

type SourceItem struct {
	Index   int        `json:"index"`
	Locator string     `json:"locator"`
	Kind    SourceKind `json:"kind"`
}

// MediaAsset is a file on disk. Owned assets were created by the pipeline
// and are removed once the item finishes; supplied local files are not.
type MediaAsset struct {
	Path      string `json:"path"`
	ByteSize  int64  `json:"byte_size"`
	Extension string `json:"extension"`
	Owned     bool   `json:"owned"`
}

type TranscriptSegment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Speaker string  `json:"speaker"`
}

type SpeakerTurn struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

type Transcript struct {
	FullText string              `json:"full_text"`
	Language string              `json:"language,omitempty"`
	Segments []TranscriptSegment `json:"segments"`
}

// Empty reports whether recognition produced no text at all.
func (t Transcript) Empty() bool {
	return len(t.Segments) == 0 && t.FullText == ""
}

// Duration is the end time of the last segment.
func (t Transcript) Duration() float64 {
	var d float64
	for _, s := range t.Segments {
		if s.End > d {
			d = s.End
		}
	}
	return d
}

type AnalysisRecord struct {
	Billable          bool              `json:"billable"`
	BillableReason    string            `json:"billable_reason"`
	SaleOrApplication bool              `json:"sale_or_application"`
	SaleReason        string            `json:"sale_reason"`
	Supporting        map[string]string `json:"supporting_fields"`
	AbruptEnding      bool              `json:"abrupt_ending"`
	AbruptReason      string            `json:"abrupt_reason"`
	LastUtterance     string            `json:"last_utterance"`
	RubricVersion     string            `json:"rubric_version"`
	Truncated         bool              `json:"truncated"`
	Detail            string            `json:"detail,omitempty"`
	Raw               string            `json:"-"`
}

type ProcessingOutcome struct {
	Item              SourceItem `json:"item"`
	Status            Status     `json:"status"`
	Stage             Stage      `json:"stage"`
	Detail            string     `json:"detail,omitempty"`
	Billable          bool       `json:"billable"`
	SaleOrApplication bool       `json:"sale_or_application"`
	StartedAt         time.Time  `json:"started_at"`
	FinishedAt        time.Time  `json:"finished_at"`
}
