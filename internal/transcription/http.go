package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/bbarnes4318/hoppy/internal/logger"
	"github.com/bbarnes4318/hoppy/internal/types"
)

// HTTPEngine talks to an OpenAI-compatible /audio/transcriptions endpoint
// such as a faster-whisper server.
type HTTPEngine struct {
	baseURL      string
	apiKey       string
	language     string
	tier         Tier
	reclaimEvery int
	client       *http.Client
	reclaim      func()
	log          *logger.Logger
}

type Option func(*HTTPEngine)

func WithAPIKey(key string) Option { return func(e *HTTPEngine) { e.apiKey = key } }

func WithLanguage(lang string) Option { return func(e *HTTPEngine) { e.language = lang } }

func WithHTTPClient(c *http.Client) Option { return func(e *HTTPEngine) { e.client = c } }

func WithLogger(l *logger.Logger) Option { return func(e *HTTPEngine) { e.log = l } }

// WithReclaimEvery sets how many decoded segments pass between memory
// reclaim passes. Zero disables them.
func WithReclaimEvery(n int) Option { return func(e *HTTPEngine) { e.reclaimEvery = n } }

func NewHTTPEngine(baseURL string, tier Tier, opts ...Option) *HTTPEngine {
	e := &HTTPEngine{
		baseURL:      strings.TrimRight(baseURL, "/"),
		language:     "en",
		tier:         tier,
		reclaimEvery: 100,
		client:       http.DefaultClient,
		reclaim:      debug.FreeOSMemory,
		log:          logger.Discard(),
	}
	for _, o := range opts {
		o(e)
	}
	e.log = e.log.Component("transcription")
	return e
}

func (e *HTTPEngine) Model() string { return e.tier.Model }

func (e *HTTPEngine) Tier() Tier { return e.tier }

// Degrade returns a copy on the conservative tier.
func (e *HTTPEngine) Degrade() (Engine, error) {
	c := *e
	c.tier = ConservativeTier()
	return &c, nil
}

func (e *HTTPEngine) Transcribe(ctx context.Context, path string) (types.Transcript, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	defer pr.Close()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(e.writeForm(mw, f, filepath.Base(path)))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/audio/transcriptions", pr)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := strings.TrimSpace(string(body))
		if IsMemoryFailure(resp.StatusCode, msg) {
			return types.Transcript{}, fmt.Errorf("%w: status %d: %s", ErrOutOfMemory, resp.StatusCode, msg)
		}
		return types.Transcript{}, fmt.Errorf("transcription service status %d: %s", resp.StatusCode, msg)
	}

	tr, n, err := e.decode(resp.Body)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("decode transcription: %w", err)
	}
	e.log.WithField("model", e.tier.Model).WithField("segments", n).Debug("transcribed")
	return tr, nil
}

func (e *HTTPEngine) writeForm(mw *multipart.Writer, audio io.Reader, name string) error {
	fields := [][2]string{
		{"model", e.tier.Model},
		{"response_format", "verbose_json"},
		{"timestamp_granularities[]", "segment"},
		{"temperature", strconv.FormatFloat(e.tier.Temperature, 'f', -1, 64)},
		{"beam_size", strconv.Itoa(e.tier.BeamSize)},
		{"vad_filter", strconv.FormatBool(e.tier.VADFilter)},
		{"condition_on_previous_text", strconv.FormatBool(e.tier.ConditionOnPreviousText)},
	}
	if e.language != "" {
		fields = append(fields, [2]string{"language", e.language})
	}
	if e.tier.ChunkLength > 0 {
		fields = append(fields, [2]string{"chunk_length", strconv.Itoa(e.tier.ChunkLength)})
	}
	for _, kv := range fields {
		if err := mw.WriteField(kv[0], kv[1]); err != nil {
			return err
		}
	}
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, audio); err != nil {
		return err
	}
	return mw.Close()
}

type wireSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// decode reads a verbose_json response one segment at a time so long
// recordings never hold the raw body and the decoded slice together.
func (e *HTTPEngine) decode(r io.Reader) (types.Transcript, int, error) {
	dec := json.NewDecoder(r)
	if err := expectDelim(dec, '{'); err != nil {
		return types.Transcript{}, 0, err
	}

	var tr types.Transcript
	n := 0
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return types.Transcript{}, n, err
		}
		key, _ := tok.(string)
		switch key {
		case "text":
			if err := dec.Decode(&tr.FullText); err != nil {
				return types.Transcript{}, n, err
			}
		case "language":
			if err := dec.Decode(&tr.Language); err != nil {
				return types.Transcript{}, n, err
			}
		case "segments":
			tok, err := dec.Token()
			if err != nil {
				return types.Transcript{}, n, err
			}
			if tok == nil {
				continue
			}
			if d, ok := tok.(json.Delim); !ok || d != '[' {
				return types.Transcript{}, n, fmt.Errorf("segments: unexpected %v", tok)
			}
			for dec.More() {
				var ws wireSegment
				if err := dec.Decode(&ws); err != nil {
					return types.Transcript{}, n, err
				}
				tr.Segments = append(tr.Segments, types.TranscriptSegment{
					Start:   ws.Start,
					End:     ws.End,
					Text:    ws.Text,
					Speaker: types.UnknownSpeaker,
				})
				n++
				if e.reclaimEvery > 0 && n%e.reclaimEvery == 0 {
					e.reclaim()
					e.log.WithField("segments", n).Debug("memory reclaim pass")
				}
			}
			if err := expectDelim(dec, ']'); err != nil {
				return types.Transcript{}, n, err
			}
		default:
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return types.Transcript{}, n, err
			}
		}
	}
	return tr, n, expectDelim(dec, '}')
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

var memoryMarkers = []string{
	"out of memory",
	"memoryerror",
	"cannot allocate memory",
	"insufficient memory",
}

// IsMemoryFailure classifies an error response as memory exhaustion.
func IsMemoryFailure(status int, body string) bool {
	if status == http.StatusInsufficientStorage {
		return true
	}
	lower := strings.ToLower(body)
	for _, m := range memoryMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
