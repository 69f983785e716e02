// Package ingest pushes finished calls to the downstream dashboard.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/bbarnes4318/hoppy/internal/media"
	"github.com/bbarnes4318/hoppy/internal/types"
)

const summaryLimit = 500

type TranscriptPayload struct {
	Language string `json:"language"`
	Text     string `json:"text"`
}

type SummaryPayload struct {
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
}

// Record is the ingest-call body.
type Record struct {
	ExternalCallID  string            `json:"external_call_id"`
	StartedAt       time.Time         `json:"started_at"`
	EndedAt         time.Time         `json:"ended_at"`
	DurationSec     int               `json:"duration_sec"`
	Disposition     string            `json:"disposition"`
	Billable        bool              `json:"billable"`
	SaleMade        bool              `json:"sale_made"`
	SaleAmountCents *int64            `json:"sale_amount_cents,omitempty"`
	AgentName       string            `json:"agent_name,omitempty"`
	RecordingURL    string            `json:"recording_url,omitempty"`
	Transcript      TranscriptPayload `json:"transcript"`
	Summary         SummaryPayload    `json:"summary"`
}

// BuildRecord maps a finished item onto the ingest body.
func BuildRecord(item types.SourceItem, tr types.Transcript, rec types.AnalysisRecord, startedAt time.Time) Record {
	dur := int(tr.Duration())
	lang := tr.Language
	if lang == "" {
		lang = "en"
	}
	r := Record{
		ExternalCallID: media.Stem(item.Locator),
		StartedAt:      startedAt.UTC(),
		EndedAt:        startedAt.UTC().Add(time.Duration(dur) * time.Second),
		DurationSec:    dur,
		Disposition:    "connected",
		Billable:       rec.Billable,
		SaleMade:       rec.SaleOrApplication,
		Transcript:     TranscriptPayload{Language: lang, Text: tr.FullText},
		Summary:        SummaryPayload{Summary: summarize(rec), KeyPoints: keyPoints(rec)},
	}
	if item.Kind != types.KindLocalFile {
		r.RecordingURL = item.Locator
	}
	if name := rec.Supporting["Agent Name"]; name != "" && name != types.NotProvided {
		r.AgentName = name
	}
	if rec.SaleOrApplication {
		if cents, ok := PremiumCents(rec.Supporting["Monthly Premium"]); ok {
			r.SaleAmountCents = &cents
		}
	}
	return r
}

var money = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

// PremiumCents parses an amount such as "$42.50/month" into cents.
func PremiumCents(s string) (int64, bool) {
	m := money.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return int64(v*100 + 0.5), true
}

func summarize(rec types.AnalysisRecord) string {
	s := strings.TrimSpace(rec.Raw)
	if s == "" {
		s = fmt.Sprintf("Billable: %t. Application submitted: %t.", rec.Billable, rec.SaleOrApplication)
	}
	if r := []rune(s); len(r) > summaryLimit {
		s = string(r[:summaryLimit])
	}
	return s
}

func keyPoints(rec types.AnalysisRecord) []string {
	var out []string
	if !rec.Billable && rec.BillableReason != types.NotProvided {
		out = append(out, "Not billable: "+rec.BillableReason)
	}
	if !rec.SaleOrApplication && rec.SaleReason != types.NotProvided {
		out = append(out, "No application: "+rec.SaleReason)
	}
	if rec.AbruptEnding {
		out = append(out, "Ended abruptly: "+rec.AbruptReason)
	}
	return out
}

// Client posts records to {base}/api/calls/ingest.
type Client struct {
	baseURL    string
	token      string
	http       *http.Client
	maxElapsed time.Duration
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		http:       &http.Client{Timeout: timeout},
		maxElapsed: 30 * time.Second,
	}
}

func (c *Client) Ingest(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/calls/ingest", bytes.NewReader(data))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("ingest status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		if resp.StatusCode >= 300 {
			return backoff.Permanent(fmt.Errorf("ingest status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.maxElapsed
	return backoff.Retry(op, backoff.WithContext(bo, ctx))
}
