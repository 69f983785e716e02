package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbarnes4318/hoppy/internal/types"
)

func TestPremiumCents(t *testing.T) {
	cases := map[string]int64{
		"$42.50":          4250,
		"42":              4200,
		"$1,204.99/month": 120499,
		"about 19.9 a mo": 1990,
	}
	for in, want := range cases {
		got, ok := PremiumCents(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := PremiumCents(types.NotProvided)
	assert.False(t, ok)
}

func TestBuildRecord(t *testing.T) {
	started := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	item := types.SourceItem{Locator: "https://example.com/a.mp3", Kind: types.KindRemoteURL}
	tr := types.Transcript{FullText: "hi", Segments: []types.TranscriptSegment{{Start: 0, End: 95.4, Text: "hi"}}}
	rec := types.AnalysisRecord{
		Billable:          true,
		SaleOrApplication: true,
		BillableReason:    types.NotProvided,
		SaleReason:        types.NotProvided,
		Supporting:        map[string]string{"Agent Name": "Sam", "Monthly Premium": "$42.50"},
		Raw:               "- Billable: Yes",
	}

	r := BuildRecord(item, tr, rec, started)
	assert.Equal(t, 95, r.DurationSec)
	assert.Equal(t, started.Add(95*time.Second), r.EndedAt)
	assert.Equal(t, "connected", r.Disposition)
	assert.Equal(t, "Sam", r.AgentName)
	require.NotNil(t, r.SaleAmountCents)
	assert.EqualValues(t, 4250, *r.SaleAmountCents)
	assert.Equal(t, "en", r.Transcript.Language)
	assert.Equal(t, "https://example.com/a.mp3", r.RecordingURL)
	assert.Equal(t, "- Billable: Yes", r.Summary.Summary)

	rec.SaleOrApplication = false
	rec.SaleReason = "No payment info"
	r = BuildRecord(item, tr, rec, started)
	assert.Nil(t, r.SaleAmountCents)
	assert.Contains(t, r.Summary.KeyPoints, "No application: No payment info")
}

func TestClientIngest(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/calls/ingest", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		var rec Record
		require.NoError(t, json.NewDecoder(r.Body).Decode(&rec))
		assert.Equal(t, "abc", rec.ExternalCallID)
		w.WriteHeader(http.StatusCreated)
	}))
	defer ts.Close()

	err := NewClient(ts.URL+"/", "tok", time.Second).Ingest(context.Background(), Record{ExternalCallID: "abc"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
}

func TestClientIngestRejected(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad partner", http.StatusUnprocessableEntity)
	}))
	defer ts.Close()

	err := NewClient(ts.URL, "", time.Second).Ingest(context.Background(), Record{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.EqualValues(t, 1, calls.Load())
}
