package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bbarnes4318/hoppy/internal/types"
)

func optionBaseURL(u string) []option.RequestOption {
	return []option.RequestOption{option.WithBaseURL(u), option.WithMaxRetries(0)}
}

type mockChat struct {
	mock.Mock
}

func (m *mockChat) Complete(ctx context.Context, system, user string) (string, error) {
	args := m.Called(ctx, system, user)
	return args.String(0), args.Error(1)
}

func TestAnalyzeSuccess(t *testing.T) {
	chat := &mockChat{}
	chat.On("Complete", mock.Anything, SystemPrompt, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "Agent: we can get you covered")
	})).Return("- Billable: Yes\n- Application Submitted: Yes\n- Agent Name: Sam", nil)

	rec, err := NewAnalyzer(chat, 15000, time.Second, nil).Analyze(context.Background(), "Agent: we can get you covered")
	require.NoError(t, err)
	assert.True(t, rec.Billable)
	assert.True(t, rec.SaleOrApplication)
	assert.Equal(t, "Sam", rec.Supporting["Agent Name"])
	assert.NotEmpty(t, rec.Raw)
	chat.AssertExpectations(t)
}

func TestAnalyzeTransportFailure(t *testing.T) {
	chat := &mockChat{}
	chat.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("connection reset"))

	rec, err := NewAnalyzer(chat, 15000, time.Second, nil).Analyze(context.Background(), "hello")
	require.ErrorIs(t, err, ErrAnalysis)
	assert.False(t, rec.Billable)
	assert.Equal(t, types.NotProvided, rec.Supporting["Agent Name"])
	assert.Contains(t, rec.Detail, "connection reset")
}

func TestAnalyzeMalformedIsNotAnError(t *testing.T) {
	chat := &mockChat{}
	chat.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return("", fmt.Errorf("%w: empty", ErrMalformedReply))

	rec, err := NewAnalyzer(chat, 15000, time.Second, nil).Analyze(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, Sentinel().Supporting, rec.Supporting)
	assert.NotEmpty(t, rec.Detail)
}

func TestAnalyzeTimeout(t *testing.T) {
	chat := &mockChat{}
	chat.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return("", context.DeadlineExceeded)

	_, err := NewAnalyzer(chat, 15000, 20*time.Millisecond, nil).Analyze(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrAnalysis)
}

func TestAnalyzeEmptyTranscriptSkipsCall(t *testing.T) {
	chat := &mockChat{}
	rec, err := NewAnalyzer(chat, 15000, time.Second, nil).Analyze(context.Background(), "  ")
	require.NoError(t, err)
	assert.Equal(t, "empty transcript", rec.Detail)
	chat.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything)
}

func TestAnalyzeMarksTruncation(t *testing.T) {
	chat := &mockChat{}
	chat.On("Complete", mock.Anything, mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "(TRUNCATED)")
	})).Return("Billable: No", nil)

	rec, err := NewAnalyzer(chat, 50, time.Second, nil).Analyze(context.Background(), strings.Repeat("word ", 100))
	require.NoError(t, err)
	assert.True(t, rec.Truncated)
}
