package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/bbarnes4318/hoppy/internal/logger"
)

// ErrMalformedReply means the service answered but the answer held no
// usable text.
var ErrMalformedReply = errors.New("malformed analysis reply")

// ChatClient sends one system+user exchange and returns the reply text.
type ChatClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// OpenAIChat calls an OpenAI-compatible chat completions endpoint
// (DeepSeek by default).
type OpenAIChat struct {
	baseURL     string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	maxElapsed  time.Duration
	client      *http.Client
	log         *logger.Logger
}

type ChatOption func(*OpenAIChat)

func WithChatHTTPClient(c *http.Client) ChatOption { return func(o *OpenAIChat) { o.client = c } }

func WithMaxTokens(n int) ChatOption { return func(o *OpenAIChat) { o.maxTokens = n } }

func WithTemperature(t float64) ChatOption { return func(o *OpenAIChat) { o.temperature = t } }

// WithRetryBudget bounds the total time spent retrying transient failures.
func WithRetryBudget(d time.Duration) ChatOption { return func(o *OpenAIChat) { o.maxElapsed = d } }

func WithChatLogger(l *logger.Logger) ChatOption { return func(o *OpenAIChat) { o.log = l } }

func NewOpenAIChat(baseURL, apiKey, model string, opts ...ChatOption) *OpenAIChat {
	c := &OpenAIChat{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		model:       model,
		maxTokens:   1024,
		temperature: 0.1,
		maxElapsed:  90 * time.Second,
		client:      http.DefaultClient,
		log:         logger.Discard(),
	}
	for _, o := range opts {
		o(c)
	}
	c.log = c.log.Component("analysis-client")
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

func (c *OpenAIChat) Complete(ctx context.Context, system, user string) (string, error) {
	data, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", err
	}
	c.log.WithField("payload_len", len(data)).Debug("analysis request")

	var content string
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(data))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			c.log.WithError(err).Warn("analysis request failed")
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		c.log.WithField("http_status", resp.StatusCode).Debug("analysis raw:\n" + string(body))

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("analysis service status %d: %s", resp.StatusCode, snippet(body))
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			// Permanent: don't retry on client errors
			return backoff.Permanent(fmt.Errorf("analysis service status %d: %s", resp.StatusCode, snippet(body)))
		}

		content = extractContentFromChoices(body)
		if strings.TrimSpace(content) == "" {
			return backoff.Permanent(fmt.Errorf("%w: no choices[0].message.content in %s", ErrMalformedReply, snippet(body)))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.maxElapsed
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return "", err
	}
	return content, nil
}

// extractContentFromChoices reads openai-style choices[0].message.content
func extractContentFromChoices(body []byte) string {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return ""
	}

	choices, ok := obj["choices"].([]any)
	if !ok || len(choices) == 0 {
		return ""
	}
	c0, _ := choices[0].(map[string]any)
	if c0 == nil {
		return ""
	}
	msg, _ := c0["message"].(map[string]any)
	if msg == nil {
		return ""
	}
	content, _ := msg["content"].(string)
	return content
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 300 {
		return s[:300] + "..."
	}
	return s
}
