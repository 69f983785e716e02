package diarization

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/bbarnes4318/hoppy/internal/types"
)

// Client calls a diarization service that accepts a multipart audio upload
// at /diarize and answers with speaker turns.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), token: token, http: httpClient}
}

type turnsResponse struct {
	Turns []types.SpeakerTurn `json:"turns"`
}

func (c *Client) Diarize(ctx context.Context, path string) ([]types.SpeakerTurn, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	defer pr.Close()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeAudio(mw, f, filepath.Base(path)))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/diarize", pr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("diarization request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read diarization response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("diarization service status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	// accept {"turns":[...]} or a bare array
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var turns []types.SpeakerTurn
		if err := json.Unmarshal(trimmed, &turns); err != nil {
			return nil, fmt.Errorf("decode turns: %w", err)
		}
		return turns, nil
	}
	var tr turnsResponse
	if err := json.Unmarshal(trimmed, &tr); err != nil {
		return nil, fmt.Errorf("decode turns: %w", err)
	}
	return tr.Turns, nil
}

func writeAudio(mw *multipart.Writer, audio io.Reader, name string) error {
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, audio); err != nil {
		return fmt.Errorf("read audio: %w", err)
	}
	return mw.Close()
}
