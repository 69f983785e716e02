package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

const (
	sniffLen         = 512
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Downloader streams remote media to disk and rejects responses that are
// error pages or too small to be media.
type Downloader struct {
	client   *http.Client
	minBytes int64
}

func NewDownloader(client *http.Client, minBytes int64) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Downloader{client: client, minBytes: minBytes}
}

// Download writes fetchURL to dst and returns the byte count. dst is
// removed on any failure.
func (d *Downloader) Download(ctx context.Context, fetchURL, dst string) (n int64, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: build request: %v", ErrDownload, err)
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDownload, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("%w: http status %d", ErrDownload, resp.StatusCode)
	}
	if ct := strings.ToLower(resp.Header.Get("Content-Type")); strings.HasPrefix(ct, "text/html") {
		return 0, fmt.Errorf("%w: server returned html (%s)", ErrDownload, ct)
	}

	f, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("%w: create %s: %v", ErrDownload, dst, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: close %s: %v", ErrDownload, dst, cerr)
		}
		if err != nil {
			os.Remove(dst)
		}
	}()

	head := &headCapture{}
	n, err = io.Copy(io.MultiWriter(f, head), resp.Body)
	if err != nil {
		return n, fmt.Errorf("%w: read body: %v", ErrDownload, err)
	}
	if n < d.minBytes {
		return n, fmt.Errorf("%w: file too small (%d bytes)", ErrDownload, n)
	}
	if LooksLikeHTML(head.buf) && !HasMediaSignature(head.buf) {
		return n, fmt.Errorf("%w: body is an html page", ErrDownload)
	}
	return n, nil
}

type headCapture struct {
	buf []byte
}

func (h *headCapture) Write(p []byte) (int, error) {
	if need := sniffLen - len(h.buf); need > 0 {
		if need > len(p) {
			need = len(p)
		}
		h.buf = append(h.buf, p[:need]...)
	}
	return len(p), nil
}

// LooksLikeHTML reports whether head starts like an HTML document.
func LooksLikeHTML(head []byte) bool {
	b := bytes.TrimPrefix(head, []byte("\xEF\xBB\xBF"))
	b = bytes.TrimLeft(b, " \t\r\n")
	lower := bytes.ToLower(b[:min(len(b), 16)])
	return bytes.HasPrefix(lower, []byte("<!doctype")) || bytes.HasPrefix(lower, []byte("<html"))
}

var signatures = [][]byte{
	[]byte("RIFF"),
	[]byte("ID3"),
	{0xFF, 0xFB},
	{0xFF, 0xF3},
	{0xFF, 0xF2},
	[]byte("OggS"),
	[]byte("fLaC"),
	{0x1A, 0x45, 0xDF, 0xA3}, // matroska / webm
	{0x30, 0x26, 0xB2, 0x75}, // asf / wmv
}

// HasMediaSignature matches the leading magic bytes of common audio and
// video containers.
func HasMediaSignature(head []byte) bool {
	for _, sig := range signatures {
		if bytes.HasPrefix(head, sig) {
			return true
		}
	}
	// mp4 / mov / m4a: box size then "ftyp"
	return len(head) >= 8 && string(head[4:8]) == "ftyp"
}
