package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// YTDLP pulls the audio track of streaming-video URLs with the yt-dlp CLI.
type YTDLP struct {
	binPath string
}

// NewYTDLP creates a YTDLP extractor. If binPath is empty, "yt-dlp" is used.
func NewYTDLP(binPath string) *YTDLP {
	if binPath == "" {
		binPath = "yt-dlp"
	}
	return &YTDLP{binPath: binPath}
}

// Extract saves the audio of rawURL as dir/stem.mp3 and returns its path.
func (y *YTDLP) Extract(ctx context.Context, rawURL, dir, stem string) (string, error) {
	tmpl := filepath.Join(dir, stem+".%(ext)s")
	cmd := exec.CommandContext(ctx, y.binPath,
		"-x", "--audio-format", "mp3", "--audio-quality", "128K",
		"--no-playlist", "--quiet", "--no-warnings",
		"-o", tmpl, rawURL)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("yt-dlp %s: %w: %s", rawURL, err, strings.TrimSpace(stderr.String()))
	}

	matches, _ := filepath.Glob(filepath.Join(dir, stem+".*"))
	sort.Strings(matches)
	for _, m := range matches {
		if strings.HasSuffix(m, ".part") || strings.HasSuffix(m, ".ytdl") {
			continue
		}
		return m, nil
	}
	return "", fmt.Errorf("yt-dlp produced no file for %s", rawURL)
}
