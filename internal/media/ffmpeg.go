package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// FFmpeg compresses and segments media with the ffmpeg CLI.
type FFmpeg struct {
	binPath string
}

// NewFFmpeg creates an FFmpeg transcoder. If binPath is empty, "ffmpeg" is used.
func NewFFmpeg(binPath string) *FFmpeg {
	if binPath == "" {
		binPath = "ffmpeg"
	}
	return &FFmpeg{binPath: binPath}
}

// Compress re-encodes src as 32 kbit/s 16 kHz mono mp3 at dst.
func (f *FFmpeg) Compress(ctx context.Context, src, dst string) error {
	return f.run(ctx, "-hide_banner", "-loglevel", "error",
		"-i", src,
		"-vn", "-acodec", "libmp3lame", "-ab", "32k", "-ar", "16000", "-ac", "1",
		"-y", dst)
}

// Split cuts src into consecutive segments of the given length in dir and
// returns their paths in order.
func (f *FFmpeg) Split(ctx context.Context, src, dir, stem string, seconds int) ([]string, error) {
	pattern := filepath.Join(dir, stem+"_part_%03d.mp3")
	err := f.run(ctx, "-hide_banner", "-loglevel", "error",
		"-i", src,
		"-f", "segment", "-segment_time", strconv.Itoa(seconds),
		"-reset_timestamps", "1", "-c", "copy",
		"-y", pattern)
	parts, _ := filepath.Glob(filepath.Join(dir, stem+"_part_*.mp3"))
	sort.Strings(parts)
	if err != nil {
		return parts, err
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("ffmpeg produced no segments for %s", src)
	}
	return parts, nil
}

func (f *FFmpeg) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, f.binPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg %s: %w: %s", args[len(args)-1], err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
