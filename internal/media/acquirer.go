// Package media acquires recordings to local disk and shapes them to a size
// the speech service accepts.
package media

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bbarnes4318/hoppy/internal/logger"
	"github.com/bbarnes4318/hoppy/internal/source"
	"github.com/bbarnes4318/hoppy/internal/types"
)

var (
	ErrDownload   = errors.New("download failed")
	ErrConversion = errors.New("conversion failed")
)

type Transcoder interface {
	Compress(ctx context.Context, src, dst string) error
	Split(ctx context.Context, src, dir, stem string, seconds int) ([]string, error)
}

type Extractor interface {
	Extract(ctx context.Context, rawURL, dir, stem string) (string, error)
}

type Options struct {
	Dir             string
	CompressAbove   int64
	SplitAbove      int64
	SegmentSeconds  int
	DownloadTimeout time.Duration
	ExtractTimeout  time.Duration
	MinBytes        int64
}

type Acquirer struct {
	opts       Options
	downloader *Downloader
	transcoder Transcoder
	extractor  Extractor
	log        *logger.Logger
}

func NewAcquirer(opts Options, client *http.Client, transcoder Transcoder, extractor Extractor, log *logger.Logger) *Acquirer {
	if log == nil {
		log = logger.Discard()
	}
	return &Acquirer{
		opts:       opts,
		downloader: NewDownloader(client, opts.MinBytes),
		transcoder: transcoder,
		extractor:  extractor,
		log:        log.Component("media"),
	}
}

// Acquire materializes the resolved item as a local file. Supplied local
// files are returned as-is and are never owned.
func (a *Acquirer) Acquire(ctx context.Context, res source.Resolution) (types.MediaAsset, error) {
	switch res.Strategy {
	case source.StrategyLocal:
		info, err := os.Stat(res.FetchURL)
		if err != nil {
			return types.MediaAsset{}, fmt.Errorf("%w: %v", ErrDownload, err)
		}
		return types.MediaAsset{
			Path:      res.FetchURL,
			ByteSize:  info.Size(),
			Extension: strings.ToLower(filepath.Ext(res.FetchURL)),
		}, nil

	case source.StrategyHTTP:
		if err := os.MkdirAll(a.opts.Dir, 0o755); err != nil {
			return types.MediaAsset{}, fmt.Errorf("%w: %v", ErrDownload, err)
		}
		dst := UniquePath(a.opts.Dir, FileName(res.Item.Locator))
		ctx, cancel := withTimeout(ctx, a.opts.DownloadTimeout)
		defer cancel()

		start := time.Now()
		n, err := a.downloader.Download(ctx, res.FetchURL, dst)
		if err != nil {
			return types.MediaAsset{}, err
		}
		a.log.WithField("path", dst).WithField("bytes", n).
			WithField("duration_ms", time.Since(start).Milliseconds()).Info("downloaded")
		return types.MediaAsset{Path: dst, ByteSize: n, Extension: filepath.Ext(dst), Owned: true}, nil

	case source.StrategyExtract:
		if a.extractor == nil {
			return types.MediaAsset{}, fmt.Errorf("%w: no streaming extractor configured", ErrDownload)
		}
		if err := os.MkdirAll(a.opts.Dir, 0o755); err != nil {
			return types.MediaAsset{}, fmt.Errorf("%w: %v", ErrDownload, err)
		}
		stem := strings.TrimSuffix(filepath.Base(UniquePath(a.opts.Dir, Stem(res.Item.Locator)+".mp3")), ".mp3")
		ctx, cancel := withTimeout(ctx, a.opts.ExtractTimeout)
		defer cancel()

		path, err := a.extractor.Extract(ctx, res.FetchURL, a.opts.Dir, stem)
		if err != nil {
			return types.MediaAsset{}, fmt.Errorf("%w: %v", ErrDownload, err)
		}
		info, err := os.Stat(path)
		if err != nil {
			return types.MediaAsset{}, fmt.Errorf("%w: %v", ErrDownload, err)
		}
		a.log.WithField("path", path).WithField("bytes", info.Size()).Info("extracted audio")
		return types.MediaAsset{Path: path, ByteSize: info.Size(), Extension: filepath.Ext(path), Owned: true}, nil
	}
	return types.MediaAsset{}, fmt.Errorf("%w: unknown strategy %q", ErrDownload, res.Strategy)
}

// Prepare returns the assets to transcribe, in order. Assets at or under the
// compression threshold pass through; larger ones are compressed, and a
// compressed result over the split threshold is cut into segments. A
// supplied original is never modified or removed.
func (a *Acquirer) Prepare(ctx context.Context, asset types.MediaAsset) ([]types.MediaAsset, error) {
	if asset.ByteSize <= a.opts.CompressAbove {
		return []types.MediaAsset{asset}, nil
	}
	if a.transcoder == nil {
		return nil, fmt.Errorf("%w: no transcoder for %d byte file", ErrConversion, asset.ByteSize)
	}
	if err := os.MkdirAll(a.opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversion, err)
	}

	stem := strings.TrimSuffix(filepath.Base(asset.Path), filepath.Ext(asset.Path))
	dst := UniquePath(a.opts.Dir, stem+"_compressed.mp3")
	log := a.log.WithField("source", asset.Path)
	log.WithField("bytes", asset.ByteSize).Info("compressing oversized media")

	if err := a.transcoder.Compress(ctx, asset.Path, dst); err != nil {
		os.Remove(dst)
		return nil, fmt.Errorf("%w: %v", ErrConversion, err)
	}
	info, err := os.Stat(dst)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversion, err)
	}
	compressed := types.MediaAsset{Path: dst, ByteSize: info.Size(), Extension: ".mp3", Owned: true}
	if asset.Owned {
		os.Remove(asset.Path)
	}
	log.WithField("bytes", compressed.ByteSize).Info("compressed")

	if compressed.ByteSize <= a.opts.SplitAbove {
		return []types.MediaAsset{compressed}, nil
	}

	partStem := strings.TrimSuffix(filepath.Base(dst), ".mp3")
	paths, err := a.transcoder.Split(ctx, dst, a.opts.Dir, partStem, a.opts.SegmentSeconds)
	os.Remove(dst)
	if err != nil {
		for _, p := range paths {
			os.Remove(p)
		}
		return nil, fmt.Errorf("%w: %v", ErrConversion, err)
	}

	parts := make([]types.MediaAsset, 0, len(paths))
	for _, p := range paths {
		pi, err := os.Stat(p)
		if err != nil {
			Remove(parts...)
			return nil, fmt.Errorf("%w: %v", ErrConversion, err)
		}
		parts = append(parts, types.MediaAsset{Path: p, ByteSize: pi.Size(), Extension: ".mp3", Owned: true})
	}
	log.WithField("parts", len(parts)).Info("split into segments")
	return parts, nil
}

// Remove deletes owned assets. Missing files are ignored.
func Remove(assets ...types.MediaAsset) {
	for _, as := range assets {
		if !as.Owned || as.Path == "" {
			continue
		}
		os.Remove(as.Path)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
