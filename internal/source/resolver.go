// Package source classifies raw locators into source items and picks an
// acquisition strategy for each.
package source

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/bbarnes4318/hoppy/internal/types"
)

var ErrInvalidLocator = errors.New("invalid locator")

type Strategy string

const (
	StrategyExtract Strategy = "extract" // streaming video extractor
	StrategyHTTP    Strategy = "http"
	StrategyLocal   Strategy = "local"
)

// Resolution is a classified source item and how to acquire it.
type Resolution struct {
	Item     types.SourceItem
	Strategy Strategy
	// FetchURL is the URL actually requested; differs from the locator for
	// rewritten share links.
	FetchURL string
}

var streamingHosts = []string{"youtube.com", "youtu.be", "vimeo.com"}

// Resolve classifies locator. It never touches the network and only stats
// local paths.
func Resolve(locator string, index int) (Resolution, error) {
	loc := strings.TrimSpace(locator)
	item := types.SourceItem{Index: index, Locator: loc}
	if loc == "" {
		return Resolution{Item: item}, fmt.Errorf("%w: empty", ErrInvalidLocator)
	}

	lower := strings.ToLower(loc)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		u, err := url.Parse(loc)
		if err != nil || u.Host == "" {
			return Resolution{Item: item}, fmt.Errorf("%w: %q is not a valid URL", ErrInvalidLocator, loc)
		}
		if IsStreamingHost(u.Hostname()) {
			item.Kind = types.KindStreamingVideo
			return Resolution{Item: item, Strategy: StrategyExtract, FetchURL: loc}, nil
		}
		item.Kind = types.KindRemoteURL
		return Resolution{Item: item, Strategy: StrategyHTTP, FetchURL: DirectDownloadURL(u)}, nil
	}

	info, err := os.Stat(loc)
	if err != nil {
		return Resolution{Item: item}, fmt.Errorf("%w: %q is neither a URL nor an existing file", ErrInvalidLocator, loc)
	}
	if !info.Mode().IsRegular() {
		return Resolution{Item: item}, fmt.Errorf("%w: %q is not a regular file", ErrInvalidLocator, loc)
	}
	if !AllowedExtension(loc) {
		return Resolution{Item: item}, fmt.Errorf("%w: unsupported extension %q", ErrInvalidLocator, filepath.Ext(loc))
	}
	item.Kind = types.KindLocalFile
	return Resolution{Item: item, Strategy: StrategyLocal, FetchURL: loc}, nil
}

// IsStreamingHost matches known streaming-video hosts and their subdomains.
func IsStreamingHost(host string) bool {
	host = strings.ToLower(host)
	for _, h := range streamingHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// AllowedExtension reports whether path carries an allow-listed media extension.
func AllowedExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range types.MediaExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// DirectDownloadURL rewrites Google Drive share links to their direct
// download form. Other URLs are returned unchanged.
func DirectDownloadURL(u *url.URL) string {
	if !strings.EqualFold(u.Hostname(), "drive.google.com") {
		return u.String()
	}
	id := u.Query().Get("id")
	if parts := strings.Split(strings.Trim(u.Path, "/"), "/"); len(parts) >= 3 && parts[0] == "file" && parts[1] == "d" {
		id = parts[2]
	}
	if id == "" {
		return u.String()
	}
	return "https://drive.google.com/uc?export=download&id=" + url.QueryEscape(id)
}
