package media

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/bbarnes4318/hoppy/internal/source"
)

const (
	maxHintLen  = 30
	maxNameLen  = 150
	defaultHint = "recording"
	defaultExt  = ".mp4"
)

var (
	unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)
	underscores = regexp.MustCompile(`_+`)
)

// Stem is the deterministic base name for a locator: a sanitized hint from
// its path followed by the first 16 hex chars of its md5.
func Stem(locator string) string {
	sum := md5.Sum([]byte(locator))
	return hint(locator) + "_" + hex.EncodeToString(sum[:])[:16]
}

// FileName is Stem plus the media extension implied by the locator.
func FileName(locator string) string {
	name := Stem(locator) + extension(locator)
	if len(name) > maxNameLen {
		name = name[len(name)-maxNameLen:]
	}
	return name
}

// UniquePath returns dir/name, or dir/name_N for the first free N.
func UniquePath(dir, name string) string {
	candidate := filepath.Join(dir, name)
	if _, err := os.Stat(candidate); os.IsNotExist(err) {
		return candidate
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		candidate = filepath.Join(dir, base+"_"+strconv.Itoa(i)+ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

func locatorPath(locator string) string {
	if u, err := url.Parse(locator); err == nil && u.Host != "" {
		return u.Path
	}
	return filepath.ToSlash(locator)
}

func hint(locator string) string {
	base := path.Base(locatorPath(locator))
	base = strings.TrimSuffix(base, path.Ext(base))
	h := unsafeChars.ReplaceAllString(base, "_")
	h = underscores.ReplaceAllString(h, "_")
	h = strings.Trim(h, "_-")
	if len(h) > maxHintLen {
		h = strings.TrimRight(h[:maxHintLen], "_-")
	}
	if h == "" {
		return defaultHint
	}
	return h
}

func extension(locator string) string {
	p := locatorPath(locator)
	if source.AllowedExtension(p) {
		return strings.ToLower(path.Ext(p))
	}
	return defaultExt
}
