package dataset

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/bbarnes4318/hoppy/internal/source"
)

// Enumerate returns the locators named by input: a directory is scanned for
// media files, an .xlsx workbook is read for a URL column, anything else is
// treated as a newline-delimited list.
func Enumerate(input string) ([]string, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, fmt.Errorf("input %q: %w", input, err)
	}
	if info.IsDir() {
		return ScanDir(input)
	}
	if strings.EqualFold(filepath.Ext(input), ".xlsx") {
		return LoadSheet(input)
	}
	return LoadList(input)
}

// LoadList reads one locator per line, skipping blanks and # comments.
func LoadList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open list: %w", err)
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read list: %w", err)
	}
	return out, nil
}

// ScanDir walks dir recursively and returns media files in lexical order.
func ScanDir(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if source.AllowedExtension(path) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan dir: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

// LoadSheet reads recording URLs from the first sheet of a workbook. The URL
// column is detected from header keywords.
func LoadSheet(path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) <= 1 {
		return nil, fmt.Errorf("no data rows")
	}

	urlIdx := urlColumn(rows[0])
	if urlIdx == -1 {
		return nil, fmt.Errorf("no recording url column in %q", sheets[0])
	}

	var out []string
	for _, r := range rows[1:] {
		if urlIdx >= len(r) {
			continue
		}
		v := strings.TrimSpace(r[urlIdx])
		l := strings.ToLower(v)
		// skip rows without a usable link quietly
		if !(strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")) {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func urlColumn(header []string) int {
	for i, h := range header {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(l, "recording"),
			strings.Contains(l, "audio"),
			strings.Contains(l, "url"),
			strings.Contains(l, "call") && strings.Contains(l, "link"):
			return i
		}
	}
	// exports without headers usually carry the link in column E
	if len(header) > 4 {
		return 4
	}
	return -1
}
