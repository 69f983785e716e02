package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestLoadList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urls.txt")
	body := "# batch 12\nhttps://example.com/a.mp3\n\n   \n  https://example.com/b.wav  \n#https://skipped\nlocal/call.m4a\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	got, err := LoadList(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/a.mp3", "https://example.com/b.wav", "local/call.m4a"}, got)
}

func TestScanDirRecursiveAllowList(t *testing.T) {
	dir := t.TempDir()
	files := []string{"b.mp3", "a.WAV", "notes.txt", "sub/c.mkv", "sub/deeper/d.flac", "sub/e.pdf"}
	for _, f := range files {
		p := filepath.Join(dir, f)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}

	got, err := ScanDir(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.WAV"),
		filepath.Join(dir, "b.mp3"),
		filepath.Join(dir, "sub/c.mkv"),
		filepath.Join(dir, "sub/deeper/d.flac"),
	}, got)
}

func writeSheet(t *testing.T, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	path := filepath.Join(t.TempDir(), "calls.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestLoadSheetHeaderDetection(t *testing.T) {
	path := writeSheet(t, [][]any{
		{"Call ID", "Agent", "Recording URL"},
		{"1", "Sam", "https://example.com/1.mp3"},
		{"2", "Ana", "n/a"},
		{"3", "Lee", "https://example.com/3.wav"},
	})

	got, err := LoadSheet(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/1.mp3", "https://example.com/3.wav"}, got)
}

func TestEnumerateDispatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.ogg"), []byte("x"), 0o644))
	got, err := Enumerate(dir)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	sheet := writeSheet(t, [][]any{{"audio"}, {"https://example.com/z.mp3"}})
	got, err = Enumerate(sheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/z.mp3"}, got)

	_, err = Enumerate(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}
