package session

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportLayout(t *testing.T) {
	s := &Session{
		ID:              "0123456789abcdef",
		Title:           "Session — Mar 5, 02:07 PM",
		CreatedAt:       t0,
		Segments:        []Segment{{ID: "seg", Text: "hello world", DurationMs: 3200}},
		FullText:        "hello world",
		TotalDurationMs: 3200,
	}
	want := "VoxScribe Transcript\n" +
		"─────────────────────────────────\n" +
		"Title: Session — Mar 5, 02:07 PM\n" +
		"Date:  3/5/2024, 2:07:09 PM\n" +
		"Duration: 3s\n" +
		"\n" +
		"TRANSCRIPT\n" +
		"─────────────────────────────────\n" +
		"hello world"

	st := NewStore(NewMemoryBackend(), WithLocation(time.UTC))
	got := st.Export(s)
	assert.Equal(t, want, string(got))
	assert.Equal(t, got, st.Export(s), "export must be deterministic")

	var buf bytes.Buffer
	require.NoError(t, st.WriteExport(&buf, s))
	assert.Equal(t, want, buf.String())

	assert.Equal(t, "voxscribe-01234567.txt", ExportFilename(s))
	assert.Equal(t, "text/plain; charset=utf-8", ExportMIMEType)
}

func TestExportRoundsDuration(t *testing.T) {
	s := mustNew(t, t0, "x")
	s.TotalDurationMs = 2500
	assert.Contains(t, string(Export(s, time.UTC)), "\nDuration: 3s\n")
	s.TotalDurationMs = 400
	assert.Contains(t, string(Export(s, time.UTC)), "\nDuration: 0s\n")
}

func TestExportUsesLocation(t *testing.T) {
	s := mustNew(t, t0, "x")
	est := time.FixedZone("EST", -5*3600)
	assert.Contains(t, string(Export(s, est)), "Date:  3/5/2024, 9:07:09 AM\n")
}

func TestExportToDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	st := NewStore(NewMemoryBackend())
	s := mustNew(t, t0, "saved to disk")

	path, err := st.ExportToDir(dir, s)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ExportFilename(s)), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, st.Export(s), data)
}
