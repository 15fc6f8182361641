package session

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const ExportMIMEType = "text/plain; charset=utf-8"

var rule = strings.Repeat("─", 33)

// Export renders the transcript download. The output depends only on the
// session and loc, so equal inputs give identical bytes.
func Export(s *Session, loc *time.Location) []byte {
	if loc == nil {
		loc = time.UTC
	}
	lines := []string{
		"VoxScribe Transcript",
		rule,
		"Title: " + s.Title,
		"Date:  " + s.CreatedAt.In(loc).Format("1/2/2006, 3:04:05 PM"),
		fmt.Sprintf("Duration: %.0fs", math.Round(float64(s.TotalDurationMs)/1000)),
		"",
		"TRANSCRIPT",
		rule,
		s.FullText,
	}
	return []byte(strings.Join(lines, "\n"))
}

func ExportFilename(s *Session) string {
	id := s.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return "voxscribe-" + id + ".txt"
}

func (st *Store) Export(s *Session) []byte {
	return Export(s, st.loc)
}

func (st *Store) WriteExport(w io.Writer, s *Session) error {
	_, err := w.Write(st.Export(s))
	return err
}

// ExportToDir writes the transcript into dir and returns the file path.
func (st *Store) ExportToDir(dir string, s *Session) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating export dir: %w", err)
	}
	path := filepath.Join(dir, ExportFilename(s))
	if err := os.WriteFile(path, st.Export(s), 0644); err != nil {
		return "", fmt.Errorf("writing export: %w", err)
	}
	return path, nil
}
