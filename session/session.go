// Package session holds finished transcripts and the store that persists them.
package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Segment struct {
	ID                string `json:"id"`
	Text              string `json:"text"`
	TimestampOffsetMs int64  `json:"timestampOffsetMs"`
	DurationMs        int64  `json:"durationMs"`
}

// Session is immutable once built. FullText always equals the segment texts
// joined by a single space.
type Session struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	CreatedAt       time.Time `json:"createdAt"`
	Segments        []Segment `json:"segments"`
	FullText        string    `json:"fullText"`
	TotalDurationMs int64     `json:"totalDurationMs"`
}

var (
	ErrInvalid   = errors.New("invalid session")
	ErrNotFound  = errors.New("session not found")
	ErrDuplicate = errors.New("session already exists")
)

func NewSegment(text string, offset, duration time.Duration) Segment {
	return Segment{
		ID:                uuid.NewString(),
		Text:              text,
		TimestampOffsetMs: offset.Milliseconds(),
		DurationMs:        duration.Milliseconds(),
	}
}

// New assembles a session from its segments. The total duration spans from
// zero to the end of the last segment.
func New(createdAt time.Time, segments ...Segment) (*Session, error) {
	var total int64
	for _, seg := range segments {
		total = max(total, seg.TimestampOffsetMs+seg.DurationMs)
	}
	s := &Session{
		ID:              uuid.NewString(),
		Title:           Title(createdAt),
		CreatedAt:       createdAt,
		Segments:        append([]Segment(nil), segments...),
		FullText:        JoinText(segments),
		TotalDurationMs: total,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func Title(t time.Time) string {
	return "Session — " + t.Format("Jan 2, 03:04 PM")
}

func JoinText(segments []Segment) string {
	texts := make([]string, len(segments))
	for i, seg := range segments {
		texts[i] = seg.Text
	}
	return strings.Join(texts, " ")
}

func (s *Session) Validate() error {
	switch {
	case s.ID == "":
		return fmt.Errorf("%w: missing id", ErrInvalid)
	case len(s.Segments) == 0:
		return fmt.Errorf("%w %s: no segments", ErrInvalid, s.ID)
	case strings.TrimSpace(s.FullText) == "":
		return fmt.Errorf("%w %s: empty transcript", ErrInvalid, s.ID)
	case s.FullText != JoinText(s.Segments):
		return fmt.Errorf("%w %s: fullText does not match segments", ErrInvalid, s.ID)
	case s.TotalDurationMs < 0:
		return fmt.Errorf("%w %s: negative duration", ErrInvalid, s.ID)
	}
	for _, seg := range s.Segments {
		if seg.ID == "" {
			return fmt.Errorf("%w %s: segment without id", ErrInvalid, s.ID)
		}
		if seg.TimestampOffsetMs < 0 || seg.DurationMs < 0 {
			return fmt.Errorf("%w %s: negative segment timing", ErrInvalid, s.ID)
		}
	}
	return nil
}

func (s *Session) Duration() time.Duration {
	return time.Duration(s.TotalDurationMs) * time.Millisecond
}
