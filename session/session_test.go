package session

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)

func mustNew(t *testing.T, at time.Time, texts ...string) *Session {
	t.Helper()
	var segs []Segment
	var offset time.Duration
	for _, text := range texts {
		segs = append(segs, NewSegment(text, offset, time.Second))
		offset += time.Second
	}
	s, err := New(at, segs...)
	require.NoError(t, err)
	return s
}

func TestNewSingleSegment(t *testing.T) {
	s, err := New(t0, NewSegment("hello world", 0, 3200*time.Millisecond))
	require.NoError(t, err)

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "hello world", s.FullText)
	assert.Equal(t, int64(3200), s.TotalDurationMs)
	require.Len(t, s.Segments, 1)
	assert.Equal(t, int64(0), s.Segments[0].TimestampOffsetMs)
	assert.Equal(t, int64(3200), s.Segments[0].DurationMs)
	assert.Equal(t, "Session — Mar 5, 02:07 PM", s.Title)
}

func TestNewJoinsSegments(t *testing.T) {
	s := mustNew(t, t0, "one", "two", "three")
	assert.Equal(t, "one two three", s.FullText)
	assert.Equal(t, int64(3000), s.TotalDurationMs)
}

func TestNewRejects(t *testing.T) {
	_, err := New(t0)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = New(t0, NewSegment("   ", 0, time.Second))
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = New(t0, NewSegment("x", -time.Second, time.Second))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestValidateFullTextConsistency(t *testing.T) {
	s := mustNew(t, t0, "hello", "world")
	s.FullText = "hello  world"
	assert.ErrorIs(t, s.Validate(), ErrInvalid)
}

func TestJSONFieldNames(t *testing.T) {
	s := mustNew(t, t0, "hi")
	data, err := json.Marshal(s)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	for _, k := range []string{"id", "title", "createdAt", "segments", "fullText", "totalDurationMs"} {
		assert.Contains(t, m, k)
	}
	seg := m["segments"].([]any)[0].(map[string]any)
	for _, k := range []string{"id", "text", "timestampOffsetMs", "durationMs"} {
		assert.Contains(t, seg, k)
	}
	assert.Equal(t, "2024-03-05T14:07:09Z", m["createdAt"])
}

func TestSummaryHelpers(t *testing.T) {
	assert.Equal(t, 3, WordCount("  hello   big\nworld "))
	assert.Equal(t, 0, WordCount("   "))

	assert.Equal(t, "short", Preview("short", PreviewLength))
	long := ""
	for i := 0; i < 100; i++ {
		long += "é"
	}
	p := Preview(long, PreviewLength)
	assert.Equal(t, PreviewLength+1, len([]rune(p)))
	assert.Equal(t, "…", string([]rune(p)[PreviewLength:]))

	assert.Equal(t, "42s", FormatDuration(42000))
	assert.Equal(t, "3s", FormatDuration(3200))
	assert.Equal(t, "1m5s", FormatDuration(65000))

	now := t0
	assert.Equal(t, "just now", FormatAge(now.Add(-30*time.Second), now))
	assert.Equal(t, "5m ago", FormatAge(now.Add(-5*time.Minute), now))
	assert.Equal(t, "3h ago", FormatAge(now.Add(-3*time.Hour-10*time.Minute), now))
	assert.Equal(t, "2d ago", FormatAge(now.Add(-50*time.Hour), now))
}
