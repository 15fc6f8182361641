package level

import "time"

const (
	// VoiceThreshold is the level above which a frame counts as voiced.
	VoiceThreshold    = 0.02
	DefaultSilenceFor = 3 * time.Second

	speechMinRatio   = 0.10
	speechClearRatio = 0.25 // higher threshold to clear the warning (hysteresis)
)

type SilenceEvent int

const (
	SilenceNone  SilenceEvent = iota
	SilenceWarn               // no voice over the whole window
	SilenceClear              // voice resumed after a warning
)

// SilenceDetector watches a stream of levels, one per frame, and reports
// when the recent window holds too little voice.
type SilenceDetector struct {
	window []bool
	frames int
	voiced int
	warned bool
}

// NewSilenceDetector sizes the window to cover d at frameRate levels per
// second.
func NewSilenceDetector(frameRate int, d time.Duration) *SilenceDetector {
	n := max(int(d.Seconds()*float64(frameRate)), 1)
	return &SilenceDetector{window: make([]bool, n)}
}

// Observe records one level and returns any state change.
func (s *SilenceDetector) Observe(level float64) SilenceEvent {
	voiced := level >= VoiceThreshold
	idx := s.frames % len(s.window)
	if s.frames >= len(s.window) && s.window[idx] {
		s.voiced--
	}
	s.window[idx] = voiced
	if voiced {
		s.voiced++
	}
	s.frames++

	seen := min(s.frames, len(s.window))
	ratio := float64(s.voiced) / float64(seen)

	if !s.warned && s.frames >= len(s.window) && ratio < speechMinRatio {
		s.warned = true
		return SilenceWarn
	}
	if s.warned && ratio >= speechClearRatio {
		s.warned = false
		return SilenceClear
	}
	return SilenceNone
}

// Warned reports whether a warning is currently raised.
func (s *SilenceDetector) Warned() bool { return s.warned }

func (s *SilenceDetector) Reset() {
	clear(s.window)
	s.frames, s.voiced, s.warned = 0, 0, false
}
