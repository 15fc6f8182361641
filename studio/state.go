package studio

import (
	"errors"
	"fmt"
	"time"

	"voxscribe/session"
)

type State int

const (
	Idle State = iota
	Recording
	Processing
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Processing:
		return "processing"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var (
	ErrCaptureInFlight = errors.New("a capture is already in flight")
	ErrNotRecording    = errors.New("not recording")
	ErrNoSelection     = errors.New("no session selected")
	ErrClosed          = errors.New("studio closed")
)

// PermissionDeniedError is returned by Start when no capture stream could be
// acquired, whether the user refused or no device exists.
type PermissionDeniedError struct {
	Reason string
	Err    error
}

func (e *PermissionDeniedError) Error() string {
	return "microphone unavailable: " + e.Reason
}

func (e *PermissionDeniedError) Unwrap() error { return e.Err }

// Snapshot is a consistent view of the controller for rendering.
type Snapshot struct {
	State   State
	Level   float64
	Elapsed time.Duration
	Err     string
	Active  *session.Session
}

// EventSink receives controller updates. Calls are made without any
// controller lock held, from the calling goroutine or from the level and
// ticker tasks.
type EventSink interface {
	StateChanged(state State, detail string)
	AudioLevel(level float64)
	RecordingTick(elapsed time.Duration)
	SessionSaved(s *session.Session)
	SessionDeleted(id string)
}

type NopSink struct{}

func (NopSink) StateChanged(State, string)    {}
func (NopSink) AudioLevel(float64)            {}
func (NopSink) RecordingTick(time.Duration)   {}
func (NopSink) SessionSaved(*session.Session) {}
func (NopSink) SessionDeleted(string)         {}

// Cues plays the audible start/stop/error signals.
type Cues interface {
	Start()
	Stop()
	Error()
}

type nopCues struct{}

func (nopCues) Start() {}
func (nopCues) Stop()  {}
func (nopCues) Error() {}

// Clock abstracts wall time and the one-second elapsed ticker.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) (<-chan time.Time, func())
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// FormatElapsed renders whole seconds as mm:ss.
func FormatElapsed(d time.Duration) string {
	secs := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
