package transcriber

import (
	"context"
	"strings"
	"time"
)

const (
	DefaultDemoDelay = 1500 * time.Millisecond

	// DemoMarker prefixes every placeholder transcript.
	DemoMarker = "[Demo mode"

	DemoText = DemoMarker + ": add VOXSCRIBE_API_KEY to enable real transcription]\n\n" +
		"This is a sample transcript that would appear after recording. " +
		"VoxScribe sends your voice to a Whisper transcription API and stores the text as a session. " +
		"The text appears here as soon as you stop recording."
)

// IsDemoText reports whether text came from the demo transcriber.
func IsDemoText(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), DemoMarker)
}

// Demo stands in for a real service when no credential is configured.
type Demo struct {
	delay time.Duration
}

// NewDemo uses DefaultDemoDelay when delay is zero. A negative delay answers
// immediately.
func NewDemo(delay time.Duration) *Demo {
	if delay < 0 {
		delay = 0
	} else if delay == 0 {
		delay = DefaultDemoDelay
	}
	return &Demo{delay: delay}
}

func (d *Demo) Name() string { return "demo" }

func (d *Demo) Transcribe(ctx context.Context, _ []byte, _ string) (*Result, error) {
	t := time.NewTimer(d.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return nil, &Failure{Message: "demo transcription cancelled", Err: ctx.Err()}
	case <-t.C:
	}
	return &Result{Text: DemoText, Demo: true, Metrics: &NetworkMetrics{}}, nil
}
