package transcriber

import (
	"context"
	"sync"
	"time"
)

// Fake returns canned text or a canned error. It records every payload it
// was given.
type Fake struct {
	text  string
	err   error
	delay time.Duration

	mu    sync.Mutex
	calls []FakeCall
}

type FakeCall struct {
	Audio    []byte
	MIMEHint string
}

func NewFake(text string, err error) *Fake {
	return &Fake{text: text, err: err}
}

// WithDelay makes every call block for d, or until ctx is done.
func (f *Fake) WithDelay(d time.Duration) *Fake {
	f.delay = d
	return f
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Transcribe(ctx context.Context, audio []byte, mimeHint string) (*Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, FakeCall{Audio: audio, MIMEHint: mimeHint})
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, &Failure{Message: "fake transcription cancelled", Err: ctx.Err()}
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &Result{Text: f.text, Metrics: &NetworkMetrics{TTFB: 10 * time.Millisecond}}, nil
}

func (f *Fake) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeCall(nil), f.calls...)
}
