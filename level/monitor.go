package level

import (
	"context"
	"time"
)

const DefaultFrameRate = 60

// FrameSource starts a frame clock. The returned stop func releases it.
type FrameSource func() (frames <-chan time.Time, stop func())

// Ticker is a FrameSource firing rate times per second.
func Ticker(rate int) FrameSource {
	if rate <= 0 {
		rate = DefaultFrameRate
	}
	return func() (<-chan time.Time, func()) {
		t := time.NewTicker(time.Second / time.Duration(rate))
		return t.C, t.Stop
	}
}

// Source is anything that can report the current level.
type Source interface {
	Level() float64
}

// Monitor republishes the level of its source once per frame.
type Monitor struct {
	src    Source
	frames FrameSource
}

func NewMonitor(src Source, frames FrameSource) *Monitor {
	if frames == nil {
		frames = Ticker(DefaultFrameRate)
	}
	return &Monitor{src: src, frames: frames}
}

// Run blocks until ctx is cancelled. Cancellation is checked before every
// read so no frame touches the source once Run's context is done.
func (m *Monitor) Run(ctx context.Context, publish func(float64)) error {
	frames, stop := m.frames()
	defer stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-frames:
		}
		if ctx.Err() != nil {
			return nil
		}
		publish(m.src.Level())
	}
}
