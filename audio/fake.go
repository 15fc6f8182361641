package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"sync"
	"time"
)

const (
	fakeFrameSize     = 1024
	fakeBytesPerFrame = 2 // 16-bit mono
	fakeSampleRate    = 16000
)

// FakeContext replays PCM instead of opening a real microphone. It backs
// the headless test mode and the doctor checks.
type FakeContext struct {
	pcm      []byte
	realtime bool

	// StartErr, when set, is returned by every capture's Start to mimic a
	// refused permission prompt.
	StartErr error
}

func NewFakeContext(wavPath string, realtime bool) (*FakeContext, error) {
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, err
	}
	if len(data) > WAVHeaderSize {
		data = data[WAVHeaderSize:]
	}
	return &FakeContext{pcm: data, realtime: realtime}, nil
}

// NewFakeContextPCM replays the given mono 16 kHz PCM.
func NewFakeContextPCM(pcm []byte, realtime bool) *FakeContext {
	return &FakeContext{pcm: pcm, realtime: realtime}
}

// Tone generates d of a sine wave at freq Hz as mono 16 kHz PCM.
func Tone(freq float64, d time.Duration, amplitude float64) []byte {
	n := int(d.Seconds() * fakeSampleRate)
	pcm := make([]byte, n*2)
	for i := 0; i < n; i++ {
		s := math.Sin(2*math.Pi*freq*float64(i)/fakeSampleRate) * amplitude * 32767
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(s)))
	}
	return pcm
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "fake", Name: "fake"}}, nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	return &FakeCapture{pcm: f.pcm, realtime: f.realtime, startErr: f.StartErr, audioDone: make(chan struct{})}, nil
}

type FakeCapture struct {
	pcm       []byte
	realtime  bool
	startErr  error
	audioDone chan struct{}

	mu       sync.Mutex
	cb       DataCallback
	running  bool
	stopCh   chan struct{}
	feedDone chan struct{}
}

// AudioDone is closed once the whole buffer has been delivered.
func (f *FakeCapture) AudioDone() <-chan struct{} { return f.audioDone }

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) DeviceName() string { return "fake" }

// Running reports whether the stream is currently held.
func (f *FakeCapture) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *FakeCapture) callback() DataCallback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cb
}

func (f *FakeCapture) feedChunk(cb DataCallback, pos, chunkBytes int) int {
	end := min(pos+chunkBytes, len(f.pcm))
	chunk := make([]byte, end-pos)
	copy(chunk, f.pcm[pos:end])
	cb(chunk, uint32(len(chunk)/fakeBytesPerFrame))
	return end
}

func (f *FakeCapture) Start() error {
	if f.startErr != nil {
		return fmt.Errorf("fake capture: %w", f.startErr)
	}

	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return nil
	}
	f.running = true
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})
	stopCh, feedDone, audioDone := f.stopCh, f.feedDone, f.audioDone
	f.mu.Unlock()

	chunkBytes := fakeFrameSize * fakeBytesPerFrame

	if !f.realtime {
		if cb := f.callback(); cb != nil {
			for pos := 0; pos < len(f.pcm); {
				pos = f.feedChunk(cb, pos, chunkBytes)
			}
		}
		close(audioDone)
		close(feedDone)
		return nil
	}

	interval := time.Duration(fakeFrameSize) * time.Second / fakeSampleRate
	go func() {
		defer close(feedDone)
		pos := 0
		finished := false
		for {
			select {
			case <-stopCh:
				return
			case <-time.After(interval):
			}
			cb := f.callback()
			if cb == nil {
				continue
			}
			if pos < len(f.pcm) {
				pos = f.feedChunk(cb, pos, chunkBytes)
			} else if !finished {
				finished = true
				close(audioDone)
			}
		}
	}()
	return nil
}

func (f *FakeCapture) Stop() {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return
	}
	f.running = false
	stopCh, feedDone := f.stopCh, f.feedDone
	f.mu.Unlock()

	close(stopCh)
	<-feedDone

	f.mu.Lock()
	select {
	case <-f.audioDone:
		f.audioDone = make(chan struct{}) // reset for replay
	default:
	}
	f.mu.Unlock()
}

func (f *FakeCapture) Close() { f.Stop() }
