// Package recorder buffers live PCM into encoded, time-sliced chunks.
//
// Samples are cut into slices of a fixed duration and handed to an encoder
// goroutine. Every slice that reaches the encoder produces one chunk holding
// the container bytes it added. Stop flushes the trailing partial slice and
// reports completion on a channel, the way a platform media recorder signals
// that its last dataavailable event has fired.
package recorder

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"voxscribe/encoder"
)

const DefaultSlice = 250 * time.Millisecond

type Config struct {
	Format     string // encoder.FormatFLAC or encoder.FormatWAV
	SampleRate uint32
	Slice      time.Duration
}

type Stats struct {
	Frames     uint64
	Chunks     int
	Bytes      int
	EncodeTime time.Duration
}

type Recorder struct {
	enc          encoder.Encoder
	sampleRate   uint32
	sliceSamples int
	blocks       chan []int16
	done         chan struct{}

	bufMu     sync.Mutex
	sampleBuf []int16
	stopped   bool

	mu         sync.Mutex
	chunks     [][]byte
	written    int
	encodeErr  error
	encodeTime time.Duration
}

func New(cfg Config) (*Recorder, error) {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = encoder.SampleRate
	}
	if cfg.Slice <= 0 {
		cfg.Slice = DefaultSlice
	}
	if cfg.Format == "" {
		cfg.Format = encoder.FormatFLAC
	}
	sliceSamples := int(int64(cfg.SampleRate) * int64(cfg.Slice) / int64(time.Second))
	if sliceSamples < 16 {
		return nil, fmt.Errorf("slice %v too short at %d Hz", cfg.Slice, cfg.SampleRate)
	}

	enc, err := encoder.New(cfg.Format, cfg.SampleRate, sliceSamples)
	if err != nil {
		return nil, err
	}

	r := &Recorder{
		enc:          enc,
		sampleRate:   cfg.SampleRate,
		sliceSamples: sliceSamples,
		blocks:       make(chan []int16, 64),
		done:         make(chan struct{}),
	}
	r.collect()
	go r.encodeLoop()
	return r, nil
}

func (r *Recorder) encodeLoop() {
	defer close(r.done)
	for block := range r.blocks {
		start := time.Now()
		err := r.enc.EncodeBlock(block)
		r.mu.Lock()
		r.encodeTime += time.Since(start)
		if err != nil && r.encodeErr == nil {
			r.encodeErr = err
		}
		r.mu.Unlock()
		r.collect()
	}
	if err := r.enc.Close(); err != nil {
		r.mu.Lock()
		if r.encodeErr == nil {
			r.encodeErr = err
		}
		r.mu.Unlock()
	}
	r.collect()
}

// collect moves whatever the encoder wrote since the last call into a new chunk.
func (r *Recorder) collect() {
	b := r.enc.Bytes()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(b) <= r.written {
		return
	}
	chunk := make([]byte, len(b)-r.written)
	copy(chunk, b[r.written:])
	r.chunks = append(r.chunks, chunk)
	r.written = len(b)
}

// Feed accepts little-endian 16-bit PCM. It is safe to call from the device
// callback; data arriving after Stop is dropped.
func (r *Recorder) Feed(pcm []byte) {
	r.bufMu.Lock()
	if r.stopped {
		r.bufMu.Unlock()
		return
	}
	for i := 0; i+1 < len(pcm); i += 2 {
		r.sampleBuf = append(r.sampleBuf, int16(binary.LittleEndian.Uint16(pcm[i:])))
	}
	var blocks [][]int16
	for len(r.sampleBuf) >= r.sliceSamples {
		block := make([]int16, r.sliceSamples)
		copy(block, r.sampleBuf[:r.sliceSamples])
		r.sampleBuf = r.sampleBuf[r.sliceSamples:]
		blocks = append(blocks, block)
	}
	// Sending under bufMu keeps slices ordered and keeps Stop from closing
	// the channel underneath us.
	for _, block := range blocks {
		r.blocks <- block
	}
	r.bufMu.Unlock()
}

// Stop flushes the trailing partial slice and returns a channel that is
// closed once the encoder has emitted its final chunk. Calling Stop again
// returns the same channel.
func (r *Recorder) Stop() <-chan struct{} {
	r.bufMu.Lock()
	defer r.bufMu.Unlock()
	if r.stopped {
		return r.done
	}
	r.stopped = true
	if len(r.sampleBuf) > 0 {
		partial := make([]int16, len(r.sampleBuf))
		copy(partial, r.sampleBuf)
		r.sampleBuf = nil
		r.blocks <- partial
	}
	close(r.blocks)
	return r.done
}

// Chunks returns a copy of the chunk list collected so far.
func (r *Recorder) Chunks() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]byte, len(r.chunks))
	copy(out, r.chunks)
	return out
}

// Payload concatenates every chunk into one audio file. Call it after the
// channel returned by Stop is closed.
func (r *Recorder) Payload() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.encodeErr != nil {
		return nil, fmt.Errorf("encoding audio: %w", r.encodeErr)
	}
	payload := bytes.Join(r.chunks, nil)
	if p, ok := r.enc.(encoder.HeaderPatcher); ok {
		p.PatchHeader(payload)
	}
	return payload, nil
}

func (r *Recorder) MIMEType() string { return r.enc.MIMEType() }

// Duration is the amount of audio encoded so far.
func (r *Recorder) Duration() time.Duration {
	return time.Duration(r.enc.TotalFrames()) * time.Second / time.Duration(r.sampleRate)
}

func (r *Recorder) Stats() Stats {
	frames := r.enc.TotalFrames()
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{
		Frames:     frames,
		Chunks:     len(r.chunks),
		Bytes:      r.written,
		EncodeTime: r.encodeTime,
	}
}
