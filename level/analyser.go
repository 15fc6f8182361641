// Package level turns live PCM into the normalized loudness scalar that
// drives the waveform.
package level

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

const (
	DefaultWindowSize = 256
	DefaultSmoothing  = 0.8
	MinDecibels       = -100.0
	MaxDecibels       = -30.0
)

// Analyser keeps the most recent WindowSize samples and reports their
// byte-scaled frequency spectrum, matching the behaviour of a browser
// AnalyserNode: Blackman window, magnitude spectrum, exponential smoothing
// across reads, decibels mapped onto 0..255.
type Analyser struct {
	mu        sync.Mutex
	size      int
	ring      []float64
	pos       int
	smoothing float64

	fft      *fourier.FFT
	frame    []float64
	coeffs   []complex128
	smoothed []float64
	out      []byte
}

func NewAnalyser(windowSize int) (*Analyser, error) {
	if windowSize < 32 || windowSize&(windowSize-1) != 0 {
		return nil, fmt.Errorf("window size %d must be a power of two >= 32", windowSize)
	}
	return &Analyser{
		size:      windowSize,
		ring:      make([]float64, windowSize),
		smoothing: DefaultSmoothing,
		fft:       fourier.NewFFT(windowSize),
		frame:     make([]float64, windowSize),
		coeffs:    make([]complex128, windowSize/2+1),
		smoothed:  make([]float64, windowSize/2),
		out:       make([]byte, windowSize/2),
	}, nil
}

func (a *Analyser) WindowSize() int { return a.size }

// BinCount is the number of frequency bins reported by Bytes.
func (a *Analyser) BinCount() int { return a.size / 2 }

// Feed appends little-endian 16-bit PCM to the sample ring.
func (a *Analyser) Feed(pcm []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := 0; i+1 < len(pcm); i += 2 {
		s := int16(binary.LittleEndian.Uint16(pcm[i:]))
		a.ring[a.pos] = float64(s) / 32768
		a.pos = (a.pos + 1) % a.size
	}
}

// Bytes computes the current spectrum. Each call advances the smoothing
// state, so it should be read once per frame.
func (a *Analyser) Bytes() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := copy(a.frame, a.ring[a.pos:])
	copy(a.frame[n:], a.ring[:a.pos])
	window.Blackman(a.frame)
	a.coeffs = a.fft.Coefficients(a.coeffs, a.frame)

	scale := 255 / (MaxDecibels - MinDecibels)
	for k := range a.smoothed {
		mag := cmplxAbs(a.coeffs[k]) / float64(a.size)
		a.smoothed[k] = a.smoothing*a.smoothed[k] + (1-a.smoothing)*mag

		db := 20 * math.Log10(a.smoothed[k])
		v := math.Floor((db - MinDecibels) * scale)
		switch {
		case math.IsNaN(v) || v < 0:
			v = 0
		case v > 255:
			v = 255
		}
		a.out[k] = byte(v)
	}

	out := make([]byte, len(a.out))
	copy(out, a.out)
	return out
}

// Level is the mean bin value divided by 128, roughly within [0, 2].
func (a *Analyser) Level() float64 {
	bins := a.Bytes()
	if len(bins) == 0 {
		return 0
	}
	var sum int
	for _, b := range bins {
		sum += int(b)
	}
	return float64(sum) / float64(len(bins)) / 128
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}
