// Package beep plays the short audible cues for recording start, stop and
// failure.
package beep

import (
	"encoding/binary"
	"math"
	"sync/atomic"
)

var disabled atomic.Bool

func Disable() { disabled.Store(true) }

func Enabled() bool { return !disabled.Load() }

const (
	sampleRate = 44100

	// Start cue: high pitch, short
	startFreq   = 1200
	startVolume = 0.5
	startDecay  = 60

	// Stop cue: medium pitch, slightly longer
	stopFreq   = 900
	stopVolume = 0.5
	stopDecay  = 40

	// Error cue: low pitch double-beep
	errorFreq   = 350
	errorVolume = 0.6
	errorDecay  = 30
)

// Cues adapts the package-level players to the controller's cue interface.
type Cues struct{}

func (Cues) Start() { PlayStart() }
func (Cues) Stop()  { PlayStop() }
func (Cues) Error() { PlayError() }

func tick(freq, duration, volume, decay float64) []int16 {
	n := int(sampleRate * duration)
	samples := make([]int16, n)
	for i := range samples {
		t := float64(i) / sampleRate
		envelope := math.Exp(-t * decay)
		samples[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return samples
}

func doubleBeep(freq, beepDur, gapDur, volume, decay float64) []int16 {
	b := tick(freq, beepDur, volume, decay)
	gap := make([]int16, int(sampleRate*gapDur))
	result := make([]int16, 0, len(b)*2+len(gap))
	result = append(result, b...)
	result = append(result, gap...)
	result = append(result, b...)
	return result
}

func toBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func PlayStart() {
	if disabled.Load() {
		return
	}
	play(cueStart)
}

func PlayStop() {
	if disabled.Load() {
		return
	}
	play(cueStop)
}

func PlayError() {
	if disabled.Load() {
		return
	}
	play(cueError)
}

type cue int

const (
	cueStart cue = iota
	cueStop
	cueError
)

// samplesFor uses longer tails on pulse so the server buffer fills before drain.
func samplesFor(c cue, tail float64) []int16 {
	switch c {
	case cueStart:
		return tick(startFreq, tail, startVolume, startDecay)
	case cueStop:
		return tick(stopFreq, tail, stopVolume, stopDecay)
	default:
		return doubleBeep(errorFreq, 0.08, 0.05, errorVolume, errorDecay)
	}
}
