//go:build linux

package beep

import (
	"sync"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"

	"voxscribe/log"
)

var (
	sounds    map[cue][]int16
	soundOnce sync.Once
)

func initSound() {
	sounds = map[cue][]int16{
		cueStart: samplesFor(cueStart, 0.2),
		cueStop:  samplesFor(cueStop, 0.2),
		cueError: samplesFor(cueError, 0),
	}
}

func Init() {
	soundOnce.Do(initSound)
}

func play(c cue) {
	soundOnce.Do(initSound)
	go playSamples(sounds[c])
}

func playSamples(samples []int16) {
	if len(samples) == 0 {
		return
	}
	c, err := pulse.NewClient(pulse.ClientApplicationName("voxscribe"))
	if err != nil {
		log.Warnf("pulse playback: %v", err)
		return
	}
	defer c.Close()

	pos := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if pos >= len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[pos:])
		pos += n
		return n, nil
	})
	stream, err := c.NewPlayback(reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackLatency(0.1),
		pulse.PlaybackRawOption(func(p *proto.CreatePlaybackStream) {
			p.ChannelVolumes = proto.ChannelVolumes{uint32(proto.VolumeNorm)}
		}),
	)
	if err != nil {
		log.Warnf("pulse playback: %v", err)
		return
	}
	stream.Start()
	stream.Drain()
	stream.Stop()
	stream.Close()
}
