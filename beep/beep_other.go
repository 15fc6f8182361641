//go:build !linux

package beep

import (
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"voxscribe/log"
)

var (
	malgoCtx  *malgo.AllocatedContext
	device    *malgo.Device
	sounds    map[cue][]byte
	soundOnce sync.Once

	// Playback state - accessed atomically from callback
	playing atomic.Pointer[[]byte]
	playPos atomic.Uint32
	playMu  sync.Mutex
)

func initDevice() error {
	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 1
	config.SampleRate = sampleRate

	var err error
	device, err = malgo.InitDevice(malgoCtx.Context, config, malgo.DeviceCallbacks{Data: dataCallback})
	return err
}

func initSound() {
	var err error
	malgoCtx, err = malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		log.Warnf("malgo playback: %v", err)
		return
	}

	sounds = map[cue][]byte{
		cueStart: toBytes(samplesFor(cueStart, 0.03)),
		cueStop:  toBytes(samplesFor(cueStop, 0.05)),
		cueError: toBytes(samplesFor(cueError, 0)),
	}

	if err := initDevice(); err != nil {
		log.Warnf("malgo playback device: %v", err)
		malgoCtx.Uninit()
		malgoCtx = nil
	}
}

func Init() {
	soundOnce.Do(initSound)
}

func dataCallback(pOutput, _ []byte, frameCount uint32) {
	clear(pOutput)
	samples := playing.Load()
	if samples == nil {
		return
	}

	pos := playPos.Load()
	remaining := uint32(len(*samples)) - pos
	if remaining == 0 {
		playing.Store(nil)
		return
	}
	n := min(frameCount*2, remaining)
	copy(pOutput[:n], (*samples)[pos:pos+n])
	playPos.Store(pos + n)
}

func play(c cue) {
	soundOnce.Do(initSound)
	if malgoCtx == nil {
		return
	}
	samples := sounds[c]

	playMu.Lock()
	defer playMu.Unlock()

	if device == nil {
		return
	}

	// Stop first so a cue never starts mid-buffer (no-op if not running)
	device.Stop()

	playPos.Store(0)
	playing.Store(&samples)

	if err := device.Start(); err != nil {
		// Recreate the device; it can go stale across sleep/wake
		device.Uninit()
		if err := initDevice(); err != nil {
			playing.Store(nil)
			return
		}
		if err := device.Start(); err != nil {
			playing.Store(nil)
		}
	}
}
