package encoder

import (
	"bytes"
	"encoding/binary"
	"sync"
)

const wavHeaderSize = 44

// WavEncoder writes 16-bit PCM in a RIFF container. The header is emitted
// up front with zero sizes and fixed by PatchHeader on the assembled payload.
type WavEncoder struct {
	mu          sync.Mutex
	buf         bytes.Buffer
	totalFrames uint64
}

func NewWav(sampleRate uint32) *WavEncoder {
	e := &WavEncoder{}
	e.buf.Write(wavHeader(sampleRate, 0))
	return e
}

func wavHeader(sampleRate uint32, dataSize uint32) []byte {
	h := make([]byte, wavHeaderSize)
	copy(h[0:4], "RIFF")
	binary.LittleEndian.PutUint32(h[4:8], 36+dataSize)
	copy(h[8:12], "WAVE")
	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint32(h[16:20], 16)
	binary.LittleEndian.PutUint16(h[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(h[22:24], Channels)
	binary.LittleEndian.PutUint32(h[24:28], sampleRate)
	binary.LittleEndian.PutUint32(h[28:32], sampleRate*Channels*BitsPerSample/8)
	binary.LittleEndian.PutUint16(h[32:34], Channels*BitsPerSample/8)
	binary.LittleEndian.PutUint16(h[34:36], BitsPerSample)
	copy(h[36:40], "data")
	binary.LittleEndian.PutUint32(h[40:44], dataSize)
	return h
}

func (e *WavEncoder) EncodeBlock(block []int16) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var sample [2]byte
	for _, s := range block {
		binary.LittleEndian.PutUint16(sample[:], uint16(s))
		e.buf.Write(sample[:])
	}
	e.totalFrames += uint64(len(block))
	return nil
}

func (e *WavEncoder) Close() error { return nil }

func (e *WavEncoder) Bytes() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buf.Bytes()
}

func (e *WavEncoder) TotalFrames() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalFrames
}

func (e *WavEncoder) MIMEType() string { return "audio/wav" }

func (e *WavEncoder) PatchHeader(payload []byte) {
	if len(payload) < wavHeaderSize || string(payload[0:4]) != "RIFF" {
		return
	}
	dataSize := uint32(len(payload) - wavHeaderSize)
	binary.LittleEndian.PutUint32(payload[4:8], 36+dataSize)
	binary.LittleEndian.PutUint32(payload[40:44], dataSize)
}
