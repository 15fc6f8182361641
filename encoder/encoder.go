package encoder

import "fmt"

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
)

const (
	FormatFLAC = "flac"
	FormatWAV  = "wav"
)

// Encoder turns PCM blocks into a container stream. Bytes returns
// everything written so far; the recorder slices it into chunks as it grows.
type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	Bytes() []byte
	TotalFrames() uint64
	MIMEType() string
}

// HeaderPatcher is implemented by containers whose header carries sizes that
// are only known once the stream is complete.
type HeaderPatcher interface {
	PatchHeader(payload []byte)
}

// New returns an encoder for format. blockSize is the number of samples the
// caller intends to pass per EncodeBlock call.
func New(format string, sampleRate uint32, blockSize int) (Encoder, error) {
	switch format {
	case FormatFLAC:
		return NewFlac(sampleRate, blockSize)
	case FormatWAV:
		return NewWav(sampleRate), nil
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

// Extension maps a MIME hint to the file extension transcription APIs use
// to sniff the container.
func Extension(mimeType string) string {
	switch mimeType {
	case "audio/flac", "audio/x-flac":
		return "flac"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "wav"
	case "audio/mpeg", "audio/mp3":
		return "mp3"
	case "audio/ogg":
		return "ogg"
	default:
		return "webm"
	}
}
