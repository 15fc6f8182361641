package log

import "time"

type RecordingStats struct {
	Duration   time.Duration
	AudioS     float64
	Chunks     int
	EncodedKB  float64
	EncodeTime time.Duration
	Format     string
}

type TranscriptionMetrics struct {
	Provider    string
	AudioKB     float64
	Demo        bool
	DNSTimeMs   float64
	TLSTimeMs   float64
	TTFBMs      float64
	TotalTimeMs float64
	ConnReused  bool
	TLSProtocol string
	RateLimit   string
}

func SessionStart(provider, format, storage string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("provider", provider).
		Str("format", format).
		Str("storage", storage).
		Msg("session_start")
}

func RecordingStart(device string) {
	if !logReady {
		return
	}
	diagLog.Info().Str("device", device).Msg("recording_start")
}

func RecordingStop(s RecordingStats) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int64("duration_ms", s.Duration.Milliseconds()).
		Float64("audio_s", s.AudioS).
		Int("chunks", s.Chunks).
		Float64("encoded_kb", s.EncodedKB).
		Int64("encode_ms", s.EncodeTime.Milliseconds()).
		Str("format", s.Format).
		Msg("recording_stop")
}

func Transcription(m TranscriptionMetrics) {
	if !logReady {
		return
	}

	connStatus := "new"
	if m.ConnReused {
		connStatus = "reused"
	}

	ev := diagLog.Info().
		Str("provider", m.Provider).
		Bool("demo", m.Demo).
		Str("conn", connStatus)
	if m.TLSProtocol != "" {
		ev = ev.Str("tls_proto", m.TLSProtocol)
	}
	if m.RateLimit != "" {
		ev = ev.Str("rate_limit", m.RateLimit)
	}
	ev.Float64("audio_kb", m.AudioKB).
		Float64("dns_ms", m.DNSTimeMs).
		Float64("tls_ms", m.TLSTimeMs).
		Float64("ttfb_ms", m.TTFBMs).
		Float64("total_ms", m.TotalTimeMs).
		Msg("transcription")
}

func TranscriptionFailed(provider string, status int, msg string) {
	if !logReady {
		return
	}
	diagLog.Error().
		Str("provider", provider).
		Int("status", status).
		Str("error", msg).
		Msg("transcription_failed")
}

func NoSpeech(duration time.Duration) {
	if !logReady {
		return
	}
	diagLog.Info().Int64("duration_ms", duration.Milliseconds()).Msg("no_speech")
}

func SessionSaved(id string, words int, durationMs int64) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("id", id).
		Int("words", words).
		Int64("duration_ms", durationMs).
		Msg("session_saved")
}

func SessionDeleted(id string) {
	if !logReady {
		return
	}
	diagLog.Info().Str("id", id).Msg("session_deleted")
}

// StorageReset records that persisted sessions could not be read and the
// store fell back to an empty list.
func StorageReset(key string, err error) {
	if !logReady {
		return
	}
	diagLog.Warn().Str("key", key).Err(err).Msg("storage_reset")
}

func SessionEnd(count int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("count", count).
		Msg("session_end")
}
