package transcriber

import (
	"context"
	"net/http"
	"strings"
	"time"
)

type NetworkMetrics struct {
	DNS         time.Duration
	ConnWait    time.Duration
	TCP         time.Duration
	TLS         time.Duration
	ReqHeaders  time.Duration
	ReqBody     time.Duration
	TTFB        time.Duration
	Download    time.Duration
	Total       time.Duration
	ConnReused  bool
	TLSProtocol string
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}

type Result struct {
	Text      string
	Demo      bool // placeholder text, no service was called
	Metrics   *NetworkMetrics
	RateLimit string
	Duration  float64 // audio length reported by the service, seconds
}

// Transcriber converts one recorded payload into text. Implementations do
// not retry; a failed attempt is returned to the caller as is.
type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, audio []byte, mimeHint string) (*Result, error)
}

// Failure is the typed error for anything that prevents a transcript from
// being produced: transport errors, non-2xx responses and malformed bodies.
type Failure struct {
	Status  int // HTTP status, 0 when no response was received
	Message string
	Err     error
}

func (f *Failure) Error() string { return f.Message }

func (f *Failure) Unwrap() error { return f.Err }

type Config struct {
	Provider  string // "groq" or "openai"
	Endpoint  string
	Model     string
	APIKey    string
	Language  string
	Timeout   time.Duration
	DemoDelay time.Duration
}

// New picks the transcriber for cfg. Without an API key it returns the demo
// transcriber.
func New(cfg Config) Transcriber {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return NewDemo(cfg.DemoDelay)
	}
	preset, ok := presets[cfg.Provider]
	if !ok {
		preset = presets[ProviderGroq]
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = preset.endpoint
	}
	if cfg.Model == "" {
		cfg.Model = preset.model
	}
	if cfg.Provider == "" {
		cfg.Provider = ProviderGroq
	}
	return NewClient(cfg)
}
