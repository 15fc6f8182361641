// Package metrics exposes recording and transcription counters in
// Prometheus format.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Transcription outcomes used as the "outcome" label.
const (
	OutcomeSuccess = "success"
	OutcomeEmpty   = "empty"
	OutcomeDemo    = "demo"
	OutcomeFailure = "failure"
	OutcomeDenied  = "denied"
	OutcomeDiscard = "discarded"
)

// Metrics holds the collectors on a private registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	RecordingsStarted    prometheus.Counter
	Recordings           *prometheus.CounterVec
	Transcriptions       *prometheus.CounterVec
	TranscriptionSeconds prometheus.Histogram
	RecordingSeconds     prometheus.Histogram
	PayloadBytes         prometheus.Histogram
	Sessions             prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		RecordingsStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "voxscribe_recordings_started_total",
			Help: "Total number of recordings that acquired a microphone",
		}),
		Recordings: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voxscribe_recordings_total",
			Help: "Finished recording attempts by outcome",
		}, []string{"outcome"}),
		Transcriptions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voxscribe_transcriptions_total",
			Help: "Transcription calls by outcome",
		}, []string{"outcome"}),
		TranscriptionSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "voxscribe_transcription_seconds",
			Help:    "Time spent waiting for the transcription service",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
		}),
		RecordingSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "voxscribe_recording_seconds",
			Help:    "Wall-clock length of recordings",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~17 minutes
		}),
		PayloadBytes: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "voxscribe_payload_bytes",
			Help:    "Size of encoded audio sent for transcription",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 14), // 1KB to ~16MB
		}),
		Sessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "voxscribe_sessions",
			Help: "Number of stored sessions",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordingStarted() {
	if m == nil {
		return
	}
	m.RecordingsStarted.Inc()
}

func (m *Metrics) RecordingFinished(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Recordings.WithLabelValues(outcome).Inc()
	if d > 0 {
		m.RecordingSeconds.Observe(d.Seconds())
	}
}

func (m *Metrics) Transcribed(outcome string, d time.Duration, payloadBytes int) {
	if m == nil {
		return
	}
	m.Transcriptions.WithLabelValues(outcome).Inc()
	m.TranscriptionSeconds.Observe(d.Seconds())
	m.PayloadBytes.Observe(float64(payloadBytes))
}

func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.Sessions.Set(float64(n))
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, m *Metrics) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
