package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := New()
	m.RecordingStarted()
	m.RecordingStarted()
	m.Transcribed(OutcomeSuccess, 300*time.Millisecond, 2048)
	m.Transcribed(OutcomeFailure, time.Second, 10)
	m.RecordingFinished(OutcomeSuccess, 3*time.Second)
	m.SetSessions(4)

	if got := testutil.ToFloat64(m.RecordingsStarted); got != 2 {
		t.Errorf("recordings started = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Transcriptions.WithLabelValues(OutcomeFailure)); got != 1 {
		t.Errorf("failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Sessions); got != 4 {
		t.Errorf("sessions = %v, want 4", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordingStarted()
	m.Transcribed(OutcomeDemo, time.Second, 1)
	m.RecordingFinished(OutcomeDiscard, 0)
	m.SetSessions(1)
}

func TestHandlerExposesPrivateRegistry(t *testing.T) {
	m := New()
	m.RecordingStarted()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, "voxscribe_recordings_started_total 1") {
		t.Errorf("metrics output missing counter:\n%s", body)
	}
	if strings.Contains(body, "go_goroutines") {
		t.Error("process collectors leaked into private registry")
	}
}
