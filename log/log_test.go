package log

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setupLogDir(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	SetDir(tmp)
	t.Cleanup(func() { Close(); SetDir("") })
	return tmp
}

func TestResolveDirFlag(t *testing.T) {
	got, err := ResolveDir("/tmp/mylog")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/mylog" {
		t.Errorf("got %q, want /tmp/mylog", got)
	}
}

func TestResolveDirFlagRelative(t *testing.T) {
	got, err := ResolveDir("logs")
	if err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(wd, "logs")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveDirEnv(t *testing.T) {
	t.Setenv("VOXSCRIBE_LOG_PATH", "/tmp/voxscribe-env-log")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/voxscribe-env-log" {
		t.Errorf("got %q, want /tmp/voxscribe-env-log", got)
	}
}

func TestResolveDirDefault(t *testing.T) {
	t.Setenv("VOXSCRIBE_LOG_PATH", "")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "voxscribe") {
		t.Errorf("default dir %q does not mention voxscribe", got)
	}
}

func TestInitCreatesFiles(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(Options{}); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"diagnostics_log.txt", "transcribe_log.txt"} {
		path := filepath.Join(tmp, name)
		if _, err := os.Stat(path); err != nil {
			t.Errorf("%s not created: %v", name, err)
		}
	}
}

func TestTranscriptionText(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(Options{}); err != nil {
		t.Fatal(err)
	}

	TranscriptionText("hello world")

	data, err := os.ReadFile(filepath.Join(tmp, "transcribe_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	line := string(data)
	if !strings.Contains(line, "hello world") {
		t.Errorf("transcribe_log.txt missing text, got: %q", line)
	}
	// format: "2006-01-02 15:04:05\t[pid]\ttext\n"
	if !strings.Contains(line, "\t") {
		t.Errorf("expected tab-separated format, got: %q", line)
	}
}

func TestEventsWritten(t *testing.T) {
	tmp := setupLogDir(t)
	if err := Init(Options{}); err != nil {
		t.Fatal(err)
	}

	RecordingStart("fake")
	NoSpeech(1200 * time.Millisecond)
	StorageReset("voxscribe_sessions", errors.New("bad json"))
	SessionSaved("abc", 2, 3200)
	Close()

	data, err := os.ReadFile(filepath.Join(tmp, "diagnostics_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"recording_start", "no_speech", "storage_reset", "session_saved", "duration_ms=3200"} {
		if !bytes.Contains(data, []byte(want)) {
			t.Errorf("diagnostics log missing %q:\n%s", want, data)
		}
	}
}

func TestNoopBeforeInit(t *testing.T) {
	Close()
	// none of these may panic without a log directory
	Info("x")
	Warnf("%d", 1)
	SessionDeleted("id")
	TranscriptionText("x")
}

func TestInitWriter(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf)
	t.Cleanup(Close)
	SessionEnd(4)
	if !strings.Contains(buf.String(), `"count":4`) {
		t.Errorf("got %q", buf.String())
	}
}

func TestCloseIdempotent(t *testing.T) {
	setupLogDir(t)

	if err := Init(Options{}); err != nil {
		t.Fatal(err)
	}
	Close()
	Close() // should not panic
}
