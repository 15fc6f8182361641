package doctor

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"voxscribe/audio"
	"voxscribe/config"
	"voxscribe/transcriber"
)

type memClipboard struct{ text string }

func (m *memClipboard) write(s string) error    { m.text = s; return nil }
func (m *memClipboard) read() (string, error)   { return m.text, nil }
func (m *memClipboard) broken() (string, error) { return "", errors.New("no display") }

func testOptions(t *testing.T, tr transcriber.Transcriber, pcm []byte) (Options, *bytes.Buffer) {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.Dir = t.TempDir()
	cb := &memClipboard{}
	var out bytes.Buffer
	return Options{
		Config:      &cfg,
		Out:         &out,
		Audio:       audio.NewFakeContextPCM(pcm, false),
		Transcriber: tr,
		Clipboard:   cb.write,
		ReadBack:    cb.read,
		RecordFor:   10 * time.Millisecond,
	}, &out
}

func TestRunAllPass(t *testing.T) {
	opts, out := testOptions(t, transcriber.NewFake("testing one two", nil), audio.Tone(440, time.Second, 0.5))

	if code := Run(opts); code != 0 {
		t.Fatalf("exit code = %d, output:\n%s", code, out)
	}
	for _, want := range []string{
		"[1/4] Microphone", "captured 1.0s",
		"PASS: fake: testing one two",
		"file backend", "(0 saved sessions)",
		"clipboard write/read verified",
		"All checks passed!",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunDemoMode(t *testing.T) {
	opts, out := testOptions(t, transcriber.NewDemo(-1), audio.Tone(440, time.Second, 0.5))
	if code := Run(opts); code != 0 {
		t.Fatalf("exit code = %d, output:\n%s", code, out)
	}
	if !strings.Contains(out.String(), "demo mode") {
		t.Errorf("expected demo notice, got:\n%s", out)
	}
}

func TestRunMicDenied(t *testing.T) {
	opts, out := testOptions(t, transcriber.NewFake("x", nil), audio.Tone(440, time.Second, 0.5))
	fake := audio.NewFakeContextPCM(nil, false)
	fake.StartErr = errors.New("permission denied by user")
	opts.Audio = fake

	if code := Run(opts); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	s := out.String()
	if !strings.Contains(s, "FAIL: microphone unavailable") {
		t.Errorf("missing mic failure:\n%s", s)
	}
	if !strings.Contains(s, "SKIP: microphone check did not produce audio") {
		t.Errorf("transcription should be skipped:\n%s", s)
	}
}

func TestRunNoAudio(t *testing.T) {
	opts, out := testOptions(t, transcriber.NewFake("x", nil), nil)
	if code := Run(opts); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(out.String(), "FAIL: no audio captured") {
		t.Errorf("output:\n%s", out)
	}
}

func TestRunTranscriptionFailure(t *testing.T) {
	failure := &transcriber.Failure{Status: 401, Message: "bad token"}
	opts, out := testOptions(t, transcriber.NewFake("", failure), audio.Tone(440, time.Second, 0.5))
	if code := Run(opts); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(out.String(), "FAIL: fake returned 401: bad token") {
		t.Errorf("output:\n%s", out)
	}
}

func TestRunClipboardFailure(t *testing.T) {
	opts, out := testOptions(t, transcriber.NewFake("x", nil), audio.Tone(440, time.Second, 0.5))
	cb := &memClipboard{}
	opts.Clipboard, opts.ReadBack = cb.write, cb.broken

	if code := Run(opts); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(out.String(), "clipboard read failed: no display") {
		t.Errorf("output:\n%s", out)
	}
}

func TestStorageProbeLeavesSessionsAlone(t *testing.T) {
	for _, backend := range []string{config.StorageFile, config.StorageSQLite} {
		t.Run(backend, func(t *testing.T) {
			opts, out := testOptions(t, transcriber.NewFake("x", nil), audio.Tone(440, time.Second, 0.5))
			opts.Config.Storage.Backend = backend

			Run(opts)
			Run(opts)
			if !strings.Contains(out.String(), backend+" backend") || strings.Contains(out.String(), "1 saved sessions") {
				t.Errorf("output:\n%s", out)
			}
		})
	}
}
