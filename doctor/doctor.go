// Package doctor runs the end-to-end self checks behind -doctor.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"voxscribe/audio"
	"voxscribe/clipboard"
	"voxscribe/config"
	"voxscribe/level"
	"voxscribe/recorder"
	"voxscribe/session"
	"voxscribe/transcriber"
)

const (
	defaultRecordFor = 3 * time.Second
	probeNamespace   = "voxscribe_doctor"
)

type Options struct {
	Config  *config.Config
	WAVFile string // replay this file instead of opening the microphone
	Out     io.Writer

	// Overrides for tests. Nil means the real implementation.
	Audio       audio.Context
	Transcriber transcriber.Transcriber
	Clipboard   func(text string) error
	ReadBack    func() (string, error)
	RecordFor   time.Duration
}

type check struct {
	name string
	run  func(ctx context.Context) (string, error)
}

type doctor struct {
	opts    Options
	out     io.Writer
	payload []byte
	mime    string
}

// Run executes every check in order and returns an exit code (0=all pass,
// 1=any fail). A failed microphone check skips the transcription check.
func Run(opts Options) int {
	if opts.Config == nil {
		cfg := config.Default()
		opts.Config = &cfg
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.RecordFor <= 0 {
		opts.RecordFor = defaultRecordFor
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	d := &doctor{opts: opts, out: opts.Out}
	fmt.Fprintln(d.out, "voxscribe doctor - system diagnostics")
	fmt.Fprintln(d.out, "=====================================")

	checks := []check{
		{"Microphone", d.checkMicrophone},
		{"Transcription", d.checkTranscription},
		{"Session storage", d.checkStorage},
		{"Clipboard", d.checkClipboard},
	}

	allPass := true
	for i, c := range checks {
		fmt.Fprintf(d.out, "\n[%d/%d] %s\n", i+1, len(checks), c.name)
		if ctx.Err() != nil {
			fmt.Fprintln(d.out, "  SKIP: interrupted")
			allPass = false
			continue
		}
		msg, err := c.run(ctx)
		switch {
		case errors.Is(err, errSkipped):
			fmt.Fprintf(d.out, "  SKIP: %s\n", msg)
		case err != nil:
			fmt.Fprintf(d.out, "  FAIL: %v\n", err)
			allPass = false
		default:
			fmt.Fprintf(d.out, "  PASS: %s\n", msg)
		}
	}

	fmt.Fprintln(d.out)
	if allPass {
		fmt.Fprintln(d.out, "All checks passed!")
		return 0
	}
	fmt.Fprintln(d.out, "Some checks failed. See details above.")
	return 1
}

var errSkipped = errors.New("skipped")

func (d *doctor) audioContext() (audio.Context, func(), error) {
	if d.opts.Audio != nil {
		return d.opts.Audio, func() {}, nil
	}
	if d.opts.WAVFile != "" {
		fake, err := audio.NewFakeContext(d.opts.WAVFile, true)
		if err != nil {
			return nil, nil, fmt.Errorf("loading %s: %w", d.opts.WAVFile, err)
		}
		return fake, func() {}, nil
	}
	ctx, err := audio.NewContext()
	if err != nil {
		return nil, nil, fmt.Errorf("cannot connect to audio: %w", err)
	}
	return ctx, ctx.Close, nil
}

// checkMicrophone records for RecordFor and keeps the encoded payload for
// the transcription check.
func (d *doctor) checkMicrophone(ctx context.Context) (string, error) {
	actx, closeCtx, err := d.audioContext()
	if err != nil {
		return "", err
	}
	defer closeCtx()

	rc := d.opts.Config.Recording
	dev, err := audio.FindDevice(actx, rc.Device)
	if err != nil {
		return "", fmt.Errorf("cannot list devices: %w", err)
	}
	fmt.Fprintf(d.out, "  Using device: %s\n", audio.DeviceLabel(dev))

	rec, err := recorder.New(recorder.Config{Format: rc.Format, SampleRate: rc.SampleRate, Slice: rc.ChunkInterval()})
	if err != nil {
		return "", err
	}
	analyser, err := level.NewAnalyser(rc.LevelWindowSize)
	if err != nil {
		return "", err
	}

	capture, err := actx.NewCapture(dev, audio.CaptureConfig{SampleRate: rc.SampleRate, Channels: 1})
	if err != nil {
		return "", fmt.Errorf("microphone unavailable: %w", err)
	}
	defer capture.Close()

	var peak float64
	capture.SetCallback(func(data []byte, _ uint32) {
		rec.Feed(data)
		analyser.Feed(data)
	})
	if err := capture.Start(); err != nil {
		<-rec.Stop()
		return "", fmt.Errorf("microphone unavailable: %w", err)
	}

	fmt.Fprintf(d.out, "  Speak for %s...\n", d.opts.RecordFor)
	ticker := time.NewTicker(100 * time.Millisecond)
	deadline := time.After(d.opts.RecordFor)
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-deadline:
			break loop
		case <-ticker.C:
			peak = max(peak, analyser.Level())
		}
	}
	ticker.Stop()
	capture.ClearCallback()
	capture.Stop()
	<-rec.Stop()

	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if rec.Stats().Frames == 0 {
		return "", errors.New("no audio captured")
	}
	payload, err := rec.Payload()
	if err != nil {
		return "", err
	}
	d.payload, d.mime = payload, rec.MIMEType()

	msg := fmt.Sprintf("captured %.1fs (%.1f KB %s), peak level %.2f",
		rec.Duration().Seconds(), float64(len(payload))/1024, rc.Format, peak)
	if peak < 0.02 {
		msg += " (no voice detected, check the input gain)"
	}
	return msg, nil
}

func (d *doctor) checkTranscription(ctx context.Context) (string, error) {
	if d.payload == nil {
		return "microphone check did not produce audio", errSkipped
	}
	tr := d.opts.Transcriber
	if tr == nil {
		tr = transcriber.New(d.opts.Config.TranscriberConfig())
	}

	res, err := tr.Transcribe(ctx, d.payload, d.mime)
	if err != nil {
		var f *transcriber.Failure
		if errors.As(err, &f) && f.Status != 0 {
			return "", fmt.Errorf("%s returned %d: %s", tr.Name(), f.Status, f.Message)
		}
		return "", fmt.Errorf("%s: %w", tr.Name(), err)
	}
	if res.Demo {
		return "demo mode, no API key configured (set VOXSCRIBE_API_KEY or GROQ_API_KEY)", nil
	}
	text := strings.TrimSpace(res.Text)
	if text == "" {
		text = "(no speech detected)"
	}
	return fmt.Sprintf("%s: %s", tr.Name(), text), nil
}

// checkStorage round-trips a probe session through the configured backend
// under its own namespace so real sessions are never touched.
func (d *doctor) checkStorage(context.Context) (string, error) {
	sc := d.opts.Config.Storage
	backend, err := session.OpenBackend(sc.Backend, sc.Dir)
	if err != nil {
		return "", err
	}
	store := session.NewStore(backend, session.WithNamespace(probeNamespace))
	defer store.Close()

	probe, err := session.New(time.Now(), session.NewSegment("doctor probe", 0, time.Second))
	if err != nil {
		return "", err
	}
	if err := store.Create(probe); err != nil {
		return "", fmt.Errorf("write failed: %w", err)
	}
	if _, err := store.Get(probe.ID); err != nil {
		return "", fmt.Errorf("read back failed: %w", err)
	}
	if err := store.Delete(probe.ID); err != nil {
		return "", fmt.Errorf("cleanup failed: %w", err)
	}

	saved := session.NewStore(backend, session.WithNamespace(sc.Namespace)).List()
	return fmt.Sprintf("%s backend in %s (%d saved sessions)", sc.Backend, sc.Dir, len(saved)), nil
}

func (d *doctor) checkClipboard(context.Context) (string, error) {
	write, read := d.opts.Clipboard, d.opts.ReadBack
	if write == nil {
		if !clipboard.Available() {
			return "no clipboard utility found (install xclip, xsel or wl-clipboard)", errSkipped
		}
		write, read = clipboard.Copy, clipboard.Read
	}

	testStr := fmt.Sprintf("voxscribe-doctor-%d", time.Now().UnixNano())
	type cbResult struct {
		readback string
		err      error
		phase    string
	}
	ch := make(chan cbResult, 1)
	go func() {
		if err := write(testStr); err != nil {
			ch <- cbResult{err: err, phase: "write"}
			return
		}
		got, err := read()
		if err != nil {
			ch <- cbResult{err: err, phase: "read"}
			return
		}
		ch <- cbResult{readback: got}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			return "", fmt.Errorf("clipboard %s failed: %w", res.phase, res.err)
		}
		if res.readback != testStr {
			return "", fmt.Errorf("clipboard mismatch: wrote %q, got %q", testStr, res.readback)
		}
		return "clipboard write/read verified", nil
	case <-time.After(3 * time.Second):
		return "", errors.New("clipboard timed out (clipboard tool hung, compositor not accessible?)")
	}
}
