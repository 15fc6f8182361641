// Package studio runs the record, transcribe and save cycle.
//
// A Studio owns at most one capture attempt at a time. While recording it
// holds the capture stream, the chunk recorder, the level analyser and two
// tasks (the elapsed ticker and the level monitor). Stop tears these down in
// a fixed order before the payload is handed to the transcriber:
//
//	tasks cancelled and joined -> recorder finalized -> stream released -> transcribe
package studio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"voxscribe/audio"
	"voxscribe/encoder"
	"voxscribe/level"
	"voxscribe/log"
	"voxscribe/metrics"
	"voxscribe/recorder"
	"voxscribe/session"
	"voxscribe/transcriber"
)

type Deps struct {
	Audio       audio.Context
	Device      *audio.DeviceInfo // nil selects the system default
	Transcriber transcriber.Transcriber
	Store       *session.Store
	Events      EventSink
	Clock       Clock
	Frames      level.FrameSource
	Metrics     *metrics.Metrics
	Cues        Cues
	Clipboard   func(text string) error
}

type Options struct {
	Format        string
	SampleRate    uint32
	ChunkInterval time.Duration
	LevelWindow   int
}

type Studio struct {
	audio     audio.Context
	device    *audio.DeviceInfo
	tr        transcriber.Transcriber
	store     *session.Store
	events    EventSink
	clock     Clock
	frames    level.FrameSource
	metrics   *metrics.Metrics
	cues      Cues
	clipboard func(string) error
	opts      Options

	mu      sync.Mutex
	state   State
	busy    bool // acquisition or discard teardown in progress
	closed  bool
	att     *attempt
	level   float64
	elapsed time.Duration
	errMsg  string
	active  string
}

// attempt is everything one recording holds until it is released.
type attempt struct {
	capture   audio.CaptureDevice
	rec       *recorder.Recorder
	analyser  *level.Analyser
	cancel    context.CancelFunc
	tasks     *errgroup.Group
	startedAt time.Time
}

func New(deps Deps, opts Options) (*Studio, error) {
	if deps.Audio == nil {
		return nil, errors.New("studio: audio context required")
	}
	if deps.Transcriber == nil {
		return nil, errors.New("studio: transcriber required")
	}
	if deps.Store == nil {
		return nil, errors.New("studio: session store required")
	}
	if opts.Format == "" {
		opts.Format = encoder.FormatFLAC
	}
	if opts.SampleRate == 0 {
		opts.SampleRate = encoder.SampleRate
	}
	if opts.ChunkInterval <= 0 {
		opts.ChunkInterval = recorder.DefaultSlice
	}
	if opts.LevelWindow == 0 {
		opts.LevelWindow = level.DefaultWindowSize
	}
	if _, err := level.NewAnalyser(opts.LevelWindow); err != nil {
		return nil, fmt.Errorf("studio: %w", err)
	}
	if opts.Format != encoder.FormatFLAC && opts.Format != encoder.FormatWAV {
		return nil, fmt.Errorf("studio: unknown format %q", opts.Format)
	}

	s := &Studio{
		audio:     deps.Audio,
		device:    deps.Device,
		tr:        deps.Transcriber,
		store:     deps.Store,
		events:    deps.Events,
		clock:     deps.Clock,
		frames:    deps.Frames,
		metrics:   deps.Metrics,
		cues:      deps.Cues,
		clipboard: deps.Clipboard,
		opts:      opts,
	}
	if s.events == nil {
		s.events = NopSink{}
	}
	if s.clock == nil {
		s.clock = realClock{}
	}
	if s.frames == nil {
		s.frames = level.Ticker(level.DefaultFrameRate)
	}
	if s.cues == nil {
		s.cues = nopCues{}
	}
	s.metrics.SetSessions(len(s.store.List()))
	return s, nil
}

// Start acquires the microphone and begins recording. It is accepted from
// Idle and Error only.
func (s *Studio) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.busy || s.state == Recording || s.state == Processing {
		s.mu.Unlock()
		return ErrCaptureInFlight
	}
	s.busy = true
	s.mu.Unlock()

	att, err := s.acquire(ctx)

	s.mu.Lock()
	s.busy = false
	if err != nil {
		var denied *PermissionDeniedError
		if !errors.As(err, &denied) {
			s.mu.Unlock()
			return err
		}
		s.state = Error
		s.errMsg = denied.Error()
		s.mu.Unlock()

		log.Warnf("capture denied: %v", err)
		s.metrics.RecordingFinished(metrics.OutcomeDenied, 0)
		s.cues.Error()
		s.events.StateChanged(Error, denied.Error())
		return err
	}
	if s.closed {
		s.mu.Unlock()
		att.cancel()
		att.release()
		return ErrClosed
	}

	att.startedAt = s.clock.Now()
	g, gctx := errgroup.WithContext(context.Background())
	gctx, cancel := context.WithCancel(gctx)
	att.cancel = cancel
	att.tasks = g
	g.Go(func() error { return s.runTicker(gctx, att) })
	g.Go(func() error {
		return level.NewMonitor(att.analyser, s.frames).Run(gctx, func(l float64) { s.publishLevel(att, l) })
	})

	s.att = att
	s.state = Recording
	s.level = 0
	s.elapsed = 0
	s.errMsg = ""
	s.mu.Unlock()

	log.RecordingStart(att.capture.DeviceName())
	s.metrics.RecordingStarted()
	s.cues.Start()
	s.events.StateChanged(Recording, "")
	return nil
}

// acquire builds the recorder and analyser, then opens and starts the
// capture stream. Any failure to get the stream is a PermissionDeniedError
// and leaves nothing allocated.
func (s *Studio) acquire(ctx context.Context) (*attempt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec, err := recorder.New(recorder.Config{
		Format:     s.opts.Format,
		SampleRate: s.opts.SampleRate,
		Slice:      s.opts.ChunkInterval,
	})
	if err != nil {
		return nil, err
	}
	analyser, err := level.NewAnalyser(s.opts.LevelWindow)
	if err != nil {
		rec.Stop()
		return nil, err
	}

	capture, err := s.audio.NewCapture(s.device, audio.CaptureConfig{SampleRate: s.opts.SampleRate, Channels: 1})
	if err != nil {
		rec.Stop()
		return nil, &PermissionDeniedError{Reason: err.Error(), Err: err}
	}
	capture.SetCallback(func(data []byte, _ uint32) {
		rec.Feed(data)
		analyser.Feed(data)
	})
	if err := capture.Start(); err != nil {
		capture.ClearCallback()
		capture.Close()
		rec.Stop()
		return nil, &PermissionDeniedError{Reason: err.Error(), Err: err}
	}
	return &attempt{capture: capture, rec: rec, analyser: analyser}, nil
}

func (s *Studio) runTicker(ctx context.Context, att *attempt) error {
	ticks, stop := s.clock.NewTicker(time.Second)
	defer stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticks:
		}
		elapsed := s.clock.Now().Sub(att.startedAt).Truncate(time.Second)

		s.mu.Lock()
		if s.att != att || s.state != Recording || ctx.Err() != nil {
			s.mu.Unlock()
			return nil
		}
		s.elapsed = elapsed
		s.mu.Unlock()

		s.events.RecordingTick(elapsed)
	}
}

func (s *Studio) publishLevel(att *attempt, l float64) {
	s.mu.Lock()
	if s.att != att || s.state != Recording {
		s.mu.Unlock()
		return
	}
	s.level = l
	s.mu.Unlock()
	s.events.AudioLevel(l)
}

// stopTasks cancels the ticker and monitor and waits for both to return.
func (a *attempt) stopTasks() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.tasks != nil {
		_ = a.tasks.Wait()
	}
}

// release detaches the callback before closing so no device thread touches
// the recorder or analyser afterwards.
func (a *attempt) release() {
	a.capture.ClearCallback()
	a.capture.Stop()
	a.capture.Close()
}

// Stop ends the recording and transcribes it. A non-empty transcript is
// saved as a new session and selected. An empty transcript returns nil, nil.
// Once the transcriber is called the attempt runs to completion even if ctx
// is cancelled.
func (s *Studio) Stop(ctx context.Context) (*session.Session, error) {
	s.mu.Lock()
	if s.state != Recording || s.att == nil || s.busy {
		s.mu.Unlock()
		return nil, ErrNotRecording
	}
	att := s.att
	s.state = Processing
	s.level = 0
	s.mu.Unlock()

	att.stopTasks()
	s.events.StateChanged(Processing, "")
	s.events.AudioLevel(0)

	duration := s.clock.Now().Sub(att.startedAt)

	<-att.rec.Stop()
	payload, payloadErr := att.rec.Payload()
	att.release()

	s.mu.Lock()
	s.att = nil
	s.mu.Unlock()

	st := att.rec.Stats()
	log.RecordingStop(log.RecordingStats{
		Duration:   duration,
		AudioS:     att.rec.Duration().Seconds(),
		Chunks:     st.Chunks,
		EncodedKB:  float64(st.Bytes) / 1024,
		EncodeTime: st.EncodeTime,
		Format:     s.opts.Format,
	})
	s.cues.Stop()

	if payloadErr != nil {
		s.metrics.RecordingFinished(metrics.OutcomeFailure, duration)
		return nil, s.fail(payloadErr)
	}

	callStart := time.Now()
	res, err := s.tr.Transcribe(context.WithoutCancel(ctx), payload, att.rec.MIMEType())
	callTime := time.Since(callStart)
	if err != nil {
		var f *transcriber.Failure
		status := 0
		if errors.As(err, &f) {
			status = f.Status
		}
		log.TranscriptionFailed(s.tr.Name(), status, err.Error())
		s.metrics.Transcribed(metrics.OutcomeFailure, callTime, len(payload))
		s.metrics.RecordingFinished(metrics.OutcomeFailure, duration)
		return nil, s.fail(err)
	}
	s.logTranscription(res, len(payload))

	text := strings.TrimSpace(res.Text)
	if text == "" {
		log.NoSpeech(duration)
		s.metrics.Transcribed(metrics.OutcomeEmpty, callTime, len(payload))
		s.metrics.RecordingFinished(metrics.OutcomeEmpty, duration)
		s.setIdle()
		return nil, nil
	}
	outcome := metrics.OutcomeSuccess
	if res.Demo {
		outcome = metrics.OutcomeDemo
	}
	s.metrics.Transcribed(outcome, callTime, len(payload))

	sess, err := session.New(s.clock.Now(), session.NewSegment(text, 0, duration))
	if err == nil {
		err = s.store.Create(sess)
	}
	if err != nil {
		s.metrics.RecordingFinished(metrics.OutcomeFailure, duration)
		return nil, s.fail(err)
	}
	s.metrics.RecordingFinished(outcome, duration)
	s.metrics.SetSessions(len(s.store.List()))
	log.SessionSaved(sess.ID, session.WordCount(sess.FullText), sess.TotalDurationMs)
	log.TranscriptionText(text)

	s.mu.Lock()
	s.active = sess.ID
	s.state = Idle
	s.errMsg = ""
	s.mu.Unlock()

	s.events.SessionSaved(sess)
	s.events.StateChanged(Idle, "")
	return sess, nil
}

func (s *Studio) logTranscription(res *transcriber.Result, payloadBytes int) {
	m := log.TranscriptionMetrics{
		Provider:  s.tr.Name(),
		AudioKB:   float64(payloadBytes) / 1024,
		Demo:      res.Demo,
		RateLimit: res.RateLimit,
	}
	if n := res.Metrics; n != nil {
		m.DNSTimeMs = float64(n.DNS.Milliseconds())
		m.TLSTimeMs = float64(n.TLS.Milliseconds())
		m.TTFBMs = float64(n.TTFB.Milliseconds())
		m.TotalTimeMs = float64(n.Total.Milliseconds())
		m.ConnReused = n.ConnReused
		m.TLSProtocol = n.TLSProtocol
	}
	log.Transcription(m)
}

func (s *Studio) fail(err error) error {
	msg := err.Error()
	s.mu.Lock()
	s.state = Error
	s.errMsg = msg
	s.mu.Unlock()

	log.Errorf("recording failed: %v", err)
	s.cues.Error()
	s.events.StateChanged(Error, msg)
	return err
}

func (s *Studio) setIdle() {
	s.mu.Lock()
	s.state = Idle
	s.errMsg = ""
	s.mu.Unlock()
	s.events.StateChanged(Idle, "")
}

// Discard abandons the current recording without transcribing it.
func (s *Studio) Discard() error {
	s.mu.Lock()
	if s.state != Recording || s.att == nil || s.busy {
		s.mu.Unlock()
		return ErrNotRecording
	}
	att := s.att
	s.busy = true
	s.mu.Unlock()

	s.teardown(att)

	s.mu.Lock()
	s.att = nil
	s.busy = false
	s.state = Idle
	s.level = 0
	s.elapsed = 0
	s.mu.Unlock()

	s.metrics.RecordingFinished(metrics.OutcomeDiscard, s.clock.Now().Sub(att.startedAt))
	s.events.AudioLevel(0)
	s.events.StateChanged(Idle, "discarded")
	return nil
}

func (s *Studio) teardown(att *attempt) {
	att.stopTasks()
	<-att.rec.Stop()
	att.release()
}

// Close releases any live recording. A transcription already in flight is
// left to finish. Close is idempotent.
func (s *Studio) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	var att *attempt
	if s.state == Recording && s.att != nil && !s.busy {
		att = s.att
		s.busy = true
	}
	s.mu.Unlock()

	if att == nil {
		return
	}
	s.teardown(att)

	s.mu.Lock()
	s.att = nil
	s.busy = false
	s.state = Idle
	s.level = 0
	s.mu.Unlock()
}

func (s *Studio) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Studio) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		State:   s.state,
		Level:   s.level,
		Elapsed: s.elapsed,
		Err:     s.errMsg,
	}
	active := s.active
	s.mu.Unlock()

	if active != "" {
		if sess, err := s.store.Get(active); err == nil {
			snap.Active = sess
		}
	}
	return snap
}

func (s *Studio) Sessions() []session.Session {
	return s.store.List()
}

// Active returns the selected session, or nil.
func (s *Studio) Active() *session.Session {
	s.mu.Lock()
	id := s.active
	s.mu.Unlock()
	if id == "" {
		return nil
	}
	sess, err := s.store.Get(id)
	if err != nil {
		return nil
	}
	return sess
}

func (s *Studio) Select(id string) error {
	if _, err := s.store.Get(id); err != nil {
		return err
	}
	s.mu.Lock()
	s.active = id
	s.mu.Unlock()
	return nil
}

func (s *Studio) ClearSelection() {
	s.mu.Lock()
	s.active = ""
	s.mu.Unlock()
}

// DeleteSession removes a session. The selection is cleared only when it
// pointed at the deleted session.
func (s *Studio) DeleteSession(id string) error {
	if err := s.store.Delete(id); err != nil {
		return err
	}
	s.mu.Lock()
	if s.active == id {
		s.active = ""
	}
	s.mu.Unlock()

	log.SessionDeleted(id)
	s.metrics.SetSessions(len(s.store.List()))
	s.events.SessionDeleted(id)
	return nil
}

// ExportSession writes the transcript file for id into dir.
func (s *Studio) ExportSession(id, dir string) (string, error) {
	sess, err := s.store.Get(id)
	if err != nil {
		return "", err
	}
	return s.store.ExportToDir(dir, sess)
}

// CopyActive puts the selected transcript on the clipboard.
func (s *Studio) CopyActive() error {
	sess := s.Active()
	if sess == nil {
		return ErrNoSelection
	}
	if s.clipboard == nil {
		return errors.New("clipboard not configured")
	}
	return s.clipboard(sess.FullText)
}
