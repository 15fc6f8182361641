package main

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"voxscribe/audio"
	"voxscribe/config"
	"voxscribe/session"
	"voxscribe/studio"
	"voxscribe/transcriber"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestStudio(t *testing.T, tr transcriber.Transcriber) (*studio.Studio, *session.Store) {
	t.Helper()
	store := session.NewStore(session.NewMemoryBackend())
	st, err := studio.New(studio.Deps{
		Audio:       audio.NewFakeContextPCM(audio.Tone(440, 500*time.Millisecond, 0.5), false),
		Transcriber: tr,
		Store:       store,
		Frames:      func() (<-chan time.Time, func()) { return nil, func() {} },
	}, studio.Options{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(st.Close)
	return st, store
}

func TestDriveStudio(t *testing.T) {
	st, store := newTestStudio(t, transcriber.NewFake("hello world", nil))
	var out syncBuffer

	in := strings.NewReader("START\nSTART\nSTOP\nWAIT\nLIST\nQUIT\nSTART\n")
	if code := driveStudio(context.Background(), st, in, &out); code != 0 {
		t.Fatalf("exit code = %d", code)
	}

	got := out.String()
	if !strings.Contains(got, "error: a capture is already in flight") {
		t.Errorf("second START not rejected:\n%s", got)
	}
	if !strings.Contains(got, `"hello world"`) {
		t.Errorf("missing saved line:\n%s", got)
	}
	if n := len(store.List()); n != 1 {
		t.Errorf("sessions = %d, want 1", n)
	}
	if st.State() != studio.Idle {
		t.Errorf("commands after QUIT must be ignored, state = %v", st.State())
	}
}

func TestDriveStudioNoSpeechAndDiscard(t *testing.T) {
	st, store := newTestStudio(t, transcriber.NewFake("  ", nil))
	var out syncBuffer

	driveStudio(context.Background(), st, strings.NewReader("START\nSTOP\nWAIT\nSTART\nDISCARD\nSTOP\n"), &out)

	got := out.String()
	if !strings.Contains(got, "no speech") {
		t.Errorf("missing no speech line:\n%s", got)
	}
	if !strings.Contains(got, "error: not recording") {
		t.Errorf("STOP after DISCARD should fail:\n%s", got)
	}
	if len(store.List()) != 0 {
		t.Error("nothing should be saved")
	}
}

func seedStore(t *testing.T, texts ...string) (*session.Store, []*session.Session) {
	t.Helper()
	store := session.NewStore(session.NewMemoryBackend())
	created := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)
	var out []*session.Session
	for i, text := range texts {
		s, err := session.New(created.Add(time.Duration(i)*time.Minute), session.NewSegment(text, 0, 3200*time.Millisecond))
		if err != nil {
			t.Fatal(err)
		}
		if err := store.Create(s); err != nil {
			t.Fatal(err)
		}
		out = append(out, s)
	}
	return store, out
}

func TestSessionsCommand(t *testing.T) {
	store, seeded := seedStore(t, "first take", "second take")
	now := seeded[1].CreatedAt.Add(2 * time.Hour)

	var out bytes.Buffer
	if err := sessionsCommand(store, []string{"list"}, &out, now); err != nil {
		t.Fatal(err)
	}
	list := out.String()
	if strings.Index(list, "second take") > strings.Index(list, "first take") {
		t.Errorf("newest session should be listed first:\n%s", list)
	}
	if !strings.Contains(list, "2h ago · 2 words · 3s") {
		t.Errorf("summary line missing:\n%s", list)
	}

	out.Reset()
	if err := sessionsCommand(store, []string{"show", seeded[0].ID[:8]}, &out, now); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "first take") {
		t.Errorf("show output:\n%s", out.String())
	}

	out.Reset()
	dir := t.TempDir()
	if err := sessionsCommand(store, []string{"export", seeded[0].ID, dir}, &out, now); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(strings.TrimSpace(out.String()), dir) {
		t.Errorf("export path = %q", out.String())
	}

	if err := sessionsCommand(store, []string{"delete", seeded[1].ID}, &out, now); err != nil {
		t.Fatal(err)
	}
	if n := len(store.List()); n != 1 {
		t.Errorf("sessions after delete = %d", n)
	}
}

func TestSessionsCommandErrors(t *testing.T) {
	store, _ := seedStore(t, "only")
	tests := []struct {
		args  []string
		usage bool
	}{
		{nil, true},
		{[]string{"show"}, true},
		{[]string{"frobnicate", "x"}, false},
		{[]string{"show", "zzzz"}, false},
	}
	for _, tt := range tests {
		err := sessionsCommand(store, tt.args, &bytes.Buffer{}, time.Now())
		if err == nil {
			t.Errorf("%v: expected error", tt.args)
			continue
		}
		if got := strings.Contains(err.Error(), "bad usage"); got != tt.usage {
			t.Errorf("%v: usage error = %v, want %v (%v)", tt.args, got, tt.usage, err)
		}
	}

	var out bytes.Buffer
	empty := session.NewStore(session.NewMemoryBackend())
	if err := sessionsCommand(empty, []string{"list"}, &out, time.Now()); err != nil || !strings.Contains(out.String(), "no sessions") {
		t.Errorf("empty list: %v %q", err, out.String())
	}
}

func TestApplyFlags(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Dir = t.TempDir()
	if err := applyFlags(&cfg, "wav", "de", "sqlite", ":9464", "USB Mic"); err != nil {
		t.Fatal(err)
	}
	if cfg.Recording.Format != "wav" || cfg.Transcription.Language != "de" || cfg.Storage.Backend != "sqlite" ||
		cfg.Metrics.Addr != ":9464" || cfg.Recording.Device != "USB Mic" {
		t.Errorf("flags not applied: %+v", cfg)
	}

	cfg = config.Default()
	if err := applyFlags(&cfg, "mp3", "", "", "", ""); err == nil {
		t.Error("expected validation error for mp3")
	}
}

func TestOpenStore(t *testing.T) {
	for _, backend := range []string{config.StorageFile, config.StorageSQLite} {
		t.Run(backend, func(t *testing.T) {
			dir := t.TempDir()
			sc := config.StorageConfig{Backend: backend, Dir: dir, Namespace: session.DefaultNamespace}
			store, err := openStore(sc)
			if err != nil {
				t.Fatal(err)
			}
			s, _ := session.New(time.Now(), session.NewSegment("persist me", 0, time.Second))
			if err := store.Create(s); err != nil {
				t.Fatal(err)
			}
			store.Close()

			reopened, err := openStore(sc)
			if err != nil {
				t.Fatal(err)
			}
			defer reopened.Close()
			if list := reopened.List(); len(list) != 1 || list[0].FullText != "persist me" {
				t.Errorf("reopened list = %+v", list)
			}
		})
	}
}

func TestWrapText(t *testing.T) {
	tests := []struct {
		text  string
		width int
		want  []string
	}{
		{"", 10, []string{""}},
		{"short", 10, []string{"short"}},
		{"hello wide world", 10, []string{"hello", "wide world"}},
		{"abcdefghijkl", 5, []string{"abcde", "fghij", "kl"}},
		{"héllo wörld", 6, []string{"héllo", "wörld"}},
	}
	for _, tt := range tests {
		got := wrapText(tt.text, tt.width)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("wrapText(%q, %d) = %q, want %q", tt.text, tt.width, got, tt.want)
		}
	}
}

func TestSessionLine(t *testing.T) {
	created := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)
	s, _ := session.New(created, session.NewSegment("one", 0, 65*time.Second))
	got := sessionLine(*s, created.Add(30*time.Second))
	want := "Session — Mar 5, 02:07 PM · just now · 1 word · 1m5s"
	if got != want {
		t.Errorf("sessionLine = %q, want %q", got, want)
	}
}

func TestTUIModelFlow(t *testing.T) {
	st, _ := newTestStudio(t, transcriber.NewFake("from the tui", nil))
	m := newTUIModel(context.Background(), st, 60, "[flac | fake]", "mic: fake", t.TempDir())

	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = next.(tuiModel)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	m = next.(tuiModel)
	if cmd == nil {
		t.Fatal("space should start a recording")
	}
	if msg := cmd(); msg != nil {
		t.Fatalf("start returned %#v", msg)
	}
	next, _ = m.Update(stateMsg{State: studio.Recording})
	m = next.(tuiModel)
	if !strings.Contains(m.View(), "REC 00:00") {
		t.Error("recording status not shown")
	}

	next, cmd = m.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	m = next.(tuiModel)
	cmd()
	next, _ = m.Update(stateMsg{State: studio.Idle})
	m = next.(tuiModel)
	next, _ = m.Update(sessionsMsg{Saved: st.Active()})
	m = next.(tuiModel)

	if len(m.sessions) != 1 || m.active == nil {
		t.Fatalf("sessions=%d active=%v", len(m.sessions), m.active)
	}
	view := m.View()
	if !strings.Contains(view, "from the tui") || !strings.Contains(view, "Sessions (1)") {
		t.Errorf("view missing session:\n%s", view)
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'d'}})
	m = next.(tuiModel)
	if len(m.sessions) != 0 || m.active != nil {
		t.Error("delete should remove the session and clear the selection")
	}
}

func TestTUINoVoiceWarning(t *testing.T) {
	st, _ := newTestStudio(t, transcriber.NewFake("", nil))
	m := newTUIModel(context.Background(), st, 10, "", "", t.TempDir())
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m = next.(tuiModel)
	next, _ = m.Update(stateMsg{State: studio.Recording})
	m = next.(tuiModel)

	for i := 0; i < 30; i++ {
		next, _ = m.Update(levelMsg{Level: 0})
		m = next.(tuiModel)
	}
	if !strings.Contains(m.View(), "no voice detected") {
		t.Error("expected no voice warning after 3s of silence")
	}

	next, _ = m.Update(stateMsg{State: studio.Recording})
	m = next.(tuiModel)
	if strings.Contains(m.View(), "no voice detected") {
		t.Error("a new recording should clear the warning")
	}
}

func TestTUIErrorState(t *testing.T) {
	st, _ := newTestStudio(t, transcriber.NewFake("", nil))
	m := newTUIModel(context.Background(), st, 60, "", "", t.TempDir())
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m = next.(tuiModel)

	next, _ = m.Update(stateMsg{State: studio.Error, Detail: "bad token"})
	m = next.(tuiModel)
	if !strings.Contains(m.View(), "bad token") {
		t.Error("error text not rendered")
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'c'}})
	m = next.(tuiModel)
	if !m.noticeErr || !strings.Contains(m.notice, "no session selected") {
		t.Errorf("copy without selection: %q", m.notice)
	}
}
