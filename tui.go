package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"voxscribe/audio"
	"voxscribe/level"
	"voxscribe/log"
	"voxscribe/session"
	"voxscribe/studio"
	"voxscribe/transcriber"
	"voxscribe/waveform"
)

// TUI message types
type stateMsg struct {
	State  studio.State
	Detail string
}
type levelMsg struct{ Level float64 }
type elapsedMsg struct{ Elapsed time.Duration }
type sessionsMsg struct{ Saved *session.Session }
type noticeMsg struct {
	Text string
	Err  error
}
type frameMsg time.Time

// programSink forwards studio events into the bubbletea loop.
type programSink struct {
	mu sync.Mutex
	p  *tea.Program
}

func (s *programSink) set(p *tea.Program) {
	s.mu.Lock()
	s.p = p
	s.mu.Unlock()
}

func (s *programSink) send(msg tea.Msg) {
	s.mu.Lock()
	p := s.p
	s.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func (s *programSink) StateChanged(st studio.State, detail string) {
	s.send(stateMsg{State: st, Detail: detail})
}
func (s *programSink) AudioLevel(l float64)               { s.send(levelMsg{Level: l}) }
func (s *programSink) RecordingTick(e time.Duration)      { s.send(elapsedMsg{Elapsed: e}) }
func (s *programSink) SessionSaved(sess *session.Session) { s.send(sessionsMsg{Saved: sess}) }
func (s *programSink) SessionDeleted(string)              { s.send(sessionsMsg{}) }

type tuiModel struct {
	studio    *studio.Studio
	ctx       context.Context
	exportDir string
	now       func() time.Time
	silence   *level.SilenceDetector

	state         studio.State
	errText       string
	level         float64
	elapsed       time.Duration
	frame         uint64
	sessions      []session.Session
	cursor        int
	active        *session.Session
	notice        string
	noticeErr     bool
	width, height int
	modeLine      string
	deviceLine    string
}

func newTUIModel(ctx context.Context, st *studio.Studio, frameRate int, modeLine, deviceLine, exportDir string) tuiModel {
	m := tuiModel{
		studio:     st,
		ctx:        ctx,
		exportDir:  exportDir,
		now:        time.Now,
		silence:    level.NewSilenceDetector(frameRate, level.DefaultSilenceFor),
		modeLine:   modeLine,
		deviceLine: deviceLine,
	}
	m.refresh()
	return m
}

func runTUI(ctx context.Context, a *app, actx audio.Context, dev *audio.DeviceInfo) int {
	sink := &programSink{}
	st, err := a.newStudio(actx, dev, sink)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer st.Close()

	exportDir, err := os.Getwd()
	if err != nil {
		exportDir = a.cfg.Storage.Dir
	}
	provider := a.tr.Name()
	if c, ok := a.tr.(*transcriber.Client); ok {
		provider += "/" + c.Model()
	}
	if lang := a.cfg.Transcription.Language; lang != "" {
		provider += " (" + lang + ")"
	}
	modeLine := fmt.Sprintf("[%s | %s]", a.cfg.Recording.Format, provider)
	if a.cfg.DemoMode() {
		modeLine += " demo mode: set VOXSCRIBE_API_KEY for real transcripts"
	}

	p := tea.NewProgram(newTUIModel(ctx, st, a.cfg.Recording.FrameRate, modeLine, "mic: "+audio.DeviceLabel(dev), exportDir),
		tea.WithAltScreen(), tea.WithContext(ctx))
	sink.set(p)
	defer sink.set(nil)

	_, err = p.Run()
	log.SessionEnd(len(a.store.List()))
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		log.Errorf("TUI error: %v", err)
		return 1
	}
	return 0
}

func frameTick() tea.Cmd {
	return tea.Tick(50*time.Millisecond, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return frameTick()
}

// refresh reloads the session list and the selection from the studio.
func (m *tuiModel) refresh() {
	m.sessions = m.studio.Sessions()
	m.active = m.studio.Active()
	if m.cursor >= len(m.sessions) {
		m.cursor = max(len(m.sessions)-1, 0)
	}
}

func (m tuiModel) startCmd() tea.Cmd {
	st, ctx := m.studio, m.ctx
	return func() tea.Msg {
		err := st.Start(ctx)
		if err == nil {
			return nil
		}
		var denied *studio.PermissionDeniedError
		if errors.As(err, &denied) {
			return nil // surfaced through the state event
		}
		return noticeMsg{Err: err}
	}
}

func (m tuiModel) stopCmd() tea.Cmd {
	st, ctx := m.studio, m.ctx
	return func() tea.Msg {
		sess, err := st.Stop(ctx)
		switch {
		case errors.Is(err, studio.ErrNotRecording):
			return noticeMsg{Err: err}
		case err != nil:
			return nil
		case sess == nil:
			return noticeMsg{Text: "no speech detected"}
		}
		return nil
	}
}

func (m tuiModel) selected() *session.Session {
	if m.cursor < 0 || m.cursor >= len(m.sessions) {
		return nil
	}
	return &m.sessions[m.cursor]
}

func (m tuiModel) handleKey(key string) (tea.Model, tea.Cmd) {
	m.notice, m.noticeErr = "", false
	switch key {
	case "ctrl+c", "q":
		if m.state == studio.Recording {
			if err := m.studio.Discard(); err != nil {
				log.Warnf("discard on quit: %v", err)
			}
		}
		return m, tea.Quit
	case " ", "space":
		if m.state == studio.Recording {
			return m, m.stopCmd()
		}
		return m, m.startCmd()
	case "esc":
		if m.state == studio.Recording {
			st := m.studio
			return m, func() tea.Msg {
				if err := st.Discard(); err != nil {
					return noticeMsg{Err: err}
				}
				return nil
			}
		}
		m.studio.ClearSelection()
		m.refresh()
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.sessions)-1 {
			m.cursor++
		}
	case "enter":
		if sel := m.selected(); sel != nil {
			if err := m.studio.Select(sel.ID); err != nil {
				m.notice, m.noticeErr = err.Error(), true
			}
			m.refresh()
		}
	case "d":
		if sel := m.selected(); sel != nil {
			if err := m.studio.DeleteSession(sel.ID); err != nil {
				m.notice, m.noticeErr = err.Error(), true
			} else {
				m.notice = "deleted " + sel.Title
			}
			m.refresh()
		}
	case "e":
		if sel := m.selected(); sel != nil {
			path, err := m.studio.ExportSession(sel.ID, m.exportDir)
			if err != nil {
				m.notice, m.noticeErr = err.Error(), true
			} else {
				m.notice = "exported " + path
			}
		}
	case "c":
		if err := m.studio.CopyActive(); err != nil {
			m.notice, m.noticeErr = err.Error(), true
		} else {
			m.notice = "copied to clipboard"
		}
	}
	return m, nil
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		return m.handleKey(msg.String())

	case frameMsg:
		m.frame++
		return m, frameTick()

	case stateMsg:
		m.state = msg.State
		switch msg.State {
		case studio.Recording:
			m.elapsed = 0
			m.level = 0
			m.errText = ""
			m.silence.Reset()
		case studio.Error:
			m.errText = msg.Detail
		case studio.Idle:
			m.errText = ""
			m.level = 0
			if msg.Detail != "" {
				m.notice = msg.Detail
			}
		}
		m.refresh()

	case levelMsg:
		m.level = msg.Level
		if m.state == studio.Recording {
			m.silence.Observe(msg.Level)
		}

	case elapsedMsg:
		m.elapsed = msg.Elapsed

	case sessionsMsg:
		m.refresh()
		if msg.Saved != nil {
			m.cursor = 0
		}

	case noticeMsg:
		if msg.Err != nil {
			m.notice, m.noticeErr = msg.Err.Error(), true
		} else {
			m.notice, m.noticeErr = msg.Text, false
		}
	}
	return m, nil
}

var (
	recStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	modeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	procStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	boldHelp     = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	cursorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("51")).Bold(true)
	activeMark   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	textStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	previewStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
)

func (m tuiModel) statusLine() string {
	switch m.state {
	case studio.Recording:
		return recStyle.Render("● REC " + studio.FormatElapsed(m.elapsed))
	case studio.Processing:
		return procStyle.Render("◌ transcribing " + studio.FormatElapsed(m.elapsed))
	case studio.Error:
		return errStyle.Render("✗ " + m.errText)
	default:
		return dimStyle.Render("○ READY")
	}
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	const leftWidth = waveform.BarCount + 4
	recording := m.state == studio.Recording

	var left []string
	left = append(left, "", waveform.Render(waveform.Bars(m.frame, recording, m.level), 6, recording), "")
	left = append(left, m.statusLine())
	if recording && m.silence.Warned() {
		left = append(left, errStyle.Render("  ⚠ no voice detected"))
	}
	if m.modeLine != "" {
		left = append(left, modeStyle.Render(m.modeLine))
	}
	if m.deviceLine != "" {
		left = append(left, dimStyle.Render(m.deviceLine))
	}
	if m.notice != "" {
		style := noticeStyle
		if m.noticeErr {
			style = errStyle
		}
		left = append(left, "", style.Render(m.notice))
	}
	left = append(left, "",
		boldHelp.Render("space")+helpStyle.Render(" record/stop  ")+boldHelp.Render("esc")+helpStyle.Render(" discard"),
		boldHelp.Render("↑/↓ enter")+helpStyle.Render(" select  ")+boldHelp.Render("c")+helpStyle.Render(" copy"),
		boldHelp.Render("e")+helpStyle.Render(" export  ")+boldHelp.Render("d")+helpStyle.Render(" delete  ")+boldHelp.Render("q")+helpStyle.Render(" quit"),
		helpStyle.Render("voxscribe "+version),
	)

	rightWidth := max(m.width-leftWidth-1, 20)
	leftPanel := lipgloss.NewStyle().Width(leftWidth).Height(m.height).PaddingLeft(1).
		Render(strings.Join(left, "\n"))
	rightPanel := lipgloss.NewStyle().Width(rightWidth).Height(m.height).PaddingLeft(1).
		Render(m.renderSessions(rightWidth - 2))

	return lipgloss.JoinHorizontal(lipgloss.Top, leftPanel, rightPanel)
}

func (m tuiModel) renderSessions(width int) string {
	var b strings.Builder
	width = max(width, 10)

	if m.active != nil {
		b.WriteString(titleStyle.Render(m.active.Title) + "\n\n")
		for _, line := range wrapText(m.active.FullText, width) {
			b.WriteString(textStyle.Render(line) + "\n")
		}
		b.WriteString("\n")
	}

	if len(m.sessions) == 0 {
		b.WriteString(dimStyle.Render("No sessions yet. Press space to record."))
		return b.String()
	}

	b.WriteString(titleStyle.Render(fmt.Sprintf("Sessions (%d)", len(m.sessions))) + "\n")
	now := m.now()
	for i, s := range m.sessions {
		marker := "  "
		if i == m.cursor {
			marker = cursorStyle.Render("▶ ")
		}
		line := sessionLine(s, now)
		if m.active != nil && s.ID == m.active.ID {
			line += " " + activeMark.Render("●")
		}
		b.WriteString(marker + line + "\n")
		b.WriteString("  " + previewStyle.Render(session.Preview(s.FullText, max(width-4, 10))) + "\n")
	}
	return b.String()
}

// sessionLine summarises a session as "title · age · N words · duration".
func sessionLine(s session.Session, now time.Time) string {
	words := session.WordCount(s.FullText)
	unit := "words"
	if words == 1 {
		unit = "word"
	}
	return fmt.Sprintf("%s · %s · %d %s · %s",
		s.Title, session.FormatAge(s.CreatedAt, now), words, unit, session.FormatDuration(s.TotalDurationMs))
}

func wrapText(text string, width int) []string {
	if text == "" {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	r := []rune(text)
	for len(r) > width {
		splitAt := width
		for i := width; i > 0; i-- {
			if r[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, string(r[:splitAt]))
		r = []rune(strings.TrimLeft(string(r[splitAt:]), " "))
	}
	if len(r) > 0 {
		lines = append(lines, string(r))
	}
	return lines
}
