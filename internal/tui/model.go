package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"sentrec/internal/domain"
	"sentrec/internal/playback"
	"sentrec/internal/ports"
	"sentrec/internal/usecase"
)

// Session is the navigator surface the TUI drives.
type Session interface {
	Begin(ctx context.Context, set domain.SentenceSet) error
	RetryMicrophone() error
	ToggleMic() error
	Next() error
	Previous() error
	Finish() (domain.Status, error)
	Home()
	Status() domain.Status
}

// Exporter builds and saves recordings.
type Exporter interface {
	Export(ctx context.Context) (domain.ExportResult, error)
	SaveSegment(ctx context.Context, index int) (string, error)
}

// Player is one playlist: the current-sentence clip or the review list.
type Player interface {
	SetSource(segments []domain.Segment)
	Toggle(ctx context.Context) playback.Status
	Stop()
	Status() playback.Status
}

// Deps are the services behind the screens.
type Deps struct {
	Session  Session
	Exporter Exporter
	Sets     ports.SentenceSetProvider
	Store    ports.SegmentStore
	Clip     Player
	Review   Player
	Events   *EventSink
}

type screen int

const (
	screenHome screen = iota
	screenRecord
	screenReview
)

const noticeTimeout = 4 * time.Second

// Model is the root bubbletea model for the recorder.
type Model struct {
	ctx  context.Context
	deps Deps

	screen screen
	sets   []string
	cursor int
	// initialSet is opened on start when set from the command line.
	initialSet string

	status    domain.Status
	countdown int
	clip      playback.Status
	review    playback.Status
	exporting bool

	notice    string
	noticeSeq int
	errText   string

	width int
}

// New creates a Model on the home screen.
func New(ctx context.Context, deps Deps, initialSet string) Model {
	return Model{
		ctx:        ctx,
		deps:       deps,
		sets:       deps.Sets.Names(),
		initialSet: initialSet,
		status:     domain.Status{State: domain.SessionStateIdle},
	}
}

// Init starts listening for backend events and opens the initial set.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.deps.Events.Listen()}
	if m.initialSet != "" {
		cmds = append(cmds, m.selectSetCmd(m.initialSet))
	}
	return tea.Batch(cmds...)
}

func (m Model) selectSetCmd(name string) tea.Cmd {
	ctx, deps := m.ctx, m.deps
	return func() tea.Msg {
		set, err := deps.Sets.Get(name)
		if err != nil {
			return ActionDoneMsg{Status: deps.Session.Status(), Err: err}
		}
		deps.Clip.SetSource(nil)
		deps.Review.SetSource(nil)
		err = deps.Session.Begin(ctx, set)
		return ActionDoneMsg{Status: deps.Session.Status(), Err: err}
	}
}

// sessionCmd runs a navigator step off the UI loop.
func (m Model) sessionCmd(step func(Session) error) tea.Cmd {
	deps := m.deps
	return func() tea.Msg {
		err := step(deps.Session)
		return ActionDoneMsg{Status: deps.Session.Status(), Err: err}
	}
}

func (m Model) finishCmd() tea.Cmd {
	deps := m.deps
	return func() tea.Msg {
		deps.Clip.SetSource(nil)
		status, err := deps.Session.Finish()
		if err != nil {
			return FinishedMsg{Status: status, Err: err}
		}
		segments := deps.Store.All()
		deps.Review.SetSource(segments)
		return FinishedMsg{Status: status, Segments: segments}
	}
}

func (m Model) homeCmd() tea.Cmd {
	deps := m.deps
	return func() tea.Msg {
		deps.Clip.SetSource(nil)
		deps.Review.SetSource(nil)
		deps.Session.Home()
		return ActionDoneMsg{Status: deps.Session.Status()}
	}
}

func (m Model) playCurrentCmd() tea.Cmd {
	ctx, deps := m.ctx, m.deps
	return func() tea.Msg {
		if deps.Clip.Status().Playing {
			return PlaybackMsg{Source: "clip", Status: deps.Clip.Toggle(ctx)}
		}
		status := deps.Session.Status()
		segment, ok := deps.Store.Get(status.Index)
		if !ok {
			return ActionDoneMsg{Status: status, Err: usecase.ErrNoSegment}
		}
		deps.Clip.SetSource([]domain.Segment{segment})
		return PlaybackMsg{Source: "clip", Status: deps.Clip.Toggle(ctx)}
	}
}

func (m Model) playAllCmd() tea.Cmd {
	ctx, deps := m.ctx, m.deps
	return func() tea.Msg {
		return PlaybackMsg{Source: "review", Status: deps.Review.Toggle(ctx)}
	}
}

func (m Model) saveCurrentCmd() tea.Cmd {
	ctx, deps := m.ctx, m.deps
	index := m.status.Index
	return func() tea.Msg {
		location, err := deps.Exporter.SaveSegment(ctx, index)
		return SavedMsg{Location: location, Err: err}
	}
}

func (m Model) exportCmd() tea.Cmd {
	ctx, deps := m.ctx, m.deps
	return func() tea.Msg {
		result, err := deps.Exporter.Export(ctx)
		return ExportDoneMsg{Result: result, Err: err}
	}
}

func clearNoticeCmd(seq int) tea.Cmd {
	return tea.Tick(noticeTimeout, func(time.Time) tea.Msg {
		return ClearNoticeMsg{Seq: seq}
	})
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case SessionMsg:
		m.setStatus(msg.Status)
		return m, m.deps.Events.Listen()

	case CountdownMsg:
		m.countdown = msg.Remaining
		return m, m.deps.Events.Listen()

	case SegmentStoredMsg:
		cmd := m.setNotice(fmt.Sprintf("Sentence %d recorded", msg.Index+1))
		return m, tea.Batch(cmd, m.deps.Events.Listen())

	case ErrorMsg:
		m.errText = errorText(msg.Code, msg.Detail)
		return m, m.deps.Events.Listen()

	case PlaybackMsg:
		if msg.Source == "review" {
			m.review = msg.Status
		} else {
			m.clip = msg.Status
		}
		if msg.Status.Error != "" {
			m.errText = errorText(domain.ErrorCodePlayback, msg.Status.Error)
		}
		return m, m.deps.Events.Listen()

	case ActionDoneMsg:
		m.setStatus(msg.Status)
		if msg.Err != nil && !errors.Is(msg.Err, usecase.ErrCountdownActive) {
			m.errText = msg.Err.Error()
		}
		return m, nil

	case FinishedMsg:
		m.setStatus(msg.Status)
		if msg.Err != nil {
			m.errText = msg.Err.Error()
		}
		return m, nil

	case ExportDoneMsg:
		m.exporting = false
		if msg.Err != nil {
			m.errText = msg.Err.Error()
			return m, nil
		}
		return m, m.setNotice("Saved " + msg.Result.Location)

	case SavedMsg:
		if msg.Err != nil {
			m.errText = msg.Err.Error()
			return m, nil
		}
		return m, m.setNotice("Saved " + msg.Location)

	case ClearNoticeMsg:
		if msg.Seq == m.noticeSeq {
			m.notice = ""
		}
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == KeyCtrlC {
		return m, tea.Quit
	}

	switch m.screen {
	case screenHome:
		switch key {
		case KeyQuit:
			return m, tea.Quit
		case KeyUp, KeyK:
			if m.cursor > 0 {
				m.cursor--
			}
		case KeyDown, KeyJ:
			if m.cursor < len(m.sets)-1 {
				m.cursor++
			}
		case KeyEnter:
			if len(m.sets) > 0 {
				m.errText = ""
				return m, m.selectSetCmd(m.sets[m.cursor])
			}
		}

	case screenRecord:
		switch key {
		case KeySpace:
			// The mic control is hidden while the countdown runs.
			if !m.status.ShowMicToggle() || m.countdown > 0 {
				return m, nil
			}
			m.errText = ""
			return m, m.sessionCmd(Session.ToggleMic)
		case KeyLeft, KeyH:
			return m, m.sessionCmd(Session.Previous)
		case KeyRight, KeyL:
			return m, m.sessionCmd(Session.Next)
		case KeyRetryMic:
			if !m.status.MicAvailable {
				m.errText = ""
				return m, m.sessionCmd(Session.RetryMicrophone)
			}
		case KeyPlay:
			if m.status.HasSegment && !m.status.Recording {
				return m, m.playCurrentCmd()
			}
		case KeySave:
			if m.status.HasSegment {
				return m, m.saveCurrentCmd()
			}
		case KeyFinish:
			return m, m.finishCmd()
		case KeyEsc:
			return m, m.homeCmd()
		}

	case screenReview:
		switch key {
		case KeyQuit:
			return m, tea.Quit
		case KeySpace:
			if m.status.Completed > 0 {
				return m, m.playAllCmd()
			}
		case KeyExportAll:
			if m.status.Completed > 0 && !m.exporting {
				m.exporting = true
				m.errText = ""
				return m, m.exportCmd()
			}
		case KeyEsc, KeyH:
			if !m.exporting {
				return m, m.homeCmd()
			}
		}
	}
	return m, nil
}

// setStatus records a snapshot and derives the screen from it.
func (m *Model) setStatus(status domain.Status) {
	m.status = status
	m.countdown = status.Countdown
	switch {
	case status.Finished:
		m.screen = screenReview
	case status.Total > 0:
		m.screen = screenRecord
	default:
		m.screen = screenHome
		m.review = playback.Status{}
		m.clip = playback.Status{}
	}
}

func (m *Model) setNotice(text string) tea.Cmd {
	m.noticeSeq++
	m.notice = text
	return clearNoticeCmd(m.noticeSeq)
}

// View renders the current screen.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("sentrec"))
	b.WriteString("\n\n")

	switch m.screen {
	case screenHome:
		m.viewHome(&b)
	case screenRecord:
		m.viewRecord(&b)
	case screenReview:
		m.viewReview(&b)
	}

	if m.notice != "" {
		b.WriteString("\n" + DoneStyle.Render(m.notice) + "\n")
	}
	if m.errText != "" {
		b.WriteString("\n" + ErrorTextStyle.Render(m.errText) + "\n")
	}
	return b.String()
}

func (m Model) viewHome(b *strings.Builder) {
	b.WriteString("Select a sentence set:\n\n")
	if len(m.sets) == 0 {
		b.WriteString(DimStyle.Render("  no sentence sets found") + "\n")
	}
	for i, name := range m.sets {
		if i == m.cursor {
			b.WriteString(SelectedStyle.Render("> "+name) + "\n")
			continue
		}
		b.WriteString("  " + name + "\n")
	}
	b.WriteString("\n" + footer("↑/↓", "choose", "enter", "start", "q", "quit"))
}

func (m Model) viewRecord(b *strings.Builder) {
	s := m.status
	fmt.Fprintf(b, "%s  Sentence %d of %d\n", m.indicator(), s.Index+1, s.Total)
	b.WriteString(SentenceStyle.Render(s.Sentence) + "\n")

	switch {
	case m.countdown > 0:
		b.WriteString(CountdownStyle.Render(fmt.Sprintf("Recording in %d...", m.countdown)) + "\n")
	case !s.MicAvailable:
		b.WriteString(ErrorTextStyle.Render("Microphone unavailable") + "  " + DimStyle.Render("press r to retry") + "\n")
	case s.HasSegment && !s.Recording:
		b.WriteString(DoneStyle.Render("✓ recorded") + "\n")
	default:
		b.WriteString("\n")
	}
	if m.clip.Playing {
		b.WriteString(DimStyle.Render("playing...") + "\n")
	}
	fmt.Fprintf(b, "\n%s\n", DimStyle.Render(fmt.Sprintf("%d of %d recorded", s.Completed, s.Total)))

	pairs := []string{}
	if s.ShowMicToggle() && m.countdown == 0 {
		label := "record"
		if s.Recording {
			label = "stop"
		}
		pairs = append(pairs, "space", label)
	}
	pairs = append(pairs, "←/→", "sentence")
	if s.HasSegment {
		pairs = append(pairs, "p", "play", "s", "save")
	}
	pairs = append(pairs, "f", "finish", "esc", "home")
	b.WriteString("\n" + footer(pairs...))
}

func (m Model) viewReview(b *strings.Builder) {
	if m.status.Completed == 0 {
		b.WriteString(TitleStyle.Render("No Recordings Available") + "\n")
		b.WriteString("There are no completed recordings to review or download.\n")
		b.WriteString("\n" + footer("esc", "back to home", "q", "quit"))
		return
	}

	b.WriteString(TitleStyle.Render("Recordings Complete!") + "\n")
	fmt.Fprintf(b, "Total recordings: %d\n\n", m.status.Completed)
	if m.review.Playing {
		fmt.Fprintf(b, "Playing recording %d of %d\n", m.review.Index+1, m.review.Total)
	} else {
		b.WriteString("Ready to play\n")
	}
	if m.exporting {
		b.WriteString(CountdownStyle.Render("Processing...") + "\n")
	}

	playLabel := "play all"
	if m.review.Playing {
		playLabel = "pause"
	}
	b.WriteString("\n" + footer("space", playLabel, "d", "download all", "esc", "back to home", "q", "quit"))
}

func (m Model) indicator() string {
	if m.status.Recording {
		return RecordingDotStyle.Render("● REC")
	}
	return IdleDotStyle.Render("○")
}

func footer(pairs ...string) string {
	parts := make([]string, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		parts = append(parts, FooterKeyStyle.Render(pairs[i])+" "+FooterDescStyle.Render(pairs[i+1]))
	}
	return strings.Join(parts, "  ") + "\n"
}

func errorText(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeDeviceDenied:
		return "Microphone access denied: " + detail
	case domain.ErrorCodeAudioStream:
		return "Microphone stream ended: " + detail
	case domain.ErrorCodeExportInit:
		return "Could not load the audio joiner: " + detail
	case domain.ErrorCodeExportExec:
		return "Joining recordings failed: " + detail
	case domain.ErrorCodePlayback:
		return "Playback failed: " + detail
	default:
		return fmt.Sprintf("%s: %s", code, detail)
	}
}
