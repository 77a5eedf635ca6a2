package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"sentrec/internal/domain"
	"sentrec/internal/playback"
)

const eventBuffer = 128

// EventSink forwards backend events into the bubbletea loop. The navigator
// emits while holding its lock, so sends never block: when the buffer is
// full the event is dropped and the next status snapshot catches up.
type EventSink struct {
	ch chan tea.Msg
}

func NewEventSink() *EventSink {
	return &EventSink{ch: make(chan tea.Msg, eventBuffer)}
}

func (s *EventSink) SessionStateChanged(status domain.Status, reason domain.SessionStateReason) {
	s.send(SessionMsg{Status: status, Reason: reason})
}

func (s *EventSink) CountdownTick(remaining int) {
	s.send(CountdownMsg{Remaining: remaining})
}

func (s *EventSink) SegmentStored(index int, bytes int) {
	s.send(SegmentStoredMsg{Index: index, Bytes: bytes})
}

func (s *EventSink) SessionError(code domain.ErrorCode, detail string) {
	s.send(ErrorMsg{Code: code, Detail: detail})
}

// Playback returns a playlist change callback tagged with source.
func (s *EventSink) Playback(source string) func(playback.Status) {
	return func(status playback.Status) {
		s.send(PlaybackMsg{Source: source, Status: status})
	}
}

// Listen waits for the next event.
func (s *EventSink) Listen() tea.Cmd {
	return func() tea.Msg {
		return <-s.ch
	}
}

func (s *EventSink) send(msg tea.Msg) {
	select {
	case s.ch <- msg:
	default:
	}
}
