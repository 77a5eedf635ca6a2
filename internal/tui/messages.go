package tui

import (
	"sentrec/internal/domain"
	"sentrec/internal/playback"
)

// SessionMsg carries a navigator state change.
type SessionMsg struct {
	Status domain.Status
	Reason domain.SessionStateReason
}

// CountdownMsg carries the remaining countdown steps.
type CountdownMsg struct {
	Remaining int
}

// SegmentStoredMsg reports a finalized recording.
type SegmentStoredMsg struct {
	Index int
	Bytes int
}

// ErrorMsg carries a backend error event.
type ErrorMsg struct {
	Code   domain.ErrorCode
	Detail string
}

// PlaybackMsg carries a playlist transition. Source is "clip" or "review".
type PlaybackMsg struct {
	Source string
	Status playback.Status
}

// ActionDoneMsg is the result of a navigator call run off the UI loop.
type ActionDoneMsg struct {
	Status domain.Status
	Err    error
}

// FinishedMsg is the result of Finish.
type FinishedMsg struct {
	Status   domain.Status
	Segments []domain.Segment
	Err      error
}

// ExportDoneMsg is the result of a combined export.
type ExportDoneMsg struct {
	Result domain.ExportResult
	Err    error
}

// SavedMsg is the result of saving one sentence's recording.
type SavedMsg struct {
	Location string
	Err      error
}

// ClearNoticeMsg clears a transient notice after a timeout.
type ClearNoticeMsg struct {
	Seq int
}
