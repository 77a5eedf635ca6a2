package domain

// SessionState models the per-sentence recording lifecycle.
type SessionState string

const (
	SessionStateIdle      SessionState = "idle"
	SessionStateCountdown SessionState = "countdown"
	SessionStateRecording SessionState = "recording"
	SessionStateStopped   SessionState = "stopped"
	SessionStateFinished  SessionState = "finished"
	SessionStateError     SessionState = "error"
)

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonSetSelected      SessionStateReason = "set_selected"
	SessionReasonMicReady         SessionStateReason = "mic_ready"
	SessionReasonMicUnavailable   SessionStateReason = "mic_unavailable"
	SessionReasonCountdownStarted SessionStateReason = "countdown_started"
	SessionReasonRecordingStarted SessionStateReason = "recording_started"
	SessionReasonRecordingStopped SessionStateReason = "recording_stopped"
	SessionReasonNavigated        SessionStateReason = "navigated"
	SessionReasonSessionFinished  SessionStateReason = "session_finished"
	SessionReasonNoRecordings     SessionStateReason = "no_recordings"
	SessionReasonReturnedHome     SessionStateReason = "returned_home"
	SessionReasonExportStarted    SessionStateReason = "export_started"
	SessionReasonExportCompleted  SessionStateReason = "export_completed"
	SessionReasonExportFailed     SessionStateReason = "export_failed"
	SessionReasonDeviceReacquired SessionStateReason = "device_reacquired"
)

// ErrorCode identifies non-fatal and fatal backend errors.
type ErrorCode string

const (
	ErrorCodeStartup      ErrorCode = "startup"
	ErrorCodeDeviceDenied ErrorCode = "device_denied"
	ErrorCodeAudioStop    ErrorCode = "audio_stop"
	ErrorCodeAudioStream  ErrorCode = "audio_stream"
	ErrorCodeExportInit   ErrorCode = "export_init"
	ErrorCodeExportExec   ErrorCode = "export_exec"
	ErrorCodePlayback     ErrorCode = "playback"
	ErrorCodeSentenceSet  ErrorCode = "sentence_set"
	ErrorCodeDownload     ErrorCode = "download"
)

// SentenceSet is an ordered, immutable list of sentences to read aloud.
type SentenceSet struct {
	Name      string   `json:"name" yaml:"name"`
	Sentences []string `json:"text" yaml:"text"`
}

// Len reports the number of recording steps in the set.
func (s SentenceSet) Len() int {
	return len(s.Sentences)
}

// Segment is one captured audio blob for a single sentence.
type Segment struct {
	Index       int
	Data        []byte
	ContentType string
}

// Empty reports whether the segment carries no audio payload.
func (s Segment) Empty() bool {
	return len(s.Data) == 0
}

// Artifact is a named file handed to the download trigger.
type Artifact struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"-"`
}

// Status summarizes the current recording session for the UI.
type Status struct {
	SessionID      string       `json:"sessionId,omitempty"`
	SetName        string       `json:"setName,omitempty"`
	State          SessionState `json:"state"`
	Index          int          `json:"index"`
	Total          int          `json:"total"`
	Sentence       string       `json:"sentence,omitempty"`
	Recording      bool         `json:"recording"`
	Countdown      int          `json:"countdown"`
	FirstRecording bool         `json:"firstRecording"`
	MicAvailable   bool         `json:"micAvailable"`
	HasSegment     bool         `json:"hasSegment"`
	Completed      int          `json:"completed"`
	Finished       bool         `json:"finished"`
	Message        string       `json:"message,omitempty"`
}

// ShowMicToggle reports whether the mic control may be shown. It is hidden
// while the countdown runs so a manual start cannot race the automatic one.
func (s Status) ShowMicToggle() bool {
	return s.State != SessionStateCountdown && s.Countdown == 0
}

// ExportResult describes a completed export.
type ExportResult struct {
	FileName string `json:"fileName"`
	Segments int    `json:"segments"`
	Bytes    int    `json:"bytes"`
	Location string `json:"location,omitempty"`
}
