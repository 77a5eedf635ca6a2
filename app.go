package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"

	"sentrec/internal/bootstrap"
	"sentrec/internal/config"
	"sentrec/internal/domain"
	"sentrec/internal/playback"
	"sentrec/internal/usecase"
)

const (
	eventSession   = "sentrec:session"
	eventCountdown = "sentrec:countdown"
	eventSegment   = "sentrec:segment"
	eventPlayback  = "sentrec:playback"
	eventError     = "sentrec:error"
)

var errDownloadCancelled = fmt.Errorf("download cancelled: %w", context.Canceled)

// App is the Wails application root.
type App struct {
	ctx context.Context

	services bootstrap.Services
	cfg      config.Config
	logger   *zap.Logger
	bootErr  error

	// clip plays the current sentence; review plays the finished set.
	clip   *playback.Playlist
	review *playback.Playlist
}

func NewApp() *App {
	return &App{logger: zap.NewNop()}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a, bootstrap.Options{Artifacts: &wailsSaveDialog{app: a}})
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.services = services
	a.cfg = services.Config
	a.logger = services.Logger
	a.clip = playback.NewPlaylist(services.Player, services.Logger, a.playbackChanged("clip"))
	a.review = playback.NewPlaylist(services.Player, services.Logger, a.playbackChanged("review"))
	a.SessionStateChanged(services.Navigator.Status(), domain.SessionReasonReturnedHome)
}

func (a *App) shutdown(_ context.Context) {
	a.logger.Info("shutting down")
	if a.clip != nil {
		a.clip.Stop()
	}
	if a.review != nil {
		a.review.Stop()
	}
	a.services.Close()
}

// ListSets returns the names offered on the home screen.
func (a *App) ListSets() ([]string, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	return a.services.Sets.Names(), nil
}

// SelectSet starts a fresh session on the named set. A denied microphone is
// reported through events; the session still opens.
func (a *App) SelectSet(name string) (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	set, err := a.services.Sets.Get(name)
	if err != nil {
		a.SessionError(domain.ErrorCodeSentenceSet, err.Error())
		return domain.Status{}, err
	}

	a.clip.SetSource(nil)
	a.review.SetSource(nil)
	if err := a.services.Navigator.Begin(a.ctx, set); err != nil && !errors.Is(err, usecase.ErrDeviceDenied) && !errors.Is(err, usecase.ErrNoDevice) {
		return domain.Status{}, err
	}
	return a.services.Navigator.Status(), nil
}

// RetryMicrophone asks for the device again after a denial.
func (a *App) RetryMicrophone() (domain.Status, error) {
	return a.navigate((*usecase.Navigator).RetryMicrophone)
}

// ToggleMic starts or stops recording the current sentence.
func (a *App) ToggleMic() (domain.Status, error) {
	if a.clip != nil {
		a.clip.SetSource(nil)
	}
	return a.navigate((*usecase.Navigator).ToggleMic)
}

func (a *App) Next() (domain.Status, error) {
	return a.navigate((*usecase.Navigator).Next)
}

func (a *App) Previous() (domain.Status, error) {
	return a.navigate((*usecase.Navigator).Previous)
}

// KeyPress forwards keyboard navigation from the frontend.
func (a *App) KeyPress(key string) (domain.Status, error) {
	return a.navigate(func(n *usecase.Navigator) error { return n.HandleKey(key) })
}

// Finish ends recording and loads the review playlist.
func (a *App) Finish() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	a.clip.SetSource(nil)
	status, err := a.services.Navigator.Finish()
	if err != nil {
		return status, err
	}
	a.review.SetSource(a.services.Store.All())
	return status, nil
}

// Home abandons the session and clears its recordings.
func (a *App) Home() domain.Status {
	if err := a.requireReady(); err != nil {
		return a.GetStatus()
	}
	a.clip.SetSource(nil)
	a.review.SetSource(nil)
	a.services.Navigator.Home()
	return a.services.Navigator.Status()
}

// ExportAll concatenates every recording and offers the result for saving.
func (a *App) ExportAll() (domain.ExportResult, error) {
	if err := a.requireReady(); err != nil {
		return domain.ExportResult{}, err
	}
	status := a.services.Navigator.Status()
	a.SessionStateChanged(status, domain.SessionReasonExportStarted)

	result, err := a.services.Exporter.Export(a.ctx)
	switch {
	case errors.Is(err, errDownloadCancelled):
		a.SessionStateChanged(status, domain.SessionReasonExportFailed)
		return domain.ExportResult{}, nil
	case errors.Is(err, usecase.ErrNoRecordings):
		a.SessionStateChanged(status, domain.SessionReasonNoRecordings)
		return domain.ExportResult{}, err
	case err != nil:
		a.SessionStateChanged(status, domain.SessionReasonExportFailed)
		return domain.ExportResult{}, err
	}
	a.SessionStateChanged(status, domain.SessionReasonExportCompleted)
	return result, nil
}

// SaveCurrent offers the current sentence's recording for saving.
func (a *App) SaveCurrent() (string, error) {
	if err := a.requireReady(); err != nil {
		return "", err
	}
	location, err := a.services.Exporter.SaveSegment(a.ctx, a.services.Navigator.Status().Index)
	if errors.Is(err, errDownloadCancelled) {
		return "", nil
	}
	return location, err
}

// PlayCurrent toggles playback of the current sentence's recording.
func (a *App) PlayCurrent() (playback.Status, error) {
	if err := a.requireReady(); err != nil {
		return playback.Status{}, err
	}
	if a.clip.Status().Playing {
		return a.clip.Toggle(a.ctx), nil
	}
	segment, ok := a.services.Store.Get(a.services.Navigator.Status().Index)
	if !ok {
		return playback.Status{}, usecase.ErrNoSegment
	}
	a.clip.SetSource([]domain.Segment{segment})
	return a.clip.Toggle(a.ctx), nil
}

// PlayAll toggles sequential playback on the review screen.
func (a *App) PlayAll() (playback.Status, error) {
	if err := a.requireReady(); err != nil {
		return playback.Status{}, err
	}
	return a.review.Toggle(a.ctx), nil
}

// GetStatus returns the current session status.
func (a *App) GetStatus() domain.Status {
	if a.services.Navigator == nil {
		if a.bootErr != nil {
			return domain.Status{State: domain.SessionStateError, Message: a.bootErr.Error()}
		}
		return domain.Status{State: domain.SessionStateIdle}
	}
	return a.services.Navigator.Status()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"audioInput":       a.cfg.Audio.InputDevice,
		"audioInputFormat": a.cfg.Audio.InputFormat,
		"sampleRate":       strconv.Itoa(a.cfg.Audio.SampleRate),
		"devicePolicy":     a.cfg.Session.DevicePolicy,
		"exportEngine":     a.cfg.Export.Engine,
		"setsDir":          a.cfg.Sets.Dir,
		"exportDir":        a.cfg.Export.Dir,
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.services.Navigator == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

func (a *App) navigate(step func(*usecase.Navigator) error) (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	navigator := a.services.Navigator
	if err := step(navigator); err != nil {
		return navigator.Status(), err
	}
	return navigator.Status(), nil
}

// SessionStateChanged emits session lifecycle updates to the frontend.
func (a *App) SessionStateChanged(status domain.Status, reason domain.SessionStateReason) {
	if a.ctx == nil {
		return
	}
	status.Message = sessionReasonMessage(reason)
	runtime.EventsEmit(a.ctx, eventSession, map[string]any{
		"status": status,
		"reason": string(reason),
	})
}

// CountdownTick emits the remaining countdown steps.
func (a *App) CountdownTick(remaining int) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventCountdown, map[string]int{"remaining": remaining})
}

// SegmentStored tells the UI a sentence now has a recording.
func (a *App) SegmentStored(index int, bytes int) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventSegment, map[string]int{"index": index, "bytes": bytes})
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func (a *App) playbackChanged(source string) func(playback.Status) {
	return func(status playback.Status) {
		if status.Error != "" {
			a.SessionError(domain.ErrorCodePlayback, status.Error)
		}
		if a.ctx == nil {
			return
		}
		runtime.EventsEmit(a.ctx, eventPlayback, map[string]any{
			"source": source,
			"status": status,
		})
	}
}

func sessionReasonMessage(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonSetSelected:
		return "Sentence set selected"
	case domain.SessionReasonMicReady:
		return "Microphone ready"
	case domain.SessionReasonMicUnavailable:
		return "Microphone unavailable"
	case domain.SessionReasonCountdownStarted:
		return "Get ready..."
	case domain.SessionReasonRecordingStarted:
		return "Recording"
	case domain.SessionReasonRecordingStopped:
		return "Recording saved"
	case domain.SessionReasonNavigated:
		return "Next sentence"
	case domain.SessionReasonSessionFinished:
		return "Recordings Complete!"
	case domain.SessionReasonNoRecordings:
		return "No Recordings Available"
	case domain.SessionReasonReturnedHome:
		return "Select a sentence set"
	case domain.SessionReasonExportStarted:
		return "Processing..."
	case domain.SessionReasonExportCompleted:
		return "Combined recording saved"
	case domain.SessionReasonExportFailed:
		return "Download failed"
	case domain.SessionReasonDeviceReacquired:
		return "Microphone reopened"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeDeviceDenied:
		return "Microphone access denied"
	case domain.ErrorCodeAudioStop:
		return "Audio stop issue"
	case domain.ErrorCodeAudioStream:
		return "Audio streaming issue"
	case domain.ErrorCodeExportInit:
		return "Could not load the audio joiner"
	case domain.ErrorCodeExportExec:
		return "Joining recordings failed"
	case domain.ErrorCodePlayback:
		return "Playback failed"
	case domain.ErrorCodeSentenceSet:
		return "Sentence set unavailable"
	case domain.ErrorCodeDownload:
		return "Saving the file failed"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}

// wailsSaveDialog asks the user where to save each artifact.
type wailsSaveDialog struct {
	app *App
}

func (d *wailsSaveDialog) Save(_ context.Context, artifact domain.Artifact) (string, error) {
	path, err := runtime.SaveFileDialog(d.app.ctx, runtime.SaveDialogOptions{
		DefaultDirectory: d.app.cfg.Export.Dir,
		DefaultFilename:  artifact.Name,
		Title:            "Save recording",
		Filters: []runtime.FileFilter{
			{DisplayName: "WAV audio (*.wav)", Pattern: "*.wav"},
		},
	})
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", errDownloadCancelled
	}
	if err := os.WriteFile(path, artifact.Data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
