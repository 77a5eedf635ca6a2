package bootstrap

import (
	"go.uber.org/zap"

	"sentrec/internal/artifact"
	"sentrec/internal/audio"
	"sentrec/internal/clock"
	"sentrec/internal/config"
	"sentrec/internal/logging"
	"sentrec/internal/playback"
	"sentrec/internal/ports"
	"sentrec/internal/sentences"
	"sentrec/internal/store"
	"sentrec/internal/usecase"
)

// Options adjusts the runtime graph for the calling shell.
type Options struct {
	// Console tees logs to stderr in addition to the log file.
	Console bool
	// Artifacts overrides the download directory sink.
	Artifacts ports.ArtifactSink
}

// Services is the assembled runtime graph.
type Services struct {
	Navigator *usecase.Navigator
	Exporter  *usecase.Exporter
	Sets      *sentences.Provider
	Store     *store.RecordingStore
	Player    ports.Player
	Config    config.Config
	Logger    *zap.Logger
}

// Build wires all backend dependencies for the current runtime.
func Build(eventSink ports.EventSink, opts Options) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	logger, err := logging.New(logging.Options{
		File:    cfg.Log.File,
		Level:   cfg.Log.Level,
		Console: opts.Console,
	})
	if err != nil {
		return Services{}, err
	}

	sets, err := sentences.LoadDir(cfg.Sets.Dir, logger)
	if err != nil {
		_ = logger.Sync()
		return Services{}, err
	}

	artifacts := opts.Artifacts
	if artifacts == nil {
		artifacts = artifact.NewDirSink(cfg.Export.Dir)
	}

	recordings := store.NewRecordingStore()

	navigator := usecase.NewNavigator(
		audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand),
		recordings,
		eventSink,
		clock.System{},
		logger,
		usecase.Config{
			Audio: ports.AudioConfig{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    cfg.Audio.Channels,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
			},
			ChunkSize:         cfg.Session.ChunkSize,
			CountdownSteps:    cfg.Session.CountdownSteps,
			CountdownInterval: cfg.Session.CountdownInterval,
			AutoStartDelay:    cfg.Session.AutoStartDelay,
			DevicePolicy:      ports.DevicePolicy(cfg.Session.DevicePolicy),
		},
	)

	exporter := usecase.NewExporter(NewConcatEngine(cfg.Export), recordings, artifacts, eventSink, logger)

	logger.Info("services built",
		zap.String("export_engine", cfg.Export.Engine),
		zap.String("device_policy", cfg.Session.DevicePolicy),
		zap.Int("sentence_sets", len(sets.Names())),
	)

	return Services{
		Navigator: navigator,
		Exporter:  exporter,
		Sets:      sets,
		Store:     recordings,
		Player:    playback.NewFFPlayPlayer(cfg.Playback.Command),
		Config:    cfg,
		Logger:    logger,
	}, nil
}

// NewConcatEngine picks the export engine named in cfg.
func NewConcatEngine(cfg config.ExportConfig) ports.ConcatEngine {
	if cfg.Engine == "wav" {
		return audio.NewWAVConcat()
	}
	return audio.NewFFMPEGConcat(cfg.Command)
}

// Close releases the session and the export workspace.
func (s Services) Close() {
	if s.Navigator != nil {
		s.Navigator.Close()
	}
	if s.Exporter != nil {
		if err := s.Exporter.Close(); err != nil && s.Logger != nil {
			s.Logger.Warn("export workspace cleanup failed", zap.Error(err))
		}
	}
	if s.Logger != nil {
		_ = s.Logger.Sync()
	}
}
