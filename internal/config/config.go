package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config stores runtime configuration for the recorder.
type Config struct {
	Audio    AudioConfig
	Session  SessionConfig
	Sets     SetsConfig
	Export   ExportConfig
	Playback PlaybackConfig
	Log      LogConfig
}

type AudioConfig struct {
	RecorderCommand string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
}

type SessionConfig struct {
	ChunkSize         int
	CountdownSteps    int
	CountdownInterval time.Duration
	AutoStartDelay    time.Duration
	DevicePolicy      string
}

type SetsConfig struct {
	Dir string
}

type ExportConfig struct {
	Dir     string
	Engine  string
	Command string
}

type PlaybackConfig struct {
	Command string
}

type LogConfig struct {
	File  string
	Level string
}

// Load resolves configuration from environment variables and sensible defaults.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}

	ffmpeg := envOrDefault("SENTREC_FFMPEG_COMMAND", "ffmpeg")

	cfg := Config{
		Audio: AudioConfig{
			RecorderCommand: ffmpeg,
			InputFormat:     envOrDefault("SENTREC_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice: firstNonEmpty(
				os.Getenv("SENTREC_AUDIO_INPUT_DEVICE"),
				os.Getenv("PULSE_SOURCE"),
				"default",
			),
			SampleRate: envOrDefaultInt("SENTREC_SAMPLE_RATE", 16000),
			Channels:   envOrDefaultInt("SENTREC_CHANNELS", 1),
		},
		Session: SessionConfig{
			ChunkSize:         envOrDefaultInt("SENTREC_AUDIO_CHUNK_SIZE", 4096),
			CountdownSteps:    envOrDefaultInt("SENTREC_COUNTDOWN_STEPS", 3),
			CountdownInterval: time.Duration(nonNegativeInt("SENTREC_COUNTDOWN_INTERVAL_MS", 1000)) * time.Millisecond,
			AutoStartDelay:    time.Duration(nonNegativeInt("SENTREC_AUTOSTART_DELAY_MS", 500)) * time.Millisecond,
			DevicePolicy:      strings.ToLower(envOrDefault("SENTREC_DEVICE_POLICY", "persistent")),
		},
		Sets: SetsConfig{
			Dir: envOrDefault("SENTREC_SETS_DIR", filepath.Join(home, ".config", "sentrec", "sets")),
		},
		Export: ExportConfig{
			Dir:     envOrDefault("SENTREC_EXPORT_DIR", filepath.Join(home, "Music", "sentrec")),
			Engine:  strings.ToLower(envOrDefault("SENTREC_EXPORT_ENGINE", "ffmpeg")),
			Command: ffmpeg,
		},
		Playback: PlaybackConfig{
			Command: envOrDefault("SENTREC_FFPLAY_COMMAND", "ffplay"),
		},
		Log: LogConfig{
			File:  envOrDefault("SENTREC_LOG_FILE", filepath.Join(home, ".local", "state", "sentrec", "sentrec.log")),
			Level: strings.ToLower(envOrDefault("SENTREC_LOG_LEVEL", "info")),
		},
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Session.ChunkSize < 256 {
		cfg.Session.ChunkSize = 4096
	}
	if cfg.Session.CountdownSteps < 0 {
		cfg.Session.CountdownSteps = 3
	}
	switch cfg.Session.DevicePolicy {
	case "persistent", "rebuild":
	default:
		cfg.Session.DevicePolicy = "persistent"
	}
	switch cfg.Export.Engine {
	case "ffmpeg", "wav":
	default:
		cfg.Export.Engine = "ffmpeg"
	}

	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func nonNegativeInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}
