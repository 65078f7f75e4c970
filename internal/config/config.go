package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var allowedExtensions = []string{
	".mp3",
	".m4a",
	".aac",
	".wav",
}

// Formats that show up in music folders but are left out of the catalog.
var unsupportedExtensions = []string{
	".flac",
	".ogg",
	".wma",
}

const (
	defaultListenAddr    = "127.0.0.1:8090"
	defaultLogFile       = "home-jukebox.log"
	defaultTickMS        = 500
	defaultVolumeSteps   = 15
	defaultInitialVolume = 100
	defaultUnknownArtist = "Unknown Artist"
	defaultUnknownAlbum  = "Unknown Album"
)

// AllowedExtensions returns the list of audio file extensions admitted into the
// catalog (lowercase).
func AllowedExtensions() []string {
	result := make([]string, len(allowedExtensions))
	copy(result, allowedExtensions)
	return result
}

// UnsupportedExtensions returns extensions that are recognised as audio but
// skipped with a log line.
func UnsupportedExtensions() []string {
	result := make([]string, len(unsupportedExtensions))
	copy(result, unsupportedExtensions)
	return result
}

// ResolveMediaRoot returns the directory that should be scanned for music.
// The directory is created when it does not yet exist. A non-empty override
// (from a CLI flag) takes precedence over JUKEBOX_MEDIA_DIR.
func ResolveMediaRoot(override string) (string, error) {
	dir := strings.TrimSpace(override)
	if dir == "" {
		dir = strings.TrimSpace(os.Getenv("JUKEBOX_MEDIA_DIR"))
	}
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(cwd, "media")
	}

	abs, err := absPath(dir)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", err
	}

	return abs, nil
}

// ListenAddr returns the TCP address the control API should bind to.
func ListenAddr() string {
	addr := strings.TrimSpace(os.Getenv("JUKEBOX_LISTEN_ADDR"))
	if addr == "" {
		return defaultListenAddr
	}
	return addr
}

// ValidateListenAddr ensures the configured listen address is restricted to localhost.
func ValidateListenAddr(addr string) error {
	addr = strings.TrimSpace(strings.ToLower(addr))
	if strings.HasPrefix(addr, "127.0.0.1:") || strings.HasPrefix(addr, "localhost:") || strings.HasPrefix(addr, "[::1]:") {
		return nil
	}
	return errors.New("listen address must bind to localhost for security")
}

// ResolveTokenFile returns the absolute path to the control token file when configured.
// The file is created if it does not already exist. When no file is configured the
// second return value will be false.
func ResolveTokenFile() (string, bool, error) {
	path := strings.TrimSpace(os.Getenv("JUKEBOX_TOKEN_FILE"))
	if path == "" {
		return "", false, nil
	}

	abs, err := absPath(path)
	if err != nil {
		return "", false, err
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", false, err
	}

	if _, err := os.Stat(abs); err != nil {
		if os.IsNotExist(err) {
			file, err := os.OpenFile(abs, os.O_CREATE|os.O_RDWR, 0o600)
			if err != nil {
				return "", false, err
			}
			if err := file.Close(); err != nil {
				return "", false, err
			}
		} else {
			return "", false, err
		}
	}

	return abs, true, nil
}

// LogFile returns where the terminal UI writes its log output.
func LogFile() (string, error) {
	path := strings.TrimSpace(os.Getenv("JUKEBOX_LOG_FILE"))
	if path == "" {
		path = defaultLogFile
	}
	return absPath(path)
}

// PlayerSettings tunes the playback coordinator and the catalog builder.
type PlayerSettings struct {
	TickInterval  time.Duration
	VolumeSteps   int
	InitialVolume int
	UnknownArtist string
	UnknownAlbum  string
	Extensions    []string
}

type playerSettingsYAML struct {
	TickIntervalMS *int     `yaml:"tick_interval_ms"`
	VolumeSteps    *int     `yaml:"volume_steps"`
	InitialVolume  *int     `yaml:"initial_volume"`
	UnknownArtist  string   `yaml:"unknown_artist"`
	UnknownAlbum   string   `yaml:"unknown_album"`
	Extensions     []string `yaml:"extensions"`
}

// ResolvePlayerSettings returns the player settings after applying defaults,
// YAML configuration (when JUKEBOX_CONFIG is set), and environment variable
// overrides. Out-of-range values are rejected.
func ResolvePlayerSettings() (PlayerSettings, error) {
	settings := PlayerSettings{
		TickInterval:  defaultTickMS * time.Millisecond,
		VolumeSteps:   defaultVolumeSteps,
		InitialVolume: defaultInitialVolume,
		UnknownArtist: defaultUnknownArtist,
		UnknownAlbum:  defaultUnknownAlbum,
		Extensions:    AllowedExtensions(),
	}

	configPath := strings.TrimSpace(os.Getenv("JUKEBOX_CONFIG"))
	if configPath != "" {
		resolved, err := absPath(configPath)
		if err != nil {
			return PlayerSettings{}, err
		}
		data, err := os.ReadFile(resolved)
		if err != nil {
			return PlayerSettings{}, err
		}
		var file playerSettingsYAML
		if err := yaml.Unmarshal(data, &file); err != nil {
			return PlayerSettings{}, fmt.Errorf("parse %s: %w", resolved, err)
		}
		if file.TickIntervalMS != nil {
			settings.TickInterval = time.Duration(*file.TickIntervalMS) * time.Millisecond
		}
		if file.VolumeSteps != nil {
			settings.VolumeSteps = *file.VolumeSteps
		}
		if file.InitialVolume != nil {
			settings.InitialVolume = *file.InitialVolume
		}
		if value := strings.TrimSpace(file.UnknownArtist); value != "" {
			settings.UnknownArtist = value
		}
		if value := strings.TrimSpace(file.UnknownAlbum); value != "" {
			settings.UnknownAlbum = value
		}
		if len(file.Extensions) > 0 {
			settings.Extensions = normalizeExtensions(file.Extensions)
		}
	}

	if ms, ok, err := envInt("JUKEBOX_TICK_MS"); err != nil {
		return PlayerSettings{}, err
	} else if ok {
		settings.TickInterval = time.Duration(ms) * time.Millisecond
	}
	if steps, ok, err := envInt("JUKEBOX_VOLUME_STEPS"); err != nil {
		return PlayerSettings{}, err
	} else if ok {
		settings.VolumeSteps = steps
	}
	if volume, ok, err := envInt("JUKEBOX_INITIAL_VOLUME"); err != nil {
		return PlayerSettings{}, err
	} else if ok {
		settings.InitialVolume = volume
	}

	if settings.TickInterval <= 0 {
		return PlayerSettings{}, errors.New("tick interval must be positive")
	}
	if settings.VolumeSteps < 1 {
		return PlayerSettings{}, errors.New("volume steps must be at least 1")
	}
	if settings.InitialVolume < 0 || settings.InitialVolume > 100 {
		return PlayerSettings{}, errors.New("initial volume must be between 0 and 100")
	}

	return settings, nil
}

func envInt(key string) (int, bool, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return n, true, nil
}

func normalizeExtensions(exts []string) []string {
	result := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		result = append(result, ext)
	}
	return result
}

func absPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[1:])
		}
	}

	return filepath.Abs(path)
}
