// Package audio provides the decoding primitive used for playback and the
// lightweight duration probe used while building the catalog.
package audio

import (
	"errors"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupportedFormat is returned for containers no decoder handles.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	// ErrReleased is returned by operations on a released decoder.
	ErrReleased = errors.New("decoder released")
	// ErrNotPrepared is returned when a source has not been loaded yet.
	ErrNotPrepared = errors.New("decoder not prepared")
)

// Decoder is a single-use handle on one playable source. It must be released
// exactly once; loading another source requires a fresh Decoder.
type Decoder interface {
	// Prepare opens and prepares source synchronously. Playback stays paused
	// until Start is called.
	Prepare(source string) error
	Start()
	Pause()
	// SeekTo moves the playback position; ms is clamped to [0, Duration()].
	SeekTo(ms int) error
	// Position and Duration are reported in milliseconds.
	Position() int
	Duration() int
	// SetVolume applies a gain in percent (0 mutes, 100 is unity).
	SetVolume(percent int)
	// OnCompletion registers fn to be called once when the source ends
	// naturally. It is not called after Release.
	OnCompletion(fn func())
	Release() error
}

// Factory constructs a fresh Decoder.
type Factory func() Decoder

func extension(path string) string {
	return strings.ToLower(filepath.Ext(path))
}
