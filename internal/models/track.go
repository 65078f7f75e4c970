package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Track represents the metadata exposed for a single playable audio file.
// Tracks are built once during catalog construction and never mutated.
type Track struct {
	Title           string `json:"title"`
	Artist          string `json:"artist"`
	Album           string `json:"album"`
	DurationSeconds int    `json:"duration_seconds"`
	Source          string `json:"source"`
	Filename        string `json:"filename"`
	FilesizeBytes   int64  `json:"filesize_bytes"`
}

// Duration returns the track duration formatted as mm:ss.
func (t Track) Duration() string {
	return FormatDuration(t.DurationSeconds)
}

// FormatDuration formats seconds as mm:ss. Minutes are not wrapped into hours.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// ParseDuration is the inverse of FormatDuration.
func ParseDuration(value string) (int, error) {
	minutes, secs, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok {
		return 0, fmt.Errorf("duration %q: missing separator", value)
	}

	m, err := strconv.Atoi(minutes)
	if err != nil || m < 0 {
		return 0, fmt.Errorf("duration %q: invalid minutes", value)
	}
	s, err := strconv.Atoi(secs)
	if err != nil || s < 0 || s > 59 || len(secs) != 2 {
		return 0, fmt.Errorf("duration %q: invalid seconds", value)
	}
	return m*60 + s, nil
}
