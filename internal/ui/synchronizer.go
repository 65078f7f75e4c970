// Package ui turns coordinator events into display state. It never writes
// session state directly; seeks go back through the transport.
package ui

import (
	"fmt"
	"log"
	"sync"
	"time"

	"home-jukebox/internal/library"
	"home-jukebox/internal/models"
)

const defaultVolumeMessageTTL = 2 * time.Second

// Transport is the subset of coordinator operations the synchronizer issues.
type Transport interface {
	SeekTo(positionMs int) error
}

// View is a rendered copy of the display state.
type View struct {
	// Index is the highlighted catalog entry, -1 before the first song change.
	Index        int
	ScrollTarget int
	Track        models.Track
	HasTrack     bool

	Playing bool

	PositionMs int
	DurationMs int
	Elapsed    string
	Remaining  string
	Total      string
	// Progress is the seek indicator position in [0, 1].
	Progress float64

	Dragging      bool
	VolumeMessage string
}

// Options tunes a Synchronizer.
type Options struct {
	VolumeMessageTTL time.Duration
	Now              func() time.Time
	Logger           *log.Logger
}

// Synchronizer implements the coordinator's Listener contract. Callbacks only
// take a short lock and raise a coalescing change signal, so they never block
// the coordinator loop.
type Synchronizer struct {
	catalog   *library.Catalog
	transport Transport
	ttl       time.Duration
	now       func() time.Time
	logger    *log.Logger
	changes   chan struct{}

	mu           sync.Mutex
	index        int
	playing      bool
	positionMs   int
	durationMs   int
	dragging     bool
	dragMs       int
	volumeText   string
	volumeExpiry time.Time
}

// NewSynchronizer creates a Synchronizer rendering tracks from catalog and
// sending seeks to transport.
func NewSynchronizer(catalog *library.Catalog, transport Transport, opts Options) *Synchronizer {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	ttl := opts.VolumeMessageTTL
	if ttl <= 0 {
		ttl = defaultVolumeMessageTTL
	}

	return &Synchronizer{
		catalog:   catalog,
		transport: transport,
		ttl:       ttl,
		now:       now,
		logger:    logger,
		changes:   make(chan struct{}, 1),
		index:     -1,
	}
}

// Changes delivers a signal after the display state changed. Signals
// coalesce: a reader sees at least one signal after any burst of changes.
func (s *Synchronizer) Changes() <-chan struct{} {
	return s.changes
}

// OnSongChanged moves the highlight and now-playing panel to index.
func (s *Synchronizer) OnSongChanged(index int) {
	s.mu.Lock()
	s.index = index
	s.positionMs = 0
	s.durationMs = 0
	if track, ok := s.catalog.At(index); ok {
		s.durationMs = track.DurationSeconds * 1000
	}
	s.mu.Unlock()
	s.notify()
}

// OnStateChanged swaps the play/pause affordance.
func (s *Synchronizer) OnStateChanged(playing bool) {
	s.mu.Lock()
	s.playing = playing
	s.mu.Unlock()
	s.notify()
}

// OnProgress updates the elapsed text and seek indicator unless the user is
// dragging it.
func (s *Synchronizer) OnProgress(positionMs, durationMs int) {
	s.mu.Lock()
	if s.dragging {
		s.mu.Unlock()
		return
	}
	s.positionMs = positionMs
	s.durationMs = durationMs
	s.mu.Unlock()
	s.notify()
}

// BeginDrag suspends progress updates and starts a manual seek at the
// current position.
func (s *Synchronizer) BeginDrag() {
	s.mu.Lock()
	if s.dragging {
		s.mu.Unlock()
		return
	}
	s.dragging = true
	s.dragMs = s.positionMs
	s.mu.Unlock()
	s.notify()
}

// DragTo moves the drag preview to positionMs, clamped to the track length.
// It is ignored when no drag is active.
func (s *Synchronizer) DragTo(positionMs int) {
	s.mu.Lock()
	if !s.dragging {
		s.mu.Unlock()
		return
	}
	s.dragMs = clamp(positionMs, 0, s.durationMs)
	s.mu.Unlock()
	s.notify()
}

// DragBy moves the drag preview by deltaMs, starting a drag if none is
// active.
func (s *Synchronizer) DragBy(deltaMs int) {
	s.mu.Lock()
	if !s.dragging {
		s.dragging = true
		s.dragMs = s.positionMs
	}
	s.dragMs = clamp(s.dragMs+deltaMs, 0, s.durationMs)
	s.mu.Unlock()
	s.notify()
}

// EndDrag resumes progress updates and issues exactly one seek to the drag
// position.
func (s *Synchronizer) EndDrag() error {
	s.mu.Lock()
	if !s.dragging {
		s.mu.Unlock()
		return nil
	}
	target := s.dragMs
	s.dragging = false
	s.positionMs = target
	s.mu.Unlock()
	s.notify()

	if s.transport == nil {
		return nil
	}
	if err := s.transport.SeekTo(target); err != nil {
		s.logger.Printf("seek to %dms failed: %v", target, err)
		return err
	}
	return nil
}

// CancelDrag abandons a drag without seeking.
func (s *Synchronizer) CancelDrag() {
	s.mu.Lock()
	if !s.dragging {
		s.mu.Unlock()
		return
	}
	s.dragging = false
	s.mu.Unlock()
	s.notify()
}

// ShowVolume displays "Volume: NN%" until the message expires.
func (s *Synchronizer) ShowVolume(percent int) {
	s.mu.Lock()
	s.volumeText = fmt.Sprintf("Volume: %d%%", percent)
	s.volumeExpiry = s.now().Add(s.ttl)
	s.mu.Unlock()
	s.notify()
}

// View renders the current display state.
func (s *Synchronizer) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		Index:        s.index,
		ScrollTarget: s.index,
		Playing:      s.playing,
		PositionMs:   s.positionMs,
		DurationMs:   s.durationMs,
		Dragging:     s.dragging,
	}
	if s.dragging {
		v.PositionMs = s.dragMs
	}
	if s.index >= 0 {
		v.Track, v.HasTrack = s.catalog.At(s.index)
	}

	v.Elapsed = models.FormatDuration(v.PositionMs / 1000)
	v.Total = models.FormatDuration(v.DurationMs / 1000)
	v.Remaining = "-" + models.FormatDuration((v.DurationMs-v.PositionMs)/1000)
	if v.DurationMs > 0 {
		v.Progress = float64(clamp(v.PositionMs, 0, v.DurationMs)) / float64(v.DurationMs)
	}

	if s.volumeText != "" && s.now().Before(s.volumeExpiry) {
		v.VolumeMessage = s.volumeText
	}
	return v
}

func (s *Synchronizer) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

func clamp(value, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
