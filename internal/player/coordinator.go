package player

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"home-jukebox/internal/audio"
	"home-jukebox/internal/library"
	"home-jukebox/internal/models"
)

var (
	// ErrEmptyCatalog is returned by transport operations on an empty catalog.
	ErrEmptyCatalog = errors.New("catalog is empty")
	// ErrIndexOutOfRange is returned by PlayTrackAt for an invalid index.
	ErrIndexOutOfRange = errors.New("track index out of range")
	// ErrUnplayableCatalog is returned when every track failed to load.
	ErrUnplayableCatalog = errors.New("no track in the catalog could be loaded")
	// ErrNoTrackLoaded is returned by SeekTo before anything was loaded.
	ErrNoTrackLoaded = errors.New("no track loaded")
	// ErrClosed is returned by operations on a closed coordinator.
	ErrClosed = errors.New("coordinator closed")
)

const (
	defaultTickInterval = 500 * time.Millisecond
	defaultVolumeSteps  = 15
)

// State is the playback state of a session.
type State int

const (
	Idle State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "idle"
	}
}

// MarshalText renders the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Options tunes a Coordinator. Zero values select the defaults.
type Options struct {
	TickInterval time.Duration
	// VolumeSteps is the number of discrete volume levels above mute.
	VolumeSteps int
	// InitialVolume is a percentage in [0, 100]. Nil means 100.
	InitialVolume *int
	Scheduler     Scheduler
	Logger        *log.Logger
}

// Snapshot is a point-in-time copy of the session.
type Snapshot struct {
	SessionID     string       `json:"session_id"`
	Index         int          `json:"index"`
	State         State        `json:"state"`
	PositionMs    int          `json:"position_ms"`
	DurationMs    int          `json:"duration_ms"`
	VolumePercent int          `json:"volume_percent"`
	Track         models.Track `json:"track"`
	TrackCount    int          `json:"track_count"`
}

// Coordinator owns the playback session: the current index, the playback
// state and the decoder. All session state is confined to a single loop
// goroutine; public methods hand work to it and wait for the result.
type Coordinator struct {
	catalog      *library.Catalog
	newDecoder   audio.Factory
	scheduler    Scheduler
	tickInterval time.Duration
	volumeSteps  int
	logger       *log.Logger
	sessionID    string

	ops       chan func()
	done      chan struct{}
	loopDone  chan struct{}
	closeOnce sync.Once
	closeErr  error

	// Owned by the loop goroutine.
	index         int
	state         State
	decoder       audio.Decoder
	volumePercent int
	listener      Listener
	listenerGen   uint64
	tick          Timer
	tickGen       uint64
	closed        bool
}

// NewCoordinator creates a Coordinator over catalog and starts its loop.
// Decoders are obtained from factory, a fresh one per track load.
func NewCoordinator(catalog *library.Catalog, factory audio.Factory, opts Options) *Coordinator {
	if catalog == nil {
		catalog = library.NewCatalog(nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	scheduler := opts.Scheduler
	if scheduler == nil {
		scheduler = systemScheduler{}
	}
	tick := opts.TickInterval
	if tick <= 0 {
		tick = defaultTickInterval
	}
	steps := opts.VolumeSteps
	if steps <= 0 {
		steps = defaultVolumeSteps
	}
	volume := 100
	if opts.InitialVolume != nil {
		volume = clampPercent(*opts.InitialVolume)
	}

	c := &Coordinator{
		catalog:       catalog,
		newDecoder:    factory,
		scheduler:     scheduler,
		tickInterval:  tick,
		volumeSteps:   steps,
		logger:        logger,
		sessionID:     newSessionID(),
		ops:           make(chan func()),
		done:          make(chan struct{}),
		loopDone:      make(chan struct{}),
		state:         Idle,
		volumePercent: volume,
	}

	go c.run()

	logger.Printf("session %s started with %d tracks", c.sessionID, catalog.Len())
	return c
}

// SessionID identifies this playback session.
func (c *Coordinator) SessionID() string {
	return c.sessionID
}

// Catalog returns the catalog the coordinator plays from.
func (c *Coordinator) Catalog() *library.Catalog {
	return c.catalog
}

// SetListener replaces the registered listener. Nil clears it.
func (c *Coordinator) SetListener(l Listener) {
	_ = c.do(func() error {
		c.listener = l
		c.listenerGen++
		return nil
	})
}

// Subscribe registers l and returns a function that unregisters it, unless
// another listener has replaced it in the meantime.
func (c *Coordinator) Subscribe(l Listener) (cancel func()) {
	var gen uint64
	_ = c.do(func() error {
		c.listener = l
		c.listenerGen++
		gen = c.listenerGen
		return nil
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			_ = c.do(func() error {
				if c.listenerGen == gen {
					c.listener = nil
					c.listenerGen++
				}
				return nil
			})
		})
	}
}

// Play toggles playback: it pauses while playing, resumes a paused track with
// a position, and otherwise loads and starts the current track.
func (c *Coordinator) Play() error {
	return c.do(func() error {
		if c.catalog.Len() == 0 {
			return ErrEmptyCatalog
		}
		if c.state == Playing {
			c.pause()
			return nil
		}
		if c.decoder != nil && c.decoder.Position() > 0 {
			c.resume()
			return nil
		}
		return c.load(c.index)
	})
}

// Pause suspends playback. It is a no-op unless playing.
func (c *Coordinator) Pause() error {
	return c.do(func() error {
		c.pause()
		return nil
	})
}

// Next advances to the following track, wrapping at the end of the catalog.
func (c *Coordinator) Next() error {
	return c.do(func() error {
		return c.step(1)
	})
}

// Prev moves to the preceding track, wrapping at the start of the catalog.
func (c *Coordinator) Prev() error {
	return c.do(func() error {
		return c.step(-1)
	})
}

// PlayTrackAt loads and starts the track at index. Selecting the track that is
// already loaded does nothing.
func (c *Coordinator) PlayTrackAt(index int) error {
	return c.do(func() error {
		n := c.catalog.Len()
		if n == 0 {
			return ErrEmptyCatalog
		}
		if index < 0 || index >= n {
			return ErrIndexOutOfRange
		}
		if index == c.index && c.decoder != nil {
			return nil
		}
		return c.load(index)
	})
}

// SeekTo moves the playback position of the loaded track. The target is
// clamped to the track bounds. No event is emitted; the next progress tick
// reports the new position.
func (c *Coordinator) SeekTo(positionMs int) error {
	return c.do(func() error {
		if c.decoder == nil {
			return ErrNoTrackLoaded
		}
		if positionMs < 0 {
			positionMs = 0
		}
		if duration := c.decoder.Duration(); positionMs > duration {
			positionMs = duration
		}
		return c.decoder.SeekTo(positionMs)
	})
}

// VolumeUp raises the volume by one step and returns the new percentage.
func (c *Coordinator) VolumeUp() (int, error) {
	return c.stepVolume(1)
}

// VolumeDown lowers the volume by one step and returns the new percentage.
func (c *Coordinator) VolumeDown() (int, error) {
	return c.stepVolume(-1)
}

// SetVolume sets the volume percentage, clamped to [0, 100].
func (c *Coordinator) SetVolume(percent int) (int, error) {
	var result int
	err := c.do(func() error {
		c.applyVolume(clampPercent(percent))
		result = c.volumePercent
		return nil
	})
	return result, err
}

// Snapshot returns a copy of the session state.
func (c *Coordinator) Snapshot() (Snapshot, error) {
	var snap Snapshot
	err := c.do(func() error {
		snap = Snapshot{
			SessionID:     c.sessionID,
			Index:         c.index,
			State:         c.state,
			VolumePercent: c.volumePercent,
			TrackCount:    c.catalog.Len(),
		}
		snap.Track, _ = c.catalog.At(c.index)
		if c.decoder != nil {
			snap.PositionMs = c.decoder.Position()
			snap.DurationMs = c.decoder.Duration()
		}
		return nil
	})
	return snap, err
}

// Close stops the progress tick, releases the decoder and stops the loop.
// It is safe to call more than once.
func (c *Coordinator) Close() error {
	c.closeOnce.Do(func() {
		err := c.do(func() error {
			c.cancelTick()
			err := c.releaseDecoder()
			c.state = Idle
			c.listener = nil
			c.closed = true
			return err
		})
		if errors.Is(err, ErrClosed) {
			err = nil
		}
		c.closeErr = err

		close(c.done)
		<-c.loopDone
		c.logger.Printf("session %s closed", c.sessionID)
	})
	return c.closeErr
}

func (c *Coordinator) run() {
	defer close(c.loopDone)

	for {
		select {
		case op := <-c.ops:
			op()
		case <-c.done:
			return
		}
	}
}

// do runs fn on the loop goroutine and waits for it.
func (c *Coordinator) do(fn func() error) error {
	result := make(chan error, 1)
	op := func() {
		if c.closed {
			result <- ErrClosed
			return
		}
		result <- fn()
	}

	select {
	case c.ops <- op:
	case <-c.done:
		return ErrClosed
	}
	return <-result
}

// post queues fn on the loop goroutine without waiting for it to run.
func (c *Coordinator) post(fn func()) {
	op := func() {
		if !c.closed {
			fn()
		}
	}

	select {
	case c.ops <- op:
	case <-c.done:
	}
}

func (c *Coordinator) step(delta int) error {
	n := c.catalog.Len()
	if n == 0 {
		return ErrEmptyCatalog
	}
	return c.load(((c.index+delta)%n + n) % n)
}

func (c *Coordinator) pause() {
	if c.state != Playing {
		return
	}
	c.cancelTick()
	if c.decoder != nil {
		c.decoder.Pause()
	}
	c.state = Paused
	c.emitStateChanged(false)
}

func (c *Coordinator) resume() {
	c.decoder.Start()
	c.state = Playing
	c.scheduleTick()
	c.emitStateChanged(true)
}

// load releases the current decoder and starts the track at index. A track
// that fails to load is skipped; after one attempt per track the session is
// left idle and ErrUnplayableCatalog is returned.
func (c *Coordinator) load(index int) error {
	c.cancelTick()
	n := c.catalog.Len()

	for attempt := 0; attempt < n; attempt++ {
		i := (index + attempt) % n
		track, _ := c.catalog.At(i)

		if err := c.releaseDecoder(); err != nil {
			c.logger.Printf("session %s: release decoder: %v", c.sessionID, err)
		}

		decoder := c.newDecoder()
		if err := decoder.Prepare(track.Source); err != nil {
			c.logger.Printf("session %s: cannot load %s, skipping: %v", c.sessionID, track.Filename, err)
			_ = decoder.Release()
			continue
		}

		decoder.SetVolume(c.volumePercent)
		decoder.OnCompletion(func() {
			c.post(func() { c.handleCompletion(decoder) })
		})

		c.decoder = decoder
		c.index = i
		decoder.Start()
		c.state = Playing
		c.scheduleTick()

		c.logger.Printf("session %s: playing %d/%d %s", c.sessionID, i+1, n, track.Filename)
		c.emitStateChanged(true)
		c.emitSongChanged(i)
		return nil
	}

	c.index = index
	c.state = Idle
	c.logger.Printf("session %s: all %d tracks failed to load", c.sessionID, n)
	c.emitStateChanged(false)
	return ErrUnplayableCatalog
}

func (c *Coordinator) handleCompletion(decoder audio.Decoder) {
	if decoder != c.decoder || c.state != Playing {
		return
	}
	if err := c.step(1); err != nil {
		c.logger.Printf("session %s: advance after completion: %v", c.sessionID, err)
	}
}

func (c *Coordinator) releaseDecoder() error {
	if c.decoder == nil {
		return nil
	}
	err := c.decoder.Release()
	c.decoder = nil
	if errors.Is(err, audio.ErrReleased) {
		return nil
	}
	return err
}

// scheduleTick arms the progress timer under a fresh generation.
func (c *Coordinator) scheduleTick() {
	c.cancelTick()
	c.armTick(c.tickGen)
}

func (c *Coordinator) armTick(gen uint64) {
	c.tick = c.scheduler.AfterFunc(c.tickInterval, func() {
		c.post(func() { c.onTick(gen) })
	})
}

// cancelTick stops any pending tick. Ticks already queued are discarded by
// the generation check in onTick.
func (c *Coordinator) cancelTick() {
	if c.tick != nil {
		c.tick.Stop()
		c.tick = nil
	}
	c.tickGen++
}

func (c *Coordinator) onTick(gen uint64) {
	if gen != c.tickGen || c.state != Playing || c.decoder == nil {
		return
	}
	c.emitProgress(c.decoder.Position(), c.decoder.Duration())
	c.armTick(gen)
}

func (c *Coordinator) stepVolume(delta int) (int, error) {
	var result int
	err := c.do(func() error {
		level := (c.volumePercent*c.volumeSteps + 50) / 100
		level += delta
		if level < 0 {
			level = 0
		}
		if level > c.volumeSteps {
			level = c.volumeSteps
		}
		c.applyVolume(level * 100 / c.volumeSteps)
		result = c.volumePercent
		return nil
	})
	return result, err
}

func (c *Coordinator) applyVolume(percent int) {
	c.volumePercent = percent
	if c.decoder != nil {
		c.decoder.SetVolume(percent)
	}
}

func (c *Coordinator) emitProgress(positionMs, durationMs int) {
	if c.listener != nil {
		c.listener.OnProgress(positionMs, durationMs)
	}
}

func (c *Coordinator) emitStateChanged(playing bool) {
	if c.listener != nil {
		c.listener.OnStateChanged(playing)
	}
}

func (c *Coordinator) emitSongChanged(index int) {
	if c.listener != nil {
		c.listener.OnSongChanged(index)
	}
}

func clampPercent(percent int) int {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}

func newSessionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
