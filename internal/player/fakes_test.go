package player

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"home-jukebox/internal/audio"
	"home-jukebox/internal/library"
	"home-jukebox/internal/models"
)

type fakeDecoder struct {
	mu       sync.Mutex
	source   string
	failing  map[string]bool
	playing  bool
	position int
	duration int
	volume   int
	onDone   func()
	releases int
}

func (d *fakeDecoder) Prepare(source string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.source = source
	if d.failing[source] {
		return errors.New("corrupt source")
	}
	return nil
}

func (d *fakeDecoder) Start() {
	d.mu.Lock()
	d.playing = true
	d.mu.Unlock()
}

func (d *fakeDecoder) Pause() {
	d.mu.Lock()
	d.playing = false
	d.mu.Unlock()
}

func (d *fakeDecoder) SeekTo(ms int) error {
	d.mu.Lock()
	d.position = ms
	d.mu.Unlock()
	return nil
}

func (d *fakeDecoder) Position() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.position
}

func (d *fakeDecoder) Duration() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.duration
}

func (d *fakeDecoder) SetVolume(percent int) {
	d.mu.Lock()
	d.volume = percent
	d.mu.Unlock()
}

func (d *fakeDecoder) OnCompletion(fn func()) {
	d.mu.Lock()
	d.onDone = fn
	d.mu.Unlock()
}

func (d *fakeDecoder) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.releases++
	if d.releases > 1 {
		return audio.ErrReleased
	}
	d.onDone = nil
	return nil
}

func (d *fakeDecoder) setPosition(ms int) {
	d.mu.Lock()
	d.position = ms
	d.mu.Unlock()
}

// finish simulates the end of the stream.
func (d *fakeDecoder) finish() {
	d.mu.Lock()
	fn := d.onDone
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (d *fakeDecoder) snapshot() (playing bool, volume, releases int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.playing, d.volume, d.releases
}

type fakeFactory struct {
	mu       sync.Mutex
	failing  map[string]bool
	duration int
	created  []*fakeDecoder
}

func (f *fakeFactory) factory() audio.Factory {
	return func() audio.Decoder {
		f.mu.Lock()
		defer f.mu.Unlock()
		d := &fakeDecoder{duration: f.duration, failing: f.failing}
		f.created = append(f.created, d)
		return d
	}
}

func (f *fakeFactory) decoders() []*fakeDecoder {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*fakeDecoder, len(f.created))
	copy(out, f.created)
	return out
}

func (f *fakeFactory) last() *fakeDecoder {
	decoders := f.decoders()
	if len(decoders) == 0 {
		return nil
	}
	return decoders[len(decoders)-1]
}

type fakeTimer struct {
	mu      sync.Mutex
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

type fakeScheduler struct {
	mu      sync.Mutex
	pending []*fakeTimer
	delays  []time.Duration
}

func (s *fakeScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{fn: fn}
	s.pending = append(s.pending, t)
	s.delays = append(s.delays, d)
	return t
}

// fire runs every pending timer that has not been stopped and returns how
// many ran.
func (s *fakeScheduler) fire() int {
	return s.run(false)
}

// fireStale also runs timers that were stopped, as a timer that raced its
// Stop call would.
func (s *fakeScheduler) fireStale() int {
	return s.run(true)
}

func (s *fakeScheduler) run(includeStopped bool) int {
	s.mu.Lock()
	timers := s.pending
	s.pending = nil
	s.mu.Unlock()

	ran := 0
	for _, t := range timers {
		t.mu.Lock()
		runnable := !t.fired && (includeStopped || !t.stopped)
		if runnable {
			t.fired = true
		}
		t.mu.Unlock()
		if runnable {
			t.fn()
			ran++
		}
	}
	return ran
}

func (s *fakeScheduler) active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, t := range s.pending {
		t.mu.Lock()
		if !t.stopped && !t.fired {
			count++
		}
		t.mu.Unlock()
	}
	return count
}

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) OnProgress(positionMs, durationMs int) {
	r.add(fmt.Sprintf("progress:%d/%d", positionMs, durationMs))
}

func (r *recorder) OnStateChanged(playing bool) {
	r.add(fmt.Sprintf("state:%t", playing))
}

func (r *recorder) OnSongChanged(index int) {
	r.add(fmt.Sprintf("song:%d", index))
}

func (r *recorder) add(event string) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func (r *recorder) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}

type harness struct {
	c         *Coordinator
	factory   *fakeFactory
	scheduler *fakeScheduler
	events    *recorder
}

func trackCatalog(n int) *library.Catalog {
	tracks := make([]models.Track, n)
	for i := range tracks {
		tracks[i] = models.Track{
			Title:    fmt.Sprintf("Track %d", i),
			Source:   fmt.Sprintf("/media/track-%d.mp3", i),
			Filename: fmt.Sprintf("track-%d.mp3", i),
		}
	}
	return library.NewCatalog(tracks)
}

func newHarness(t *testing.T, n int, failing ...int) *harness {
	t.Helper()

	factory := &fakeFactory{failing: map[string]bool{}, duration: 5000}
	for _, i := range failing {
		factory.failing[fmt.Sprintf("/media/track-%d.mp3", i)] = true
	}
	scheduler := &fakeScheduler{}
	c := NewCoordinator(trackCatalog(n), factory.factory(), Options{
		Scheduler: scheduler,
		Logger:    log.New(io.Discard, "", 0),
	})
	t.Cleanup(func() { _ = c.Close() })

	events := &recorder{}
	c.SetListener(events)
	return &harness{c: c, factory: factory, scheduler: scheduler, events: events}
}

func (h *harness) snapshot(t *testing.T) Snapshot {
	t.Helper()
	snap, err := h.c.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	return snap
}

func expectEvents(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
}
