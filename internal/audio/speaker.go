package audio

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/speaker"
)

const resampleQuality = 4

// Output is the process-wide speaker. It is initialised lazily on the first
// Prepare so that catalog-only commands never open an audio device.
type Output struct {
	rate   beep.SampleRate
	buffer time.Duration

	once sync.Once
	err  error
	live atomic.Bool
}

// NewOutput describes a speaker running at sampleRate with the given buffer
// length.
func NewOutput(sampleRate int, buffer time.Duration) *Output {
	return &Output{rate: beep.SampleRate(sampleRate), buffer: buffer}
}

// Factory returns a Factory producing decoders that play through o.
func (o *Output) Factory() Factory {
	return func() Decoder {
		return &speakerDecoder{out: o, volumePercent: 100}
	}
}

// Close stops all playback on the speaker.
func (o *Output) Close() {
	if o.live.Load() {
		speaker.Clear()
	}
}

func (o *Output) init() error {
	o.once.Do(func() {
		o.err = speaker.Init(o.rate, o.rate.N(o.buffer))
		o.live.Store(o.err == nil)
	})
	return o.err
}

var errAlreadyPrepared = errors.New("decoder already prepared")

// speakerDecoder plays one source through the shared speaker. Fields touched
// by the audio goroutine are guarded by the speaker lock; the completion
// callback is guarded by mu.
type speakerDecoder struct {
	out *Output

	stream beep.StreamSeekCloser
	format beep.Format
	ctrl   *beep.Ctrl
	volume *effects.Volume

	volumePercent int
	started       bool

	mu       sync.Mutex
	onDone   func()
	released bool
}

func (d *speakerDecoder) Prepare(source string) error {
	d.mu.Lock()
	released := d.released
	d.mu.Unlock()
	if released {
		return ErrReleased
	}
	if d.stream != nil {
		return errAlreadyPrepared
	}

	if err := d.out.init(); err != nil {
		return err
	}

	stream, format, err := openStream(source)
	if err != nil {
		return err
	}

	var s beep.Streamer = stream
	if format.SampleRate != d.out.rate {
		s = beep.Resample(resampleQuality, format.SampleRate, d.out.rate, stream)
	}

	d.stream = stream
	d.format = format
	d.volume = &effects.Volume{Streamer: s, Base: 2}
	applyVolume(d.volume, d.volumePercent)
	d.ctrl = &beep.Ctrl{Streamer: d.volume, Paused: true}
	return nil
}

func (d *speakerDecoder) Start() {
	if !d.ready() {
		return
	}
	if !d.started {
		d.started = true
		speaker.Play(beep.Seq(d.ctrl, beep.Callback(d.complete)))
	}
	speaker.Lock()
	d.ctrl.Paused = false
	speaker.Unlock()
}

func (d *speakerDecoder) Pause() {
	if !d.ready() {
		return
	}
	speaker.Lock()
	d.ctrl.Paused = true
	speaker.Unlock()
}

func (d *speakerDecoder) SeekTo(ms int) error {
	if !d.ready() {
		return ErrNotPrepared
	}

	speaker.Lock()
	defer speaker.Unlock()

	length := d.stream.Len()
	target := d.format.SampleRate.N(time.Duration(ms) * time.Millisecond)
	if target < 0 {
		target = 0
	}
	if target >= length {
		target = length - 1
	}
	if target < 0 {
		target = 0
	}
	return d.stream.Seek(target)
}

func (d *speakerDecoder) Position() int {
	if !d.ready() {
		return 0
	}
	speaker.Lock()
	pos := d.stream.Position()
	speaker.Unlock()
	return int(d.format.SampleRate.D(pos).Milliseconds())
}

func (d *speakerDecoder) Duration() int {
	if !d.ready() {
		return 0
	}
	speaker.Lock()
	length := d.stream.Len()
	speaker.Unlock()
	return int(d.format.SampleRate.D(length).Milliseconds())
}

func (d *speakerDecoder) SetVolume(percent int) {
	d.volumePercent = percent
	if !d.ready() {
		return
	}
	speaker.Lock()
	applyVolume(d.volume, percent)
	speaker.Unlock()
}

func (d *speakerDecoder) OnCompletion(fn func()) {
	d.mu.Lock()
	d.onDone = fn
	d.mu.Unlock()
}

func (d *speakerDecoder) Release() error {
	d.mu.Lock()
	if d.released {
		d.mu.Unlock()
		return ErrReleased
	}
	d.released = true
	d.onDone = nil
	d.mu.Unlock()

	if d.stream == nil {
		return nil
	}

	speaker.Lock()
	d.ctrl.Streamer = nil
	speaker.Unlock()

	err := d.stream.Close()
	d.stream = nil
	return err
}

func (d *speakerDecoder) ready() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.released && d.stream != nil
}

// complete runs on the audio goroutine with the speaker lock held, so the
// callback is handed off to its own goroutine.
func (d *speakerDecoder) complete() {
	d.mu.Lock()
	fn := d.onDone
	if d.released {
		fn = nil
	}
	d.mu.Unlock()

	if fn != nil {
		go fn()
	}
}

func applyVolume(v *effects.Volume, percent int) {
	if percent <= 0 {
		v.Silent = true
		return
	}
	if percent > 100 {
		percent = 100
	}
	v.Silent = false
	v.Volume = math.Log2(float64(percent) / 100)
}
