package player

// Listener observes a Coordinator. Callbacks run on the coordinator's loop
// goroutine, so they must return quickly and must not call back into the
// coordinator synchronously.
type Listener interface {
	OnProgress(positionMs, durationMs int)
	OnStateChanged(playing bool)
	OnSongChanged(index int)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Progress     func(positionMs, durationMs int)
	StateChanged func(playing bool)
	SongChanged  func(index int)
}

func (f ListenerFuncs) OnProgress(positionMs, durationMs int) {
	if f.Progress != nil {
		f.Progress(positionMs, durationMs)
	}
}

func (f ListenerFuncs) OnStateChanged(playing bool) {
	if f.StateChanged != nil {
		f.StateChanged(playing)
	}
}

func (f ListenerFuncs) OnSongChanged(index int) {
	if f.SongChanged != nil {
		f.SongChanged(index)
	}
}
