package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"home-jukebox/internal/models"
	"home-jukebox/internal/player"
)

type fakeController struct {
	mu     sync.Mutex
	calls  []string
	err    error
	volume int
	snap   player.Snapshot
}

func (f *fakeController) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeController) Play() error  { return f.record("play") }
func (f *fakeController) Pause() error { return f.record("pause") }
func (f *fakeController) Next() error  { return f.record("next") }
func (f *fakeController) Prev() error  { return f.record("prev") }

func (f *fakeController) SeekTo(ms int) error {
	return f.record("seek:" + itoa(ms))
}

func (f *fakeController) PlayTrackAt(index int) error {
	return f.record("at:" + itoa(index))
}

func (f *fakeController) VolumeUp() (int, error) {
	f.volume += 7
	return f.volume, f.record("volume:up")
}

func (f *fakeController) VolumeDown() (int, error) {
	f.volume -= 7
	return f.volume, f.record("volume:down")
}

func (f *fakeController) Snapshot() (player.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := f.snap
	snap.VolumePercent = f.volume
	return snap, nil
}

func (f *fakeController) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeTracks []models.Track

func (f fakeTracks) Tracks() []models.Track { return f }

type fakeValidator map[string]string

func (f fakeValidator) Authorize(token string) (string, bool) {
	label, ok := f[token]
	return label, ok
}

func itoa(v int) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func newTestHandler(controller *fakeController, validator TokenValidator, logs io.Writer) http.Handler {
	tracks := fakeTracks{
		{Title: "Opening", Artist: "Quartet", Album: "Live", DurationSeconds: 95, Filename: "opening.mp3"},
		{Title: "Finale", Artist: "Quartet", Album: "Live", DurationSeconds: 605, Filename: "finale.wav"},
	}
	if logs == nil {
		logs = io.Discard
	}
	return New(controller, tracks, validator, log.New(logs, "", 0))
}

func serve(handler http.Handler, method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	handler := newTestHandler(&fakeController{}, fakeValidator{}, nil)

	rec := serve(handler, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected status payload: %v", body)
	}
}

func TestHealthEndpointRejectsNonGET(t *testing.T) {
	handler := newTestHandler(&fakeController{}, nil, nil)

	rec := serve(handler, http.MethodPost, "/health", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestTracksEndpoint(t *testing.T) {
	handler := newTestHandler(&fakeController{}, nil, nil)

	rec := serve(handler, http.MethodGet, "/tracks", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}

	var body []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(body))
	}
	if body[1]["index"] != float64(1) || body[1]["title"] != "Finale" || body[1]["duration"] != "10:05" {
		t.Fatalf("unexpected track entry %v", body[1])
	}
	if body[0]["duration_seconds"] != float64(95) {
		t.Fatalf("expected raw seconds alongside the formatted duration, got %v", body[0])
	}
}

func TestStatusEndpoint(t *testing.T) {
	controller := &fakeController{
		volume: 80,
		snap: player.Snapshot{
			SessionID:  "0192f0c4-0000-7000-8000-000000000000",
			Index:      1,
			State:      player.Playing,
			PositionMs: 1500,
			DurationMs: 605000,
			Track:      models.Track{Title: "Finale"},
			TrackCount: 2,
		},
	}
	handler := newTestHandler(controller, nil, nil)

	rec := serve(handler, http.MethodGet, "/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["state"] != "playing" || body["index"] != float64(1) || body["volume_percent"] != float64(80) {
		t.Fatalf("unexpected status %v", body)
	}
	if body["session_id"] != controller.snap.SessionID {
		t.Fatalf("unexpected session id %v", body["session_id"])
	}
}

func TestTransportEndpoints(t *testing.T) {
	controller := &fakeController{volume: 50}
	handler := newTestHandler(controller, nil, nil)

	requests := []string{
		"/play",
		"/pause",
		"/next",
		"/prev",
		"/seek?ms=42000",
		"/tracks/1/play",
		"/volume/up",
		"/volume/down",
	}
	for _, target := range requests {
		rec := serve(handler, http.MethodPost, target, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("POST %s: expected 200, got %d (%s)", target, rec.Code, rec.Body.String())
		}
	}

	want := []string{"play", "pause", "next", "prev", "seek:42000", "at:1", "volume:up", "volume:down"}
	if got := controller.recorded(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("calls = %v, want %v", got, want)
	}
}

func TestTransportEndpointsRejectGET(t *testing.T) {
	controller := &fakeController{}
	handler := newTestHandler(controller, nil, nil)

	for _, target := range []string{"/play", "/next", "/seek?ms=1", "/tracks/0/play", "/volume/up"} {
		rec := serve(handler, http.MethodGet, target, nil)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("GET %s: expected 405, got %d", target, rec.Code)
		}
	}
	if len(controller.recorded()) != 0 {
		t.Fatalf("rejected requests must not reach the controller")
	}
}

func TestBadParameters(t *testing.T) {
	controller := &fakeController{}
	handler := newTestHandler(controller, nil, nil)

	for _, target := range []string{"/seek", "/seek?ms=abc", "/tracks/first/play"} {
		rec := serve(handler, http.MethodPost, target, nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("POST %s: expected 400, got %d", target, rec.Code)
		}
	}
	if len(controller.recorded()) != 0 {
		t.Fatalf("bad requests must not reach the controller")
	}
}

func TestControllerErrorsMapToStatus(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{player.ErrIndexOutOfRange, http.StatusNotFound},
		{player.ErrEmptyCatalog, http.StatusConflict},
		{player.ErrUnplayableCatalog, http.StatusConflict},
		{player.ErrNoTrackLoaded, http.StatusConflict},
		{player.ErrClosed, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		handler := newTestHandler(&fakeController{err: tc.err}, nil, nil)
		rec := serve(handler, http.MethodPost, "/next", nil)
		if rec.Code != tc.code {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.code, rec.Code)
		}

		var body map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if body["error"] != tc.err.Error() {
			t.Fatalf("unexpected error body %v", body)
		}
	}
}

func TestTokenRequired(t *testing.T) {
	controller := &fakeController{}
	var logs bytes.Buffer
	handler := newTestHandler(controller, fakeValidator{"secret": "kitchen"}, &logs)

	if rec := serve(handler, http.MethodGet, "/tracks", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	if rec := serve(handler, http.MethodPost, "/play?token=wrong", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a wrong token, got %d", rec.Code)
	}
	if rec := serve(handler, http.MethodGet, "/health", nil); rec.Code != http.StatusOK {
		t.Fatalf("health must not require a token, got %d", rec.Code)
	}

	accepted := []struct {
		target string
		header http.Header
	}{
		{"/play?token=secret", nil},
		{"/pause", http.Header{"X-Jukebox-Token": {"secret"}}},
		{"/next", http.Header{"Authorization": {"Bearer secret"}}},
		{"/prev", http.Header{"Authorization": {"bearer   secret"}}},
	}
	for _, tc := range accepted {
		if rec := serve(handler, http.MethodPost, tc.target, tc.header); rec.Code != http.StatusOK {
			t.Fatalf("POST %s: expected 200, got %d", tc.target, rec.Code)
		}
	}

	if got := controller.recorded(); len(got) != 4 {
		t.Fatalf("expected 4 authorized calls, got %v", got)
	}
	if !strings.Contains(logs.String(), "play requested by kitchen") {
		t.Fatalf("expected the token label in the command log, got:\n%s", logs.String())
	}
}

func TestRequestLogging(t *testing.T) {
	var logs bytes.Buffer
	handler := newTestHandler(&fakeController{}, nil, &logs)

	serve(handler, http.MethodGet, "/health", nil)
	if !strings.Contains(logs.String(), "GET /health -> 200") {
		t.Fatalf("expected request log line, got:\n%s", logs.String())
	}
}
