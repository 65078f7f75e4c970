package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"home-jukebox/internal/models"
	"home-jukebox/internal/player"
)

// Controller is the coordinator surface exposed over HTTP.
type Controller interface {
	Play() error
	Pause() error
	Next() error
	Prev() error
	SeekTo(positionMs int) error
	PlayTrackAt(index int) error
	VolumeUp() (int, error)
	VolumeDown() (int, error)
	Snapshot() (player.Snapshot, error)
}

// TrackLister provides the catalog listing.
type TrackLister interface {
	Tracks() []models.Track
}

// TokenValidator authorizes control tokens and names their holder.
type TokenValidator interface {
	Authorize(token string) (label string, ok bool)
}

type trackEntry struct {
	Index int `json:"index"`
	models.Track
	Duration string `json:"duration"`
}

type errorBody struct {
	Error string `json:"error"`
}

type serverHandler struct {
	controller Controller
	tracks     TrackLister
	validator  TokenValidator
	logger     *log.Logger
}

// New creates the HTTP handler for the control API. A nil validator disables
// token checks.
func New(controller Controller, tracks TrackLister, validator TokenValidator, logger *log.Logger) http.Handler {
	if logger == nil {
		logger = log.Default()
	}

	h := &serverHandler{
		controller: controller,
		tracks:     tracks,
		validator:  validator,
		logger:     logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /tracks", h.authorized(h.handleTracks))
	mux.HandleFunc("GET /status", h.authorized(h.handleStatus))

	mux.HandleFunc("POST /play", h.command("play", controller.Play))
	mux.HandleFunc("POST /pause", h.command("pause", controller.Pause))
	mux.HandleFunc("POST /next", h.command("next", controller.Next))
	mux.HandleFunc("POST /prev", h.command("prev", controller.Prev))
	mux.HandleFunc("POST /seek", h.authorized(h.handleSeek))
	mux.HandleFunc("POST /tracks/{index}/play", h.authorized(h.handlePlayTrack))
	mux.HandleFunc("POST /volume/up", h.volume("volume up", controller.VolumeUp))
	mux.HandleFunc("POST /volume/down", h.volume("volume down", controller.VolumeDown))

	return logRequests(mux, logger)
}

func (h *serverHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, h.logger)
}

func (h *serverHandler) handleTracks(w http.ResponseWriter, r *http.Request) {
	tracks := h.tracks.Tracks()
	entries := make([]trackEntry, len(tracks))
	for i, track := range tracks {
		entries[i] = trackEntry{Index: i, Track: track, Duration: track.Duration()}
	}
	writeJSON(w, http.StatusOK, entries, h.logger)
}

func (h *serverHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	h.respondWithSnapshot(w)
}

func (h *serverHandler) handleSeek(w http.ResponseWriter, r *http.Request) {
	ms, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("ms")))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "ms must be an integer number of milliseconds"}, h.logger)
		return
	}
	h.runCommand(w, r, "seek", func() error { return h.controller.SeekTo(ms) })
}

func (h *serverHandler) handlePlayTrack(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "track index must be an integer"}, h.logger)
		return
	}
	h.runCommand(w, r, "play track "+strconv.Itoa(index), func() error { return h.controller.PlayTrackAt(index) })
}

func (h *serverHandler) command(name string, op func() error) http.HandlerFunc {
	return h.authorized(func(w http.ResponseWriter, r *http.Request) {
		h.runCommand(w, r, name, op)
	})
}

func (h *serverHandler) volume(name string, op func() (int, error)) http.HandlerFunc {
	return h.authorized(func(w http.ResponseWriter, r *http.Request) {
		h.runCommand(w, r, name, func() error {
			_, err := op()
			return err
		})
	})
}

func (h *serverHandler) runCommand(w http.ResponseWriter, r *http.Request, name string, op func() error) {
	if err := op(); err != nil {
		h.logger.Printf("%s requested by %s failed: %v", name, holder(r), err)
		writeJSON(w, statusForError(err), errorBody{Error: err.Error()}, h.logger)
		return
	}
	h.logger.Printf("%s requested by %s", name, holder(r))
	h.respondWithSnapshot(w)
}

func (h *serverHandler) respondWithSnapshot(w http.ResponseWriter) {
	snap, err := h.controller.Snapshot()
	if err != nil {
		writeJSON(w, statusForError(err), errorBody{Error: err.Error()}, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, snap, h.logger)
}

type holderKey struct{}

func (h *serverHandler) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.validator == nil {
			next(w, r)
			return
		}

		label, ok := h.validator.Authorize(extractToken(r))
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), holderKey{}, label)))
	}
}

// holder names who issued a request: the token label, or the remote address
// when tokens are disabled.
func holder(r *http.Request) string {
	if label, ok := r.Context().Value(holderKey{}).(string); ok && label != "" {
		return label
	}
	return r.RemoteAddr
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, player.ErrIndexOutOfRange):
		return http.StatusNotFound
	case errors.Is(err, player.ErrEmptyCatalog),
		errors.Is(err, player.ErrNoTrackLoaded),
		errors.Is(err, player.ErrUnplayableCatalog):
		return http.StatusConflict
	case errors.Is(err, player.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any, logger *log.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Printf("failed to encode response: %v", err)
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.size += n
	return n, err
}

func logRequests(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)
		logger.Printf("%s %s -> %d (%dB) in %s", r.Method, r.URL.Path, sw.status, sw.size, time.Since(start))
	})
}

func extractToken(r *http.Request) string {
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token
	}
	if header := strings.TrimSpace(r.Header.Get("X-Jukebox-Token")); header != "" {
		return header
	}

	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(authz) > 7 && strings.EqualFold(authz[:7], "bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	return ""
}
