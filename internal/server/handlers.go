// Package server is drivecast's HTTP surface: the JSON API the web UI calls,
// the OAuth callback page, and optional static file serving.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/tonimelisma/drivecast/internal/catalog"
	"github.com/tonimelisma/drivecast/internal/session"
)

// Session is the slice of the Auth Session Manager the handlers use.
type Session interface {
	ConsentURL() string
	Exchange(ctx context.Context, code string) error
	Revoke(ctx context.Context) error
	Authenticated(ctx context.Context) (bool, error)
}

// Catalog lists and resolves videos.
type Catalog interface {
	ListVideos(ctx context.Context) ([]catalog.Video, error)
	Video(ctx context.Context, id string) (*catalog.Video, error)
}

// Streamer proxies video bytes. An error means nothing was written.
type Streamer interface {
	Serve(w http.ResponseWriter, r *http.Request, id string) error
}

// Dependencies aggregates the collaborators handlers need.
type Dependencies struct {
	Session  Session
	Catalog  Catalog
	Streamer Streamer
	// Events, when set, is served at /api/events.
	Events *Events
}

// Options configures the handler tree.
type Options struct {
	// StaticDir, when set, is served at /.
	StaticDir string
	// RateLimit is requests per second per client IP; zero disables limiting.
	RateLimit float64
	RateBurst int
}

// Handler serves the drivecast HTTP API.
type Handler struct {
	deps   Dependencies
	opts   Options
	logger *slog.Logger
}

// NewHandler builds the full handler tree with middleware applied.
func NewHandler(deps Dependencies, opts Options, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{deps: deps, opts: opts, logger: logger}

	var limiter *IPRateLimiter
	if opts.RateLimit > 0 {
		limiter = NewIPRateLimiter(opts.RateLimit, opts.RateBurst, 0)
	}

	return RequestLogger(logger)(RateLimit(limiter)(h.routes()))
}

func (h *Handler) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.health)
	mux.HandleFunc("GET /api/videos", h.listVideos)
	mux.HandleFunc("GET /api/video/{id}", h.video)
	mux.HandleFunc("GET /api/stream/{id}", h.stream)
	mux.HandleFunc("GET /api/auth-status", h.authStatus)
	mux.HandleFunc("GET /api/revoke-auth", h.revokeAuth)
	mux.HandleFunc("GET /auth/login", h.login)
	mux.HandleFunc("GET /auth/callback", h.callback)

	if h.deps.Events != nil {
		mux.HandleFunc("GET /api/events", h.events)
	}

	if h.opts.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(h.opts.StaticDir)))
	}

	return mux
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type videosBody struct {
	Success bool            `json:"success"`
	Videos  []catalog.Video `json:"videos"`
}

func (h *Handler) listVideos(w http.ResponseWriter, r *http.Request) {
	videos, err := h.deps.Catalog.ListVideos(r.Context())
	if err != nil {
		h.respondError(w, r, "list videos", err)
		return
	}

	respondJSON(w, http.StatusOK, videosBody{Success: true, Videos: videos})
}

type videoBody struct {
	Success   bool           `json:"success"`
	Video     *catalog.Video `json:"video"`
	StreamURL string         `json:"streamUrl"`
}

func (h *Handler) video(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	v, err := h.deps.Catalog.Video(r.Context(), id)
	if err != nil {
		h.respondError(w, r, "get video", err)
		return
	}

	respondJSON(w, http.StatusOK, videoBody{
		Success:   true,
		Video:     v,
		StreamURL: StreamPath(v.ID),
	})
}

// StreamPath is the URL path the browser uses to play video id.
func StreamPath(id string) string {
	return "/api/stream/" + url.PathEscape(id)
}

func (h *Handler) stream(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Streamer.Serve(w, r, r.PathValue("id")); err != nil {
		h.respondError(w, r, "stream video", err)
	}
}

type authStatusBody struct {
	Authenticated bool   `json:"authenticated"`
	NeedAuth      bool   `json:"needAuth,omitempty"`
	AuthURL       string `json:"authUrl,omitempty"`
}

func (h *Handler) authStatus(w http.ResponseWriter, r *http.Request) {
	ok, err := h.deps.Session.Authenticated(r.Context())
	if err != nil {
		h.respondError(w, r, "auth status", err)
		return
	}

	if ok {
		respondJSON(w, http.StatusOK, authStatusBody{Authenticated: true})
		return
	}

	respondJSON(w, http.StatusOK, authStatusBody{
		NeedAuth: true,
		AuthURL:  h.deps.Session.ConsentURL(),
	})
}

type successBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (h *Handler) revokeAuth(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Session.Revoke(r.Context()); err != nil {
		loggerFrom(r.Context(), h.logger).Error("revoke failed", slog.String("error", err.Error()))
		respondJSON(w, http.StatusInternalServerError, successBody{Error: msgInternal})

		return
	}

	respondJSON(w, http.StatusOK, successBody{Success: true})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.deps.Session.ConsentURL(), http.StatusFound)
}

func (h *Handler) callback(w http.ResponseWriter, r *http.Request) {
	logger := loggerFrom(r.Context(), h.logger)
	q := r.URL.Query()

	if providerErr := q.Get("error"); providerErr != "" {
		logger.Warn("consent denied or failed", slog.String("oauth_error", providerErr))
		renderCallback(w, http.StatusBadRequest, false, "Authorization was not granted: "+providerErr)

		return
	}

	code := q.Get("code")
	if code == "" {
		renderCallback(w, http.StatusBadRequest, false, "Missing authorization code.")
		return
	}

	err := h.deps.Session.Exchange(r.Context(), code)

	switch {
	case err == nil:
		renderCallback(w, http.StatusOK, true, "Authorization successful. You can close this window.")
	case errors.Is(err, session.ErrInvalidGrant):
		logger.Warn("authorization code rejected", slog.String("error", err.Error()))
		renderCallback(w, http.StatusBadRequest, false, "The authorization code was rejected. Please try again.")
	default:
		logger.Error("code exchange failed", slog.String("error", err.Error()))
		renderCallback(w, http.StatusInternalServerError, false, "Authorization failed. Please try again later.")
	}
}
