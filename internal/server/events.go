package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// EventAuthChanged tells the page to re-read /api/auth-status and reload the
// video list.
const EventAuthChanged = "auth-changed"

const (
	eventBuffer       = 4
	eventWriteTimeout = 5 * time.Second
	eventPingInterval = 30 * time.Second
)

// Event is one message pushed over /api/events.
type Event struct {
	Type string `json:"type"`
}

// Events fans session changes out to connected browsers. It satisfies
// session.Invalidator, so registering it with the session manager pushes an
// auth-changed event on every login, logout, or outside token change.
type Events struct {
	mu     sync.Mutex
	subs   map[chan Event]struct{}
	closed bool
	logger *slog.Logger
}

// NewEvents returns an empty hub.
func NewEvents(logger *slog.Logger) *Events {
	if logger == nil {
		logger = slog.Default()
	}

	return &Events{subs: make(map[chan Event]struct{}), logger: logger}
}

// Purge publishes EventAuthChanged.
func (e *Events) Purge() {
	e.Publish(Event{Type: EventAuthChanged})
}

// Publish delivers ev to every subscriber. A subscriber whose buffer is full
// misses the event rather than stalling the publisher.
func (e *Events) Publish(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for ch := range e.subs {
		select {
		case ch <- ev:
		default:
			e.logger.Debug("event subscriber lagging, dropping event", slog.String("type", ev.Type))
		}
	}
}

// Subscribers returns the number of connected listeners.
func (e *Events) Subscribers() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.subs)
}

// Close disconnects every subscriber. Hijacked websocket connections are not
// tracked by http.Server.Shutdown, so serve calls this first.
func (e *Events) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}

	e.closed = true

	for ch := range e.subs {
		close(ch)
		delete(e.subs, ch)
	}
}

// subscribe registers a listener. ok is false once the hub is closed.
func (e *Events) subscribe() (ch chan Event, cancel func(), ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, nil, false
	}

	ch = make(chan Event, eventBuffer)
	e.subs[ch] = struct{}{}

	cancel = func() {
		e.mu.Lock()
		defer e.mu.Unlock()

		if _, live := e.subs[ch]; live {
			delete(e.subs, ch)
			close(ch)
		}
	}

	return ch, cancel, true
}

func (h *Handler) events(w http.ResponseWriter, r *http.Request) {
	logger := loggerFrom(r.Context(), h.logger)

	ch, cancel, ok := h.deps.Events.subscribe()
	if !ok {
		respondJSON(w, http.StatusServiceUnavailable, errorBody{Error: "server shutting down"})
		return
	}
	defer cancel()

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		// Accept has already written the error response.
		logger.Debug("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.CloseNow()

	// The page never sends; CloseRead discards input and cancels ctx when
	// the peer goes away.
	ctx := conn.CloseRead(r.Context())

	ping := time.NewTicker(eventPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, open := <-ch:
			if !open {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}

			if err := writeEvent(ctx, conn, ev); err != nil {
				logger.Debug("event write failed", slog.String("error", err.Error()))
				return
			}

		case <-ping.C:
			pingCtx, cancelPing := context.WithTimeout(ctx, eventWriteTimeout)
			err := conn.Ping(pingCtx)
			cancelPing()

			if err != nil {
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, ev Event) error {
	ctx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
	defer cancel()

	return wsjson.Write(ctx, conn, ev)
}
