package server

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialEvents(t *testing.T, events *Events) *websocket.Conn {
	t.Helper()

	srv := newTestServer(t, Dependencies{Events: events}, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/api/events", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })

	require.Eventually(t, func() bool { return events.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	return conn
}

func TestEvents_PurgePushesAuthChanged(t *testing.T) {
	events := NewEvents(discardLogger())
	conn := dialEvents(t, events)

	events.Purge()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var ev Event
	require.NoError(t, wsjson.Read(ctx, conn, &ev))
	assert.Equal(t, EventAuthChanged, ev.Type)
}

func TestEvents_CloseDisconnectsSubscribers(t *testing.T) {
	events := NewEvents(discardLogger())
	conn := dialEvents(t, events)

	events.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, _, err := conn.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
	assert.Zero(t, events.Subscribers())
}

func TestEvents_ClientDisconnectUnsubscribes(t *testing.T) {
	events := NewEvents(discardLogger())
	conn := dialEvents(t, events)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))

	assert.Eventually(t, func() bool { return events.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestEvents_RefusedAfterClose(t *testing.T) {
	events := NewEvents(discardLogger())
	events.Close()

	srv := newTestServer(t, Dependencies{Events: events}, Options{})

	resp, err := http.Get(srv.URL + "/api/events")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestEvents_NotRoutedWithoutHub(t *testing.T) {
	srv := newTestServer(t, Dependencies{}, Options{})

	resp, err := http.Get(srv.URL + "/api/events")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEvents_LaggingSubscriberDoesNotBlock(t *testing.T) {
	events := NewEvents(discardLogger())
	ch, cancel, ok := events.subscribe()
	require.True(t, ok)
	defer cancel()

	for range eventBuffer + 3 {
		events.Purge()
	}

	assert.Len(t, ch, eventBuffer)
}
