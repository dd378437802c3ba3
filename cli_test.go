package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/tonimelisma/drivecast/internal/catalog"
	"github.com/tonimelisma/drivecast/internal/config"
	"github.com/tonimelisma/drivecast/internal/tokenstore"
)

func TestPrintVideos_Table(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, printVideos(&buf, []catalog.Video{
		{ID: "id-1", Title: "holiday.mp4", Size: "1.5 GB", CreatedTime: time.Date(2020, 1, 2, 3, 4, 0, 0, time.UTC)},
	}, false))

	out := buf.String()
	assert.Contains(t, out, "TITLE")
	assert.Contains(t, out, "holiday.mp4")
	assert.Contains(t, out, "1.5 GB")
	assert.Contains(t, out, "id-1")
}

func TestPrintVideos_Empty(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, printVideos(&buf, nil, false))
	assert.Equal(t, "No videos found.\n", buf.String())
}

func TestPrintVideos_JSON(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, printVideos(&buf, []catalog.Video{{ID: "id-1", Title: "t", SizeBytes: 5}}, true))

	var got []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "id-1", got[0]["id"])
	assert.InDelta(t, 5, got[0]["sizeBytes"], 0)
}

func statusCfg(t *testing.T) *config.Resolved {
	t.Helper()

	cfg := &config.Resolved{Config: *config.DefaultConfig()}
	cfg.Token.Backend = tokenstore.BackendMemory
	cfg.PIDPath = filepath.Join(t.TempDir(), "drivecast.pid")

	return cfg
}

func TestCollectStatus_SignedOut(t *testing.T) {
	report, err := collectStatus(context.Background(), tokenstore.NewMemory(), statusCfg(t))
	require.NoError(t, err)

	assert.False(t, report.Authenticated)
	assert.False(t, report.ServerRunning)
	assert.Nil(t, report.TokenExpiry)

	var buf bytes.Buffer
	require.NoError(t, printStatus(&buf, report, false))
	assert.Contains(t, buf.String(), "drivecast login")
	assert.Contains(t, buf.String(), "not running")
}

func TestCollectStatus_SignedInWithServer(t *testing.T) {
	cfg := statusCfg(t)

	store := tokenstore.NewMemory()
	expiry := time.Now().Add(time.Hour)
	require.NoError(t, store.Save(context.Background(), &oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: expiry}))

	cleanup, err := writePIDFile(cfg.PIDPath)
	require.NoError(t, err)

	defer cleanup()

	report, err := collectStatus(context.Background(), store, cfg)
	require.NoError(t, err)

	assert.True(t, report.Authenticated)
	assert.True(t, report.RefreshToken)
	require.NotNil(t, report.TokenExpiry)
	assert.WithinDuration(t, expiry, *report.TokenExpiry, time.Second)
	assert.True(t, report.ServerRunning)

	var buf bytes.Buffer
	require.NoError(t, printStatus(&buf, report, true))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, true, decoded["authenticated"])
	assert.Equal(t, true, decoded["server_running"])
	assert.Equal(t, "memory", decoded["token_backend"])
}
