package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/tonimelisma/drivecast/internal/catalog"
	"github.com/tonimelisma/drivecast/internal/credentials"
	"github.com/tonimelisma/drivecast/internal/drive"
	"github.com/tonimelisma/drivecast/internal/session"
	"github.com/tonimelisma/drivecast/internal/stream"
	"github.com/tonimelisma/drivecast/internal/tokenstore"
)

const testConsentURL = "https://accounts.example.com/auth?client_id=x"

type fakeSession struct {
	authed      bool
	exchangeErr error
	revokeErr   error
	gotCode     string
}

func (s *fakeSession) ConsentURL() string { return testConsentURL }

func (s *fakeSession) Exchange(_ context.Context, code string) error {
	s.gotCode = code
	if s.exchangeErr != nil {
		return s.exchangeErr
	}

	s.authed = true

	return nil
}

func (s *fakeSession) Revoke(context.Context) error {
	if s.revokeErr != nil {
		return s.revokeErr
	}

	s.authed = false

	return nil
}

func (s *fakeSession) Authenticated(context.Context) (bool, error) { return s.authed, nil }

type fakeCatalog struct {
	videos []catalog.Video
	err    error
}

func (c *fakeCatalog) ListVideos(context.Context) ([]catalog.Video, error) {
	return c.videos, c.err
}

func (c *fakeCatalog) Video(_ context.Context, id string) (*catalog.Video, error) {
	if c.err != nil {
		return nil, c.err
	}

	for i := range c.videos {
		if c.videos[i].ID == id {
			return &c.videos[i], nil
		}
	}

	return nil, drive.ErrNotFound
}

type fakeStreamer struct {
	err error
}

func (s fakeStreamer) Serve(w http.ResponseWriter, _ *http.Request, id string) error {
	if s.err != nil {
		return s.err
	}

	w.Header().Set("Content-Type", "video/mp4")
	_, _ = io.WriteString(w, "bytes-of-"+id)

	return nil
}

func sampleVideos() []catalog.Video {
	return []catalog.Video{
		{ID: "v1", Title: "First", Size: "1 KB", SizeBytes: 1024, MimeType: "video/mp4"},
		{ID: "v 2/x", Title: "Second", MimeType: "video/webm"},
	}
}

func newTestServer(t *testing.T, deps Dependencies, opts Options) *httptest.Server {
	t.Helper()

	if deps.Session == nil {
		deps.Session = &fakeSession{authed: true}
	}

	if deps.Catalog == nil {
		deps.Catalog = &fakeCatalog{videos: sampleVideos()}
	}

	if deps.Streamer == nil {
		deps.Streamer = fakeStreamer{}
	}

	srv := httptest.NewServer(NewHandler(deps, opts, nil))
	t.Cleanup(srv.Close)

	return srv
}

func getJSON(t *testing.T, url string, into any) *http.Response {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	if into != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
	}

	return resp
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, Dependencies{}, Options{})

	var body map[string]string
	resp := getJSON(t, srv.URL+"/healthz", &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))
}

func TestListVideos_OK(t *testing.T) {
	srv := newTestServer(t, Dependencies{}, Options{})

	var body struct {
		Success bool            `json:"success"`
		Videos  []catalog.Video `json:"videos"`
	}
	resp := getJSON(t, srv.URL+"/api/videos", &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.True(t, body.Success)
	require.Len(t, body.Videos, 2)
	assert.Equal(t, "v1", body.Videos[0].ID)
}

func TestListVideos_NeedsAuth(t *testing.T) {
	for _, authErr := range []error{session.ErrNotAuthenticated, session.ErrAuthExpired} {
		srv := newTestServer(t, Dependencies{Catalog: &fakeCatalog{err: authErr}}, Options{})

		var body authRequiredBody
		resp := getJSON(t, srv.URL+"/api/videos", &body)

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.True(t, body.NeedAuth)
		assert.Equal(t, testConsentURL, body.AuthURL)
		assert.NotEmpty(t, body.Error)
	}
}

func TestListVideos_UpstreamFailureIsGeneric500(t *testing.T) {
	upstream := &drive.Error{StatusCode: 503, Message: "secret backend detail", Err: drive.ErrServerError}
	srv := newTestServer(t, Dependencies{Catalog: &fakeCatalog{err: upstream}}, Options{})

	var body errorBody
	resp := getJSON(t, srv.URL+"/api/videos", &body)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, msgInternal, body.Error)
}

func TestVideo_OKWithStreamURL(t *testing.T) {
	srv := newTestServer(t, Dependencies{}, Options{})

	var body struct {
		Success   bool          `json:"success"`
		Video     catalog.Video `json:"video"`
		StreamURL string        `json:"streamUrl"`
	}
	resp := getJSON(t, srv.URL+"/api/video/v1", &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, body.Success)
	assert.Equal(t, "First", body.Video.Title)
	assert.Equal(t, "/api/stream/v1", body.StreamURL)
}

func TestVideo_MissingIDIs404(t *testing.T) {
	srv := newTestServer(t, Dependencies{}, Options{})

	var body errorBody
	resp := getJSON(t, srv.URL+"/api/video/does-not-exist", &body)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, msgNotFound, body.Error)
}

func TestStreamPath_EscapesID(t *testing.T) {
	assert.Equal(t, "/api/stream/v%202%2Fx", StreamPath("v 2/x"))
}

func TestStream_PassesThrough(t *testing.T) {
	srv := newTestServer(t, Dependencies{}, Options{})

	resp, err := http.Get(srv.URL + "/api/stream/v1")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "bytes-of-v1", string(body))
}

func TestStream_RangeErrorIs416WithSize(t *testing.T) {
	rerr := &stream.RangeError{Size: 1000, Err: stream.ErrUnsatisfiableRange}
	srv := newTestServer(t, Dependencies{Streamer: fakeStreamer{err: rerr}}, Options{})

	var body errorBody
	resp := getJSON(t, srv.URL+"/api/stream/v1", &body)

	assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, resp.StatusCode)
	assert.Equal(t, "bytes */1000", resp.Header.Get("Content-Range"))
	assert.Equal(t, msgBadRange, body.Error)
}

func TestStream_ErrorsMapped(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{session.ErrNotAuthenticated, http.StatusUnauthorized},
		{drive.ErrNotFound, http.StatusNotFound},
		{catalog.ErrNotVideo, http.StatusNotFound},
		{drive.ErrThrottled, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			srv := newTestServer(t, Dependencies{Streamer: fakeStreamer{err: tt.err}}, Options{})
			resp := getJSON(t, srv.URL+"/api/stream/v1", nil)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestAuthStatus_Unauthenticated(t *testing.T) {
	srv := newTestServer(t, Dependencies{Session: &fakeSession{}}, Options{})

	var body authStatusBody
	getJSON(t, srv.URL+"/api/auth-status", &body)

	assert.False(t, body.Authenticated)
	assert.True(t, body.NeedAuth)
	assert.Equal(t, testConsentURL, body.AuthURL)
}

func TestLogin_RedirectsToConsent(t *testing.T) {
	srv := newTestServer(t, Dependencies{}, Options{})

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}

	resp, err := client.Get(srv.URL + "/auth/login")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, testConsentURL, resp.Header.Get("Location"))
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return string(b)
}

func TestCallback(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		exchangeErr error
		status      int
		success     bool
	}{
		{"success", "?code=good", nil, http.StatusOK, true},
		{"missing code", "", nil, http.StatusBadRequest, false},
		{"provider error", "?error=access_denied", nil, http.StatusBadRequest, false},
		{"rejected code", "?code=bad", session.ErrInvalidGrant, http.StatusBadRequest, false},
		{"exchange failure", "?code=x", errors.New("network down"), http.StatusInternalServerError, false},
		{"provider outage", "?code=x", drive.ErrServerError, http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := &fakeSession{exchangeErr: tt.exchangeErr}
			srv := newTestServer(t, Dependencies{Session: sess}, Options{})

			resp, err := http.Get(srv.URL + "/auth/callback" + tt.query)
			require.NoError(t, err)

			page := readBody(t, resp)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
			assert.Contains(t, page, "window.opener.postMessage")
			assert.Contains(t, page, `"drivecast-auth"`)

			if tt.success {
				assert.Contains(t, page, "success: true")
				assert.Equal(t, "good", sess.gotCode)
			} else {
				assert.Contains(t, page, "success: false")
			}
		})
	}
}

func TestRevokeThenAuthStatusIsFalse(t *testing.T) {
	revokeSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(revokeSrv.Close)

	store := tokenstore.NewMemory()
	require.NoError(t, store.Save(context.Background(), &oauth2.Token{
		AccessToken:  "at",
		RefreshToken: "rt",
		Expiry:       time.Now().Add(time.Hour),
	}))

	mgr := session.NewManager(session.Options{
		Credentials: credentials.Record{ClientID: "id", ClientSecret: "secret", RedirectURL: "http://localhost/auth/callback"},
		RevokeURL:   revokeSrv.URL,
		HTTPClient:  revokeSrv.Client(),
	}, store, nil)

	srv := newTestServer(t, Dependencies{Session: mgr}, Options{})

	var status authStatusBody
	getJSON(t, srv.URL+"/api/auth-status", &status)
	assert.True(t, status.Authenticated)

	var revoked successBody
	resp := getJSON(t, srv.URL+"/api/revoke-auth", &revoked)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, revoked.Success)

	status = authStatusBody{}
	getJSON(t, srv.URL+"/api/auth-status", &status)
	assert.False(t, status.Authenticated)
	assert.True(t, status.NeedAuth)
	assert.Contains(t, status.AuthURL, "access_type=offline")
}

func TestRevoke_LocalFailureIs500(t *testing.T) {
	srv := newTestServer(t, Dependencies{Session: &fakeSession{revokeErr: errors.New("disk full")}}, Options{})

	var body successBody
	resp := getJSON(t, srv.URL+"/api/revoke-auth", &body)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.False(t, body.Success)
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, Dependencies{}, Options{RateLimit: 0.001, RateBurst: 1})

	first := getJSON(t, srv.URL+"/healthz", nil)
	assert.Equal(t, http.StatusOK, first.StatusCode)

	second := getJSON(t, srv.URL+"/healthz", nil)
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
	assert.Equal(t, "1", second.Header.Get("Retry-After"))
}

func TestStaticDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>drivecast</h1>"), 0o600))

	srv := newTestServer(t, Dependencies{}, Options{StaticDir: dir})

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "drivecast")

	// API routes still win over the file server.
	health := getJSON(t, srv.URL+"/healthz", nil)
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

func TestRequestLogger_RecoversPanic(t *testing.T) {
	h := RequestLogger(discardLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}
