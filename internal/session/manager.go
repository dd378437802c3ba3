package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/tonimelisma/drivecast/internal/credentials"
	"github.com/tonimelisma/drivecast/internal/drive"
	"github.com/tonimelisma/drivecast/internal/tokenstore"
)

// DefaultRefreshWindow is how long before expiry a token is refreshed.
const DefaultRefreshWindow = 5 * time.Minute

// DefaultRevokeURL is Google's token revocation endpoint.
const DefaultRevokeURL = "https://oauth2.googleapis.com/revoke"

// Scopes requested on consent. Read-only is enough to list and stream.
var Scopes = []string{gdrive.DriveReadonlyScope}

// Invalidator is anything holding data derived from the current session
// (the catalog's metadata cache). It is purged on revoke and on new consent.
type Invalidator interface {
	Purge()
}

// Options configures a Manager.
type Options struct {
	Credentials credentials.Record
	// Endpoint overrides the provider endpoints; zero means Google.
	Endpoint oauth2.Endpoint
	// RevokeURL is the provider revocation endpoint; empty means Google's.
	RevokeURL string
	// APIEndpoint overrides the Drive API base URL used to tell accounts
	// apart on re-consent; empty means Google's.
	APIEndpoint string
	// RefreshWindow is the safety window before expiry; zero means DefaultRefreshWindow.
	RefreshWindow time.Duration
	// HTTPClient is used for token, revoke, and API traffic; nil means http.DefaultClient.
	// It must not carry a Timeout, because API traffic includes long streams.
	HTTPClient *http.Client
}

// Manager is the Auth Session Manager. It is safe for concurrent use: it
// holds no token state itself, every call reads the store.
//
// Two requests that both find the token inside the refresh window will both
// refresh and both save; the later save wins. The provider accepts this and
// no lock is taken.
type Manager struct {
	oauth      *oauth2.Config
	store      tokenstore.Store
	window     time.Duration
	revokeURL   string
	apiEndpoint string
	httpClient  *http.Client
	logger     *slog.Logger

	mu           sync.Mutex
	invalidators []Invalidator
	// seenGrant is the refresh token (or access token) observed by the last
	// Recheck; empty means no token was stored.
	seenGrant string
	checked   bool

	// nowFunc is injectable for deterministic tests.
	nowFunc func() time.Time
}

// NewManager creates a Manager backed by store.
func NewManager(opts Options, store tokenstore.Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	endpoint := opts.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = google.Endpoint
	}

	window := opts.RefreshWindow
	if window <= 0 {
		window = DefaultRefreshWindow
	}

	revokeURL := opts.RevokeURL
	if revokeURL == "" {
		revokeURL = DefaultRevokeURL
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Manager{
		oauth: &oauth2.Config{
			ClientID:     opts.Credentials.ClientID,
			ClientSecret: opts.Credentials.ClientSecret,
			RedirectURL:  opts.Credentials.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       Scopes,
		},
		store:      store,
		window:     window,
		revokeURL:   revokeURL,
		apiEndpoint: opts.APIEndpoint,
		httpClient:  httpClient,
		logger:     logger,
		nowFunc:    time.Now,
	}
}

// OnInvalidate registers inv to be purged whenever the session identity
// changes (revoke or a new consent grant).
func (m *Manager) OnInvalidate(inv Invalidator) {
	m.mu.Lock()
	m.invalidators = append(m.invalidators, inv)
	m.mu.Unlock()
}

func (m *Manager) purge() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, inv := range m.invalidators {
		inv.Purge()
	}
}

// Recheck reloads the stored token and purges derived caches when the grant
// behind it differs from the one seen on the previous call, as happens when
// another process logs in or out. Token refreshes in place keep the same
// refresh token and do not purge. The first call only records the grant.
func (m *Manager) Recheck(ctx context.Context) {
	var grant string

	tok, err := m.store.Load(ctx)

	switch {
	case err == nil:
		grant = grantOf(tok)
	case errors.Is(err, tokenstore.ErrNotFound):
	default:
		m.logger.Warn("recheck: could not read stored token", slog.String("error", err.Error()))
		return
	}

	m.mu.Lock()
	prev := m.seenGrant
	first := !m.checked
	m.seenGrant, m.checked = grant, true
	m.mu.Unlock()

	if first || prev == grant {
		return
	}

	m.logger.Info("stored session changed outside this process, purging caches",
		slog.Bool("authenticated", grant != ""),
	)

	m.purge()
}

// noteGrant records a grant change made by this process so the next Recheck
// does not mistake it for an outside one.
func (m *Manager) noteGrant(tok *oauth2.Token) {
	m.mu.Lock()
	m.seenGrant, m.checked = grantOf(tok), true
	m.mu.Unlock()
}

func grantOf(tok *oauth2.Token) string {
	if tok == nil {
		return ""
	}

	if tok.RefreshToken != "" {
		return tok.RefreshToken
	}

	return tok.AccessToken
}

// Client returns an HTTP client that authenticates as the stored user with a
// non-expired access token, refreshing first if the token is inside the
// safety window. The client has no timeout; bound calls with ctx.
func (m *Manager) Client(ctx context.Context) (*http.Client, error) {
	tok, err := m.Token(ctx)
	if err != nil {
		return nil, err
	}

	return &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(tok),
			Base:   m.httpClient.Transport,
		},
		CheckRedirect: m.httpClient.CheckRedirect,
		Jar:           m.httpClient.Jar,
	}, nil
}

// Token returns a token that stays valid for at least the refresh window,
// refreshing and persisting it if needed.
func (m *Manager) Token(ctx context.Context) (*oauth2.Token, error) {
	tok, err := m.store.Load(ctx)
	if errors.Is(err, tokenstore.ErrNotFound) {
		return nil, ErrNotAuthenticated
	}

	if err != nil {
		return nil, fmt.Errorf("session: loading token: %w", err)
	}

	if !m.needsRefresh(tok) {
		return tok, nil
	}

	return m.refresh(ctx, tok)
}

// needsRefresh reports whether tok expires within the safety window. A zero
// expiry means the provider gave no lifetime; such tokens are used as-is.
func (m *Manager) needsRefresh(tok *oauth2.Token) bool {
	if tok.AccessToken == "" {
		return true
	}

	if tok.Expiry.IsZero() {
		return false
	}

	return !tok.Expiry.After(m.nowFunc().Add(m.window))
}

func (m *Manager) expired(tok *oauth2.Token) bool {
	return tok.AccessToken == "" || (!tok.Expiry.IsZero() && !tok.Expiry.After(m.nowFunc()))
}

// refresh exchanges old's refresh token for a new access token. The old
// refresh token is carried over when the provider omits one. The stored
// record is deleted only when the provider reports invalid_grant, or when
// there is no refresh token and the access token is already dead.
func (m *Manager) refresh(ctx context.Context, old *oauth2.Token) (*oauth2.Token, error) {
	if old.RefreshToken == "" {
		if !m.expired(old) {
			m.logger.Debug("token inside refresh window but no refresh token, using it until expiry",
				slog.Time("expiry", old.Expiry),
			)

			return old, nil
		}

		m.logger.Warn("token expired and no refresh token is stored, discarding")
		m.discard(ctx)

		return nil, fmt.Errorf("%w: token expired without refresh token", ErrAuthExpired)
	}

	m.logger.Info("refreshing token", slog.Time("expiry", old.Expiry))

	// An empty access token forces the token source to hit the token endpoint.
	src := m.oauth.TokenSource(m.oauthContext(ctx), &oauth2.Token{RefreshToken: old.RefreshToken})

	fresh, err := src.Token()
	if err != nil {
		if isInvalidGrant(err) {
			m.logger.Warn("refresh token rejected by provider, discarding stored token")
			m.discard(ctx)
		} else {
			m.logger.Warn("token refresh failed", slog.String("error", err.Error()))
		}

		return nil, fmt.Errorf("%w: refreshing token: %w", ErrAuthExpired, err)
	}

	if fresh.RefreshToken == "" {
		fresh.RefreshToken = old.RefreshToken
	}

	if saveErr := m.store.Save(ctx, fresh); saveErr != nil {
		// The fresh token is still good for this request; the next one will
		// refresh again.
		m.logger.Warn("failed to persist refreshed token", slog.String("error", saveErr.Error()))
	} else {
		m.noteGrant(fresh)
		m.logger.Info("persisted refreshed token", slog.Time("new_expiry", fresh.Expiry))
	}

	return fresh, nil
}

// discard deletes the stored token, logging rather than returning failures:
// callers already have a more important error to report.
func (m *Manager) discard(ctx context.Context) {
	if err := m.store.Delete(ctx); err != nil {
		m.logger.Warn("failed to delete stored token", slog.String("error", err.Error()))
	}

	m.noteGrant(nil)
	m.purge()
}

// ConsentURL returns the provider page where the user grants read-only Drive
// access. Offline access and a forced consent prompt guarantee that the
// provider issues a refresh token.
func (m *Manager) ConsentURL() string {
	return m.oauth.AuthCodeURL("", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token and persists it. If the
// provider omits a refresh token, the previously stored one is kept when it
// belongs to the same account. A code the provider refuses yields
// ErrInvalidGrant; a provider outage yields drive.ErrUpstream.
func (m *Manager) Exchange(ctx context.Context, code string) error {
	if code == "" {
		return fmt.Errorf("%w: empty authorization code", ErrInvalidGrant)
	}

	m.logger.Info("exchanging authorization code")

	tok, err := m.oauth.Exchange(m.oauthContext(ctx), code)
	if err != nil {
		if isRejectedCode(err) {
			return fmt.Errorf("%w: %w", ErrInvalidGrant, err)
		}

		return fmt.Errorf("session: exchanging authorization code: %w: %w", drive.ErrUpstream, err)
	}

	if tok.RefreshToken == "" {
		m.carryRefreshToken(ctx, tok)
	}

	if err := m.store.Save(ctx, tok); err != nil {
		return fmt.Errorf("session: saving token: %w", err)
	}

	m.noteGrant(tok)
	m.purge()

	m.logger.Info("authorization complete", slog.Time("expiry", tok.Expiry))

	return nil
}

// carryRefreshToken copies the stored refresh token onto tok, which the
// provider issued without one, if both grants belong to the same Drive
// account. Otherwise tok is left alone and the session ends at its expiry.
func (m *Manager) carryRefreshToken(ctx context.Context, tok *oauth2.Token) {
	prev, err := m.store.Load(ctx)
	if err != nil || prev.RefreshToken == "" {
		m.logger.Warn("provider issued no refresh token; session will end at access token expiry")
		return
	}

	newAccount, err := m.account(ctx, tok)
	if err != nil {
		m.logger.Warn("cannot identify account of new grant, not reusing stored refresh token",
			slog.String("error", err.Error()),
		)

		return
	}

	// Refreshes the stored access token first if it has expired.
	prevTok, err := m.oauth.TokenSource(m.oauthContext(ctx), prev).Token()
	if err != nil {
		m.logger.Warn("stored grant is no longer usable, not reusing its refresh token",
			slog.String("error", err.Error()),
		)

		return
	}

	prevAccount, err := m.account(ctx, prevTok)
	if err != nil {
		m.logger.Warn("cannot identify account of stored grant, not reusing its refresh token",
			slog.String("error", err.Error()),
		)

		return
	}

	if prevAccount != newAccount {
		m.logger.Warn("new consent is for a different account, not reusing stored refresh token")
		return
	}

	tok.RefreshToken = prev.RefreshToken
	m.logger.Info("provider issued no refresh token, keeping the stored one")
}

// account returns the Drive permission id of the user tok authorizes.
func (m *Manager) account(ctx context.Context, tok *oauth2.Token) (string, error) {
	client := &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(tok),
			Base:   m.httpClient.Transport,
		},
	}

	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if m.apiEndpoint != "" {
		opts = append(opts, option.WithEndpoint(m.apiEndpoint))
	}

	svc, err := gdrive.NewService(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("creating drive service: %w", err)
	}

	about, err := svc.About.Get().Fields("user(permissionId)").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("looking up account: %w", err)
	}

	if about.User == nil || about.User.PermissionId == "" {
		return "", errors.New("looking up account: no user in response")
	}

	return about.User.PermissionId, nil
}

// Revoke asks the provider to revoke the grant (best effort: failures are
// logged and ignored), then deletes the local token and purges derived
// caches. It only fails if the local delete fails.
func (m *Manager) Revoke(ctx context.Context) error {
	tok, err := m.store.Load(ctx)

	switch {
	case err == nil:
		if revokeErr := m.revokeRemote(ctx, tok); revokeErr != nil {
			m.logger.Warn("remote revocation failed, deleting local token anyway",
				slog.String("error", revokeErr.Error()),
			)
		}
	case errors.Is(err, tokenstore.ErrNotFound):
		m.logger.Info("revoke: no stored token (already logged out)")
	default:
		m.logger.Warn("revoke: could not read stored token", slog.String("error", err.Error()))
	}

	deleteErr := m.store.Delete(ctx)
	if deleteErr == nil {
		m.noteGrant(nil)
	}

	m.purge()

	if deleteErr != nil {
		return fmt.Errorf("session: deleting token: %w", deleteErr)
	}

	m.logger.Info("session revoked")

	return nil
}

// revokeRemote posts the refresh token (or the access token when there is
// none) to the revocation endpoint. Revoking a refresh token revokes the
// whole grant.
func (m *Manager) revokeRemote(ctx context.Context, tok *oauth2.Token) error {
	value := tok.RefreshToken
	if value == "" {
		value = tok.AccessToken
	}

	form := url.Values{"token": {value}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("creating revoke request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("revoke request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("revoke endpoint returned HTTP %d", resp.StatusCode)
	}

	return nil
}

// Authenticated reports whether a token record exists. It does not refresh
// or validate the token.
func (m *Manager) Authenticated(ctx context.Context) (bool, error) {
	_, err := m.store.Load(ctx)
	if errors.Is(err, tokenstore.ErrNotFound) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("session: loading token: %w", err)
	}

	return true, nil
}

// oauthContext makes the oauth2 package use the configured HTTP client.
func (m *Manager) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
}
