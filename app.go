package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/tonimelisma/drivecast/internal/catalog"
	"github.com/tonimelisma/drivecast/internal/config"
	"github.com/tonimelisma/drivecast/internal/credentials"
	"github.com/tonimelisma/drivecast/internal/drive"
	"github.com/tonimelisma/drivecast/internal/session"
	"github.com/tonimelisma/drivecast/internal/stream"
	"github.com/tonimelisma/drivecast/internal/tokenstore"
)

// App holds every service a command needs, wired from the resolved config.
// Built once per command invocation; Close releases the token store.
type App struct {
	Cfg     *config.Resolved
	Store   tokenstore.Store
	Session *session.Manager
	Drive   *drive.Client
	Catalog *catalog.Service
	Proxy   *stream.Proxy

	closeStore func() error
	logger     *slog.Logger
}

// NewApp wires the services for cfg. It fails if no OAuth client credentials
// are configured.
func NewApp(ctx context.Context, cfg *config.Resolved, logger *slog.Logger) (*App, error) {
	creds, err := credentials.Load(credentials.Source{
		ClientID:     cfg.OAuth.ClientID,
		ClientSecret: cfg.OAuth.ClientSecret,
		RedirectURL:  cfg.OAuth.RedirectURL,
		File:         cfg.OAuth.CredentialsFile,
	})
	if err != nil {
		if errors.Is(err, credentials.ErrMissing) {
			return nil, fmt.Errorf("%w: set oauth.client_id/client_secret, GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET, or oauth.credentials_file", err)
		}

		return nil, err
	}

	store, closeStore, err := tokenstore.Open(ctx, cfg.Token.Backend, cfg.TokenPath, logger)
	if err != nil {
		return nil, err
	}

	mgr := session.NewManager(session.Options{
		Credentials:   creds,
		RevokeURL:     cfg.OAuth.RevokeURL,
		RefreshWindow: cfg.RefreshWindow,
		HTTPClient:    newHTTPClient(cfg.ConnectTimeout),
	}, store, logger)

	driveClient := drive.NewClient(mgr, "", logger)

	svc := catalog.NewService(driveClient, newCache(cfg), catalog.Options{
		Auth:            mgr,
		PageSize:        cfg.Catalog.PageSize,
		MetadataTimeout: cfg.MetadataTimeout,
	}, logger)
	mgr.OnInvalidate(svc)

	logger.Debug("services wired",
		slog.String("token_backend", cfg.Token.Backend),
		slog.Int("page_size", cfg.Catalog.PageSize),
		slog.Duration("cache_ttl", cfg.CacheTTL),
	)

	return &App{
		Cfg:        cfg,
		Store:      store,
		Session:    mgr,
		Drive:      driveClient,
		Catalog:    svc,
		Proxy:      stream.NewProxy(svc, driveClient, logger),
		closeStore: closeStore,
		logger:     logger,
	}, nil
}

// Close releases resources held by the App.
func (a *App) Close() {
	if err := a.closeStore(); err != nil {
		a.logger.Warn("closing token store", slog.String("error", err.Error()))
	}
}

// newCache picks the metadata cache. A zero TTL disables caching.
func newCache(cfg *config.Resolved) catalog.Cache {
	if cfg.CacheTTL <= 0 {
		return catalog.NoopCache{}
	}

	return catalog.NewLRUCache(cfg.Catalog.CacheSize, cfg.CacheTTL)
}

// newHTTPClient returns the outbound client shared by token, revoke, and
// Drive traffic. Only connection setup is bounded; request lifetimes come
// from contexts so long streams are not cut off.
func newHTTPClient(connectTimeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.TLSHandshakeTimeout = connectTimeout
	transport.ResponseHeaderTimeout = 0

	return &http.Client{Transport: transport}
}
