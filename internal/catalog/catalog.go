// Package catalog turns remote Drive metadata into the video listing the web
// UI shows, and resolves single videos for the detail view and stream proxy.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/tonimelisma/drivecast/internal/drive"
	"github.com/tonimelisma/drivecast/internal/session"
)

// DefaultPageSize is the number of videos a listing returns.
const DefaultPageSize = 100

// ErrNotVideo is returned when an id resolves to a file that is not a video.
// It matches drive.ErrNotFound: the id names no playable video.
var ErrNotVideo = fmt.Errorf("%w: not a video", drive.ErrNotFound)

// Video is one entry of the listing. ID is the remote id, unchanged.
type Video struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Size         string    `json:"size"`
	SizeBytes    int64     `json:"sizeBytes"`
	MimeType     string    `json:"mimeType"`
	CreatedTime  time.Time `json:"createdTime"`
	ModifiedTime time.Time `json:"modifiedTime"`
	ViewLink     string    `json:"viewLink,omitempty"`
}

// Remote is the subset of the Drive client the catalog needs.
type Remote interface {
	ListVideos(ctx context.Context, pageSize int) ([]drive.File, error)
	GetFile(ctx context.Context, id string) (*drive.File, error)
}

// Options tunes a Service. Zero values select defaults.
type Options struct {
	// Auth, when set, is consulted before a cache hit is served so cached
	// metadata never outlives the session that fetched it.
	Auth drive.Authorizer
	PageSize int
	// MetadataTimeout bounds each list or get call; zero means no bound
	// beyond the caller's context.
	MetadataTimeout time.Duration
}

// Service is the Video Catalog Service.
type Service struct {
	remote          Remote
	auth            drive.Authorizer
	cache           Cache
	pageSize        int
	metadataTimeout time.Duration
	logger          *slog.Logger
}

// NewService creates a catalog over remote. A nil cache disables caching.
func NewService(remote Remote, cache Cache, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	if cache == nil {
		cache = NoopCache{}
	}

	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	pageSize = min(pageSize, drive.MaxPageSize)

	return &Service{
		remote:          remote,
		auth:            opts.Auth,
		cache:           cache,
		pageSize:        pageSize,
		metadataTimeout: opts.MetadataTimeout,
		logger:          logger,
	}
}

// Purge drops all cached metadata. It satisfies session.Invalidator.
func (s *Service) Purge() {
	s.cache.Purge()
	s.logger.Debug("metadata cache purged")
}

// ListVideos returns the newest videos, at most the configured page size.
// Every returned entry has a video/ MIME type and seeds the metadata cache.
func (s *Service) ListVideos(ctx context.Context) ([]Video, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	files, err := s.remote.ListVideos(ctx, s.pageSize)
	if err != nil {
		return nil, MapRemoteError(err)
	}

	videos := make([]Video, 0, min(len(files), s.pageSize))

	for i := range files {
		if len(videos) == s.pageSize {
			break
		}

		if !isVideo(files[i].MimeType) {
			s.logger.Debug("dropping non-video result",
				slog.String("file_id", files[i].ID),
				slog.String("mime_type", files[i].MimeType),
			)

			continue
		}

		s.cache.Put(files[i])
		videos = append(videos, toVideo(&files[i]))
	}

	s.logger.Info("listed videos", slog.Int("count", len(videos)))

	return videos, nil
}

// Video resolves a single video by id.
func (s *Service) Video(ctx context.Context, id string) (*Video, error) {
	f, err := s.File(ctx, id)
	if err != nil {
		return nil, err
	}

	v := toVideo(f)

	return &v, nil
}

// File returns the raw metadata of a video, from the cache when fresh and the
// session is still usable. Non-video files yield ErrNotVideo.
func (s *Service) File(ctx context.Context, id string) (*drive.File, error) {
	if id == "" {
		return nil, fmt.Errorf("catalog: empty video id: %w", drive.ErrNotFound)
	}

	if f, ok := s.cache.Get(id); ok {
		if err := s.authorize(ctx); err != nil {
			return nil, err
		}

		return &f, nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	f, err := s.remote.GetFile(ctx, id)
	if err != nil {
		return nil, MapRemoteError(err)
	}

	if !isVideo(f.MimeType) {
		return nil, ErrNotVideo
	}

	s.cache.Put(*f)

	return f, nil
}

// authorize fails with the session's error when a remote call would. It may
// refresh the token, exactly as a remote call would.
func (s *Service) authorize(ctx context.Context) error {
	if s.auth == nil {
		return nil
	}

	if _, err := s.auth.Client(ctx); err != nil {
		return MapRemoteError(err)
	}

	return nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.metadataTimeout <= 0 {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, s.metadataTimeout)
}

// MapRemoteError translates a remote 401 into session.ErrAuthExpired so every
// caller sees one auth error vocabulary. Other errors pass through.
func MapRemoteError(err error) error {
	if errors.Is(err, drive.ErrUnauthorized) {
		return fmt.Errorf("%w: %w", session.ErrAuthExpired, err)
	}

	return err
}

func isVideo(mimeType string) bool {
	return strings.HasPrefix(mimeType, "video/")
}

func toVideo(f *drive.File) Video {
	return Video{
		ID:           f.ID,
		Title:        norm.NFC.String(f.Name),
		Size:         FormatFileSize(f.Size),
		SizeBytes:    f.Size,
		MimeType:     f.MimeType,
		CreatedTime:  f.CreatedTime,
		ModifiedTime: f.ModifiedTime,
		ViewLink:     f.WebViewLink,
	}
}
