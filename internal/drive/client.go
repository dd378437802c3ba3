package drive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const (
	// videoQuery selects every non-trashed file with a video MIME type.
	videoQuery = "mimeType contains 'video/' and trashed = false"
	orderBy    = "createdTime desc"
	fileFields = "id, name, mimeType, size, createdTime, modifiedTime, webViewLink"

	// MaxPageSize is the largest page the Drive API accepts.
	MaxPageSize = 1000
)

// File is the subset of Drive file metadata drivecast uses.
type File struct {
	ID           string
	Name         string
	MimeType     string
	Size         int64
	CreatedTime  time.Time
	ModifiedTime time.Time
	WebViewLink  string
}

// Media is an open download. The caller must close Body.
type Media struct {
	Body          io.ReadCloser
	StatusCode    int
	ContentLength int64
	ContentRange  string
}

// Authorizer provides HTTP clients that authenticate as the current user.
// Defined at the consumer; internal/session provides the implementation.
type Authorizer interface {
	Client(ctx context.Context) (*http.Client, error)
}

// Client is a Drive v3 client. Every call asks the Authorizer for a fresh
// authorized HTTP client, so token refreshes take effect immediately.
type Client struct {
	auth     Authorizer
	endpoint string
	logger   *slog.Logger
}

// NewClient creates a Drive client. endpoint overrides the API base URL
// (tests point it at an httptest server); empty means the public API.
func NewClient(auth Authorizer, endpoint string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		auth:     auth,
		endpoint: endpoint,
		logger:   logger,
	}
}

// service builds a Drive service bound to the caller's authorized client.
// Authorization errors from the Authorizer are returned unchanged.
func (c *Client) service(ctx context.Context) (*gdrive.Service, error) {
	hc, err := c.auth.Client(ctx)
	if err != nil {
		return nil, err
	}

	opts := []option.ClientOption{option.WithHTTPClient(hc)}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}

	svc, err := gdrive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("drive: creating service: %w", err)
	}

	return svc, nil
}

// ListVideos returns up to pageSize video files, newest first. Only the first
// page is fetched.
func (c *Client) ListVideos(ctx context.Context, pageSize int) ([]File, error) {
	if pageSize <= 0 || pageSize > MaxPageSize {
		return nil, fmt.Errorf("drive: page size %d out of range 1-%d", pageSize, MaxPageSize)
	}

	svc, err := c.service(ctx)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("listing videos", slog.Int("page_size", pageSize))

	list, err := svc.Files.List().
		Q(videoQuery).
		Fields("files(" + fileFields + ")").
		PageSize(int64(pageSize)).
		OrderBy(orderBy).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify("listing videos", err)
	}

	files := make([]File, 0, len(list.Files))
	for _, f := range list.Files {
		files = append(files, toFile(f))
	}

	c.logger.Debug("listed videos", slog.Int("count", len(files)))

	return files, nil
}

// GetFile returns the metadata of a single file.
func (c *Client) GetFile(ctx context.Context, id string) (*File, error) {
	svc, err := c.service(ctx)
	if err != nil {
		return nil, err
	}

	f, err := svc.Files.Get(id).Fields(fileFields).Context(ctx).Do()
	if err != nil {
		return nil, classify("getting file", err)
	}

	out := toFile(f)

	return &out, nil
}

// Open starts downloading a file's content. A non-empty rangeHeader is sent
// upstream verbatim as the Range header. The download is bound to ctx.
func (c *Client) Open(ctx context.Context, id, rangeHeader string) (*Media, error) {
	svc, err := c.service(ctx)
	if err != nil {
		return nil, err
	}

	call := svc.Files.Get(id).Context(ctx)
	if rangeHeader != "" {
		call.Header().Set("Range", rangeHeader)
	}

	resp, err := call.Download()
	if err != nil {
		return nil, classify("downloading file", err)
	}

	c.logger.Debug("opened media",
		slog.String("file_id", id),
		slog.Int("status", resp.StatusCode),
		slog.Int64("content_length", resp.ContentLength),
	)

	return &Media{
		Body:          resp.Body,
		StatusCode:    resp.StatusCode,
		ContentLength: resp.ContentLength,
		ContentRange:  resp.Header.Get("Content-Range"),
	}, nil
}

func toFile(f *gdrive.File) File {
	return File{
		ID:           f.Id,
		Name:         f.Name,
		MimeType:     f.MimeType,
		Size:         f.Size,
		CreatedTime:  parseTime(f.CreatedTime),
		ModifiedTime: parseTime(f.ModifiedTime),
		WebViewLink:  f.WebViewLink,
	}
}

// parseTime parses Drive's RFC 3339 timestamps. Unparseable values become the
// zero time rather than failing the whole listing.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}

	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}

	return t.UTC()
}
