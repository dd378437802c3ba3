package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/tonimelisma/drivecast/internal/catalog"
	"github.com/tonimelisma/drivecast/internal/drive"
)

const (
	copyBufferSize     = 256 * 1024
	defaultContentType = "application/octet-stream"
)

// Metadata resolves a video's size and MIME type, usually via the catalog's
// cache.
type Metadata interface {
	File(ctx context.Context, id string) (*drive.File, error)
}

// Opener opens a file's content, forwarding rangeHeader upstream.
type Opener interface {
	Open(ctx context.Context, id, rangeHeader string) (*drive.Media, error)
}

// Proxy is the Stream Proxy.
type Proxy struct {
	meta    Metadata
	opener  Opener
	bufSize int
	logger  *slog.Logger

	// active counts bodies currently being copied to clients.
	active atomic.Int64
}

// NewProxy creates a Proxy.
func NewProxy(meta Metadata, opener Opener, logger *slog.Logger) *Proxy {
	if logger == nil {
		logger = slog.Default()
	}

	return &Proxy{
		meta:    meta,
		opener:  opener,
		bufSize: copyBufferSize,
		logger:  logger,
	}
}

// Serve streams video id to w. Any error returned means nothing has been
// written and the caller should render an error response; range errors are
// *RangeError so the caller can advertise the file size. Once headers are
// written Serve returns nil and failures while copying are only logged.
func (p *Proxy) Serve(w http.ResponseWriter, r *http.Request, id string) error {
	ctx := r.Context()

	f, err := p.meta.File(ctx, id)
	if err != nil {
		return err
	}

	size := f.Size

	var rng *Range

	if h := r.Header.Get("Range"); h != "" {
		rng, err = ParseRange(h, size)
		if err != nil {
			return &RangeError{Size: size, Err: err}
		}
	}

	upstreamRange := ""
	if rng != nil {
		upstreamRange = rng.Header()
	}

	media, err := p.opener.Open(ctx, id, upstreamRange)
	if err != nil {
		return catalog.MapRemoteError(err)
	}
	defer media.Body.Close()

	status := http.StatusOK
	length := size

	if rng != nil {
		status = http.StatusPartialContent
		length = rng.Length()

		// Upstream ignored the Range header and sent the whole file.
		if media.StatusCode == http.StatusOK && rng.Start > 0 {
			if _, err := io.CopyN(io.Discard, media.Body, rng.Start); err != nil {
				return fmt.Errorf("stream: skipping to offset %d: %w: %w", rng.Start, drive.ErrUpstream, err)
			}
		}
	}

	contentType := f.MimeType
	if contentType == "" {
		contentType = defaultContentType
	}

	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Length", strconv.FormatInt(length, 10))

	if rng != nil {
		h.Set("Content-Range", rng.ContentRange(size))
	}

	w.WriteHeader(status)

	p.active.Add(1)
	defer p.active.Add(-1)

	p.copyBody(w, media.Body, id, length)

	return nil
}

// Active returns the number of streams currently sending bytes.
func (p *Proxy) Active() int64 {
	return p.active.Load()
}

// copyBody pipes at most length bytes through a fixed buffer. The limit keeps
// the body consistent with Content-Length when upstream sends more.
func (p *Proxy) copyBody(w io.Writer, body io.Reader, id string, length int64) {
	buf := make([]byte, p.bufSize)

	n, err := io.CopyBuffer(w, io.LimitReader(body, length), buf)

	switch {
	case err != nil && errors.Is(err, context.Canceled):
		p.logger.Debug("stream aborted by client",
			slog.String("file_id", id),
			slog.Int64("bytes_sent", n),
		)
	case err != nil:
		p.logger.Warn("stream copy failed",
			slog.String("file_id", id),
			slog.Int64("bytes_sent", n),
			slog.Int64("bytes_expected", length),
			slog.String("error", err.Error()),
		)
	case n < length:
		p.logger.Warn("upstream ended early",
			slog.String("file_id", id),
			slog.Int64("bytes_sent", n),
			slog.Int64("bytes_expected", length),
		)
	default:
		p.logger.Debug("stream complete",
			slog.String("file_id", id),
			slog.Int64("bytes_sent", n),
		)
	}
}
