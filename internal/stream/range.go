// Package stream proxies video bytes from Drive to the browser, honouring
// single HTTP byte ranges so players can seek.
package stream

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Range errors. Both map to 416 Range Not Satisfiable.
var (
	// ErrInvalidRange means the Range header is malformed or unsupported
	// (wrong unit, multiple ranges, non-numeric bounds, start after end).
	ErrInvalidRange = errors.New("stream: invalid range")
	// ErrUnsatisfiableRange means the range starts at or past the end of file.
	ErrUnsatisfiableRange = errors.New("stream: range not satisfiable")
)

const rangeUnit = "bytes="

// Range is an inclusive byte range within a file.
type Range struct {
	Start int64
	End   int64
}

// Length is the number of bytes the range covers.
func (r Range) Length() int64 {
	return r.End - r.Start + 1
}

// Header renders the range as a request Range header value.
func (r Range) Header() string {
	return fmt.Sprintf("bytes=%d-%d", r.Start, r.End)
}

// ContentRange renders the Content-Range response header value.
func (r Range) ContentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, size)
}

// RangeError carries the file size so a 416 response can advertise it.
type RangeError struct {
	Size int64
	Err  error
}

func (e *RangeError) Error() string {
	return e.Err.Error()
}

func (e *RangeError) Unwrap() error {
	return e.Err
}

// ParseRange parses a single-range header against a file of size bytes.
// It accepts "bytes=a-b", "bytes=a-" and the suffix form "bytes=-n". An end
// past EOF is clamped to size-1.
func ParseRange(header string, size int64) (*Range, error) {
	rangeSet, ok := strings.CutPrefix(strings.TrimSpace(header), rangeUnit)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported unit in %q", ErrInvalidRange, header)
	}

	if strings.Contains(rangeSet, ",") {
		return nil, fmt.Errorf("%w: multiple ranges in %q", ErrInvalidRange, header)
	}

	startStr, endStr, ok := strings.Cut(strings.TrimSpace(rangeSet), "-")
	if !ok {
		return nil, fmt.Errorf("%w: missing '-' in %q", ErrInvalidRange, header)
	}

	if startStr == "" {
		return parseSuffix(endStr, size, header)
	}

	start, err := parseBound(startStr)
	if err != nil {
		return nil, fmt.Errorf("%w: bad start in %q", ErrInvalidRange, header)
	}

	end := size - 1

	if endStr != "" {
		end, err = parseBound(endStr)
		if err != nil {
			return nil, fmt.Errorf("%w: bad end in %q", ErrInvalidRange, header)
		}

		if start > end {
			return nil, fmt.Errorf("%w: start after end in %q", ErrInvalidRange, header)
		}
	}

	if start >= size {
		return nil, fmt.Errorf("%w: start %d, size %d", ErrUnsatisfiableRange, start, size)
	}

	return &Range{Start: start, End: min(end, size-1)}, nil
}

// parseSuffix handles "bytes=-n": the last n bytes of the file.
func parseSuffix(nStr string, size int64, header string) (*Range, error) {
	n, err := parseBound(nStr)
	if err != nil {
		return nil, fmt.Errorf("%w: bad suffix length in %q", ErrInvalidRange, header)
	}

	if n == 0 || size == 0 {
		return nil, fmt.Errorf("%w: suffix %d, size %d", ErrUnsatisfiableRange, n, size)
	}

	return &Range{Start: max(size-n, 0), End: size - 1}, nil
}

// parseBound accepts only plain decimal digits: no sign, no spaces.
func parseBound(s string) (int64, error) {
	if s == "" {
		return 0, errors.New("empty")
	}

	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("non-digit %q", c)
		}
	}

	return strconv.ParseInt(s, 10, 64)
}
