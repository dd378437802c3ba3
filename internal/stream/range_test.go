package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRange(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		size    int64
		want    Range
		wantErr error
	}{
		{name: "closed", header: "bytes=100-199", size: 1000, want: Range{100, 199}},
		{name: "open ended", header: "bytes=500-", size: 1000, want: Range{500, 999}},
		{name: "suffix", header: "bytes=-100", size: 1000, want: Range{900, 999}},
		{name: "suffix larger than file", header: "bytes=-5000", size: 1000, want: Range{0, 999}},
		{name: "end clamped", header: "bytes=900-5000", size: 1000, want: Range{900, 999}},
		{name: "single byte", header: "bytes=0-0", size: 1000, want: Range{0, 0}},
		{name: "last byte", header: "bytes=999-", size: 1000, want: Range{999, 999}},
		{name: "surrounding space", header: " bytes=1-2 ", size: 10, want: Range{1, 2}},

		{name: "wrong unit", header: "items=0-10", size: 1000, wantErr: ErrInvalidRange},
		{name: "multiple ranges", header: "bytes=0-10,20-30", size: 1000, wantErr: ErrInvalidRange},
		{name: "no dash", header: "bytes=100", size: 1000, wantErr: ErrInvalidRange},
		{name: "non numeric", header: "bytes=abc-def", size: 1000, wantErr: ErrInvalidRange},
		{name: "signed", header: "bytes=+1-5", size: 1000, wantErr: ErrInvalidRange},
		{name: "start after end", header: "bytes=200-100", size: 1000, wantErr: ErrInvalidRange},
		{name: "empty bounds", header: "bytes=-", size: 1000, wantErr: ErrInvalidRange},

		{name: "start at size", header: "bytes=1000-", size: 1000, wantErr: ErrUnsatisfiableRange},
		{name: "start past size", header: "bytes=2000-2100", size: 1000, wantErr: ErrUnsatisfiableRange},
		{name: "zero suffix", header: "bytes=-0", size: 1000, wantErr: ErrUnsatisfiableRange},
		{name: "empty file", header: "bytes=0-", size: 0, wantErr: ErrUnsatisfiableRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRange(tt.header, tt.size)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestRange_Headers(t *testing.T) {
	r := Range{Start: 100, End: 199}

	assert.Equal(t, int64(100), r.Length())
	assert.Equal(t, "bytes=100-199", r.Header())
	assert.Equal(t, "bytes 100-199/1000", r.ContentRange(1000))
}
