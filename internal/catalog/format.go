package catalog

import (
	"math"
	"strconv"
)

var sizeUnits = []string{"Bytes", "KB", "MB", "GB", "TB"}

// FormatFileSize renders n bytes in the largest 1024-based unit not exceeding
// the value, with at most two decimals and trailing zeros trimmed:
// 0 -> "0 Bytes", 1536 -> "1.5 KB", 1073741824 -> "1 GB".
func FormatFileSize(n int64) string {
	if n <= 0 {
		return "0 Bytes"
	}

	unit := 0
	value := float64(n)

	for value >= 1024 && unit < len(sizeUnits)-1 {
		value /= 1024
		unit++
	}

	rounded := math.Round(value*100) / 100

	return strconv.FormatFloat(rounded, 'f', -1, 64) + " " + sizeUnits[unit]
}
