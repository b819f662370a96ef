package crawl

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// ComputeHash returns the hex xxhash of content.
func ComputeHash(content []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(content))
}

// ShortURL fits rawURL into width runes for progress lines and tables by
// eliding the middle, so the host and the last path segment stay visible.
func ShortURL(rawURL string, width int) string {
	const ellipsis = "..."
	r := []rune(rawURL)
	switch {
	case width <= 0:
		return ""
	case len(r) <= width:
		return rawURL
	case width <= len(ellipsis)+1:
		return string(r[:width])
	}
	keep := width - len(ellipsis)
	head := keep / 2
	return string(r[:head]) + ellipsis + string(r[len(r)-(keep-head):])
}

// sizeUnits are the display units above bytes.
var sizeUnits = [...]string{"KB", "MB", "GB"}

// FormatSize renders a body length in binary units.
func FormatSize(n int) string {
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}
	size := float64(n) / 1024
	unit := 0
	for size >= 1024 && unit < len(sizeUnits)-1 {
		size /= 1024
		unit++
	}
	return fmt.Sprintf("%.1f %s", size, sizeUnits[unit])
}
