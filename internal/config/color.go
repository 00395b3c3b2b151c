package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/opd-ai/go-vellogd/internal/protocol"
)

// ParseColor parses a hex colour: #rgb, #rgba, #rrggbb or #rrggbbaa. The
// leading # is optional. Colours without alpha are opaque.
func ParseColor(s string) (protocol.Color, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	switch len(hex) {
	case 3, 4:
		// Expand short forms: "f0a" becomes "ff00aa".
		var b strings.Builder
		for _, r := range hex {
			b.WriteRune(r)
			b.WriteRune(r)
		}
		hex = b.String()
	case 6, 8:
	default:
		return protocol.Color{}, fmt.Errorf("invalid colour %q: expected #rgb, #rgba, #rrggbb or #rrggbbaa", s)
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return protocol.Color{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return protocol.Color{
		R: uint8(v >> 24),
		G: uint8(v >> 16),
		B: uint8(v >> 8),
		A: uint8(v),
	}, nil
}

// FormatColor is the inverse of ParseColor, always in #rrggbbaa form.
func FormatColor(c protocol.Color) string {
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}
