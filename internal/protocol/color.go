// Package protocol defines the closed Request/Response message set exchanged
// between a drawing host and the rendering server, the transports that carry
// it, and the connection bootstrap handshake.
package protocol

import (
	"encoding/binary"
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Color is a straight-alpha RGBA8 colour.
type Color struct {
	R, G, B, A uint8
}

// Common colours.
var (
	Transparent = Color{}
	Black       = Color{A: 255}
	White       = Color{R: 255, G: 255, B: 255, A: 255}
	// WhiteSmoke is the default base colour painted under every scene.
	WhiteSmoke = Color{R: 245, G: 245, B: 245, A: 255}
)

// ColorFromUint32 decodes a host colour. Hosts pack colours as the native
// byte sequence [r, g, b, a], so on little-endian machines red is the low byte.
func ColorFromUint32(v uint32) Color {
	var b [4]byte
	binary.NativeEndian.PutUint32(b[:], v)
	return Color{R: b[0], G: b[1], B: b[2], A: b[3]}
}

// Uint32 is the inverse of ColorFromUint32.
func (c Color) Uint32() uint32 {
	return binary.NativeEndian.Uint32([]byte{c.R, c.G, c.B, c.A})
}

// NRGBA converts c to the standard library colour type.
func (c Color) NRGBA() color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}
}

// IsTransparent reports whether the colour has zero alpha.
func (c Color) IsTransparent() bool {
	return c.A == 0
}

// String formats the colour as #rrggbbaa.
func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

// ParseHexColor parses "#rgb", "#rgba", "#rrggbb" or "#rrggbbaa".
// The leading '#' is optional. Omitted alpha means opaque.
func ParseHexColor(s string) (Color, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")

	var digits []uint8
	switch len(hex) {
	case 3, 4:
		for i := 0; i < len(hex); i++ {
			v, err := strconv.ParseUint(hex[i:i+1], 16, 8)
			if err != nil {
				return Color{}, fmt.Errorf("invalid hex colour %q: %w", s, err)
			}
			digits = append(digits, uint8(v)*17)
		}
	case 6, 8:
		for i := 0; i < len(hex); i += 2 {
			v, err := strconv.ParseUint(hex[i:i+2], 16, 8)
			if err != nil {
				return Color{}, fmt.Errorf("invalid hex colour %q: %w", s, err)
			}
			digits = append(digits, uint8(v))
		}
	default:
		return Color{}, fmt.Errorf("invalid hex colour %q: expected 3, 4, 6 or 8 digits", s)
	}

	c := Color{R: digits[0], G: digits[1], B: digits[2], A: 255}
	if len(digits) == 4 {
		c.A = digits[3]
	}
	return c, nil
}
