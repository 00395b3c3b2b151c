package protocol

import "encoding/binary"

// Line type sentinels used by hosts.
const (
	LineTypeBlank int32 = -1
	LineTypeSolid int32 = 0
)

// GC is the host's graphics context as handed to every drawing callback.
// Colours are packed host colours (see ColorFromUint32).
type GC struct {
	Col        uint32
	Fill       uint32
	Lwd        float64
	Lty        int32
	Lend       int
	Ljoin      int
	Lmitre     float64
	Cex        float64
	Ps         float64
	LineHeight float64
	FontFace   int
	FontFamily string
}

// FontSize returns the effective point size.
func (gc GC) FontSize() float64 {
	return gc.Cex * gc.Ps
}

// StrokeParams derives stroke parameters from the context.
// It returns nil when the context strokes nothing.
func (gc GC) StrokeParams() *StrokeParams {
	if gc.Col == 0 || gc.Lty == LineTypeBlank {
		return nil
	}

	width := gc.Lwd
	return &StrokeParams{
		Color:      ColorFromUint32(gc.Col),
		Width:      width,
		Join:       joinFromCode(gc.Ljoin),
		Cap:        capFromCode(gc.Lend),
		MiterLimit: gc.Lmitre,
		Dash:       DashFromLineType(gc.Lty, width),
	}
}

// FillParams derives fill parameters from the context.
// It returns nil when the fill colour is zero.
func (gc GC) FillParams() *FillParams {
	if gc.Fill == 0 {
		return nil
	}
	return &FillParams{Brush: SolidBrush(ColorFromUint32(gc.Fill)), Rule: NonZero}
}

// DashFromLineType expands a packed line type into on/off run lengths.
// Each byte holds a dash length in its low nibble and a gap in its high
// nibble; both are scaled by width. Expansion stops at the first zero dash.
func DashFromLineType(lty int32, width float64) []float64 {
	if lty == LineTypeBlank || lty == LineTypeSolid {
		return nil
	}

	var b [4]byte
	binary.NativeEndian.PutUint32(b[:], uint32(lty))

	var dash []float64
	for _, v := range b {
		on := v & 0x0f
		off := (v & 0xf0) >> 4
		if on == 0 {
			break
		}
		dash = append(dash, float64(on)*width, float64(off)*width)
	}
	return dash
}

func joinFromCode(code int) Join {
	switch code {
	case 2:
		return JoinMiter
	case 3:
		return JoinBevel
	default:
		return JoinRound
	}
}

func capFromCode(code int) Cap {
	switch code {
	case 2:
		return CapButt
	case 3:
		return CapSquare
	default:
		return CapRound
	}
}
