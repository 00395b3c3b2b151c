package scene

import "github.com/opd-ai/go-vellogd/internal/protocol"

// Op identifies a recorded command.
type Op uint8

const (
	OpFill Op = iota
	OpStroke
	OpImage
	OpPushClip
	OpPopClip
)

func (o Op) String() string {
	switch o {
	case OpFill:
		return "fill"
	case OpStroke:
		return "stroke"
	case OpImage:
		return "image"
	case OpPushClip:
		return "push-clip"
	case OpPopClip:
		return "pop-clip"
	default:
		return "unknown"
	}
}

// PaintKind distinguishes paint sources.
type PaintKind uint8

const (
	PaintSolid PaintKind = iota
	PaintPattern
)

// Paint is a resolved brush. Pattern paints carry the transform that maps
// the pattern's logical coordinates to device space at the time of the draw.
type Paint struct {
	Kind      PaintKind
	Color     protocol.Color
	Pattern   *Pattern
	Transform Affine
}

// Image is a raster placed by a command transform mapping image pixel
// space (y-down, one unit per pixel) to device space.
type Image struct {
	Width, Height int
	// Pix is straight-alpha RGBA8, top row first, possibly wider than
	// Width by one padding column and taller by one padding row.
	Pix         []byte
	Stride      int
	Interpolate bool
	// Offset shifts sampling by this many pixels on both axes.
	Offset float64
}

// Command is one recorded drawing operation in device space.
type Command struct {
	Op        Op
	Path      protocol.Path
	Transform Affine
	Paint     Paint
	Rule      protocol.FillRule
	Stroke    protocol.StrokeParams
	Image     *Image
	// Clip is the device-space clip rectangle of an OpPushClip.
	Clip protocol.Rect
}

// Scene is an ordered list of commands plus the depth of open clip layers.
// It is not safe for concurrent use; Drawer serializes access.
type Scene struct {
	cmds  []Command
	depth int
}

// NewScene returns an empty scene.
func NewScene() *Scene {
	return &Scene{}
}

func (s *Scene) append(c Command) {
	switch c.Op {
	case OpPushClip:
		s.depth++
	case OpPopClip:
		if s.depth == 0 {
			return
		}
		s.depth--
	}
	s.cmds = append(s.cmds, c)
}

// Len returns the number of recorded commands.
func (s *Scene) Len() int {
	return len(s.cmds)
}

// Depth returns the number of open clip layers.
func (s *Scene) Depth() int {
	return s.depth
}

// Reset drops every command.
func (s *Scene) Reset() {
	s.cmds = s.cmds[:0]
	s.depth = 0
}

// Commands returns a copy of the command list with pops appended so that
// every clip layer is closed.
func (s *Scene) Commands() []Command {
	out := make([]Command, len(s.cmds), len(s.cmds)+s.depth)
	copy(out, s.cmds)
	for i := 0; i < s.depth; i++ {
		out = append(out, Command{Op: OpPopClip})
	}
	return out
}

// Clone returns a detached copy. Commands share immutable path and image
// data with the original.
func (s *Scene) Clone() *Scene {
	c := &Scene{cmds: make([]Command, len(s.cmds)), depth: s.depth}
	copy(c.cmds, s.cmds)
	return c
}
