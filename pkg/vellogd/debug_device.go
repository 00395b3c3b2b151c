package vellogd

import (
	"fmt"
	"strings"
	"sync"

	"github.com/opd-ai/go-vellogd/internal/protocol"
)

// DebugDevice logs every callback instead of drawing. It reports a fixed
// canvas size and zero text metrics, and tracks the clip depth a host
// would expect from its Clip calls.
type DebugDevice struct {
	logger        Logger
	width, height float64

	mu     sync.Mutex
	clips  int
	hold   int
	calls  map[string]int
	nextID int
}

var _ Device = (*DebugDevice)(nil)

// NewDebugDevice returns a device for a width x height canvas. A nil
// logger logs to stderr at debug level.
func NewDebugDevice(width, height float64, logger Logger) *DebugDevice {
	if logger == nil {
		logger = DebugLogger()
	}
	return &DebugDevice{
		logger: logger,
		width:  width,
		height: height,
		calls:  make(map[string]int),
	}
}

// Calls returns how often the named callback was invoked.
func (d *DebugDevice) Calls(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[name]
}

// ClipDepth returns the number of clips pushed and not yet released.
func (d *DebugDevice) ClipDepth() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clips
}

func (d *DebugDevice) log(name string, args ...any) {
	d.mu.Lock()
	d.calls[name]++
	d.mu.Unlock()
	d.logger.Debug(name, args...)
}

// preview formats at most the first three values of s.
func preview[T any](s []T) string {
	if len(s) <= 3 {
		return fmt.Sprint(s)
	}
	parts := make([]string, 3)
	for i := range parts {
		parts[i] = fmt.Sprint(s[i])
	}
	return "[" + strings.Join(parts, " ") + " ...]"
}

func hexColor(v uint32) string {
	return protocol.ColorFromUint32(v).String()
}

func lineArgs(gc GC) []any {
	return []any{
		"col", hexColor(gc.Col), "lwd", gc.Lwd, "lty", gc.Lty,
		"lend", gc.Lend, "ljoin", gc.Ljoin, "lmitre", gc.Lmitre,
	}
}

func (d *DebugDevice) Activate() error   { d.log("activate"); return nil }
func (d *DebugDevice) Deactivate() error { d.log("deactivate"); return nil }
func (d *DebugDevice) Close() error      { d.log("close"); return nil }

func (d *DebugDevice) NewPage(gc GC) error {
	d.log("new_page", "fill", hexColor(gc.Fill))
	return nil
}

func (d *DebugDevice) Mode(mode int) error {
	d.log("mode", "mode", mode)
	return nil
}

func (d *DebugDevice) HoldFlush(level int) (int, error) {
	d.mu.Lock()
	d.hold = max(d.hold+level, 0)
	hold := d.hold
	d.mu.Unlock()
	d.log("holdflush", "level", level, "hold", hold)
	return hold, nil
}

func (d *DebugDevice) Size() (left, right, bottom, top float64, err error) {
	d.log("size")
	return 0, d.width, 0, d.height, nil
}

func (d *DebugDevice) Clip(from, to Point) error {
	d.mu.Lock()
	action := "push"
	if protocol.NormalizeRect(from, to).Covers(d.width, d.height) {
		action = "pop"
		d.clips = max(d.clips-1, 0)
	} else {
		d.clips++
	}
	depth := d.clips
	d.mu.Unlock()

	d.log("clip", "from", from, "to", to, "action", action, "depth", depth)
	return nil
}

func (d *DebugDevice) Circle(center Point, radius float64, gc GC) error {
	d.log("circle", append([]any{"center", center, "r", radius, "fill", hexColor(gc.Fill)}, lineArgs(gc)...)...)
	return nil
}

func (d *DebugDevice) Line(from, to Point, gc GC) error {
	d.log("line", append([]any{"from", from, "to", to}, lineArgs(gc)...)...)
	return nil
}

func (d *DebugDevice) Polyline(x, y []float64, _ GC) error {
	d.log("polyline", "x", preview(x), "y", preview(y))
	return nil
}

func (d *DebugDevice) Polygon(x, y []float64, _ GC) error {
	d.log("polygon", "x", preview(x), "y", preview(y))
	return nil
}

func (d *DebugDevice) Path(_, _ []float64, nper []int, winding bool, _ GC) error {
	d.log("path", "nper", nper, "winding", winding)
	return nil
}

func (d *DebugDevice) Rect(from, to Point, _ GC) error {
	d.log("rect", "from", from, "to", to)
	return nil
}

func (d *DebugDevice) Raster(_ []uint32, width, height int, pos, size Point, angle float64, interpolate bool, _ GC) error {
	d.log("raster", "pixels", fmt.Sprintf("%dx%d", width, height), "pos", pos, "size", size,
		"angle", angle, "interpolate", interpolate)
	return nil
}

func (d *DebugDevice) Text(pos Point, s string, angle, hadj float64, gc GC) error {
	d.log("text", "pos", pos, "text", s, "angle", angle, "hadj", hadj, "col", hexColor(gc.Col))
	return nil
}

func (d *DebugDevice) Glyphs(ids []uint32, _, _ []float64, family string, face int, size, _ float64, _ uint32) error {
	d.log("glyphs", "ids", preview(ids), "family", family, "face", face, "size", size)
	return nil
}

func (d *DebugDevice) TextWidth(s string, _ GC) (float64, error) {
	d.log("text_width", "text", s)
	return 0, nil
}

func (d *DebugDevice) CharMetric(r rune, gc GC) (Metric, error) {
	d.log("char_metric", "char", string(r), "fill", hexColor(gc.Fill))
	return Metric{}, nil
}

func (d *DebugDevice) SetPattern(g Gradient) (int, error) {
	d.mu.Lock()
	idx := d.nextID
	d.nextID++
	d.mu.Unlock()
	d.log("set_pattern", "kind", g.Kind, "stops", len(g.Stops), "index", idx)
	return idx, nil
}

func (d *DebugDevice) ReleasePattern(index int) error {
	d.log("release_pattern", "index", index)
	return nil
}

func (d *DebugDevice) BeginTile(height float64) error {
	d.log("begin_tile", "height", height)
	return nil
}

func (d *DebugDevice) EndTile(x, y, width, height float64, extend Extend) (int, error) {
	d.mu.Lock()
	idx := d.nextID
	d.nextID++
	d.mu.Unlock()
	d.log("end_tile", "x", x, "y", y, "width", width, "height", height, "extend", extend, "index", idx)
	return idx, nil
}

func (d *DebugDevice) SavePNG(filename string, width, height int) error {
	d.log("save_png", "filename", filename, "width", width, "height", height)
	return nil
}
