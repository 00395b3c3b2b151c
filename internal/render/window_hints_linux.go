//go:build linux && !noebiten

package render

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
)

// ErrNoDisplay is returned when no X11 display is reachable.
var ErrNoDisplay = errors.New("no X11 display")

// ErrWindowNotFound is returned when the toolkit window is not mapped.
var ErrWindowNotFound = errors.New("window not found")

// _NET_WM_STATE client message actions.
const (
	netWMStateAdd     = 1
	sourceApplication = 1
)

// Hints are EWMH window-manager hints.
type Hints struct {
	SkipTaskbar bool
	SkipPager   bool
	Above       bool
}

func (h Hints) atoms() []string {
	var names []string
	if h.SkipTaskbar {
		names = append(names, "_NET_WM_STATE_SKIP_TASKBAR")
	}
	if h.SkipPager {
		names = append(names, "_NET_WM_STATE_SKIP_PAGER")
	}
	if h.Above {
		names = append(names, "_NET_WM_STATE_ABOVE")
	}
	return names
}

// x11 holds a lazily opened X connection and an atom cache.
type x11 struct {
	mu    sync.Mutex
	conn  *xgb.Conn
	atoms map[string]xproto.Atom
}

var hintConn = &x11{}

// ApplyWindowHints asks the window manager to add h to the toolkit
// window's state. A window manager must be running for the hints to stick.
func ApplyWindowHints(h Hints) error {
	names := h.atoms()
	if len(names) == 0 {
		return nil
	}
	return hintConn.apply(X11ClassName, names)
}

// CloseWindowHints releases the X connection.
func CloseWindowHints() {
	hintConn.close()
}

func (x *x11) apply(class string, names []string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.open(); err != nil {
		return err
	}
	root := xproto.Setup(x.conn).DefaultScreen(x.conn).Root
	win, err := x.findByClass(root, class)
	if err != nil {
		return err
	}
	state, err := x.atom("_NET_WM_STATE")
	if err != nil {
		return err
	}

	// Each message carries at most two properties.
	for i := 0; i < len(names); i += 2 {
		props := []uint32{0, 0}
		for j := 0; j < 2 && i+j < len(names); j++ {
			a, err := x.atom(names[i+j])
			if err != nil {
				return err
			}
			props[j] = uint32(a)
		}
		ev := xproto.ClientMessageEvent{
			Format: 32,
			Window: win,
			Type:   state,
			Data: xproto.ClientMessageDataUnionData32New([]uint32{
				netWMStateAdd, props[0], props[1], sourceApplication, 0,
			}),
		}
		mask := uint32(xproto.EventMaskSubstructureRedirect | xproto.EventMaskSubstructureNotify)
		if err := xproto.SendEventChecked(x.conn, false, root, mask, string(ev.Bytes())).Check(); err != nil {
			return fmt.Errorf("send _NET_WM_STATE: %w", err)
		}
	}
	return nil
}

func (x *x11) open() error {
	if x.conn != nil {
		return nil
	}
	if os.Getenv("DISPLAY") == "" {
		return ErrNoDisplay
	}
	conn, err := xgb.NewConn()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoDisplay, err)
	}
	x.conn = conn
	x.atoms = make(map[string]xproto.Atom)
	return nil
}

func (x *x11) close() {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.conn != nil {
		x.conn.Close()
		x.conn = nil
	}
	x.atoms = nil
}

func (x *x11) atom(name string) (xproto.Atom, error) {
	if a, ok := x.atoms[name]; ok {
		return a, nil
	}
	reply, err := xproto.InternAtom(x.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, fmt.Errorf("intern %s: %w", name, err)
	}
	x.atoms[name] = reply.Atom
	return reply.Atom, nil
}

// findByClass walks the window manager's client list for a window whose
// WM_CLASS names class.
func (x *x11) findByClass(root xproto.Window, class string) (xproto.Window, error) {
	list, err := x.atom("_NET_CLIENT_LIST")
	if err != nil {
		return 0, err
	}
	reply, err := xproto.GetProperty(x.conn, false, root, list, xproto.AtomWindow, 0, 1<<16).Reply()
	if err != nil {
		return 0, fmt.Errorf("read client list: %w", err)
	}
	for i := 0; i+4 <= len(reply.Value); i += 4 {
		w := xproto.Window(xgb.Get32(reply.Value[i:]))
		if x.hasClass(w, class) {
			return w, nil
		}
	}
	return 0, ErrWindowNotFound
}

func (x *x11) hasClass(w xproto.Window, class string) bool {
	reply, err := xproto.GetProperty(x.conn, false, w, xproto.AtomWmClass, xproto.AtomString, 0, 256).Reply()
	if err != nil || reply == nil {
		return false
	}
	// WM_CLASS is "instance\x00class\x00".
	for _, part := range bytes.Split(reply.Value, []byte{0}) {
		if string(part) == class {
			return true
		}
	}
	return false
}

// Compositing reports whether a compositing manager owns the screen's
// _NET_WM_CM selection. Without one a transparent window is drawn opaque.
func Compositing() (bool, error) {
	return hintConn.compositing()
}

func (x *x11) compositing() (bool, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.open(); err != nil {
		return false, err
	}
	screen := x.conn.DefaultScreen
	sel, err := x.atom(fmt.Sprintf("_NET_WM_CM_S%d", screen))
	if err != nil {
		return false, err
	}
	owner, err := xproto.GetSelectionOwner(x.conn, sel).Reply()
	if err != nil {
		return false, fmt.Errorf("read selection owner: %w", err)
	}
	return owner.Owner != xproto.WindowNone, nil
}
