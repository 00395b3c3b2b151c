//go:build !linux && !noebiten

package render

// Hints are EWMH window-manager hints. They only apply on X11.
type Hints struct {
	SkipTaskbar bool
	SkipPager   bool
	Above       bool
}

// ApplyWindowHints is a no-op outside Linux.
func ApplyWindowHints(Hints) error { return nil }

// CloseWindowHints is a no-op outside Linux.
func CloseWindowHints() {}

// Compositing reports true: the other supported platforms always composite.
func Compositing() (bool, error) { return true, nil }
