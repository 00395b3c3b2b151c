//go:build !noebiten

package vellogd

import (
	"github.com/opd-ai/go-vellogd/internal/render"
	"github.com/opd-ai/go-vellogd/internal/window"
)

// newToolkit returns the Ebiten toolkit, or the in-memory one in headless
// mode.
func newToolkit(opts window.Options, headless bool, logger Logger) window.Toolkit {
	if headless {
		return window.NewHeadlessToolkit()
	}
	g := render.NewGame(logger)
	g.Configure(opts)
	return g
}
