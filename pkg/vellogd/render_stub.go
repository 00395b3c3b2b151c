//go:build noebiten

package vellogd

import "github.com/opd-ai/go-vellogd/internal/window"

// newToolkit always renders headless in noebiten builds.
func newToolkit(_ window.Options, _ bool, logger Logger) window.Toolkit {
	logger.Debug("built without a windowing toolkit, rendering headless")
	return window.NewHeadlessToolkit()
}
