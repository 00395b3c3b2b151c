package vellogd

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDebounce is how long edits to the configuration file must
// settle before a reload.
const DefaultWatchDebounce = 500 * time.Millisecond

// reloadOps are the fsnotify operations that may leave new content at the
// watched path. Editors that save atomically produce Create or Rename.
const reloadOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename

// configWatcher calls reload once per burst of changes to one file.
type configWatcher struct {
	fsw      *fsnotify.Watcher
	target   string
	debounce time.Duration
	reload   func() error
	report   func(error)

	once     sync.Once
	stopOnce sync.Once
	quit     chan struct{}
	done     chan struct{}
}

// newConfigWatcher watches the parent directory of path so the file can be
// replaced rather than rewritten. Nil callbacks are ignored.
func newConfigWatcher(path string, debounce time.Duration, reload func() error, report func(error)) (*configWatcher, error) {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(target)); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	if reload == nil {
		reload = func() error { return nil }
	}
	if report == nil {
		report = func(error) {}
	}
	return &configWatcher{
		fsw:      fsw,
		target:   target,
		debounce: debounce,
		reload:   reload,
		report:   report,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start begins delivering reloads. Only the first call has an effect.
func (w *configWatcher) Start() {
	w.once.Do(func() { go w.loop() })
}

// Stop ends the watch and waits for the loop to exit. It is safe to call
// more than once, and before Start.
func (w *configWatcher) Stop() {
	started := true
	w.once.Do(func() {
		started = false
		close(w.done)
		_ = w.fsw.Close()
	})
	w.stopOnce.Do(func() { close(w.quit) })
	if started {
		<-w.done
	}
}

func (w *configWatcher) matches(ev fsnotify.Event) bool {
	if !ev.Op.Has(reloadOps) {
		return false
	}
	name, err := filepath.Abs(ev.Name)
	return err == nil && name == w.target
}

func (w *configWatcher) loop() {
	defer close(w.done)
	defer w.fsw.Close()

	// A stopped timer with a drained channel stands for "nothing pending".
	settle := time.NewTimer(time.Hour)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case <-w.quit:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.matches(ev) {
				settle.Reset(w.debounce)
			}
		case <-settle.C:
			if err := w.reload(); err != nil {
				w.report(err)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.report(err)
		}
	}
}
