package vellogd

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opd-ai/go-vellogd/internal/config"
	"github.com/opd-ai/go-vellogd/internal/headless"
	"github.com/opd-ai/go-vellogd/internal/profiling"
	"github.com/opd-ai/go-vellogd/internal/protocol"
	"github.com/opd-ai/go-vellogd/internal/server"
	"github.com/opd-ai/go-vellogd/internal/window"
)

// ErrAlreadyRunning is returned by Start and Run on a running server.
var ErrAlreadyRunning = errors.New("server already running")

// ErrNotRunning is returned by ReloadConfig on a stopped server.
var ErrNotRunning = errors.New("server not running")

// serverImpl is the Server implementation.
type serverImpl struct {
	opts         Options
	configSource string
	configPath   string
	configLoader func() (*config.Config, error)

	metrics *Metrics
	errors  *ErrorTracker
	logger  Logger

	running  atomic.Bool
	requests atomic.Uint64
	frames   atomic.Uint64

	mu           sync.RWMutex
	cfg          *config.Config
	startTime    time.Time
	session      SessionID
	log          Logger
	rt           *server.Runtime
	address      string
	peer         string
	disconnected bool
	lastErr      error
	memory       *profiling.MemoryWatch
	watcher      *configWatcher
	recorder     *frameRecorder
	cancel       context.CancelFunc
	done         chan struct{}

	errorHandler ErrorHandler
	eventHandler EventHandler
}

var _ Server = (*serverImpl)(nil)

func newServer(cfg *config.Config, opts *Options, source string, loader func() (*config.Config, error)) *serverImpl {
	o := DefaultOptions()
	if opts != nil {
		o = *opts
	}
	if o.Logger == nil {
		o.Logger = NopLogger()
	}
	if o.Metrics == nil {
		o.Metrics = DefaultMetrics()
	}
	if o.Errors == nil {
		o.Errors = NewErrorTracker(DefaultErrorTrackerConfig())
	}
	return &serverImpl{
		opts:         o,
		cfg:          cfg,
		configSource: source,
		configLoader: loader,
		metrics:      o.Metrics,
		errors:       o.Errors,
		logger:       o.Logger,
		log:          o.Logger,
	}
}

// effective applies the option overrides to cfg.
func (s *serverImpl) effective(cfg config.Config) config.Config {
	if s.opts.WindowTitle != "" {
		cfg.Window.Title = s.opts.WindowTitle
	}
	if s.opts.RefreshInterval > 0 {
		cfg.Render.RefreshInterval = s.opts.RefreshInterval
	}
	if s.opts.Headless {
		cfg.Render.Headless = true
	}
	return cfg
}

func (s *serverImpl) Start() error {
	ctx, err := s.begin(context.Background())
	if err != nil {
		return err
	}
	go func() { _ = s.serve(ctx) }()
	return nil
}

func (s *serverImpl) Run(ctx context.Context) error {
	runCtx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	return s.serve(runCtx)
}

// begin builds the runtime and marks the server running. Exactly one
// serve call must follow a successful begin.
func (s *serverImpl) begin(parent context.Context) (context.Context, error) {
	s.mu.Lock()
	if s.running.Load() {
		s.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	if s.cfg == nil {
		s.mu.Unlock()
		return nil, errors.New("configuration is nil")
	}

	s.session = NewSessionID()
	ctx, cancel := context.WithCancel(WithSession(parent, s.session))
	s.log = NewSessionLogger(ctx, s.logger)
	cfg := s.effective(*s.cfg)

	winOpts := window.Options{
		Title:       cfg.Window.Title,
		Width:       cfg.Window.Width,
		Height:      cfg.Window.Height,
		SkipTaskbar: cfg.Window.SkipTaskbar,
		SkipPager:   cfg.Window.SkipPager,
		AlwaysOnTop: cfg.Window.AlwaysOnTop,
		Transparent: cfg.Window.Transparent,
	}
	s.rt = server.NewRuntime(server.Options{
		Window:    winOpts,
		Toolkit:   newToolkit(winOpts, cfg.Render.Headless, s.log),
		Interval:  cfg.Render.RefreshInterval,
		QueueSize: cfg.Transport.QueueSize,
		Logger:    s.log,
	})
	s.rt.Drawer.SetBaseColor(cfg.Render.BaseColor)

	s.recorder = nil
	if cfg.Record.Enabled() {
		s.recorder = newFrameRecorder(cfg.Record, s.metrics, s.notifyError)
		s.rt.Window.OnPresent(s.recorder.add)
	}

	mw := s.opts.MemoryWatch
	wc := profiling.DefaultWatchConfig()
	if mw.Interval > 0 {
		wc.Interval = mw.Interval
	}
	if mw.Window > 0 {
		wc.Window = mw.Window
	}
	if mw.MaxBytesPerSecond > 0 {
		wc.MaxBytesPerSecond = mw.MaxBytesPerSecond
	}
	if mw.MaxGoroutineGrowth > 0 {
		wc.MaxGoroutineGrowth = mw.MaxGoroutineGrowth
	}
	s.memory = profiling.NewMemoryWatch(wc)
	s.memory.Start()

	s.watcher = nil
	if s.opts.WatchConfig && s.configPath != "" {
		w, err := newConfigWatcher(s.configPath, s.opts.WatchDebounce, s.ReloadConfig, s.notifyError)
		if err != nil {
			s.log.Warn("config watch disabled", "path", s.configPath, "error", err)
		} else {
			s.watcher = w
			w.Start()
		}
	}

	s.address, s.peer, s.disconnected, s.lastErr = "", "", false, nil
	s.requests.Store(0)
	s.frames.Store(0)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.startTime = time.Now()
	s.running.Store(true)
	s.mu.Unlock()

	s.metrics.IncrementStarts()
	s.metrics.SetRunning(true)
	s.log.Info("server started", "config", s.configSource, "headless", cfg.Render.Headless)
	s.emitEvent(EventStarted, "Server started")
	return ctx, nil
}

// serve connects the host and runs the event loop until the run ends.
func (s *serverImpl) serve(ctx context.Context) error {
	defer s.finish()

	s.mu.RLock()
	cfg := s.effective(*s.cfg)
	rt, log := s.rt, s.log
	s.mu.RUnlock()

	l, err := s.acquire(ctx, &cfg, log)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		s.notifyError(fmt.Errorf("connect host: %w", err))
		return err
	}
	defer l.release()

	s.mu.Lock()
	s.peer = l.peer
	s.mu.Unlock()
	s.metrics.IncrementConnections()
	log.Info("host connected", "peer", l.peer)
	s.emitEvent(EventConnected, "Host connected: "+l.peer)

	ch := &watchedChannel{ServerChannel: l.ch, onDisconnect: func() {
		if ctx.Err() != nil {
			return
		}
		s.mu.Lock()
		s.disconnected = true
		s.mu.Unlock()
		s.emitEvent(EventDisconnected, "Host disconnected")
	}}
	srv := server.New(rt, log, &observer{Metrics: s.metrics, s: s})
	srv.ExitOnDisconnect = !s.opts.KeepAfterDisconnect
	err = srv.Serve(ctx, ch)
	if err != nil {
		s.notifyError(fmt.Errorf("serve: %w", err))
	}
	return err
}

func (s *serverImpl) acquire(ctx context.Context, cfg *config.Config, log Logger) (*link, error) {
	if s.opts.Accept != nil {
		ch, err := s.opts.Accept(ctx)
		if err != nil {
			return nil, err
		}
		return &link{ch: ch, peer: "in-process", release: func() {}}, nil
	}
	return connect(ctx, cfg, s.opts.Rendezvous, log, func(addr string) {
		s.mu.Lock()
		s.address = addr
		s.mu.Unlock()
	})
}

// finish releases the run's resources. It is the only place that clears
// the running flag.
func (s *serverImpl) finish() {
	s.mu.Lock()
	rt, rec, mem, w := s.rt, s.recorder, s.memory, s.watcher
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	if w != nil {
		w.Stop()
	}
	if err := rt.Close(); err != nil {
		s.log.Warn("release runtime", "error", err)
	}
	if rec != nil {
		if err := rec.close(); err != nil {
			s.notifyError(err)
		}
	}
	mem.Stop()

	s.running.Store(false)
	s.metrics.SetRunning(false)
	s.log.Info("server stopped")
	s.emitEvent(EventStopped, "Server stopped")
	close(done)
}

func (s *serverImpl) Stop() error {
	if !s.running.Load() {
		return nil
	}
	s.mu.RLock()
	cancel, done := s.cancel, s.done
	s.mu.RUnlock()
	if cancel == nil {
		return nil
	}
	cancel()

	timeout := s.opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	select {
	case <-done:
		s.metrics.IncrementStops()
		return nil
	case <-time.After(timeout):
		err := fmt.Errorf("shutdown timeout after %v: server did not stop", timeout)
		s.notifyError(err)
		return err
	}
}

func (s *serverImpl) Restart() error {
	if err := s.Stop(); err != nil {
		err = fmt.Errorf("stop failed: %w", err)
		s.notifyError(err)
		return err
	}
	cfg, err := s.configLoader()
	if err != nil {
		err = fmt.Errorf("config reload failed: %w", err)
		s.notifyError(err)
		return err
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	s.emitEvent(EventConfigReloaded, "Configuration reloaded")

	if err := s.Start(); err != nil {
		err = fmt.Errorf("start failed: %w", err)
		s.notifyError(err)
		return err
	}
	s.metrics.IncrementRestarts()
	s.emitEvent(EventRestarted, "Server restarted")
	return nil
}

func (s *serverImpl) ReloadConfig() error {
	if !s.running.Load() {
		return ErrNotRunning
	}
	newCfg, err := s.configLoader()
	if err != nil {
		err = fmt.Errorf("config reload failed: %w", err)
		s.notifyError(err)
		return err
	}

	s.mu.Lock()
	old := s.effective(*s.cfg)
	s.cfg = newCfg
	cur := s.effective(*newCfg)
	rt, log := s.rt, s.log
	s.mu.Unlock()

	applyConfig(rt, &old, &cur, log)
	s.metrics.IncrementConfigReloads()
	s.emitEvent(EventConfigReloaded, "Configuration reloaded in-place")
	return nil
}

// applyConfig changes the settings that can take effect without a
// restart. Everything else is picked up by the next Restart.
func applyConfig(rt *server.Runtime, old, cur *config.Config, log Logger) {
	if cur.Window.Title != old.Window.Title {
		rt.Window.SetTitle(cur.Window.Title)
	}
	if cur.Render.BaseColor != old.Render.BaseColor {
		rt.Drawer.SetBaseColor(cur.Render.BaseColor)
	}
	if cur.Render.RefreshInterval != old.Render.RefreshInterval {
		rt.Scheduler.SetInterval(cur.Render.RefreshInterval)
	}
	if cur.Window.Width != old.Window.Width || cur.Window.Height != old.Window.Height ||
		cur.Transport != old.Transport || cur.SSH != old.SSH || cur.Record != old.Record {
		log.Info("configuration changes need a restart to take effect")
	}
}

func (s *serverImpl) IsRunning() bool {
	return s.running.Load()
}

func (s *serverImpl) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		Running:      s.running.Load(),
		StartTime:    s.startTime,
		Session:      s.session,
		Address:      s.address,
		Peer:         s.peer,
		Requests:     s.requests.Load(),
		Frames:       s.frames.Load(),
		LastError:    s.lastErr,
		ConfigSource: s.configSource,
	}
	if s.rt != nil {
		st.Window = s.rt.Window.State().String()
	}
	return st
}

func (s *serverImpl) SetErrorHandler(handler ErrorHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorHandler = handler
}

func (s *serverImpl) SetEventHandler(handler EventHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventHandler = handler
}

func (s *serverImpl) Metrics() *Metrics {
	return s.metrics
}

func (s *serverImpl) Errors() *ErrorTracker {
	return s.errors
}

// recordError stores err as the last error and tracks it. It does not
// count it in the metrics.
func (s *serverImpl) recordError(err error) {
	s.mu.Lock()
	s.lastErr = err
	handler := s.errorHandler
	log := s.log
	s.mu.Unlock()

	s.errors.Record(Categorize(err))
	if handler != nil {
		go func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error("error handler panicked", "panic", r, "original_error", err)
				}
			}()
			handler(err)
		}()
	}
	s.emitEvent(EventError, err.Error())
}

// notifyError records a runtime error raised outside the event loop.
func (s *serverImpl) notifyError(err error) {
	s.metrics.IncrementErrors()
	s.recordError(err)
}

func (s *serverImpl) emitEvent(eventType EventType, message string) {
	s.metrics.IncrementEventsEmitted()

	s.mu.RLock()
	handler := s.eventHandler
	s.mu.RUnlock()
	if handler == nil {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.mu.RLock()
				errHandler := s.errorHandler
				s.mu.RUnlock()
				if errHandler != nil {
					errHandler(fmt.Errorf("panic in event handler: %v", r))
				}
			}
		}()
		handler(Event{Type: eventType, Timestamp: time.Now(), Message: message})
	}()
}

// watchedChannel reports the first disconnect seen by Recv.
type watchedChannel struct {
	ServerChannel
	once         sync.Once
	onDisconnect func()
}

func (c *watchedChannel) Recv() (Request, error) {
	r, err := c.ServerChannel.Recv()
	if protocol.IsDisconnected(err) {
		c.once.Do(c.onDisconnect)
	}
	return r, err
}

// observer receives event loop notifications.
type observer struct {
	*Metrics
	s *serverImpl
}

func (o *observer) RequestHandled(kind protocol.Kind, d time.Duration) {
	o.Metrics.RequestHandled(kind, d)
	o.s.requests.Add(1)
}

func (o *observer) FramePresented(d time.Duration) {
	o.Metrics.FramePresented(d)
	o.s.frames.Add(1)
}

func (o *observer) Failure(err error) {
	o.Metrics.Failure(err)
	o.s.recordError(err)
}

var _ server.Observer = (*observer)(nil)

// frameRecorder opens the recording on the first presented frame, so the
// video takes the size of the materialized window.
type frameRecorder struct {
	cfg     config.RecordConfig
	metrics *Metrics
	onError func(error)

	mu     sync.Mutex
	rec    *headless.Recorder
	failed bool
}

func newFrameRecorder(cfg config.RecordConfig, m *Metrics, onError func(error)) *frameRecorder {
	return &frameRecorder{cfg: cfg, metrics: m, onError: onError}
}

func (r *frameRecorder) add(frame *image.RGBA) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failed {
		return
	}
	if r.rec == nil {
		rec, err := headless.NewRecorder(r.cfg.Path, frame.Rect.Dx(), frame.Rect.Dy(), r.cfg.FPS)
		if err != nil {
			r.failed = true
			r.onError(err)
			return
		}
		r.rec = rec
	}
	before, _ := r.rec.Stats()
	if err := r.rec.AddFrame(frame); err != nil {
		r.failed = true
		r.onError(err)
		return
	}
	if after, _ := r.rec.Stats(); after > before {
		r.metrics.IncrementRecorded()
	}
}

func (r *frameRecorder) close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rec == nil {
		return nil
	}
	return r.rec.Close()
}
