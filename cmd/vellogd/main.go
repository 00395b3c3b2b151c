// Package main provides the vellogd render server.
//
// A host starts vellogd with the address of its rendezvous listener as
// the last argument. Without one, vellogd listens on the configured
// transport address and prints it so hosts can connect.
package main

import (
	"context"
	"errors"
	"expvar"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opd-ai/go-vellogd/internal/config"
	"github.com/opd-ai/go-vellogd/internal/profiling"
	"github.com/opd-ai/go-vellogd/pkg/vellogd"
)

// Version is the current version of vellogd.
// This default value can be overridden at build time using:
//
//	go build -ldflags "-X main.Version=x.y.z"
var Version = "0.1.0-dev"

type flags struct {
	configPath string
	version    bool
	cpuProfile string
	memProfile string
	logLevel   string
	logFormat  string
	headless   bool
	watch      bool
	keep       bool
	debugAddr  string
	rendezvous string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func parseFlags(args []string, stderr io.Writer) (*flags, error) {
	f := &flags{}
	fs := flag.NewFlagSet("vellogd", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.configPath, "c", "", "Path to Lua configuration file")
	fs.BoolVar(&f.version, "v", false, "Print version and exit")
	fs.StringVar(&f.cpuProfile, "cpuprofile", "", "Write CPU profile to file")
	fs.StringVar(&f.memProfile, "memprofile", "", "Write memory profile to file")
	fs.StringVar(&f.logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
	fs.StringVar(&f.logFormat, "log-format", "", "Override log format (text, json)")
	fs.BoolVar(&f.headless, "headless", false, "Render without opening a window")
	fs.BoolVar(&f.watch, "watch", false, "Reload the configuration file when it changes")
	fs.BoolVar(&f.keep, "keep", false, "Keep the window open after the host disconnects")
	fs.StringVar(&f.debugAddr, "debug-addr", "", "Serve expvar metrics and health on this address")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	switch fs.NArg() {
	case 0:
	case 1:
		f.rendezvous = fs.Arg(0)
	default:
		return nil, fmt.Errorf("expected at most one rendezvous address, got %v", fs.Args())
	}
	return f, nil
}

func run(args []string, stdout, stderr io.Writer) int {
	f, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if f.version {
		fmt.Fprintf(stdout, "vellogd version %s\n", Version)
		return 0
	}

	profConfig := profiling.Config{
		CPUProfilePath: f.cpuProfile,
		MemProfilePath: f.memProfile,
	}
	profiler := profiling.New(profConfig)
	if profConfig.Enabled() {
		if err := profiler.Start(); err != nil {
			fmt.Fprintf(stderr, "Failed to start profiling: %v\n", err)
			return 1
		}
		defer func() {
			if err := profiler.Stop(); err != nil {
				fmt.Fprintf(stderr, "Warning: failed to stop profiling: %v\n", err)
			}
		}()
	}

	cfg, result, err := config.Load(f.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading configuration: %v\n", err)
		return 1
	}
	logger, err := newLogger(stderr, cfg.Log, f)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	for _, w := range result.Warnings {
		logger.Warn("configuration warning", "field", w.Field, "message", w.Message)
	}

	opts := vellogd.DefaultOptions()
	opts.Logger = logger
	opts.Headless = f.headless || cfg.Render.Headless
	opts.Rendezvous = f.rendezvous
	opts.KeepAfterDisconnect = f.keep
	opts.WatchConfig = f.watch && f.configPath != ""

	srv, err := vellogd.New(f.configPath, &opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error creating server: %v\n", err)
		return 1
	}
	srv.SetErrorHandler(func(err error) {
		logger.Error("server error", "error", err)
	})
	srv.SetEventHandler(func(e vellogd.Event) {
		if e.Type == vellogd.EventStarted && f.rendezvous == "" {
			// Hosts need the address; print it once listening.
			go announceAddress(srv, stdout)
		}
		logger.Info(e.Message, "event", e.Type.String())
	})

	if f.debugAddr != "" {
		stop, err := serveDebug(f.debugAddr, srv, logger)
		if err != nil {
			fmt.Fprintf(stderr, "Error starting debug server: %v\n", err)
			return 1
		}
		defer stop()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	go reloadOnHangup(ctx, srv, logger)

	// Run keeps the calling goroutine; the window toolkit needs it.
	if err := srv.Run(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// newLogger applies the command-line overrides to the log section.
func newLogger(w io.Writer, lc config.LogConfig, f *flags) (vellogd.Logger, error) {
	if f.logLevel != "" {
		lc.Level = f.logLevel
	}
	if f.logFormat != "" {
		lc.Format = f.logFormat
	}
	return vellogd.NewLogger(w, lc.Level, lc.Format)
}

func announceAddress(srv vellogd.Server, out io.Writer) {
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		st := srv.Status()
		if !st.Running {
			return
		}
		if st.Address != "" {
			fmt.Fprintln(out, st.Address)
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func reloadOnHangup(ctx context.Context, srv vellogd.Server, logger vellogd.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sigCh:
			logger.Info("received SIGHUP, reloading configuration")
			if err := srv.ReloadConfig(); err != nil {
				logger.Error("reload failed", "error", err)
			}
		}
	}
}

// serveDebug exposes /debug/vars and /healthz. The returned function
// shuts the listener down.
func serveDebug(addr string, srv vellogd.Server, logger vellogd.Logger) (func(), error) {
	srv.Metrics().RegisterExpvar()

	mux := http.NewServeMux()
	mux.Handle("/debug/vars", expvar.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		h := srv.Health()
		if h.IsUnhealthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		fmt.Fprintf(w, "%s\n", h.Status)
		for name, c := range h.Components {
			fmt.Fprintf(w, "%s: %s %s\n", name, c.Status, c.Message)
		}
	})

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	hs := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := hs.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("debug server stopped", "error", err)
		}
	}()
	logger.Info("debug server listening", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = hs.Shutdown(ctx)
	}, nil
}
