package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/opd-ai/go-vellogd/internal/config"
	"github.com/opd-ai/go-vellogd/internal/protocol"
	"github.com/opd-ai/go-vellogd/pkg/vellogd"
)

func TestVersion(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
	var out bytes.Buffer
	if code := run([]string{"-v"}, &out, io.Discard); code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(out.String(), Version) {
		t.Errorf("output %q lacks version", out.String())
	}
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		check   func(*flags) bool
		wantErr bool
	}{
		{"defaults", nil, func(f *flags) bool { return f.rendezvous == "" && !f.headless }, false},
		{"rendezvous", []string{"-headless", "unix:/tmp/host.sock"}, func(f *flags) bool {
			return f.headless && f.rendezvous == "unix:/tmp/host.sock"
		}, false},
		{"log overrides", []string{"-log-level", "debug", "-log-format", "json"}, func(f *flags) bool {
			return f.logLevel == "debug" && f.logFormat == "json"
		}, false},
		{"too many args", []string{"a", "b"}, nil, true},
		{"unknown flag", []string{"-bogus"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := parseFlags(tt.args, io.Discard)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && !tt.check(f) {
				t.Errorf("unexpected flags %+v", f)
			}
		})
	}
}

func TestNewLoggerOverrides(t *testing.T) {
	lc := config.LogConfig{Level: "info", Format: "text"}
	if _, err := newLogger(io.Discard, lc, &flags{logLevel: "debug", logFormat: "json"}); err != nil {
		t.Errorf("valid overrides: %v", err)
	}
	if _, err := newLogger(io.Discard, lc, &flags{logLevel: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestRunConfigErrors(t *testing.T) {
	dir := t.TempDir()
	broken := filepath.Join(dir, "broken.lua")
	if err := os.WriteFile(broken, []byte("vellogd.config = {"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"missing file", []string{"-c", filepath.Join(dir, "missing.lua")}, 1},
		{"broken file", []string{"-c", broken}, 1},
		{"bad log level", []string{"-log-level", "loud"}, 1},
		{"bad usage", []string{"a", "b"}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer
			if got := run(tt.args, io.Discard, &stderr); got != tt.want {
				t.Errorf("exit code = %d, want %d (stderr %q)", got, tt.want, stderr.String())
			}
		})
	}
}

func TestRunServesRendezvousHost(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rv, err := protocol.NewRendezvous(protocol.NetworkTCP)
	if err != nil {
		t.Fatal(err)
	}
	defer rv.Close()

	done := make(chan int, 1)
	go func() {
		done <- run([]string{"-headless", "-log-level", "error", rv.Address()}, io.Discard, io.Discard)
	}()

	client, err := rv.Accept(ctx, nil)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	dev := vellogd.NewRemoteDevice(client, nil)

	_, w, _, h, err := dev.Size()
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if w != config.DefaultWidth || h != config.DefaultHeight {
		t.Errorf("Size = %vx%v", w, h)
	}
	if err := dev.Disconnect(); err != nil {
		t.Fatal(err)
	}

	select {
	case code := <-done:
		if code != 0 {
			t.Errorf("exit code = %d", code)
		}
	case <-ctx.Done():
		t.Fatal("server kept running after the host disconnected")
	}
}
