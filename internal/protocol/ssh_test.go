package protocol

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestBuildSSHConfig(t *testing.T) {
	dir := t.TempDir()
	knownHosts := filepath.Join(dir, "known_hosts")
	if err := os.WriteFile(knownHosts, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name        string
		cfg         SSHConfig
		expectError bool
	}{
		{
			name: "password with known hosts",
			cfg:  SSHConfig{User: "u", Password: "secret", KnownHostsPath: knownHosts},
		},
		{
			name: "password with insecure host key",
			cfg:  SSHConfig{User: "u", Password: "secret", InsecureIgnoreHostKey: true},
		},
		{
			name:        "no auth method",
			cfg:         SSHConfig{User: "u", InsecureIgnoreHostKey: true},
			expectError: true,
		},
		{
			name:        "no host key policy",
			cfg:         SSHConfig{User: "u", Password: "secret"},
			expectError: true,
		},
		{
			name:        "missing key file",
			cfg:         SSHConfig{User: "u", PrivateKeyPath: filepath.Join(dir, "missing"), InsecureIgnoreHostKey: true},
			expectError: true,
		},
		{
			name:        "unparsable key file",
			cfg:         SSHConfig{User: "u", PrivateKeyPath: knownHosts, InsecureIgnoreHostKey: true},
			expectError: true,
		},
		{
			name:        "missing known hosts file",
			cfg:         SSHConfig{User: "u", Password: "x", KnownHostsPath: filepath.Join(dir, "nope")},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := buildSSHConfig(tt.cfg)
			if tt.expectError {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.User != tt.cfg.User || len(cfg.Auth) != 1 || cfg.HostKeyCallback == nil {
				t.Errorf("unexpected client config %+v", cfg)
			}
		})
	}
}

func TestBuildSSHConfigAgentRequiresSocket(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")
	if _, err := buildSSHConfig(SSHConfig{UseAgent: true, InsecureIgnoreHostKey: true}); err == nil {
		t.Error("expected error without SSH_AUTH_SOCK")
	}
}

func TestClosedTunnelRefusesDial(t *testing.T) {
	tun := &SSHTunnel{}
	if _, err := tun.DialContext(context.Background(), "tcp", "127.0.0.1:1"); !errors.Is(err, ErrTunnelClosed) {
		t.Errorf("expected ErrTunnelClosed, got %v", err)
	}
	if err := tun.Close(); err != nil {
		t.Errorf("Close on idle tunnel: %v", err)
	}
	if tun.State() != TunnelDisconnected {
		t.Errorf("state = %s", tun.State())
	}
}
