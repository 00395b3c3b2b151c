package protocol

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SSHConfig describes how to reach a render server on a remote host. Exactly
// one authentication method is used, in the order password, key, agent.
type SSHConfig struct {
	Host string
	Port int
	User string

	Password       string
	PrivateKeyPath string
	Passphrase     string
	UseAgent       bool

	// KnownHostsPath enables host key verification. When empty, host keys
	// are accepted only if InsecureIgnoreHostKey is set.
	KnownHostsPath        string
	InsecureIgnoreHostKey bool

	Timeout           time.Duration
	KeepAliveInterval time.Duration
}

// TunnelState is the state of an SSH tunnel.
type TunnelState int32

const (
	TunnelDisconnected TunnelState = iota
	TunnelConnecting
	TunnelConnected
)

func (s TunnelState) String() string {
	switch s {
	case TunnelDisconnected:
		return "disconnected"
	case TunnelConnecting:
		return "connecting"
	case TunnelConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Logger is the logging interface used by the tunnel. *slog.Logger
// satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// ErrTunnelClosed is returned by Dial on a tunnel that is not connected.
var ErrTunnelClosed = errors.New("ssh tunnel not connected")

// SSHTunnel dials render-server addresses through an SSH connection. It
// satisfies Dialer.
type SSHTunnel struct {
	cfg    SSHConfig
	logger Logger

	mu     sync.RWMutex
	client *ssh.Client
	state  atomic.Int32

	keepalivesSent   atomic.Int64
	keepalivesFailed atomic.Int64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSSHTunnel connects to the remote host. The tunnel stays up until Close.
func NewSSHTunnel(ctx context.Context, cfg SSHConfig, logger Logger) (*SSHTunnel, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	clientCfg, err := buildSSHConfig(cfg)
	if err != nil {
		return nil, err
	}

	t := &SSHTunnel{cfg: cfg, logger: logger}
	t.state.Store(int32(TunnelConnecting))

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		t.state.Store(int32(TunnelDisconnected))
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, clientCfg)
	if err != nil {
		_ = conn.Close()
		t.state.Store(int32(TunnelDisconnected))
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}

	t.client = ssh.NewClient(c, chans, reqs)
	t.state.Store(int32(TunnelConnected))
	t.logger.Info("ssh tunnel established", "host", cfg.Host, "user", cfg.User)

	loopCtx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	if cfg.KeepAliveInterval > 0 {
		t.wg.Add(1)
		go t.keepaliveLoop(loopCtx)
	}
	return t, nil
}

// DialContext opens a connection to address on the remote side.
func (t *SSHTunnel) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	t.mu.RLock()
	client := t.client
	t.mu.RUnlock()
	if client == nil {
		return nil, ErrTunnelClosed
	}
	return client.DialContext(ctx, network, address)
}

// Listen opens a listener on the remote host, so a remote server can dial
// back to a rendezvous living there.
func (t *SSHTunnel) Listen(network, address string) (net.Listener, error) {
	t.mu.RLock()
	client := t.client
	t.mu.RUnlock()
	if client == nil {
		return nil, ErrTunnelClosed
	}
	return client.Listen(network, address)
}

// State reports the current tunnel state.
func (t *SSHTunnel) State() TunnelState {
	return TunnelState(t.state.Load())
}

// KeepAlives returns the number of successful and failed keepalive probes.
func (t *SSHTunnel) KeepAlives() (sent, failed int64) {
	return t.keepalivesSent.Load(), t.keepalivesFailed.Load()
}

// Close tears down the tunnel.
func (t *SSHTunnel) Close() error {
	if t.cancel != nil {
		t.cancel()
	}
	t.wg.Wait()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Store(int32(TunnelDisconnected))
	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	return err
}

func (t *SSHTunnel) keepaliveLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.cfg.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := t.sendKeepalive(ctx); err != nil {
				t.keepalivesFailed.Add(1)
				t.logger.Warn("ssh keepalive failed", "host", t.cfg.Host, "error", err)
				continue
			}
			t.keepalivesSent.Add(1)
		}
	}
}

// sendKeepalive probes the connection. Any reply, including a rejection,
// proves the peer is alive.
func (t *SSHTunnel) sendKeepalive(ctx context.Context) error {
	t.mu.RLock()
	client := t.client
	t.mu.RUnlock()
	if client == nil {
		return ErrTunnelClosed
	}

	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		_, _, _ = client.SendRequest("keepalive@golang.org", true, nil)
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.New("keepalive timeout")
	}
}

func buildSSHConfig(cfg SSHConfig) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	switch {
	case cfg.Password != "":
		auth = append(auth, ssh.Password(cfg.Password))
	case cfg.PrivateKeyPath != "":
		key, err := os.ReadFile(cfg.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}
		var signer ssh.Signer
		if cfg.Passphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(key, []byte(cfg.Passphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(key)
		}
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	case cfg.UseAgent:
		socket := os.Getenv("SSH_AUTH_SOCK")
		if socket == "" {
			return nil, errors.New("SSH_AUTH_SOCK not set")
		}
		auth = append(auth, ssh.PublicKeysCallback(func() ([]ssh.Signer, error) {
			conn, err := net.Dial("unix", socket)
			if err != nil {
				return nil, fmt.Errorf("connect to ssh agent: %w", err)
			}
			defer conn.Close()
			return agent.NewClient(conn).Signers()
		}))
	default:
		return nil, errors.New("no ssh authentication method configured")
	}

	var hostKey ssh.HostKeyCallback
	switch {
	case cfg.KnownHostsPath != "":
		cb, err := knownhosts.New(cfg.KnownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("load known hosts: %w", err)
		}
		hostKey = cb
	case cfg.InsecureIgnoreHostKey:
		hostKey = ssh.InsecureIgnoreHostKey()
	default:
		return nil, errors.New("no host key verification configured")
	}

	return &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         cfg.Timeout,
	}, nil
}
