package vellogd

import (
	"context"
	"fmt"

	"github.com/opd-ai/go-vellogd/internal/config"
	"github.com/opd-ai/go-vellogd/internal/protocol"
)

// sshConfig maps the configuration section onto the tunnel settings.
func sshConfig(cfg *config.Config) protocol.SSHConfig {
	return protocol.SSHConfig{
		Host:                  cfg.SSH.Host,
		Port:                  cfg.SSH.Port,
		User:                  cfg.SSH.User,
		Password:              cfg.SSH.Password,
		PrivateKeyPath:        cfg.SSH.KeyFile,
		Passphrase:            cfg.SSH.Passphrase,
		UseAgent:              cfg.SSH.UseAgent,
		KnownHostsPath:        cfg.SSH.KnownHosts,
		InsecureIgnoreHostKey: cfg.SSH.InsecureIgnoreHostKey,
		Timeout:               cfg.Transport.HandshakeTimeout,
		KeepAliveInterval:     cfg.SSH.KeepAlive,
	}
}

// link is an established host connection and what must be released with
// it.
type link struct {
	ch      ServerChannel
	peer    string
	release func()
}

// connect obtains the host channel. With a rendezvous the server
// announces itself there within the handshake timeout; otherwise it
// listens on the transport address until a host arrives or ctx is done.
// With SSH configured both the rendezvous and the listener live on the
// remote side of the tunnel. listening is called with the inbound address
// once it is known.
func connect(ctx context.Context, cfg *config.Config, rendezvous string, logger Logger, listening func(string)) (*link, error) {
	var tunnel *protocol.SSHTunnel
	release := func() {}
	if cfg.SSH.Enabled() {
		t, err := protocol.NewSSHTunnel(ctx, sshConfig(cfg), logger)
		if err != nil {
			return nil, fmt.Errorf("ssh tunnel: %w", err)
		}
		tunnel = t
		release = func() { _ = t.Close() }
	}

	in, err := inbound(cfg, rendezvous, tunnel)
	if err != nil {
		release()
		return nil, err
	}
	defer in.Close()
	listening(in.Address())

	acceptCtx := ctx
	if rendezvous != "" {
		if timeout := cfg.Transport.HandshakeTimeout; timeout > 0 {
			var cancel context.CancelFunc
			acceptCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		var d protocol.Dialer
		if tunnel != nil {
			d = tunnel
		}
		if err := in.Announce(acceptCtx, d, rendezvous); err != nil {
			release()
			return nil, err
		}
		logger.Debug("announced inbound address", "rendezvous", rendezvous, "address", in.Address())
	} else {
		logger.Info("waiting for host", "address", in.Address())
	}

	ch, err := in.Accept(acceptCtx)
	if err != nil {
		release()
		return nil, err
	}
	return &link{ch: ch, peer: ch.RemoteAddr().String(), release: release}, nil
}

// inbound opens the listener hosts connect to.
func inbound(cfg *config.Config, rendezvous string, tunnel *protocol.SSHTunnel) (*protocol.Inbound, error) {
	network, address := cfg.Transport.Network, cfg.Transport.Address
	if rendezvous != "" {
		n, _, err := protocol.ParseAddress(rendezvous)
		if err != nil {
			return nil, err
		}
		network, address = n, ""
	}
	if tunnel == nil {
		return protocol.ListenInbound(network, address)
	}

	// Remote listeners are TCP only; a unix rendezvous on the far side is
	// still dialled through the tunnel.
	if network != protocol.NetworkTCP || address == "" {
		address = "127.0.0.1:0"
	}
	ln, err := tunnel.Listen(protocol.NetworkTCP, address)
	if err != nil {
		return nil, fmt.Errorf("inbound over ssh: %w", err)
	}
	return protocol.NewInbound(ln, protocol.NetworkTCP), nil
}
