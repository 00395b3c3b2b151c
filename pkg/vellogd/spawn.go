package vellogd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/opd-ai/go-vellogd/internal/protocol"
)

// Process is a server process started by Spawn.
type Process struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

// Pid returns the process ID.
func (p *Process) Pid() int { return p.cmd.Process.Pid }

// Done is closed when the process has exited.
func (p *Process) Done() <-chan struct{} { return p.done }

// Wait blocks until the process exits and returns its exit error.
func (p *Process) Wait() error {
	<-p.done
	return p.err
}

// Kill terminates the process.
func (p *Process) Kill() error {
	err := p.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

// Spawn starts a server binary and connects to it. The binary receives the
// rendezvous address as its last argument and must announce its inbound
// address there. network is "tcp" or "unix"; empty means tcp.
func Spawn(ctx context.Context, binary string, args []string, network string, logger Logger) (*RemoteDevice, *Process, error) {
	if logger == nil {
		logger = NopLogger()
	}
	if network == "" {
		network = protocol.NetworkTCP
	}
	rv, err := protocol.NewRendezvous(network)
	if err != nil {
		return nil, nil, err
	}
	defer rv.Close()

	cmd := exec.Command(binary, append(append([]string(nil), args...), rv.Address())...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("spawn %s: %w", binary, err)
	}
	proc := &Process{cmd: cmd, done: make(chan struct{})}
	go func() {
		proc.err = cmd.Wait()
		close(proc.done)
	}()
	logger.Info("server started", "pid", proc.Pid(), "rendezvous", rv.Address())

	acceptCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-proc.done:
			cancel()
		case <-acceptCtx.Done():
		}
	}()

	ch, err := rv.Accept(acceptCtx, nil)
	if err != nil {
		_ = proc.Kill()
		select {
		case <-proc.done:
			if proc.err != nil {
				return nil, nil, fmt.Errorf("server exited before connecting: %w", proc.err)
			}
			return nil, nil, errors.New("server exited before connecting")
		case <-ctx.Done():
		}
		return nil, nil, err
	}
	logger.Info("connected to server", "pid", proc.Pid())
	return NewRemoteDevice(ch, logger), proc, nil
}
