// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package bastion

import (
	"context"
	"net"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/retry"
)

const (
	// DefaultWaitAttempts is how many times the tunnel port is probed.
	DefaultWaitAttempts = 30

	// DefaultWaitDelay is the fixed interval between probes.
	DefaultWaitDelay = time.Second

	dialTimeout = 500 * time.Millisecond
)

// ErrTunnelExited is returned when the tunnel process exits before its
// port is ready.
const ErrTunnelExited = errors.ConstError("tunnel process exited")

// tunnelExited returns ErrTunnelExited, annotating the process's exit
// error when it has one.
func tunnelExited(err error) error {
	if err == nil {
		return ErrTunnelExited
	}
	return errors.WithType(errors.Annotate(err, string(ErrTunnelExited)), ErrTunnelExited)
}

// WaitParams holds the parameters for WaitForPort.
type WaitParams struct {
	// Addr is the address the tunnel listens on.
	Addr string

	// Process, if not nil, is the tunnel. Waiting stops early when it
	// exits.
	Process Process

	// Probe reports whether Addr is accepting connections. It dials
	// Addr when nil.
	Probe func(addr string) error

	Attempts int
	Delay    time.Duration
	Clock    clock.Clock
}

// DialProbe reports whether addr accepts TCP connections.
func DialProbe(addr string) error {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return errors.Trace(err)
	}
	return conn.Close()
}

// WaitForPort probes the tunnel's local port at a fixed interval until
// it accepts connections, the tunnel exits, the attempts run out or ctx
// is done.
func WaitForPort(ctx context.Context, p WaitParams) error {
	probe := p.Probe
	if probe == nil {
		probe = DialProbe
	}
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = DefaultWaitAttempts
	}
	delay := p.Delay
	if delay <= 0 {
		delay = DefaultWaitDelay
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.WallClock
	}
	var exited <-chan struct{}
	if p.Process != nil {
		exited = p.Process.Done()
	}

	err := retry.Call(retry.CallArgs{
		Func: func() error {
			select {
			case <-exited:
				return tunnelExited(p.Process.Err())
			default:
			}
			return probe(p.Addr)
		},
		IsFatalError: func(err error) bool {
			return errors.Is(err, ErrTunnelExited)
		},
		NotifyFunc: func(err error, attempt int) {
			logger.Debugf("tunnel port %s not ready (attempt %d/%d): %v", p.Addr, attempt, attempts, err)
		},
		Attempts: attempts,
		Delay:    delay,
		Clock:    clk,
		Stop:     ctx.Done(),
	})
	switch {
	case err == nil:
		return nil
	case retry.IsAttemptsExceeded(err):
		return errors.Timeoutf("tunnel port %s not ready after %d attempts", p.Addr, attempts)
	case retry.IsRetryStopped(err):
		return errors.Trace(ctx.Err())
	}
	return errors.Trace(err)
}
