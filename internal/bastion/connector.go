// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package bastion

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/mattn/go-isatty"
)

// ConnectorConfig holds the dependencies of a Connector. The function
// fields default to the real implementations when nil.
type ConnectorConfig struct {
	Resolver ResourceResolver
	Clock    clock.Clock

	// GOOS selects the native client, runtime.GOOS when empty.
	GOOS string

	// RDPClient overrides the native client.
	RDPClient string

	// TempDir holds the RDP file, the default temporary directory
	// when empty.
	TempDir string

	Attempts int
	Delay    time.Duration

	LookPath       func(string) (string, error)
	CheckExtension func(azPath string) error
	StartTunnel    func(context.Context, TunnelParams) (Process, error)
	Probe          func(addr string) error
	PortFree       func(port int) error
	Launch         func(argv []string) error
}

// Validate checks the config.
func (c ConnectorConfig) Validate() error {
	if c.Resolver == nil {
		return errors.NotValidf("nil Resolver")
	}
	if c.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	if c.Attempts < 0 {
		return errors.NotValidf("negative Attempts")
	}
	return nil
}

// Connector opens remote desktop sessions through a Bastion tunnel.
type Connector struct {
	config ConnectorConfig
}

// NewConnector returns a Connector for the given config.
func NewConnector(config ConnectorConfig) (*Connector, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if config.GOOS == "" {
		config.GOOS = runtime.GOOS
	}
	if config.LookPath == nil {
		config.LookPath = exec.LookPath
	}
	if config.CheckExtension == nil {
		config.CheckExtension = CheckExtension
	}
	if config.StartTunnel == nil {
		config.StartTunnel = StartTunnel
	}
	if config.Probe == nil {
		config.Probe = DialProbe
	}
	if config.PortFree == nil {
		config.PortFree = PortFree
	}
	if config.Launch == nil {
		config.Launch = LaunchClient
	}
	return &Connector{config: config}, nil
}

// Streams are the terminal streams of a session.
type Streams struct {
	// Stdin is read for the keypress that ends the session.
	Stdin io.Reader

	// Status receives progress messages.
	Status io.Writer

	// TunnelOutput receives the tunnel's own output.
	TunnelOutput io.Writer
}

// Prerequisites holds what CheckPrerequisites found.
type Prerequisites struct {
	AzPath string
}

// CheckPrerequisites verifies that the az CLI and its bastion extension
// are installed, a native client is available and the local port is
// free.
func (c *Connector) CheckPrerequisites(port int) (*Prerequisites, error) {
	az, err := c.config.LookPath("az")
	if err != nil {
		return nil, errors.NewNotFound(err, "Azure CLI (az) not found on PATH")
	}
	if err := c.config.CheckExtension(az); err != nil {
		return nil, errors.Trace(err)
	}
	if _, err := ClientCommand(c.config.GOOS, c.config.RDPClient, "check.rdp", c.config.LookPath); err != nil {
		return nil, errors.Trace(err)
	}
	if err := c.config.PortFree(port); err != nil {
		return nil, errors.Trace(err)
	}
	return &Prerequisites{AzPath: az}, nil
}

// PortFree returns an error if something already listens on the local
// port.
func PortFree(port int) error {
	l, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return errors.AlreadyExistsf("listener on local port %d", port)
	}
	return l.Close()
}

// LaunchClient starts the remote desktop client command line built by
// ClientCommand. It does not wait for the client to exit.
func LaunchClient(argv []string) error {
	if len(argv) == 0 {
		return errors.NotValidf("empty client command")
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	if err := cmd.Start(); err != nil {
		return errors.Annotatef(err, "starting %s", argv[0])
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			logger.Debugf("%s exited: %v", argv[0], err)
		}
	}()
	return nil
}

// Connect opens the tunnel to the target, launches the native client
// and keeps the tunnel open until Enter is pressed, ctx is done or the
// tunnel exits. The tunnel is terminated and the RDP file removed on
// return.
func (c *Connector) Connect(ctx context.Context, t Target, streams Streams) error {
	if err := t.Validate(); err != nil {
		return errors.Trace(err)
	}
	status := streams.Status
	if status == nil {
		status = io.Discard
	}

	prereqs, err := c.CheckPrerequisites(t.LocalPort)
	if err != nil {
		return errors.Annotate(err, "checking prerequisites")
	}

	fmt.Fprintf(status, "Resolving %s and %s...\n", t.VMName, t.BastionName)
	resolved, err := Resolve(ctx, c.config.Resolver, t)
	if err != nil {
		return errors.Trace(err)
	}
	if !resolved.VMRunning {
		fmt.Fprintf(status, "Warning: virtual machine %s is not running\n", t.VMName)
	}

	fmt.Fprintf(status, "Starting tunnel on port %d...\n", t.LocalPort)
	proc, err := c.config.StartTunnel(ctx, TunnelParams{
		AzPath:        prereqs.AzPath,
		BastionName:   t.BastionName,
		ResourceGroup: t.BastionResourceGroup,
		TargetID:      resolved.VMID,
		ResourcePort:  RDPPort,
		LocalPort:     t.LocalPort,
		Output:        streams.TunnelOutput,
	})
	if err != nil {
		return errors.Annotate(err, "starting tunnel")
	}
	defer func() {
		if killErr := proc.Kill(); killErr != nil {
			logger.Warningf("terminating tunnel: %v", killErr)
		}
		fmt.Fprintf(status, "Tunnel closed.\n")
	}()

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(t.LocalPort))
	if err := WaitForPort(ctx, WaitParams{
		Addr:     addr,
		Process:  proc,
		Probe:    c.config.Probe,
		Attempts: c.config.Attempts,
		Delay:    c.config.Delay,
		Clock:    c.config.Clock,
	}); err != nil {
		return errors.Annotate(err, "waiting for tunnel")
	}

	path, err := WriteRDPFile(c.config.TempDir, RDPParams{Port: t.LocalPort, Username: t.Username})
	if err != nil {
		return errors.Trace(err)
	}
	defer func() {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			logger.Warningf("removing %q: %v", path, rmErr)
		}
	}()

	argv, err := ClientCommand(c.config.GOOS, c.config.RDPClient, path, c.config.LookPath)
	if err != nil {
		return errors.Trace(err)
	}
	logger.Debugf("launching %v", argv)
	if err := c.config.Launch(argv); err != nil {
		return errors.Annotate(err, "launching remote desktop client")
	}

	fmt.Fprintf(status, "Tunnel to %s open on %s.\n", t.VMName, addr)
	return errors.Trace(waitForClose(ctx, streams.Stdin, status, proc))
}

// waitForClose blocks until Enter is pressed, ctx is done or the tunnel
// exits. Stdin that is a file but not a terminal is not read.
func waitForClose(ctx context.Context, stdin io.Reader, status io.Writer, proc Process) error {
	var pressed chan struct{}
	if interactive(stdin) {
		fmt.Fprintf(status, "Press Enter to close the tunnel.\n")
		pressed = make(chan struct{})
		// A read of a terminal cannot be cancelled, so when the tunnel
		// closes first this goroutine is left blocked until the next line
		// or the end of the process. Connect runs once per process.
		go func() {
			_, _ = bufio.NewReader(stdin).ReadString('\n')
			close(pressed)
		}()
	} else {
		fmt.Fprintf(status, "Interrupt to close the tunnel.\n")
	}
	select {
	case <-pressed:
		return nil
	case <-ctx.Done():
		return nil
	case <-proc.Done():
		return tunnelExited(proc.Err())
	}
}

func interactive(stdin io.Reader) bool {
	if stdin == nil {
		return false
	}
	f, ok := stdin.(*os.File)
	if !ok {
		return true
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
