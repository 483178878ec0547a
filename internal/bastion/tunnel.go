// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package bastion

import (
	"context"
	"io"
	"os/exec"
	"strconv"
	"sync"

	"github.com/juju/errors"
)

// RDPPort is the port remote desktop listens on in the virtual machine.
const RDPPort = 3389

// BastionExtension is the az CLI extension providing "az network bastion
// tunnel".
const BastionExtension = "bastion"

// Process is a supervised child process.
type Process interface {
	// Done is closed once the process has exited.
	Done() <-chan struct{}

	// Err returns the exit error, once Done is closed.
	Err() error

	// Kill terminates the process and waits for it to exit.
	Kill() error
}

// TunnelParams holds the parameters of "az network bastion tunnel".
type TunnelParams struct {
	// AzPath is the az executable, "az" when empty.
	AzPath string

	BastionName   string
	ResourceGroup string
	TargetID      string
	ResourcePort  int
	LocalPort     int

	// Output receives the tunnel's stdout and stderr.
	Output io.Writer
}

// Args returns the az command line for the tunnel.
func (p TunnelParams) Args() []string {
	port := p.ResourcePort
	if port == 0 {
		port = RDPPort
	}
	return []string{
		"network", "bastion", "tunnel",
		"--name", p.BastionName,
		"--resource-group", p.ResourceGroup,
		"--target-resource-id", p.TargetID,
		"--resource-port", strconv.Itoa(port),
		"--port", strconv.Itoa(p.LocalPort),
	}
}

// CheckExtension returns a NotFound error unless the az CLI at azPath
// has the bastion extension installed.
func CheckExtension(azPath string) error {
	cmd := exec.Command(azPath, "extension", "show", "--name", BastionExtension, "--output", "none")
	if out, err := cmd.CombinedOutput(); err != nil {
		logger.Debugf("az extension show: %v: %s", err, out)
		return errors.NotFoundf(`Azure CLI %s extension (run "az extension add --name %s")`, BastionExtension, BastionExtension)
	}
	return nil
}

// StartTunnel starts the tunnel as a child process.
func StartTunnel(ctx context.Context, p TunnelParams) (Process, error) {
	az := p.AzPath
	if az == "" {
		az = "az"
	}
	cmd := exec.Command(az, p.Args()...)
	if p.Output != nil {
		cmd.Stdout = p.Output
		cmd.Stderr = p.Output
	}
	logger.Debugf("starting tunnel: %s %v", az, p.Args())
	proc, err := startProcess(cmd)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return proc, nil
}

type cmdProcess struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu  sync.Mutex
	err error
}

func startProcess(cmd *exec.Cmd) (*cmdProcess, error) {
	if err := cmd.Start(); err != nil {
		return nil, errors.Annotatef(err, "starting %s", cmd.Path)
	}
	p := &cmdProcess{
		cmd:  cmd,
		done: make(chan struct{}),
	}
	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
		close(p.done)
	}()
	return p, nil
}

func (p *cmdProcess) Done() <-chan struct{} {
	return p.done
}

func (p *cmdProcess) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *cmdProcess) Kill() error {
	select {
	case <-p.done:
		return nil
	default:
	}
	if err := p.cmd.Process.Kill(); err != nil {
		select {
		case <-p.done:
			return nil
		default:
		}
		return errors.Annotatef(err, "killing process %d", p.cmd.Process.Pid)
	}
	<-p.done
	return nil
}
