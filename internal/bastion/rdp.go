// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package bastion

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/kballard/go-shellquote"
)

// RDPParams describes the connection written to an RDP file.
type RDPParams struct {
	Port     int
	Username string
}

// RDPContent returns the RDP file content for a connection through the
// local tunnel.
func RDPContent(p RDPParams) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "full address:s:127.0.0.1:%d\r\n", p.Port)
	if p.Username != "" {
		fmt.Fprintf(&buf, "username:s:%s\r\n", p.Username)
	}
	buf.WriteString("prompt for credentials:i:1\r\n")
	buf.WriteString("authentication level:i:2\r\n")
	buf.WriteString("screen mode id:i:2\r\n")
	buf.WriteString("redirectclipboard:i:1\r\n")
	return buf.Bytes()
}

// WriteRDPFile writes a temporary RDP file in dir, or the default
// temporary directory when dir is empty, and returns its path. The
// caller removes it.
func WriteRDPFile(dir string, p RDPParams) (string, error) {
	f, err := os.CreateTemp(dir, "azops-*.rdp")
	if err != nil {
		return "", errors.Annotate(err, "creating RDP file")
	}
	path := f.Name()
	if _, err := f.Write(RDPContent(p)); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", errors.Annotatef(err, "writing %q", path)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", errors.Annotatef(err, "writing %q", path)
	}
	return path, nil
}

// linuxClients are tried in order on Linux and other Unix systems.
var linuxClients = []string{"xfreerdp3", "xfreerdp", "remmina"}

// ClientCommand returns the command line that opens the RDP file at path
// with the native client for goos. A non-empty override is a shell-quoted
// command line naming the client to use instead, with any extra
// arguments placed before the file.
func ClientCommand(goos, override, path string, lookPath func(string) (string, error)) ([]string, error) {
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	if override != "" {
		words, err := shellquote.Split(override)
		if err != nil {
			return nil, errors.NewNotValid(err, fmt.Sprintf("remote desktop client %q", override))
		}
		if len(words) > 0 {
			if _, err := lookPath(words[0]); err != nil {
				return nil, errors.NewNotFound(err, fmt.Sprintf("remote desktop client %q", words[0]))
			}
			return clientArgs(words[0], words[1:], path), nil
		}
	}
	switch goos {
	case "windows":
		return []string{"mstsc", path}, nil
	case "darwin":
		return []string{"open", path}, nil
	}
	for _, name := range linuxClients {
		if found, err := lookPath(name); err == nil {
			return clientArgs(found, nil, path), nil
		}
	}
	return nil, errors.NotFoundf("remote desktop client (tried %v)", linuxClients)
}

func clientArgs(client string, extra []string, path string) []string {
	argv := append([]string{client}, extra...)
	if filepath.Base(client) == "remmina" {
		argv = append(argv, "-c")
	}
	return append(argv, path)
}
