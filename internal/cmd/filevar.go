// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package cmd

import (
	"io"
	"os"

	"github.com/juju/errors"
	"github.com/juju/utils/v4"
)

// FileVar represents a path to a file.
type FileVar struct {
	// Path is the path to the file.
	Path string
}

// Set stores the chosen path name in f.Path.
func (f *FileVar) Set(v string) error {
	f.Path = v
	return nil
}

// Open returns an io.ReadCloser to the file relative to the context.
func (f *FileVar) Open(ctx *Context) (io.ReadCloser, error) {
	if f.Path == "" {
		return nil, errors.New("path not set")
	}
	path, err := f.absPath(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return os.Open(path)
}

// Read returns the contents of the file.
func (f *FileVar) Read(ctx *Context) ([]byte, error) {
	if f.Path == "" {
		return nil, errors.New("path not set")
	}
	path, err := f.absPath(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.NotFoundf("file %q", f.Path)
	}
	return data, errors.Trace(err)
}

func (f *FileVar) absPath(ctx *Context) (string, error) {
	path, err := utils.NormalizePath(f.Path)
	if err != nil {
		return "", err
	}
	return ctx.AbsPath(path), nil
}

// String returns the path to the file.
func (f *FileVar) String() string {
	return f.Path
}
