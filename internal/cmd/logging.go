// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package cmd

import (
	"fmt"

	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/loggo/v2"
	"github.com/juju/lumberjack/v2"
)

const logFileWriterName = "logfile"

// Log supplies the necessary functionality for Commands that wish to set up
// logging.
type Log struct {
	// Root is the name of the root logger configured by --verbose and
	// --debug, e.g. "azops".
	Root string

	// DefaultConfig is used when no logging config has been specified
	// on the command line.
	DefaultConfig string

	Path    string
	Verbose bool
	Quiet   bool
	Debug   bool
	Config  string
}

// AddFlags adds appropriate flags to f.
func (l *Log) AddFlags(f *gnuflag.FlagSet) {
	f.StringVar(&l.Path, "log-file", "", "path to write log to")
	f.BoolVar(&l.Verbose, "v", false, "show more verbose output")
	f.BoolVar(&l.Verbose, "verbose", false, "")
	f.BoolVar(&l.Quiet, "q", false, "show no informational output")
	f.BoolVar(&l.Quiet, "quiet", false, "")
	f.BoolVar(&l.Debug, "debug", false, "equivalent to --logging-config=<root>=DEBUG")
	f.StringVar(&l.Config, "logging-config", l.DefaultConfig, "specify log levels for modules")
}

// loggingSpec returns the loggo specification implied by the flags.
func (l *Log) loggingSpec() string {
	root := l.Root
	if root == "" {
		root = "<root>"
	}
	switch {
	case l.Debug:
		return fmt.Sprintf("%s=DEBUG", root)
	case l.Config != "":
		return l.Config
	case l.Verbose:
		return fmt.Sprintf("%s=INFO", root)
	}
	return fmt.Sprintf("%s=WARNING", root)
}

// Start starts logging using the given Context.
func (l *Log) Start(ctx *Context) error {
	if l.Verbose && l.Quiet {
		return errors.New(`"verbose" and "quiet" flags clash, please use one or the other, not both`)
	}
	ctx.quiet = l.Quiet
	ctx.verbose = l.Verbose

	loggo.DefaultContext().ResetLoggerLevels()
	_, _ = loggo.RemoveWriter(loggo.DefaultWriterName)
	_, _ = loggo.RemoveWriter(logFileWriterName)
	if err := loggo.RegisterWriter(loggo.DefaultWriterName, loggo.NewSimpleWriter(ctx.Stderr, loggo.DefaultFormatter)); err != nil {
		return errors.Trace(err)
	}
	if l.Path != "" {
		writer := &lumberjack.Logger{
			Filename:   ctx.AbsPath(l.Path),
			MaxSize:    100, // megabytes
			MaxBackups: 2,
		}
		if err := loggo.RegisterWriter(logFileWriterName, loggo.NewSimpleWriter(writer, loggo.DefaultFormatter)); err != nil {
			return errors.Annotate(err, "configuring log file")
		}
	}
	if err := loggo.ConfigureLoggers(l.loggingSpec()); err != nil {
		return errors.Annotate(err, "configuring loggers")
	}
	return nil
}
