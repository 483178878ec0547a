// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"sort"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/utils/v4"
	"gopkg.in/yaml.v3"
)

// Formatter writes value to writer in some format.
type Formatter func(writer io.Writer, value interface{}) error

// FormatYaml writes value as YAML with two space indentation. Nothing is
// written for a nil value.
func FormatYaml(writer io.Writer, value interface{}) error {
	if value == nil {
		return nil
	}
	enc := yaml.NewEncoder(writer)
	enc.SetIndent(2)
	if err := enc.Encode(value); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(enc.Close())
}

// FormatJson writes value as a single line of JSON.
func FormatJson(writer io.Writer, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Trace(err)
	}
	_, err = writer.Write(append(data, '\n'))
	return errors.Trace(err)
}

// DefaultFormatters are the formats every command with output accepts.
var DefaultFormatters = map[string]Formatter{
	"yaml": FormatYaml,
	"json": FormatJson,
}

// formatFlag is the gnuflag.Value of --format.
type formatFlag struct {
	selected   string
	formatters map[string]Formatter
}

func (f *formatFlag) Set(name string) error {
	if _, ok := f.formatters[name]; !ok {
		return errors.Errorf("unknown format %q", name)
	}
	f.selected = name
	return nil
}

func (f *formatFlag) String() string {
	return f.selected
}

func (f *formatFlag) usage() string {
	names := make([]string, 0, len(f.formatters))
	for name := range f.formatters {
		names = append(names, name)
	}
	sort.Strings(names)
	return "Specify output format (" + strings.Join(names, "|") + ")"
}

// Output implements the --format and --output flags of a command.
type Output struct {
	format *formatFlag
	path   string
}

// AddFlags adds --format, defaulting to defaultFormat, and --output (-o)
// to f. It panics if defaultFormat is not one of formatters.
func (o *Output) AddFlags(f *gnuflag.FlagSet, defaultFormat string, formatters map[string]Formatter) {
	o.format = &formatFlag{formatters: formatters}
	if err := o.format.Set(defaultFormat); err != nil {
		panic(err)
	}
	f.Var(o.format, "format", o.format.usage())
	f.StringVar(&o.path, "o", "", "Write output to this file instead of stdout")
	f.StringVar(&o.path, "output", "", "")
}

// Name returns the selected format, or "" before AddFlags.
func (o *Output) Name() string {
	if o.format == nil {
		return ""
	}
	return o.format.selected
}

// Write formats value and writes it to stdout, or atomically replaces
// the --output file with it.
func (o *Output) Write(ctx *Context, value interface{}) error {
	if o.format == nil {
		return errors.New("output flags not registered")
	}
	format := o.format.formatters[o.format.selected]
	if o.path == "" {
		return errors.Trace(format(ctx.Stdout, value))
	}
	var buf bytes.Buffer
	if err := format(&buf, value); err != nil {
		return errors.Trace(err)
	}
	path := ctx.AbsPath(o.path)
	if err := utils.AtomicWriteFile(path, buf.Bytes(), 0644); err != nil {
		return errors.Annotatef(err, "writing %s", path)
	}
	return nil
}
