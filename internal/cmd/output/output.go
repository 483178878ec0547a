// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package output holds helpers for writing tabular command output.
package output

import (
	"fmt"
	"io"

	"github.com/juju/ansiterm"
)

var (
	// ErrorHighlight is used for values that need attention now.
	ErrorHighlight = ansiterm.Foreground(ansiterm.BrightRed)

	// WarningHighlight is used for values that need attention soon.
	WarningHighlight = ansiterm.Foreground(ansiterm.Yellow)

	// GoodHighlight is used for healthy values.
	GoodHighlight = ansiterm.Foreground(ansiterm.Green)

	// InfoHighlight is used for neutral values.
	InfoHighlight = ansiterm.Foreground(ansiterm.BrightBlue)
)

// TabWriter returns a new tab writer with common layout definition.
func TabWriter(writer io.Writer) *ansiterm.TabWriter {
	const (
		// To format things into columns.
		minwidth = 0
		tabwidth = 1
		padding  = 2
		padchar  = ' '
		flags    = 0
	)
	return ansiterm.NewTabWriter(writer, minwidth, tabwidth, padding, padchar, flags)
}

// Wrapper provides some helper functions for writing values out tab separated.
type Wrapper struct {
	*ansiterm.TabWriter
}

// Print writes each value followed by a tab.
func (w *Wrapper) Print(values ...interface{}) {
	for _, v := range values {
		fmt.Fprintf(w, "%v\t", v)
	}
}

// PrintColor writes the value out in the color context specified.
func (w *Wrapper) PrintColor(ctx *ansiterm.Context, value interface{}) {
	if ctx != nil {
		ctx.Fprintf(w.TabWriter, "%v\t", value)
	} else {
		fmt.Fprintf(w, "%v\t", value)
	}
}

// Println writes many tab separated values finished with a new line.
func (w *Wrapper) Println(values ...interface{}) {
	for i, v := range values {
		if i != len(values)-1 {
			fmt.Fprintf(w, "%v\t", v)
		} else {
			fmt.Fprintf(w, "%v", v)
		}
	}
	fmt.Fprintln(w)
}
