// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

const (
	colorYellow = "\033[33m"
	colorReset  = "\033[0m"
)

type TTY struct {
	debug  bool
	color  bool
	stdout io.Writer
	stderr io.Writer
}

var _ UI = TTY{}

// NewTTY writes to the process stdout and stderr. Warnings are colored
// when stderr is a terminal.
func NewTTY(debug bool) TTY {
	fd := os.Stderr.Fd()
	color := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	return TTY{debug, color, os.Stdout, os.Stderr}
}

func (t TTY) Printf(str string, args ...interface{}) {
	fmt.Fprintf(t.stdout, str, args...)
}

func (t TTY) Warnf(str string, args ...interface{}) {
	msg := fmt.Sprintf(str, args...)
	if t.color {
		msg = colorYellow + msg + colorReset
	}
	fmt.Fprint(t.stderr, msg)
}

func (t TTY) Debugf(str string, args ...interface{}) {
	if t.debug {
		fmt.Fprintf(t.stderr, str, args...)
	}
}

func (t TTY) DebugWriter() io.Writer {
	if t.debug {
		return t.stderr
	}
	return noopWriter{}
}

type noopWriter struct{}

var _ io.Writer = noopWriter{}

func (w noopWriter) Write(data []byte) (int, error) { return len(data), nil }

// NewCustomWriterTTY is used for testing whether TTY writes correct output
// to stdout/stderr. It never colors output.
func NewCustomWriterTTY(debug bool, stdout, stderr io.Writer) TTY {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return TTY{debug, false, stdout, stderr}
}
