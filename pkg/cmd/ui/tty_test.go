// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package ui_test

import (
	"bytes"
	"testing"

	"carvel.dev/jtt/pkg/cmd/ui"
	"github.com/stretchr/testify/assert"
)

func TestTTYWritesToStreams(t *testing.T) {
	var stdout, stderr bytes.Buffer
	tty := ui.NewCustomWriterTTY(false, &stdout, &stderr)

	tty.Printf("out %d\n", 1)
	tty.Warnf("Warning: %s\n", "w")
	tty.Debugf("hidden\n")

	assert.Equal(t, "out 1\n", stdout.String())
	assert.Equal(t, "Warning: w\n", stderr.String())
}

func TestTTYDebug(t *testing.T) {
	var stderr bytes.Buffer
	tty := ui.NewCustomWriterTTY(true, nil, &stderr)

	tty.Debugf("total: %s\n", "1s")
	_, err := tty.DebugWriter().Write([]byte("more\n"))
	assert.NoError(t, err)

	assert.Equal(t, "total: 1s\nmore\n", stderr.String())
}
