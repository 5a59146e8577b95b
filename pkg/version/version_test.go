// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package version_test

import (
	"testing"

	"carvel.dev/jtt/pkg/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withVersion(t *testing.T, v string) {
	orig := version.Version
	version.Version = v
	t.Cleanup(func() { version.Version = orig })
}

func TestRequire(t *testing.T) {
	withVersion(t, "0.3.1")

	require.NoError(t, version.RequireAtLeast("0.3.0"))
	require.NoError(t, version.Require(">= 0.2, < 1.0"))

	err := version.RequireAtLeast("0.4")
	require.Error(t, err)
	assert.Equal(t, "jtt version 0.3.1 does not meet the required version >= 0.4", err.Error())

	err = version.Require("not a constraint")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Parsing version constraint 'not a constraint'")
}

func TestDevelopSatisfiesEverything(t *testing.T) {
	withVersion(t, "develop")
	require.NoError(t, version.RequireAtLeast("99.0"))
}

func TestAtLeast(t *testing.T) {
	ok, err := version.AtLeast("1.10.0", "1.9")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = version.AtLeast("1.2.0-rc.1", "1.2.0")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = version.AtLeast("x", "1.0")
	assert.Error(t, err)
}
