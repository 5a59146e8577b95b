// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package experiments_test

import (
	"testing"

	"carvel.dev/jtt/pkg/experiments"
	"github.com/stretchr/testify/assert"
)

/*
At runtime, there is a singleton instance of experiments flags.
To avoid test pollution, settings are reset in each test.
*/

func TestExperimentsAreDisabledByDefault(t *testing.T) {
	experiments.ResetForTesting()
	t.Setenv(experiments.Env, "")
	assert.False(t, experiments.IsStarlarkFunctionsEnabled())
	assert.Empty(t, experiments.GetEnabled())
}

func TestExperimentsCanBeEnabled(t *testing.T) {
	experiments.ResetForTesting()
	t.Setenv(experiments.Env, " Starlark-Functions ,unknown")
	assert.True(t, experiments.IsStarlarkFunctionsEnabled())
	assert.Equal(t, []string{"starlark-functions"}, experiments.GetEnabled())
}
