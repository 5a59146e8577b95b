// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package spell_test

import (
	"testing"

	"carvel.dev/jtt/pkg/spell"
	"github.com/stretchr/testify/assert"
)

func TestNearest(t *testing.T) {
	candidates := []string{"upper", "lower", "length", "list"}

	nearest, ok := spell.Nearest("uper", candidates)
	assert.True(t, ok)
	assert.Equal(t, "upper", nearest)

	nearest, ok = spell.Nearest("lenght", candidates)
	assert.True(t, ok)
	assert.Equal(t, "length", nearest)

	_, ok = spell.Nearest("frobnicate", candidates)
	assert.False(t, ok)
}

func TestHint(t *testing.T) {
	assert.Equal(t, " (did you mean 'lower'?)", spell.Hint("lowr", []string{"lower"}))
	assert.Equal(t, "", spell.Hint("x", nil))
}
