// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package filepos_test

import (
	"testing"

	"carvel.dev/jtt/pkg/filepos"
	"github.com/stretchr/testify/assert"
)

func TestSpanJoin(t *testing.T) {
	a := filepos.Span{StartLine: 1, StartCol: 4, StartOffset: 3, EndLine: 1, EndCol: 9, EndOffset: 8}
	b := filepos.Span{StartLine: 2, StartCol: 1, StartOffset: 12, EndLine: 2, EndCol: 5, EndOffset: 16}

	joined := a.Join(b)
	assert.Equal(t, "1:4-2:5", joined.String())
	assert.Equal(t, joined, b.Join(a))
	assert.Equal(t, a, a.Join(filepos.Span{}))
	assert.Equal(t, b, filepos.Span{}.Join(b))
}

func TestSpanString(t *testing.T) {
	assert.Equal(t, "?", filepos.Span{}.String())
	assert.Equal(t, "3:2-7", filepos.Span{StartLine: 3, StartCol: 2, EndLine: 3, EndCol: 7}.String())
}

func TestSpanPosition(t *testing.T) {
	span := filepos.Span{StartLine: 3, StartCol: 2, EndLine: 3, EndCol: 7}

	pos := span.Position("models/orders.sql")
	assert.True(t, pos.IsKnown())
	assert.Equal(t, 3, pos.LineNum())
	assert.Equal(t, 2, pos.ColumnNum())
	assert.Equal(t, "line models/orders.sql:3:2", pos.AsString())
	assert.Equal(t, "   3", pos.As4DigitString())

	unknown := filepos.Span{}.Position("models/orders.sql")
	assert.False(t, unknown.IsKnown())
	assert.Equal(t, 0, unknown.ColumnNum())
	assert.Equal(t, "models/orders.sql:?", unknown.AsCompactString())
	assert.Equal(t, "????", unknown.As4DigitString())
}
