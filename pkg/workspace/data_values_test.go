// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package workspace_test

import (
	"testing"

	"carvel.dev/jtt/pkg/files"
	"carvel.dev/jtt/pkg/value"
	"carvel.dev/jtt/pkg/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dataFile(name, content string) *files.File {
	return files.MustNewFileFromSource(files.NewBytesSource(name, []byte(content)))
}

func TestDataValuesMergeFiles(t *testing.T) {
	dv := workspace.NewEmptyDataValues()
	err := dv.AddFiles([]*files.File{
		dataFile("a.yml", "db:\n  host: localhost\n  port: 5432\nname: a\n"),
		dataFile("b.json", `{"db": {"port": 6543}, "tags": ["x"]}`),
		dataFile("c.toml", "name = \"c\"\n[db]\nuser = \"ro\"\n"),
		dataFile("empty.yml", ""),
	})
	require.NoError(t, err)

	assert.Equal(t, `{'db': {'host': 'localhost', 'port': 6543, 'user': 'ro'}, 'name': 'c', 'tags': ['x']}`,
		value.FromMap(dv.Map()).Repr())
}

func TestDataValuesRequireMaps(t *testing.T) {
	dv := workspace.NewEmptyDataValues()
	err := dv.AddFiles([]*files.File{dataFile("list.yml", "- 1\n- 2\n")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected a map at the top level, got sequence")
}

func TestDataValuesSetDottedKeys(t *testing.T) {
	dv := workspace.NewEmptyDataValues()
	require.NoError(t, dv.Set("all.key1.subkey", value.FromInt(123)))
	require.NoError(t, dv.Set("all.key2", value.FromString("x")))
	assert.Equal(t, `{'all': {'key1': {'subkey': 123}, 'key2': 'x'}}`, value.FromMap(dv.Map()).Repr())

	err := dv.Set("all.key2.sub", value.FromString("y"))
	require.Error(t, err)
	assert.Equal(t, "Expected key 'all.key2.sub' to not conflict with other data values at piece 'key2'", err.Error())
}
