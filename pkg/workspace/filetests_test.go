// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package workspace_test

import (
	"testing"

	"carvel.dev/jtt/pkg/value"
	"carvel.dev/jtt/test/filetests"
)

func TestFileTests(t *testing.T) {
	dataValues, _ := value.FromGo(map[string]interface{}{
		"db":   map[string]interface{}{"host": "localhost", "port": 5432},
		"tags": []interface{}{"a", "b"},
	}).AsMap()

	filetests.FileTests{
		PathToTests: "filetests",
		DataValues:  dataValues,
	}.Run(t)
}
