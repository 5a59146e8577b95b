// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

// jtt library extensions are defined in this package.
// They have been separated from "jttlibrary" package because
// they depend on functionality outside of Go standard library.
// Users who import jtt as a library in their Go programs may not
// want to depend on such functionality.

package jttlibraryext

import (
	_ "carvel.dev/jtt/pkg/jttlibraryext/toml" // include toml
)
