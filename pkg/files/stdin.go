// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package files

import (
	"fmt"
	"io"
	"os"
	"sync"
)

var stdinState struct {
	sync.Mutex
	consumed bool
}

// ReadStdin returns all of standard input. Input can be consumed by one
// source only.
func ReadStdin() ([]byte, error) {
	stdinState.Lock()
	defer stdinState.Unlock()

	if stdinState.consumed {
		return nil, fmt.Errorf("Standard input was already consumed (is '-' given to more than one flag?)")
	}
	stdinState.consumed = true
	return io.ReadAll(os.Stdin)
}
