// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package experiments

import (
	"os"
	"sort"
	"strings"
	"sync"
)

/*
Registering a New Experiment

1. add its name to `known` and implement a getter `Is<experiment-name>Enabled()`

2. circuit-break functionality behind that check:

    if experiments.Is<experiment-name>Enabled() {
        ...
    }

3. in tests, enable experiment(s) by setting the environment variable:

    experiments.ResetForTesting()
    t.Setenv(experiments.Env, "<experiment-name>,<other-experiment-name>,...")
*/

// Env is the OS environment variable with comma-separated names of experiments to enable.
const Env = "JTTEXPERIMENTS"

// StarlarkFunctions allows loading host functions from .star files.
const StarlarkFunctions = "starlark-functions"

var known = []string{StarlarkFunctions}

// GetEnabled reports the name of all enabled experiments.
//
// An experiment is enabled by including its name in the OS environment variable named Env.
func GetEnabled() []string {
	experiments := []string{}
	for _, name := range known {
		if isSet(name) {
			experiments = append(experiments, name)
		}
	}
	sort.Strings(experiments)
	return experiments
}

// IsStarlarkFunctionsEnabled reports whether .star host functions may be loaded.
func IsStarlarkFunctionsEnabled() bool {
	return isSet(StarlarkFunctions)
}

func isSet(flag string) bool {
	for _, setting := range getSettings() {
		if setting == flag {
			return true
		}
	}
	return false
}

func getSettings() []string {
	settingsLock.Lock()
	defer settingsLock.Unlock()

	if settings == nil {
		settings = []string{}
		for _, setting := range strings.Split(os.Getenv(Env), ",") {
			if setting = strings.ToLower(strings.TrimSpace(setting)); setting != "" {
				settings = append(settings, setting)
			}
		}
	}
	return settings
}

// settings cached copy of name of experiments that are enabled (cleaned up).
var (
	settings     []string
	settingsLock sync.Mutex
)

// ResetForTesting clears the experiment flag settings, forcing reload from the Env on next use.
//
// This is for testing purposes only.
func ResetForTesting() {
	settingsLock.Lock()
	defer settingsLock.Unlock()
	settings = nil
}
