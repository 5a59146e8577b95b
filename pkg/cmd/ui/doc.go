// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

/*
Package ui separates rendered output (stdout) from warnings, template print
statements and debug logging (stderr).
*/
package ui
