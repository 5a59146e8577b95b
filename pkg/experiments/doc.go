// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

/*
Package experiments gates features that are not yet stable (such as
Starlark defined functions) behind the JTTEXPERIMENTS environment variable.

Settings are read once, on first use, and stay fixed for the life of the
process.
*/
package experiments
