// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

/*
Package jttlibraryext contains "Standard Library" functions that involve Go module
dependencies and therefore are optional or extensions.

This makes it possible to integrate with jtt as a Go module without having to
accept all of its transitive dependencies for features you don't use.
*/
package jttlibraryext
