// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

/*
Package workspace assembles templates, packages, host functions and data
values into an Environment: the frozen unit that compiles, renders and
type-checks templates. Environments are safe for concurrent renders.
*/
package workspace
