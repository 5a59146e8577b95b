// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

/*
Package template implements the render, typecheck and disasm commands.

All commands share the way an Environment is assembled from flags
(EnvironmentFlags) and render-time data values (DataValuesFlags).
*/
package template
