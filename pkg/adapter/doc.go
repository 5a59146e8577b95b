// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

/*
Package adapter provides the `adapter` object visible to templates.
It routes `adapter.dispatch` to the macro registry and forwards SQL
execution to an optional database Connection.
*/
package adapter
