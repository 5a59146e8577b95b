// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

/*
Package spell suggests the closest known name for a misspelled filter, test
or other identifier.
*/
package spell
