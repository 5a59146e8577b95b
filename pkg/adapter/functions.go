// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package adapter

import (
	"carvel.dev/jtt/pkg/value"
)

// Globals returns the `adapter` object together with helpers built on it.
func (a *Adapter) Globals() map[string]value.Value {
	return map[string]value.Value{
		"adapter":   value.FromObject(a),
		"run_query": value.FromObject(value.NewFunction("run_query", a.runQuery)),
	}
}

// runQuery implements `run_query(sql)`: execute with fetch and return the table.
func (a *Adapter) runQuery(st value.State, args []value.Value) (value.Value, error) {
	if err := value.CheckArgCount("run_query", args, 1, 1); err != nil {
		return value.Undefined, err
	}
	sql, err := value.StringArg("sql", args[0])
	if err != nil {
		return value.Undefined, err
	}
	_, table, err := a.Execute(st.Context(), sql, true)
	if err != nil {
		return value.Undefined, err
	}
	return value.FromObject(table), nil
}
