// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package adapter

import (
	"context"
	"fmt"
	"io"
	"strings"

	"carvel.dev/jtt/pkg/dispatch"
	"carvel.dev/jtt/pkg/value"
)

// DefaultType is used when no connection is configured.
const DefaultType = "default"

// Response summarizes a statement executed by a Connection.
type Response struct {
	Code         string
	RowsAffected int64
}

// Connection executes SQL on behalf of templates.
type Connection interface {
	// Type names the adapter; it is the most specific dispatch prefix
	Type() string
	// Execute runs sql. Table is only populated when fetch is set.
	Execute(ctx context.Context, sql string, fetch bool) (Response, *value.Table, error)
}

// Adapter is the `adapter` global.
type Adapter struct {
	reg  *dispatch.Registry
	conn Connection
}

var _ value.MethodCallable = &Adapter{}
var _ value.AttributeGetter = &Adapter{}
var _ value.Enumerable = &Adapter{}
var _ value.Renderer = &Adapter{}

// New returns an adapter dispatching through reg. conn may be nil.
func New(reg *dispatch.Registry, conn Connection) *Adapter {
	return &Adapter{reg: reg, conn: conn}
}

func (a *Adapter) Type() string {
	if a.conn == nil {
		return DefaultType
	}
	return a.conn.Type()
}

var methodNames = []string{"dispatch", "execute", "quote", "type"}

func (a *Adapter) Repr() value.ObjectRepr { return value.ReprPlain }

// GetValue exposes methods as bound functions so they can be passed around.
func (a *Adapter) GetValue(key value.Value) (value.Value, bool) {
	name, ok := key.AsString()
	if !ok {
		return value.Undefined, false
	}
	for _, method := range methodNames {
		if method == name {
			return value.FromObject(value.NewFunction("adapter."+name, func(st value.State, args []value.Value) (value.Value, error) {
				return a.CallMethod(st, name, args)
			})), true
		}
	}
	return value.Undefined, false
}

func (a *Adapter) Enumerate() value.Enumerator { return value.StrEnumerator(methodNames...) }

func (a *Adapter) Render(w io.Writer) error {
	_, err := fmt.Fprintf(w, "<adapter %s>", a.Type())
	return err
}

func (a *Adapter) CallMethod(st value.State, name string, args []value.Value) (value.Value, error) {
	switch name {
	case "dispatch":
		if a.reg == nil {
			return value.Undefined, value.NewError(value.ErrInvalidOperation, "adapter.dispatch: no macro registry configured")
		}
		return a.reg.DispatchFunction(args)

	case "type":
		if err := value.CheckArgCount(name, args, 0, 0); err != nil {
			return value.Undefined, err
		}
		return value.FromString(a.Type()), nil

	case "quote":
		if err := value.CheckArgCount(name, args, 1, 1); err != nil {
			return value.Undefined, err
		}
		identifier, err := value.StringArg("identifier", args[0])
		if err != nil {
			return value.Undefined, err
		}
		return value.FromString(Quote(identifier)), nil

	case "execute":
		return a.execute(st, args)
	}
	return value.Undefined, value.UnknownMethodError(value.FromObject(a), name)
}

// execute implements `adapter.execute(sql, auto_begin=False, fetch=False)`
// returning a (response, table) pair.
func (a *Adapter) execute(st value.State, args []value.Value) (value.Value, error) {
	positional, kwargs := value.SplitKwargs(args)
	if err := value.CheckArgCount("execute", positional, 1, 3); err != nil {
		return value.Undefined, err
	}
	sql, err := value.StringArg("sql", positional[0])
	if err != nil {
		return value.Undefined, err
	}
	// auto_begin is accepted for compatibility; statements run in autocommit mode
	value.ArgOrKwarg(positional, kwargs, 1, "auto_begin")
	fetch := false
	if val, found := value.ArgOrKwarg(positional, kwargs, 2, "fetch"); found {
		fetch = val.IsTrue()
	}
	if err := kwargs.AssertAllUsed(); err != nil {
		return value.Undefined, err
	}

	resp, table, err := a.Execute(st.Context(), sql, fetch)
	if err != nil {
		return value.Undefined, err
	}
	return value.FromSlice([]value.Value{ResponseValue(resp), value.FromObject(table)}), nil
}

// Execute runs sql on the configured connection.
func (a *Adapter) Execute(ctx context.Context, sql string, fetch bool) (Response, *value.Table, error) {
	if a.conn == nil {
		return Response{}, nil, value.NewError(value.ErrInvalidOperation,
			"adapter.execute: no database connection configured")
	}
	resp, table, err := a.conn.Execute(ctx, sql, fetch)
	if err != nil {
		return Response{}, nil, fmt.Errorf("Executing SQL: %w", err)
	}
	if table == nil {
		table = value.NewTable(nil, nil, nil)
	}
	return resp, table, nil
}

// ResponseValue converts resp into a map with `code`, `rows_affected`
// and `_message` keys.
func ResponseValue(resp Response) value.Value {
	m := value.NewMap()
	m.SetString("_message", value.FromString(fmt.Sprintf("%s %d", resp.Code, resp.RowsAffected)))
	m.SetString("code", value.FromString(resp.Code))
	m.SetString("rows_affected", value.FromInt(resp.RowsAffected))
	return value.FromMap(m)
}

// Quote wraps identifier in double quotes, doubling embedded quotes.
func Quote(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}
