// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package value

import (
	"fmt"
	"io"
	"strings"
)

// Table is a tabular result (such as a query result). Rows and columns are
// exposed as views over the backing data; nothing is copied per access.
type Table struct {
	columns     []string
	columnTypes []string
	rows        [][]Value
}

var _ AttributeGetter = &Table{}
var _ Enumerable = &Table{}
var _ MethodCallable = &Table{}

// NewTable creates a table; each row must have len(columns) values.
func NewTable(columns, columnTypes []string, rows [][]Value) *Table {
	return &Table{columns: columns, columnTypes: columnTypes, rows: rows}
}

func (t *Table) Repr() ObjectRepr { return ReprSeq }

func (t *Table) NumRows() int { return len(t.rows) }

func (t *Table) ColumnNames() []string { return t.columns }

func (t *Table) Row(idx int) *Row { return &Row{table: t, idx: idx} }

func (t *Table) GetValue(key Value) (Value, bool) {
	if idx, ok := seqIndex(key, len(t.rows)); ok {
		return FromObject(t.Row(idx)), true
	}
	name, ok := key.AsString()
	if !ok {
		return Undefined, false
	}
	switch name {
	case "rows":
		return FromObject(t), true
	case "columns":
		return FromObject(&columnSet{table: t}), true
	case "column_names":
		return stringSeq(t.columns), true
	case "column_types":
		return stringSeq(t.columnTypes), true
	}
	return Undefined, false
}

func (t *Table) Enumerate() Enumerator { return SeqEnumerator(len(t.rows)) }

func (t *Table) CallMethod(st State, name string, args []Value) (Value, error) {
	switch name {
	case "print_table":
		return None, nil
	case "column":
		if err := CheckArgCount(name, args, 1, 1); err != nil {
			return Undefined, err
		}
		col, found := (&columnSet{table: t}).GetValue(args[0])
		if !found {
			return Undefined, NewError(ErrInvalidArgument, fmt.Sprintf("unknown column %s", args[0].Repr()))
		}
		return col, nil
	}
	return Undefined, UnknownMethodError(FromObject(t), name)
}

func (t *Table) columnIndex(key Value) (int, bool) {
	if name, ok := key.AsString(); ok {
		for i, col := range t.columns {
			if col == name {
				return i, true
			}
		}
		return 0, false
	}
	return seqIndex(key, len(t.columns))
}

func stringSeq(strs []string) Value {
	items := make([]Value, len(strs))
	for i, s := range strs {
		items[i] = FromString(s)
	}
	return FromSlice(items)
}

// Row is a view of one table row addressable by index or column name.
type Row struct {
	table *Table
	idx   int
}

var _ AttributeGetter = &Row{}
var _ Enumerable = &Row{}
var _ Equaler = &Row{}

func (r *Row) Repr() ObjectRepr { return ReprSeq }

func (r *Row) GetValue(key Value) (Value, bool) {
	col, ok := r.table.columnIndex(key)
	if !ok {
		return Undefined, false
	}
	return r.table.rows[r.idx][col], true
}

func (r *Row) Enumerate() Enumerator { return SeqEnumerator(len(r.table.columns)) }

// EqualTo compares rows by their values, not by their position.
func (r *Row) EqualTo(other Object) bool {
	otherRow, ok := other.(*Row)
	if !ok {
		return false
	}
	a, b := r.table.rows[r.idx], otherRow.table.rows[otherRow.idx]
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func (r *Row) Render(w io.Writer) error {
	parts := make([]string, len(r.table.columns))
	for i, col := range r.table.columns {
		parts[i] = fmt.Sprintf("%s=%s", col, r.table.rows[r.idx][i].Repr())
	}
	_, err := fmt.Fprintf(w, "<Row: (%s)>", strings.Join(parts, ", "))
	return err
}

type columnSet struct {
	table *Table
}

func (c *columnSet) Repr() ObjectRepr { return ReprSeq }

func (c *columnSet) GetValue(key Value) (Value, bool) {
	idx, ok := c.table.columnIndex(key)
	if !ok {
		return Undefined, false
	}
	return FromObject(&Column{table: c.table, idx: idx}), true
}

func (c *columnSet) Enumerate() Enumerator { return SeqEnumerator(len(c.table.columns)) }

// Column is a view of one table column.
type Column struct {
	table *Table
	idx   int
}

var _ AttributeGetter = &Column{}
var _ Equaler = &Column{}

func (c *Column) Repr() ObjectRepr { return ReprSeq }

func (c *Column) GetValue(key Value) (Value, bool) {
	if idx, ok := seqIndex(key, len(c.table.rows)); ok {
		return c.table.rows[idx][c.idx], true
	}
	switch name, _ := key.AsString(); name {
	case "name":
		return FromString(c.table.columns[c.idx]), true
	case "data_type":
		if c.idx < len(c.table.columnTypes) {
			return FromString(c.table.columnTypes[c.idx]), true
		}
		return None, true
	case "values":
		items := make([]Value, len(c.table.rows))
		for i, row := range c.table.rows {
			items[i] = row[c.idx]
		}
		return FromSlice(items), true
	}
	return Undefined, false
}

func (c *Column) Enumerate() Enumerator { return SeqEnumerator(len(c.table.rows)) }

func (c *Column) EqualTo(other Object) bool {
	o, ok := other.(*Column)
	return ok && o.table == c.table && o.idx == c.idx
}

// Zip pairs up items of two sequences lazily; it is as long as the shorter one.
type Zip struct {
	a, b Value
	n    int
}

var _ AttributeGetter = &Zip{}
var _ Enumerable = &Zip{}

// NewZip fails when either argument does not have a known length.
func NewZip(a, b Value) (*Zip, error) {
	la, okA := a.Len()
	lb, okB := b.Len()
	if !okA || !okB || a.Kind() != KindSeq || b.Kind() != KindSeq {
		return nil, NewError(ErrInvalidArgument, fmt.Sprintf("zip expects two sequences, got %s and %s", a.Kind(), b.Kind()))
	}
	n := la
	if lb < n {
		n = lb
	}
	return &Zip{a: a, b: b, n: n}, nil
}

func (z *Zip) Repr() ObjectRepr { return ReprSeq }

func (z *Zip) GetValue(key Value) (Value, bool) {
	idx, ok := seqIndex(key, z.n)
	if !ok {
		return Undefined, false
	}
	first, _ := GetItem(z.a, FromInt(int64(idx)))
	second, _ := GetItem(z.b, FromInt(int64(idx)))
	return FromSlice([]Value{first, second}), true
}

func (z *Zip) Enumerate() Enumerator { return SeqEnumerator(z.n) }
