// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

// Package sqlite is a Connection backed by an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"carvel.dev/jtt/pkg/adapter"
	"carvel.dev/jtt/pkg/value"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const Type = "sqlite"

type Connection struct {
	db *sql.DB
}

var _ adapter.Connection = &Connection{}

// Open connects to the database file at dsn (":memory:" for a private
// in-memory database).
func Open(dsn string) (*Connection, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("Opening sqlite database '%s': %w", dsn, err)
	}
	if dsn == ":memory:" {
		// every pooled connection would get its own empty database
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("Opening sqlite database '%s': %w", dsn, err)
	}
	return &Connection{db: db}, nil
}

func (c *Connection) Close() error { return c.db.Close() }

func (c *Connection) Type() string { return Type }

func (c *Connection) Execute(ctx context.Context, query string, fetch bool) (adapter.Response, *value.Table, error) {
	code := statementCode(query)

	if !fetch {
		result, err := c.db.ExecContext(ctx, query)
		if err != nil {
			return adapter.Response{}, nil, err
		}
		affected, _ := result.RowsAffected()
		return adapter.Response{Code: code, RowsAffected: affected}, nil, nil
	}

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return adapter.Response{}, nil, err
	}
	defer rows.Close()

	table, err := readTable(rows)
	if err != nil {
		return adapter.Response{}, nil, err
	}
	return adapter.Response{Code: code, RowsAffected: int64(table.NumRows())}, table, nil
}

func readTable(rows *sql.Rows) (*value.Table, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	typeNames := make([]string, len(colTypes))
	for i, ct := range colTypes {
		typeNames[i] = strings.ToLower(ct.DatabaseTypeName())
	}

	var result [][]value.Value
	for rows.Next() {
		raw := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make([]value.Value, len(columns))
		for i, cell := range raw {
			row[i] = cellValue(cell, typeNames[i])
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return value.NewTable(columns, typeNames, result), nil
}

func cellValue(cell interface{}, typeName string) value.Value {
	if bs, ok := cell.([]byte); ok && typeName != "blob" {
		return value.FromString(string(bs))
	}
	return value.FromGo(cell)
}

// statementCode is the leading keyword of query, e.g. SELECT or INSERT.
func statementCode(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return "OK"
	}
	return strings.ToUpper(strings.TrimRight(fields[0], ";("))
}
