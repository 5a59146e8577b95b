// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package value

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// String renders the value the way it appears in template output.
func (v Value) String() string {
	switch typed := v.data.(type) {
	case nil:
		return ""
	case string:
		return typed
	case safeString:
		return string(typed)
	case Object:
		if r, ok := typed.(Renderer); ok {
			var sb strings.Builder
			if err := r.Render(&sb); err != nil {
				return fmt.Sprintf("<render error: %s>", err)
			}
			return sb.String()
		}
	}
	return v.Repr()
}

// Repr renders a debug representation (strings quoted).
func (v Value) Repr() string {
	var sb strings.Builder
	writeRepr(&sb, v)
	return sb.String()
}

func writeRepr(sb *strings.Builder, v Value) {
	switch typed := v.data.(type) {
	case nil:
		sb.WriteString("Undefined")
	case noneType:
		sb.WriteString("None")
	case bool:
		if typed {
			sb.WriteString("True")
		} else {
			sb.WriteString("False")
		}
	case int64:
		sb.WriteString(strconv.FormatInt(typed, 10))
	case *big.Int:
		sb.WriteString(typed.String())
	case float64:
		sb.WriteString(formatFloat(typed))
	case string:
		sb.WriteString(quoteString(typed))
	case safeString:
		sb.WriteString(quoteString(string(typed)))
	case []byte:
		fmt.Fprintf(sb, "b%s", quoteString(string(typed)))
	case seqData:
		writeSeqRepr(sb, typed)
	case *Map:
		writeMapRepr(sb, typed.Keys(), func(k Value) Value { val, _ := typed.Get(k); return val })
	case Object:
		if r, ok := typed.(Renderer); ok {
			if err := r.Render(sb); err != nil {
				fmt.Fprintf(sb, "<render error: %s>", err)
			}
			return
		}
		switch typed.Repr() {
		case ReprSeq:
			items, err := Collect(v)
			if err == nil {
				writeSeqRepr(sb, items)
				return
			}
		case ReprMap:
			keys, err := Collect(v)
			if err == nil {
				writeMapRepr(sb, keys, func(k Value) Value { val, _ := GetItem(v, k); return val })
				return
			}
		}
		fmt.Fprintf(sb, "<%T>", typed)
	default:
		fmt.Fprintf(sb, "%v", typed)
	}
}

func writeSeqRepr(sb *strings.Builder, items []Value) {
	sb.WriteString("[")
	for i, item := range items {
		if i > 0 {
			sb.WriteString(", ")
		}
		writeRepr(sb, item)
	}
	sb.WriteString("]")
}

func writeMapRepr(sb *strings.Builder, keys []Value, get func(Value) Value) {
	sb.WriteString("{")
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		writeRepr(sb, k)
		sb.WriteString(": ")
		writeRepr(sb, get(k))
	}
	sb.WriteString("}")
}

func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	case f == math.Trunc(f) && math.Abs(f) < 1e16:
		return strconv.FormatFloat(f, 'f', 1, 64)
	default:
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
}

func quoteString(s string) string {
	quote := "'"
	if strings.Contains(s, "'") && !strings.Contains(s, "\"") {
		quote = "\""
	}
	var sb strings.Builder
	sb.WriteString(quote)
	for _, r := range s {
		switch {
		case r == '\\':
			sb.WriteString(`\\`)
		case r == '\n':
			sb.WriteString(`\n`)
		case r == '\t':
			sb.WriteString(`\t`)
		case r == '\r':
			sb.WriteString(`\r`)
		case string(r) == quote:
			sb.WriteString(`\` + quote)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteString(quote)
	return sb.String()
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"/", "&#x2f;",
)

// EscapeHTML escapes rendered output unless the value is marked safe.
func EscapeHTML(v Value) Value {
	if v.IsSafe() {
		return v
	}
	return FromSafeString(htmlEscaper.Replace(v.String()))
}
