// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package jttlibrary

import (
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"carvel.dev/jtt/pkg/value"
	"github.com/k14s/starlark-go/starlark"
	"github.com/k14s/starlark-go/syntax"
)

var (
	// FiltersAPI contains filters applied with `value|name(args)`
	FiltersAPI = Library{
		Globals: map[string]value.Value{},
		Filters: map[string]value.Value{
			"length":     NewFunc("length", lengthFilter),
			"count":      NewFunc("count", lengthFilter),
			"upper":      NewFunc("upper", stringFilter(strings.ToUpper)),
			"lower":      NewFunc("lower", stringFilter(strings.ToLower)),
			"title":      NewFunc("title", methodFilter("title")),
			"capitalize": NewFunc("capitalize", methodFilter("capitalize")),
			"trim":       NewFunc("trim", trimFilter),
			"replace":    NewFunc("replace", methodFilter("replace")),
			"format":     NewFunc("format", formatFilter),
			"join":       NewFunc("join", joinFilter),
			"string":     NewFunc("string", asTextFilter),
			"as_text":    NewFunc("as_text", asTextFilter),
			"safe":       NewFunc("safe", safeFilter),
			"escape":     NewFunc("escape", escapeFilter),
			"e":          NewFunc("e", escapeFilter),
			"int":        NewFunc("int", intFilter),
			"float":      NewFunc("float", floatFilter),
			"as_number":  NewFunc("as_number", asNumberFilter),
			"bool":       NewFunc("bool", boolFilter),
			"as_bool":    NewFunc("as_bool", boolFilter),
			"abs":        NewFunc("abs", absFilter),
			"round":      NewFunc("round", roundFilter),
			"default":    NewFunc("default", defaultFilter),
			"d":          NewFunc("d", defaultFilter),
			"items":      NewFunc("items", itemsFilter),
			"dictsort":   NewFunc("dictsort", dictsortFilter),
			"sort":       NewFunc("sort", sortFilter),
			"unique":     NewFunc("unique", uniqueFilter),
			"reverse":    NewFunc("reverse", reverseFilter),
			"sum":        NewFunc("sum", sumFilter),
			"min":        NewFunc("min", extremeFilter(-1)),
			"max":        NewFunc("max", extremeFilter(1)),
			"first":      NewFunc("first", firstFilter),
			"last":       NewFunc("last", lastFilter),
			"list":       NewFunc("list", listFilter),
			"batch":      NewFunc("batch", batchFilter),
			"attr":       NewFunc("attr", attrFilter),
			"map":        NewFunc("map", mapFilter),
			"select":     NewFunc("select", selectFilter(true)),
			"reject":     NewFunc("reject", selectFilter(false)),
			"selectattr": NewFunc("selectattr", selectAttrFilter(true)),
			"rejectattr": NewFunc("rejectattr", selectAttrFilter(false)),
			"indent":     NewFunc("indent", indentFilter),
			"urlencode":  NewFunc("urlencode", urlencodeFilter),
			"wordcount":  NewFunc("wordcount", wordcountFilter),
		},
		Tests: map[string]value.Value{},
	}
)

func lengthFilter(_ value.State, args []value.Value, _ *value.Kwargs) (value.Value, error) {
	if err := expectArgs(args, 1, 1); err != nil {
		return value.Undefined, err
	}
	if n, ok := args[0].Len(); ok {
		return value.FromInt(int64(n)), nil
	}
	items, err := value.Collect(args[0])
	if err != nil {
		return value.Undefined, value.NewError(value.ErrInvalidOperation,
			fmt.Sprintf("cannot calculate length of %s", args[0].Kind()))
	}
	return value.FromInt(int64(len(items))), nil
}

func stringFilter(f func(string) string) HostFunc {
	return func(_ value.State, args []value.Value, _ *value.Kwargs) (value.Value, error) {
		if err := expectArgs(args, 1, 1); err != nil {
			return value.Undefined, err
		}
		return preserveSafe(args[0], f(args[0].String())), nil
	}
}

// methodFilter forwards to the string method of the same name.
// formatFilter applies printf-style interpolation: positional arguments
// fill %s/%d/..., keyword arguments fill %(name)s. The `{}` style stays
// available as the string method .format().
func formatFilter(_ value.State, args []value.Value, kwargs *value.Kwargs) (value.Value, error) {
	if err := expectArgs(args, 1, -1); err != nil {
		return value.Undefined, err
	}
	format := args[0].String()

	var operand starlark.Value
	if names := kwargs.Names(); len(names) > 0 {
		if len(args) > 1 {
			return value.Undefined, value.NewError(value.ErrInvalidArgument, "expected either positional or keyword arguments, not both")
		}
		dict := starlark.NewDict(len(names))
		for _, name := range names {
			val, _ := kwargs.Get(name)
			if err := dict.SetKey(starlark.String(name), printfOperand(val)); err != nil {
				return value.Undefined, err
			}
		}
		operand = dict
	} else {
		operand = printfOperands(args[1:])
	}

	result, err := starlark.Binary(syntax.PERCENT, starlark.String(format), operand)
	if err != nil {
		return value.Undefined, err
	}
	return value.FromString(string(result.(starlark.String))), nil
}

func printfOperands(args []value.Value) starlark.Tuple {
	tuple := make(starlark.Tuple, len(args))
	for i, arg := range args {
		tuple[i] = printfOperand(arg)
	}
	return tuple
}

// printfOperand maps scalars onto their starlark counterparts so numeric
// verbs work. Everything else is interpolated through its rendered form.
func printfOperand(val value.Value) starlark.Value {
	switch val.Kind() {
	case value.KindUndefined, value.KindNone:
		return starlark.None
	case value.KindBool:
		return starlark.Bool(val.IsTrue())
	case value.KindInteger:
		if i, ok := val.AsInt(); ok {
			return starlark.MakeInt64(i)
		}
		if b, ok := val.AsBigInt(); ok {
			return starlark.MakeBigInt(b)
		}
	case value.KindFloat:
		if f, ok := val.AsFloat(); ok {
			return starlark.Float(f)
		}
	}
	return starlark.String(val.String())
}

func methodFilter(method string) HostFunc {
	return func(st value.State, args []value.Value, kwargs *value.Kwargs) (value.Value, error) {
		if err := expectArgs(args, 1, -1); err != nil {
			return value.Undefined, err
		}
		recv := args[0]
		if _, ok := recv.AsString(); !ok {
			recv = value.FromString(recv.String())
		}
		callArgs := append([]value.Value(nil), args[1:]...)
		if kwargs != nil && kwargs.Len() > 0 {
			callArgs = append(callArgs, value.FromObject(value.NewKwargs(kwargs.Unused())))
			for _, name := range kwargs.Names() {
				kwargs.Get(name)
			}
		}
		return value.CallMethod(st, recv, method, callArgs)
	}
}

func preserveSafe(orig value.Value, s string) value.Value {
	if orig.IsSafe() {
		return value.FromSafeString(s)
	}
	return value.FromString(s)
}

func trimFilter(_ value.State, args []value.Value, kwargs *value.Kwargs) (value.Value, error) {
	if err := expectArgs(args, 1, 2); err != nil {
		return value.Undefined, err
	}
	s := args[0].String()
	chars := optionalArg(args, kwargs, 1, "chars", value.None)
	if chars.IsNone() {
		return preserveSafe(args[0], strings.TrimSpace(s)), nil
	}
	cutset, err := value.StringArg("chars", chars)
	if err != nil {
		return value.Undefined, err
	}
	return preserveSafe(args[0], strings.Trim(s, cutset)), nil
}

func joinFilter(_ value.State, args []value.Value, kwargs *value.Kwargs) (value.Value, error) {
	if err := expectArgs(args, 1, 3); err != nil {
		return value.Undefined, err
	}
	if args[0].IsUndefined() || args[0].IsNone() {
		return value.FromString(""), nil
	}
	sep, err := stringArg(args, kwargs, 1, "d", "")
	if err != nil {
		return value.Undefined, err
	}
	items, err := value.Collect(args[0])
	if err != nil {
		return value.Undefined, err
	}
	attr := optionalArg(args, kwargs, 2, "attribute", value.None)
	parts := make([]string, len(items))
	for i, item := range items {
		if !attr.IsNone() {
			item = attributePath(item, attr)
		}
		parts[i] = item.String()
	}
	return value.FromString(strings.Join(parts, sep)), nil
}

func asTextFilter(_ value.State, args []value.Value, _ *value.Kwargs) (value.Value, error) {
	if err := expectArgs(args, 1, 1); err != nil {
		return value.Undefined, err
	}
	if _, ok := args[0].AsString(); ok {
		return args[0], nil
	}
	return value.FromString(args[0].String()), nil
}

func safeFilter(_ value.State, args []value.Value, _ *value.Kwargs) (value.Value, error) {
	if err := expectArgs(args, 1, 1); err != nil {
		return value.Undefined, err
	}
	return value.FromSafeString(args[0].String()), nil
}

func escapeFilter(_ value.State, args []value.Value, _ *value.Kwargs) (value.Value, error) {
	if err := expectArgs(args, 1, 1); err != nil {
		return value.Undefined, err
	}
	return value.EscapeHTML(args[0]), nil
}

func intFilter(_ value.State, args []value.Value, kwargs *value.Kwargs) (value.Value, error) {
	if err := expectArgs(args, 1, 2); err != nil {
		return value.Undefined, err
	}
	def := optionalArg(args, kwargs, 1, "default", value.FromInt(0))
	switch args[0].Kind() {
	case value.KindInteger:
		return args[0], nil
	case value.KindBool:
		i, _ := args[0].AsInt()
		return value.FromInt(i), nil
	case value.KindFloat:
		f, _ := args[0].AsFloat()
		return value.FromInt(int64(math.Trunc(f))), nil
	case value.KindString:
		s, _ := args[0].AsString()
		s = strings.TrimSpace(s)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return value.FromInt(i), nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return value.FromInt(int64(math.Trunc(f))), nil
		}
	}
	return def, nil
}

func floatFilter(_ value.State, args []value.Value, kwargs *value.Kwargs) (value.Value, error) {
	if err := expectArgs(args, 1, 2); err != nil {
		return value.Undefined, err
	}
	def := optionalArg(args, kwargs, 1, "default", value.FromFloat(0))
	if f, ok := args[0].AsFloat(); ok {
		return value.FromFloat(f), nil
	}
	if s, ok := args[0].AsString(); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return value.FromFloat(f), nil
		}
	}
	return def, nil
}

// asNumberFilter parses numeric text, keeping integers integral.
func asNumberFilter(_ value.State, args []value.Value, _ *value.Kwargs) (value.Value, error) {
	if err := expectArgs(args, 1, 1); err != nil {
		return value.Undefined, err
	}
	if args[0].IsNumber() {
		return args[0], nil
	}
	s := strings.TrimSpace(args[0].String())
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return value.FromInt(i), nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return value.FromFloat(f), nil
	}
	return value.Undefined, value.NewError(value.ErrInvalidArgument, fmt.Sprintf("cannot convert %s to a number", args[0].Repr()))
}

func boolFilter(_ value.State, args []value.Value, _ *value.Kwargs) (value.Value, error) {
	if err := expectArgs(args, 1, 1); err != nil {
		return value.Undefined, err
	}
	if s, ok := args[0].AsString(); ok {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "yes", "on", "1":
			return value.True, nil
		case "false", "no", "off", "0", "":
			return value.False, nil
		}
	}
	return value.FromBool(args[0].IsTrue()), nil
}

func absFilter(_ value.State, args []value.Value, _ *value.Kwargs) (value.Value, error) {
	if err := expectArgs(args, 1, 1); err != nil {
		return value.Undefined, err
	}
	return value.Abs(args[0])
}

func roundFilter(_ value.State, args []value.Value, kwargs *value.Kwargs) (value.Value, error) {
	if err := expectArgs(args, 1, 3); err != nil {
		return value.Undefined, err
	}
	f, ok := args[0].AsFloat()
	if !ok {
		return value.Undefined, value.NewError(value.ErrInvalidArgument, fmt.Sprintf("cannot round %s", args[0].Kind()))
	}
	precision, err := intArg(args, kwargs, 1, "precision", 0)
	if err != nil {
		return value.Undefined, err
	}
	method, err := stringArg(args, kwargs, 2, "method", "common")
	if err != nil {
		return value.Undefined, err
	}
	scale := math.Pow(10, float64(precision))
	switch method {
	case "common":
		f = math.Round(f*scale) / scale
	case "ceil":
		f = math.Ceil(f*scale) / scale
	case "floor":
		f = math.Floor(f*scale) / scale
	default:
		return value.Undefined, value.NewError(value.ErrInvalidArgument,
			fmt.Sprintf("method must be common, ceil or floor, got '%s'", method))
	}
	return value.FromFloat(f), nil
}

func defaultFilter(_ value.State, args []value.Value, kwargs *value.Kwargs) (value.Value, error) {
	if err := expectArgs(args, 1, 3); err != nil {
		return value.Undefined, err
	}
	def := optionalArg(args, kwargs, 1, "default_value", value.FromString(""))
	if boolArg(args, kwargs, 2, "boolean", false) {
		if !args[0].IsTrue() {
			return def, nil
		}
		return args[0], nil
	}
	if args[0].IsUndefined() {
		return def, nil
	}
	return args[0], nil
}

// mapPairs returns keys and values of a map-like value in its own order.
func mapPairs(v value.Value) ([]value.Value, []value.Value, error) {
	if v.Kind() != value.KindMap {
		return nil, nil, value.NewError(value.ErrInvalidArgument, fmt.Sprintf("expected a map, got %s", v.Kind()))
	}
	keys, err := value.Collect(v)
	if err != nil {
		return nil, nil, err
	}
	vals := make([]value.Value, len(keys))
	for i, k := range keys {
		vals[i], _ = value.GetItem(v, k)
	}
	return keys, vals, nil
}

func itemsFilter(_ value.State, args []value.Value, _ *value.Kwargs) (value.Value, error) {
	if err := expectArgs(args, 1, 1); err != nil {
		return value.Undefined, err
	}
	if args[0].IsUndefined() {
		return value.FromSlice(nil), nil
	}
	keys, vals, err := mapPairs(args[0])
	if err != nil {
		return value.Undefined, err
	}
	result := make([]value.Value, len(keys))
	for i := range keys {
		result[i] = value.FromSlice([]value.Value{keys[i], vals[i]})
	}
	return value.FromSlice(result), nil
}

func dictsortFilter(_ value.State, args []value.Value, kwargs *value.Kwargs) (value.Value, error) {
	if err := expectArgs(args, 1, 4); err != nil {
		return value.Undefined, err
	}
	keys, vals, err := mapPairs(args[0])
	if err != nil {
		return value.Undefined, err
	}
	caseSensitive := boolArg(args, kwargs, 1, "case_sensitive", false)
	by, err := stringArg(args, kwargs, 2, "by", "key")
	if err != nil {
		return value.Undefined, err
	}
	if by != "key" && by != "value" {
		return value.Undefined, value.NewError(value.ErrInvalidArgument, "by must be 'key' or 'value'")
	}
	reverse := boolArg(args, kwargs, 3, "reverse", false)

	pairs := make([]value.Value, len(keys))
	for i := range keys {
		pairs[i] = value.FromSlice([]value.Value{keys[i], vals[i]})
	}
	idx := 0
	if by == "value" {
		idx = 1
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		a, _ := value.GetItem(pairs[i], value.FromInt(int64(idx)))
		b, _ := value.GetItem(pairs[j], value.FromInt(int64(idx)))
		return sortKey(a, b, caseSensitive, reverse) < 0
	})
	return value.FromSlice(pairs), nil
}

// sortKey compares a and b for sorting, folding case of strings unless
// caseSensitive is set.
func sortKey(a, b value.Value, caseSensitive, reverse bool) int {
	if !caseSensitive {
		if sa, ok := a.AsString(); ok {
			if sb, ok := b.AsString(); ok {
				a, b = value.FromString(strings.ToLower(sa)), value.FromString(strings.ToLower(sb))
			}
		}
	}
	c := value.SortCompare(a, b)
	if reverse {
		return -c
	}
	return c
}

func sortFilter(_ value.State, args []value.Value, kwargs *value.Kwargs) (value.Value, error) {
	if err := expectArgs(args, 1, 4); err != nil {
		return value.Undefined, err
	}
	items, err := value.Collect(args[0])
	if err != nil {
		return value.Undefined, err
	}
	reverse := boolArg(args, kwargs, 1, "reverse", false)
	caseSensitive := boolArg(args, kwargs, 2, "case_sensitive", false)
	attr := optionalArg(args, kwargs, 3, "attribute", value.None)

	sorted := append([]value.Value(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !attr.IsNone() {
			a, b = attributePath(a, attr), attributePath(b, attr)
		}
		return sortKey(a, b, caseSensitive, reverse) < 0
	})
	return value.FromSlice(sorted), nil
}

func uniqueFilter(_ value.State, args []value.Value, kwargs *value.Kwargs) (value.Value, error) {
	if err := expectArgs(args, 1, 3); err != nil {
		return value.Undefined, err
	}
	items, err := value.Collect(args[0])
	if err != nil {
		return value.Undefined, err
	}
	caseSensitive := boolArg(args, kwargs, 1, "case_sensitive", false)
	attr := optionalArg(args, kwargs, 2, "attribute", value.None)

	seen := value.NewMap()
	var result []value.Value
	for _, item := range items {
		key := item
		if !attr.IsNone() {
			key = attributePath(item, attr)
		}
		if s, ok := key.AsString(); ok && !caseSensitive {
			key = value.FromString(strings.ToLower(s))
		}
		if _, dup := seen.Get(key); dup {
			continue
		}
		seen.Set(key, value.True)
		result = append(result, item)
	}
	return value.FromSlice(result), nil
}

func reverseFilter(_ value.State, args []value.Value, _ *value.Kwargs) (value.Value, error) {
	if err := expectArgs(args, 1, 1); err != nil {
		return value.Undefined, err
	}
	if s, ok := args[0].AsString(); ok {
		runes := []rune(s)
		for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}
		return preserveSafe(args[0], string(runes)), nil
	}
	items, err := value.Collect(args[0])
	if err != nil {
		return value.Undefined, err
	}
	result := make([]value.Value, len(items))
	for i, item := range items {
		result[len(items)-1-i] = item
	}
	return value.FromSlice(result), nil
}

func sumFilter(_ value.State, args []value.Value, kwargs *value.Kwargs) (value.Value, error) {
	if err := expectArgs(args, 1, 3); err != nil {
		return value.Undefined, err
	}
	items, err := value.Collect(args[0])
	if err != nil {
		return value.Undefined, err
	}
	attr := optionalArg(args, kwargs, 1, "attribute", value.None)
	total := optionalArg(args, kwargs, 2, "start", value.FromInt(0))
	for _, item := range items {
		if !attr.IsNone() {
			item = attributePath(item, attr)
		}
		total, err = value.Add(total, item)
		if err != nil {
			return value.Undefined, err
		}
	}
	return total, nil
}

func extremeFilter(sign int) HostFunc {
	return func(_ value.State, args []value.Value, kwargs *value.Kwargs) (value.Value, error) {
		if err := expectArgs(args, 1, 3); err != nil {
			return value.Undefined, err
		}
		items, err := value.Collect(args[0])
		if err != nil {
			return value.Undefined, err
		}
		caseSensitive := boolArg(args, kwargs, 1, "case_sensitive", false)
		attr := optionalArg(args, kwargs, 2, "attribute", value.None)
		if len(items) == 0 {
			return value.Undefined, nil
		}
		best := items[0]
		for _, item := range items[1:] {
			a, b := item, best
			if !attr.IsNone() {
				a, b = attributePath(a, attr), attributePath(b, attr)
			}
			if sortKey(a, b, caseSensitive, false)*sign > 0 {
				best = item
			}
		}
		return best, nil
	}
}

func firstFilter(_ value.State, args []value.Value, _ *value.Kwargs) (value.Value, error) {
	if err := expectArgs(args, 1, 1); err != nil {
		return value.Undefined, err
	}
	if s, ok := args[0].AsString(); ok {
		r, size := utf8.DecodeRuneInString(s)
		if size == 0 {
			return value.Undefined, nil
		}
		return value.FromString(string(r)), nil
	}
	items, err := value.Collect(args[0])
	if err != nil {
		return value.Undefined, err
	}
	if len(items) == 0 {
		return value.Undefined, nil
	}
	return items[0], nil
}

func lastFilter(_ value.State, args []value.Value, _ *value.Kwargs) (value.Value, error) {
	if err := expectArgs(args, 1, 1); err != nil {
		return value.Undefined, err
	}
	if s, ok := args[0].AsString(); ok {
		r, size := utf8.DecodeLastRuneInString(s)
		if size == 0 {
			return value.Undefined, nil
		}
		return value.FromString(string(r)), nil
	}
	items, err := value.Collect(args[0])
	if err != nil {
		return value.Undefined, err
	}
	if len(items) == 0 {
		return value.Undefined, nil
	}
	return items[len(items)-1], nil
}

func listFilter(_ value.State, args []value.Value, _ *value.Kwargs) (value.Value, error) {
	if err := expectArgs(args, 1, 1); err != nil {
		return value.Undefined, err
	}
	if args[0].IsUndefined() {
		return value.FromSlice(nil), nil
	}
	items, err := value.Collect(args[0])
	if err != nil {
		return value.Undefined, err
	}
	return value.FromObject(value.NewMutableSeq(items)), nil
}

func batchFilter(_ value.State, args []value.Value, kwargs *value.Kwargs) (value.Value, error) {
	if err := expectArgs(args, 2, 3); err != nil {
		return value.Undefined, err
	}
	items, err := value.Collect(args[0])
	if err != nil {
		return value.Undefined, err
	}
	size, err := value.IntArg("linecount", args[1])
	if err != nil {
		return value.Undefined, err
	}
	if size <= 0 {
		return value.Undefined, value.NewError(value.ErrInvalidArgument, "batch size must be positive")
	}
	fill, hasFill := value.ArgOrKwarg(args, kwargs, 2, "fill_with")

	var result []value.Value
	for start := 0; start < len(items); start += int(size) {
		end := start + int(size)
		var chunk []value.Value
		if end > len(items) {
			chunk = append(chunk, items[start:]...)
			for hasFill && !fill.IsNone() && len(chunk) < int(size) {
				chunk = append(chunk, fill)
			}
		} else {
			chunk = append(chunk, items[start:end]...)
		}
		result = append(result, value.FromSlice(chunk))
	}
	return value.FromSlice(result), nil
}

// attributePath resolves dotted attribute names (`a.b.0`) on v.
func attributePath(v value.Value, path value.Value) value.Value {
	if idx, ok := path.AsInt(); ok && path.Kind() == value.KindInteger {
		item, _ := value.GetItem(v, value.FromInt(idx))
		return item
	}
	for _, part := range strings.Split(path.String(), ".") {
		if n, err := strconv.ParseInt(part, 10, 64); err == nil {
			v, _ = value.GetItem(v, value.FromInt(n))
			continue
		}
		if item, found := value.GetAttr(v, part); found {
			v = item
			continue
		}
		v, _ = value.GetItem(v, value.FromString(part))
	}
	return v
}

func attrFilter(_ value.State, args []value.Value, _ *value.Kwargs) (value.Value, error) {
	if err := expectArgs(args, 2, 2); err != nil {
		return value.Undefined, err
	}
	name, err := value.StringArg("name", args[1])
	if err != nil {
		return value.Undefined, err
	}
	val, _ := value.GetAttr(args[0], name)
	return val, nil
}

func callFilter(st value.State, name string, args []value.Value) (value.Value, error) {
	lookup, ok := st.(filterLookup)
	if !ok {
		return value.Undefined, value.NewError(value.ErrUnknownFilter, fmt.Sprintf("filter %s is unknown", name))
	}
	filter, found := lookup.Filter(name)
	if !found {
		return value.Undefined, value.NewError(value.ErrUnknownFilter, fmt.Sprintf("filter %s is unknown", name))
	}
	return value.Call(st, filter, args)
}

func callTest(st value.State, name string, args []value.Value) (bool, error) {
	lookup, ok := st.(testLookup)
	if !ok {
		return false, value.NewError(value.ErrUnknownTest, fmt.Sprintf("test %s is unknown", name))
	}
	test, found := lookup.Test(name)
	if !found {
		return false, value.NewError(value.ErrUnknownTest, fmt.Sprintf("test %s is unknown", name))
	}
	result, err := value.Call(st, test, args)
	if err != nil {
		return false, err
	}
	return result.IsTrue(), nil
}

type filterLookup interface {
	Filter(name string) (value.Value, bool)
}

type testLookup interface {
	Test(name string) (value.Value, bool)
}

// mapFilter applies a filter to every item or extracts an attribute:
// `items|map('upper')`, `items|map(attribute='name', default='')`.
func mapFilter(st value.State, args []value.Value, kwargs *value.Kwargs) (value.Value, error) {
	if err := expectArgs(args, 1, -1); err != nil {
		return value.Undefined, err
	}
	items, err := value.Collect(args[0])
	if err != nil {
		return value.Undefined, err
	}
	result := make([]value.Value, 0, len(items))

	if attr, found := kwargs.Get("attribute"); found {
		def, _ := kwargs.Get("default")
		for _, item := range items {
			val := attributePath(item, attr)
			if val.IsUndefined() {
				val = def
			}
			result = append(result, val)
		}
		return value.FromSlice(result), nil
	}

	if len(args) < 2 {
		return value.Undefined, value.NewError(value.ErrMissingArgument, "map requires a filter name or attribute")
	}
	name, err := value.StringArg("filter", args[1])
	if err != nil {
		return value.Undefined, err
	}
	for _, item := range items {
		filterArgs := append([]value.Value{item}, args[2:]...)
		val, err := callFilter(st, name, filterArgs)
		if err != nil {
			return value.Undefined, err
		}
		result = append(result, val)
	}
	return value.FromSlice(result), nil
}

func selectFilter(keep bool) HostFunc {
	return func(st value.State, args []value.Value, _ *value.Kwargs) (value.Value, error) {
		if err := expectArgs(args, 1, -1); err != nil {
			return value.Undefined, err
		}
		items, err := value.Collect(args[0])
		if err != nil {
			return value.Undefined, err
		}
		var result []value.Value
		for _, item := range items {
			passed := item.IsTrue()
			if len(args) > 1 {
				name, err := value.StringArg("test", args[1])
				if err != nil {
					return value.Undefined, err
				}
				passed, err = callTest(st, name, append([]value.Value{item}, args[2:]...))
				if err != nil {
					return value.Undefined, err
				}
			}
			if passed == keep {
				result = append(result, item)
			}
		}
		return value.FromSlice(result), nil
	}
}

func selectAttrFilter(keep bool) HostFunc {
	return func(st value.State, args []value.Value, _ *value.Kwargs) (value.Value, error) {
		if err := expectArgs(args, 2, -1); err != nil {
			return value.Undefined, err
		}
		items, err := value.Collect(args[0])
		if err != nil {
			return value.Undefined, err
		}
		var result []value.Value
		for _, item := range items {
			attr := attributePath(item, args[1])
			passed := attr.IsTrue()
			if len(args) > 2 {
				name, err := value.StringArg("test", args[2])
				if err != nil {
					return value.Undefined, err
				}
				passed, err = callTest(st, name, append([]value.Value{attr}, args[3:]...))
				if err != nil {
					return value.Undefined, err
				}
			}
			if passed == keep {
				result = append(result, item)
			}
		}
		return value.FromSlice(result), nil
	}
}

func indentFilter(_ value.State, args []value.Value, kwargs *value.Kwargs) (value.Value, error) {
	if err := expectArgs(args, 1, 4); err != nil {
		return value.Undefined, err
	}
	width, err := intArg(args, kwargs, 1, "width", 4)
	if err != nil {
		return value.Undefined, err
	}
	first := boolArg(args, kwargs, 2, "first", false)
	blank := boolArg(args, kwargs, 3, "blank", false)
	prefix := strings.Repeat(" ", int(width))

	lines := strings.Split(args[0].String(), "\n")
	for i, line := range lines {
		if i == 0 && !first {
			continue
		}
		if line == "" && !blank {
			continue
		}
		lines[i] = prefix + line
	}
	return preserveSafe(args[0], strings.Join(lines, "\n")), nil
}

func urlencodeFilter(_ value.State, args []value.Value, _ *value.Kwargs) (value.Value, error) {
	if err := expectArgs(args, 1, 1); err != nil {
		return value.Undefined, err
	}
	if args[0].Kind() == value.KindMap {
		keys, vals, err := mapPairs(args[0])
		if err != nil {
			return value.Undefined, err
		}
		parts := make([]string, len(keys))
		for i := range keys {
			parts[i] = url.QueryEscape(keys[i].String()) + "=" + url.QueryEscape(vals[i].String())
		}
		return value.FromString(strings.Join(parts, "&")), nil
	}
	return value.FromString(strings.ReplaceAll(url.QueryEscape(args[0].String()), "+", "%20")), nil
}

func wordcountFilter(_ value.State, args []value.Value, _ *value.Kwargs) (value.Value, error) {
	if err := expectArgs(args, 1, 1); err != nil {
		return value.Undefined, err
	}
	return value.FromInt(int64(len(strings.Fields(args[0].String())))), nil
}
