// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package starlarkfn

import (
	"fmt"
	"math/big"
	"sort"

	"carvel.dev/jtt/pkg/value"
	"github.com/k14s/starlark-go/starlark"
	"github.com/k14s/starlark-go/starlarkstruct"
)

// toStarlark converts a template value for use by Starlark code.
func toStarlark(val value.Value) (starlark.Value, error) {
	switch val.Kind() {
	case value.KindUndefined, value.KindNone:
		return starlark.None, nil

	case value.KindBool:
		b, _ := val.AsBool()
		return starlark.Bool(b), nil

	case value.KindInteger:
		if i, ok := val.AsInt(); ok {
			return starlark.MakeInt64(i), nil
		}
		wide, _ := val.AsBigInt()
		return starlark.MakeBigInt(wide), nil

	case value.KindFloat:
		f, _ := val.AsFloat()
		return starlark.Float(f), nil

	case value.KindString:
		s, _ := val.AsString()
		return starlark.String(s), nil

	case value.KindBytes:
		bs, _ := val.AsBytes()
		return starlark.String(bs), nil

	case value.KindMap:
		return mapToStarlark(val)

	case value.KindSeq, value.KindIterable:
		items, err := value.Collect(val)
		if err != nil {
			return nil, err
		}
		list := make([]starlark.Value, 0, len(items))
		for _, item := range items {
			converted, err := toStarlark(item)
			if err != nil {
				return nil, err
			}
			list = append(list, converted)
		}
		return starlark.NewList(list), nil
	}

	if obj, ok := val.AsObject(); ok {
		if _, ok := obj.(value.Callable); ok {
			return callableToStarlark(val), nil
		}
	}
	return nil, fmt.Errorf("unable to pass %s value to Starlark", val.Kind())
}

func mapToStarlark(val value.Value) (starlark.Value, error) {
	m, ok := val.AsMap()
	if !ok {
		keys, err := value.Collect(val)
		if err != nil {
			return nil, err
		}
		m = value.NewMap()
		for _, key := range keys {
			item, _ := value.GetItem(val, key)
			m.Set(key, item)
		}
	}

	dict := starlark.NewDict(m.Len())
	err := m.IterateErr(func(k, v value.Value) error {
		key, err := toStarlark(k)
		if err != nil {
			return err
		}
		item, err := toStarlark(v)
		if err != nil {
			return err
		}
		return dict.SetKey(key, item)
	})
	if err != nil {
		return nil, err
	}
	return dict, nil
}

// callableToStarlark lets Starlark code call back into templates, e.g. a
// macro passed as an argument.
func callableToStarlark(val value.Value) starlark.Value {
	return starlark.NewBuiltin("callable", func(thread *starlark.Thread, _ *starlark.Builtin,
		args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {

		callArgs, err := fromStarlarkArgs(args, kwargs)
		if err != nil {
			return nil, err
		}
		result, err := value.Call(callerState(thread), val, callArgs)
		if err != nil {
			return nil, err
		}
		return toStarlark(result)
	})
}

// fromStarlark converts a value returned by Starlark code.
func fromStarlark(val starlark.Value) (value.Value, error) {
	switch typed := val.(type) {
	case nil, starlark.NoneType:
		return value.None, nil

	case starlark.Bool:
		return value.FromBool(bool(typed)), nil

	case starlark.Int:
		if i, ok := typed.Int64(); ok {
			return value.FromInt(i), nil
		}
		wide, ok := new(big.Int).SetString(typed.String(), 10)
		if !ok {
			return value.Undefined, fmt.Errorf("unable to convert integer %s", typed.String())
		}
		return value.FromBigInt(wide)

	case starlark.Float:
		return value.FromFloat(float64(typed)), nil

	case starlark.String:
		return value.FromString(string(typed)), nil

	case *starlark.Dict:
		m := value.NewMap()
		for _, item := range typed.Items() {
			k, err := fromStarlark(item[0])
			if err != nil {
				return value.Undefined, err
			}
			v, err := fromStarlark(item[1])
			if err != nil {
				return value.Undefined, err
			}
			m.Set(k, v)
		}
		return value.FromMap(m), nil

	case *starlarkstruct.Struct:
		// AttrNames is sorted which keeps conversion deterministic
		m := value.NewMap()
		names := typed.AttrNames()
		sort.Strings(names)
		for _, name := range names {
			attr, err := typed.Attr(name)
			if err != nil {
				return value.Undefined, err
			}
			v, err := fromStarlark(attr)
			if err != nil {
				return value.Undefined, err
			}
			m.SetString(name, v)
		}
		return value.FromMap(m), nil

	case *starlark.List:
		return iterableFromStarlark(typed)

	case starlark.Tuple:
		return iterableFromStarlark(typed)

	case *starlark.Set:
		return iterableFromStarlark(typed)

	case starlark.Callable:
		return value.FromObject(newFunction(typed.Name(), typed)), nil

	default:
		return value.Undefined, fmt.Errorf("unknown Starlark type %s for conversion", val.Type())
	}
}

func iterableFromStarlark(iterable starlark.Iterable) (value.Value, error) {
	var items []value.Value
	iter := iterable.Iterate()
	defer iter.Done()

	var x starlark.Value
	for iter.Next(&x) {
		item, err := fromStarlark(x)
		if err != nil {
			return value.Undefined, err
		}
		items = append(items, item)
	}
	return value.FromSlice(items), nil
}

func fromStarlarkArgs(args starlark.Tuple, kwargs []starlark.Tuple) ([]value.Value, error) {
	result := make([]value.Value, 0, len(args)+1)
	for _, arg := range args {
		converted, err := fromStarlark(arg)
		if err != nil {
			return nil, err
		}
		result = append(result, converted)
	}
	if len(kwargs) > 0 {
		m := value.NewMap()
		for _, kwarg := range kwargs {
			converted, err := fromStarlark(kwarg[1])
			if err != nil {
				return nil, err
			}
			m.SetString(string(kwarg[0].(starlark.String)), converted)
		}
		result = append(result, value.FromObject(value.NewKwargs(m)))
	}
	return result, nil
}
