// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package value

import (
	"fmt"
	"math/big"
	"reflect"
	"sort"
	"time"

	"carvel.dev/jtt/pkg/orderedmap"
)

// FromGo converts native Go data (as produced by JSON/YAML/TOML decoders or
// host code) into a Value. Structs expose exported fields by name.
func FromGo(val interface{}) Value {
	switch typed := val.(type) {
	case nil:
		return None
	case Value:
		return typed
	case Object:
		return FromObject(typed)
	case *Map:
		return FromMap(typed)
	case bool:
		return FromBool(typed)
	case string:
		return FromString(typed)
	case []byte:
		return FromBytes(typed)
	case int:
		return FromInt(int64(typed))
	case int32:
		return FromInt(int64(typed))
	case int64:
		return FromInt(typed)
	case uint64:
		return fromBig(new(big.Int).SetUint64(typed))
	case float32:
		return FromFloat(float64(typed))
	case float64:
		return FromFloat(typed)
	case *big.Int:
		v, err := checkedWide(typed, "conversion")
		if err != nil {
			return FromFloat(func() float64 { f, _ := new(big.Float).SetInt(typed).Float64(); return f }())
		}
		return v
	case time.Time:
		return FromString(typed.Format(time.RFC3339))
	case []Value:
		return FromSlice(typed)
	case []interface{}:
		items := make([]Value, len(typed))
		for i, item := range typed {
			items[i] = FromGo(item)
		}
		return FromSlice(items)
	case *orderedmap.Map[string, interface{}]:
		m := NewMap()
		typed.Iterate(func(k string, v interface{}) { m.SetString(k, FromGo(v)) })
		return FromMap(m)
	case map[string]interface{}:
		m := NewMap()
		for _, k := range orderedmap.SortedKeys(typed) {
			m.SetString(k, FromGo(typed[k]))
		}
		return FromMap(m)
	case map[interface{}]interface{}:
		m := NewMap()
		keys := make([]interface{}, 0, len(typed))
		for k := range typed {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return fmt.Sprint(keys[i]) < fmt.Sprint(keys[j]) })
		for _, k := range keys {
			m.Set(FromGo(k), FromGo(typed[k]))
		}
		return FromMap(m)
	}
	return fromReflectValue(reflect.ValueOf(val))
}

func fromReflectValue(rv reflect.Value) Value {
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return None
		}
		return FromGo(rv.Elem().Interface())
	case reflect.Bool:
		return FromBool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return FromInt(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return fromBig(new(big.Int).SetUint64(rv.Uint()))
	case reflect.Float32, reflect.Float64:
		return FromFloat(rv.Float())
	case reflect.String:
		return FromString(rv.String())
	case reflect.Slice, reflect.Array:
		items := make([]Value, rv.Len())
		for i := range items {
			items[i] = FromGo(rv.Index(i).Interface())
		}
		return FromSlice(items)
	case reflect.Map:
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
		})
		m := NewMap()
		for _, k := range keys {
			m.Set(FromGo(k.Interface()), FromGo(rv.MapIndex(k).Interface()))
		}
		return FromMap(m)
	case reflect.Struct:
		m := NewMap()
		rt := rv.Type()
		for i := 0; i < rt.NumField(); i++ {
			field := rt.Field(i)
			if field.PkgPath != "" {
				continue
			}
			m.SetString(field.Name, FromGo(rv.Field(i).Interface()))
		}
		return FromMap(m)
	case reflect.Invalid:
		return None
	default:
		return FromString(fmt.Sprintf("%v", rv.Interface()))
	}
}

// ToGo converts a Value into plain Go data: nil, bool, int64, *big.Int,
// float64, string, []byte, []interface{} and *orderedmap.Map[string, interface{}]
// for maps. Non-string map keys are rendered as strings.
func ToGo(v Value) (interface{}, error) {
	switch typed := v.data.(type) {
	case nil, noneType:
		return nil, nil
	case bool, int64, float64, string:
		return typed, nil
	case *big.Int:
		return new(big.Int).Set(typed), nil
	case safeString:
		return string(typed), nil
	case []byte:
		return typed, nil
	}

	switch v.Kind() {
	case KindSeq, KindIterable:
		items, err := Collect(v)
		if err != nil {
			return nil, err
		}
		result := make([]interface{}, len(items))
		for i, item := range items {
			result[i], err = ToGo(item)
			if err != nil {
				return nil, err
			}
		}
		return result, nil
	case KindMap:
		keys, err := Collect(v)
		if err != nil {
			return nil, err
		}
		result := orderedmap.NewMap[string, interface{}]()
		for _, k := range keys {
			item, _ := GetItem(v, k)
			goItem, err := ToGo(item)
			if err != nil {
				return nil, err
			}
			result.Set(k.String(), goItem)
		}
		return result, nil
	default:
		return v.String(), nil
	}
}

// ToUnorderedGo is like ToGo but produces map[string]interface{} for maps,
// which is what encoders such as TOML expect.
func ToUnorderedGo(v Value) (interface{}, error) {
	goVal, err := ToGo(v)
	if err != nil {
		return nil, err
	}
	return unorderMaps(goVal), nil
}

func unorderMaps(val interface{}) interface{} {
	switch typed := val.(type) {
	case *orderedmap.Map[string, interface{}]:
		result := map[string]interface{}{}
		typed.Iterate(func(k string, v interface{}) { result[k] = unorderMaps(v) })
		return result
	case []interface{}:
		for i, item := range typed {
			typed[i] = unorderMaps(item)
		}
		return typed
	default:
		return typed
	}
}
