// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package value

import (
	"math"
	"math/big"
	"unicode/utf8"
)

// Kind describes the type of a Value.
type Kind int

const (
	KindUndefined Kind = iota
	KindNone
	KindBool
	KindInteger
	KindFloat
	KindString
	KindBytes
	KindSeq
	KindMap
	KindIterable
	KindPlain
)

func (k Kind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindNone:
		return "none"
	case KindBool:
		return "bool"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindSeq:
		return "sequence"
	case KindMap:
		return "map"
	case KindIterable:
		return "iterator"
	case KindPlain:
		return "plain object"
	default:
		return "unknown"
	}
}

// Value is the universal runtime datum. The zero Value is Undefined.
// Values are immutable handles and cheap to copy; mutation is only possible
// through an Object's own methods.
type Value struct {
	data interface{}
}

type noneType struct{}

// safeString is a string that must not be escaped on output.
type safeString string

// seqData is shared between copies of a Value and never mutated.
type seqData []Value

var (
	Undefined = Value{}
	None      = Value{data: noneType{}}
	True      = Value{data: true}
	False     = Value{data: false}
)

func FromBool(v bool) Value     { return Value{data: v} }
func FromInt(v int64) Value     { return Value{data: v} }
func FromFloat(v float64) Value { return Value{data: v} }
func FromString(v string) Value { return Value{data: v} }

// FromSafeString creates a string that is emitted verbatim even when
// auto escaping is enabled.
func FromSafeString(v string) Value { return Value{data: safeString(v)} }

func FromBytes(v []byte) Value { return Value{data: append([]byte(nil), v...)} }

// FromSlice creates a sequence; the slice must not be modified afterwards.
func FromSlice(items []Value) Value { return Value{data: seqData(items)} }

func FromMap(m *Map) Value { return Value{data: m} }

func FromObject(obj Object) Value {
	if obj == nil {
		return None
	}
	return Value{data: obj}
}

// fromBig normalizes a big integer into int64 when it fits.
func fromBig(v *big.Int) Value {
	if v.IsInt64() {
		return Value{data: v.Int64()}
	}
	return Value{data: new(big.Int).Set(v)}
}

func (v Value) Kind() Kind {
	switch typed := v.data.(type) {
	case nil:
		return KindUndefined
	case noneType:
		return KindNone
	case bool:
		return KindBool
	case int64, *big.Int:
		return KindInteger
	case float64:
		return KindFloat
	case string, safeString:
		return KindString
	case []byte:
		return KindBytes
	case seqData:
		return KindSeq
	case *Map:
		return KindMap
	case Object:
		switch typed.Repr() {
		case ReprSeq:
			return KindSeq
		case ReprMap:
			return KindMap
		case ReprIterable:
			return KindIterable
		default:
			return KindPlain
		}
	default:
		return KindPlain
	}
}

func (v Value) IsUndefined() bool { return v.data == nil }

func (v Value) IsNone() bool {
	_, ok := v.data.(noneType)
	return ok
}

// IsSafe reports whether the value is a string marked safe from escaping.
func (v Value) IsSafe() bool {
	_, ok := v.data.(safeString)
	return ok
}

// IsTrue returns the truthiness of the value.
func (v Value) IsTrue() bool {
	switch typed := v.data.(type) {
	case nil, noneType:
		return false
	case bool:
		return typed
	case int64:
		return typed != 0
	case *big.Int:
		return typed.Sign() != 0
	case float64:
		return typed != 0
	case string:
		return len(typed) > 0
	case safeString:
		return len(typed) > 0
	case []byte:
		return len(typed) > 0
	case seqData:
		return len(typed) > 0
	case *Map:
		return typed.Len() > 0
	case Object:
		return objectIsTrue(typed)
	default:
		return true
	}
}

func (v Value) AsString() (string, bool) {
	switch typed := v.data.(type) {
	case string:
		return typed, true
	case safeString:
		return string(typed), true
	default:
		return "", false
	}
}

// AsInt returns int64 value; widened integers and integral floats outside of
// int64 range are not convertible.
func (v Value) AsInt() (int64, bool) {
	switch typed := v.data.(type) {
	case int64:
		return typed, true
	case bool:
		if typed {
			return 1, true
		}
		return 0, true
	case float64:
		if typed == math.Trunc(typed) && typed >= math.MinInt64 && typed < math.MaxInt64 {
			return int64(typed), true
		}
		return 0, false
	default:
		return 0, false
	}
}

func (v Value) AsFloat() (float64, bool) {
	switch typed := v.data.(type) {
	case int64:
		return float64(typed), true
	case *big.Int:
		f, _ := new(big.Float).SetInt(typed).Float64()
		return f, true
	case float64:
		return typed, true
	default:
		return 0, false
	}
}

// AsBigInt returns the value as a big integer if it is an integer.
func (v Value) AsBigInt() (*big.Int, bool) {
	switch typed := v.data.(type) {
	case int64:
		return big.NewInt(typed), true
	case *big.Int:
		return new(big.Int).Set(typed), true
	default:
		return nil, false
	}
}

func (v Value) AsBool() (bool, bool) {
	b, ok := v.data.(bool)
	return b, ok
}

func (v Value) AsBytes() ([]byte, bool) {
	b, ok := v.data.([]byte)
	return b, ok
}

// AsSlice returns the items of a sequence. Items of a MutableSeq are
// copied so the caller never aliases the list.
func (v Value) AsSlice() ([]Value, bool) {
	switch typed := v.data.(type) {
	case seqData:
		return []Value(typed), true
	case *MutableSeq:
		return typed.Items(), true
	}
	return nil, false
}

// AsMap returns the entries of a map. A MutableMap yields a snapshot.
func (v Value) AsMap() (*Map, bool) {
	switch typed := v.data.(type) {
	case *Map:
		return typed, true
	case *MutableMap:
		return typed.Snapshot(), true
	}
	return nil, false
}

func (v Value) AsObject() (Object, bool) {
	o, ok := v.data.(Object)
	return o, ok
}

// AsObjectOf is the checked downcast used by bridging code that needs a
// concrete host type.
func AsObjectOf[T Object](v Value) (T, bool) {
	var zero T
	obj, ok := v.data.(Object)
	if !ok {
		return zero, false
	}
	typed, ok := obj.(T)
	return typed, ok
}

// Len returns the length of strings, bytes, sequences, maps and objects
// that know their size.
func (v Value) Len() (int, bool) {
	switch typed := v.data.(type) {
	case string:
		return utf8.RuneCountInString(typed), true
	case safeString:
		return utf8.RuneCountInString(string(typed)), true
	case []byte:
		return len(typed), true
	case seqData:
		return len(typed), true
	case *Map:
		return typed.Len(), true
	case Object:
		return objectLen(typed)
	default:
		return 0, false
	}
}

// IsNumber reports whether value is an integer or a float.
func (v Value) IsNumber() bool {
	k := v.Kind()
	return k == KindInteger || k == KindFloat
}

// Raw returns the underlying Go representation.
func (v Value) Raw() interface{} { return v.data }
