// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package typecheck

import (
	"sort"
)

// IsSubtype reports whether a value of type a can be used where b is
// expected. Any is compatible in both directions.
func IsSubtype(a, b Type) bool {
	if IsAny(a) || IsAny(b) {
		return true
	}

	if bu, ok := b.(Union); ok {
		if au, ok := a.(Union); ok {
			for _, m := range au.members {
				if !IsSubtype(m, b) {
					return false
				}
			}
			return true
		}
		for _, m := range bu.members {
			if IsSubtype(a, m) {
				return true
			}
		}
		return false
	}
	if au, ok := a.(Union); ok {
		for _, m := range au.members {
			if !IsSubtype(m, b) {
				return false
			}
		}
		return true
	}

	switch at := a.(type) {
	case String:
		bt, ok := b.(String)
		return ok && (!bt.Known || (at.Known && at.Literal == bt.Literal))

	case Integer:
		switch bt := b.(type) {
		case Integer:
			return !bt.Known || (at.Known && at.Literal == bt.Literal)
		case Float:
			return true
		}
		return false

	case List:
		switch bt := b.(type) {
		case List:
			return IsSubtype(at.Elem, bt.Elem)
		case Iterable:
			return IsSubtype(at.Elem, bt.Elem)
		}
		return false

	case Iterable:
		bt, ok := b.(Iterable)
		return ok && IsSubtype(at.Elem, bt.Elem)

	case Tuple:
		switch bt := b.(type) {
		case Tuple:
			if len(at.Elems) != len(bt.Elems) {
				return false
			}
			for i := range at.Elems {
				if !IsSubtype(at.Elems[i], bt.Elems[i]) {
					return false
				}
			}
			return true
		case Iterable:
			for _, elem := range at.Elems {
				if !IsSubtype(elem, bt.Elem) {
					return false
				}
			}
			return true
		}
		return false

	case Dict:
		bt, ok := b.(Dict)
		return ok && IsSubtype(at.Key, bt.Key) && IsSubtype(at.Value, bt.Value)

	case Struct:
		switch bt := b.(type) {
		case Dict:
			if _, ok := bt.Key.(String); !ok {
				return false
			}
			for _, field := range at.Fields {
				if !IsSubtype(field, bt.Value) {
					return false
				}
			}
			return true
		case Struct:
			return fieldsSubtype(at.Fields, bt.Fields)
		}
		return false

	case Kwargs:
		switch bt := b.(type) {
		case Kwargs:
			return fieldsSubtype(at.Fields, bt.Fields)
		case Dict:
			return IsSubtype(Struct{at.Fields}, bt)
		}
		return false

	case Class:
		bt, ok := b.(Class)
		if !ok {
			return false
		}
		if at.ClassType.Name() == bt.ClassType.Name() {
			return true
		}
		if inh, ok := at.ClassType.(Inheriting); ok {
			return inh.InheritsFrom(bt.ClassType.Name())
		}
		return false

	case Function:
		bt, ok := b.(Function)
		if !ok {
			return false
		}
		as, aok := at.Fn.(*Signature)
		bs, bok := bt.Fn.(*Signature)
		if aok && bok {
			if len(as.Args) != len(bs.Args) {
				return false
			}
			for i := range as.Args {
				if !IsSubtype(as.Args[i].Type, bs.Args[i].Type) {
					return false
				}
			}
			return IsSubtype(as.Ret, bs.Ret)
		}
		return at.Fn.Name() == bt.Fn.Name()
	}

	return Equal(a, b)
}

func fieldsSubtype(a, b map[string]Type) bool {
	if len(a) != len(b) {
		return false
	}
	for name, at := range a {
		bt, found := b[name]
		if !found || !IsSubtype(at, bt) {
			return false
		}
	}
	return true
}

// UnionOf builds a normalized union: nested unions are flattened, members
// that are subtypes of another member are dropped, and a hard Any
// collapses the result to hard Any. Otherwise soft Any absorbs every other
// member. An empty union is hard Any.
func UnionOf(types ...Type) Type {
	var flat []Type
	seen := map[string]struct{}{}
	soft := false
	for _, t := range types {
		if t == nil {
			continue
		}
		if u, ok := t.(Union); ok {
			for _, m := range u.members {
				flat = appendUnique(flat, seen, m)
			}
			continue
		}
		if a, ok := t.(Any); ok {
			if a.Hard {
				return HardAny
			}
			soft = true
			continue
		}
		flat = appendUnique(flat, seen, t)
	}
	if soft {
		return SoftAny
	}

	sort.Slice(flat, func(i, j int) bool { return Less(flat[i], flat[j]) })

	var result []Type
	for i, candidate := range flat {
		absorbed := false
		for j, other := range flat {
			if i == j || !IsSubtype(candidate, other) {
				continue
			}
			// Mutual subtypes keep the first one in canonical order.
			if !IsSubtype(other, candidate) || j < i {
				absorbed = true
				break
			}
		}
		if !absorbed {
			result = append(result, candidate)
		}
	}

	switch len(result) {
	case 0:
		return HardAny
	case 1:
		return result[0]
	}
	return Union{members: result}
}

func appendUnique(types []Type, seen map[string]struct{}, t Type) []Type {
	key := t.String()
	if _, found := seen[key]; found {
		return types
	}
	seen[key] = struct{}{}
	return append(types, t)
}

// CanCompare reports whether values of a and b can be compared with op.
// Equality works between most types; ordering requires compatible types.
func CanCompare(a, b Type, op string) bool {
	if IsAny(a) || IsAny(b) {
		return true
	}
	if au, ok := a.(Union); ok {
		for _, m := range au.members {
			if !CanCompare(m, b, op) {
				return false
			}
		}
		return true
	}
	if bu, ok := b.(Union); ok {
		for _, m := range bu.members {
			if !CanCompare(a, m, op) {
				return false
			}
		}
		return true
	}

	_, aNone := a.(None)
	_, bNone := b.(None)
	_, aUndef := a.(Undefined)
	_, bUndef := b.(Undefined)

	switch op {
	case "==", "!=":
		if aNone || bNone || aUndef || bUndef {
			return true
		}
		if isNumeric(a) && isNumeric(b) {
			return true
		}
		return IsSubtype(Widen(a), Widen(b)) || IsSubtype(Widen(b), Widen(a))
	default:
		if aNone && bNone {
			return true
		}
		if aNone || bNone {
			return false
		}
		if isNumeric(a) && isNumeric(b) {
			return true
		}
		switch a.(type) {
		case String, Bool, List, Tuple, Timestamp:
			return Equal(Widen(a), Widen(b))
		}
		return false
	}
}

func isNumeric(t Type) bool {
	switch t.(type) {
	case Integer, Float, Bool:
		return true
	}
	return false
}

// BinaryResult infers the result of an arithmetic operator. ok is false
// when the operands do not support op.
func BinaryResult(op string, a, b Type) (Type, bool) {
	if anyA, ok := a.(Any); ok {
		return anyA, true
	}
	if anyB, ok := b.(Any); ok {
		return anyB, true
	}
	if op == "~" {
		return String{}, true
	}

	if au, ok := a.(Union); ok {
		return unionBinary(op, au.members, []Type{b})
	}
	if bu, ok := b.(Union); ok {
		return unionBinary(op, []Type{a}, bu.members)
	}

	switch at := a.(type) {
	case String:
		switch b.(type) {
		case String:
			if op == "+" {
				return String{}, true
			}
		case Integer:
			if op == "*" {
				return String{}, true
			}
		}
		// printf style formatting accepts any right hand side
		if op == "%" {
			return String{}, true
		}
		return nil, false

	case Integer, Bool:
		switch b.(type) {
		case Integer, Bool:
			if op == "/" {
				return Float{}, true
			}
			return Integer{}, true
		case Float:
			return Float{}, true
		case String:
			if op == "*" {
				return String{}, true
			}
		case List:
			if op == "*" {
				return b, true
			}
		}
		return nil, false

	case Float:
		if isNumeric(b) {
			return Float{}, true
		}
		return nil, false

	case List:
		switch bt := b.(type) {
		case List:
			if op == "+" {
				return List{UnionOf(at.Elem, bt.Elem)}, true
			}
		case Integer:
			if op == "*" {
				return at, true
			}
		}
		return nil, false

	case Tuple:
		if bt, ok := b.(Tuple); ok && op == "+" {
			return Tuple{append(append([]Type(nil), at.Elems...), bt.Elems...)}, true
		}
		return nil, false
	}
	return nil, false
}

func unionBinary(op string, as, bs []Type) (Type, bool) {
	var results []Type
	for _, a := range as {
		for _, b := range bs {
			r, ok := BinaryResult(op, a, b)
			if !ok {
				return nil, false
			}
			results = append(results, r)
		}
	}
	return UnionOf(results...), true
}
