// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package value

import (
	"bytes"
	"fmt"
	"strings"
)

// Equal reports whether two values are equal: same variant and contents.
// Integers and floats compare by numeric value.
func Equal(a, b Value) bool {
	if a.IsNumber() && b.IsNumber() {
		c, ok := compareNumbers(a, b)
		return ok && c == 0
	}

	switch ta := a.data.(type) {
	case nil:
		return b.data == nil
	case noneType:
		return b.IsNone()
	case bool:
		tb, ok := b.data.(bool)
		return ok && ta == tb
	case string, safeString:
		sa, _ := a.AsString()
		sb, ok := b.AsString()
		return ok && sa == sb
	case []byte:
		tb, ok := b.data.([]byte)
		return ok && bytes.Equal(ta, tb)
	}

	if oa, ok := a.data.(Object); ok {
		if ob, ok := b.data.(Object); ok {
			if _, isEq := oa.(Equaler); isEq || oa.Repr() == ReprPlain || oa.Repr() == ReprIterable {
				return objectsEqual(oa, ob)
			}
		}
	}

	switch {
	case a.Kind() == KindSeq && b.Kind() == KindSeq:
		return seqEqual(a, b)
	case a.Kind() == KindMap && b.Kind() == KindMap:
		return mapEqual(a, b)
	}
	return false
}

func seqEqual(a, b Value) bool {
	itemsA, errA := Collect(a)
	itemsB, errB := Collect(b)
	if errA != nil || errB != nil || len(itemsA) != len(itemsB) {
		return false
	}
	for i := range itemsA {
		if !Equal(itemsA[i], itemsB[i]) {
			return false
		}
	}
	return true
}

func mapEqual(a, b Value) bool {
	keysA, errA := Collect(a)
	keysB, errB := Collect(b)
	if errA != nil || errB != nil || len(keysA) != len(keysB) {
		return false
	}
	for _, k := range keysA {
		va, _ := GetItem(a, k)
		vb, found := GetItem(b, k)
		if !found || !Equal(va, vb) {
			return false
		}
	}
	return true
}

func compareNumbers(a, b Value) (int, bool) {
	ba, aIsInt := a.AsBigInt()
	bb, bIsInt := b.AsBigInt()
	if aIsInt && bIsInt {
		return ba.Cmp(bb), true
	}
	fa, okA := a.AsFloat()
	fb, okB := b.AsFloat()
	if !okA || !okB {
		return 0, false
	}
	switch {
	case fa < fb:
		return -1, true
	case fa > fb:
		return 1, true
	case fa == fb:
		return 0, true
	}
	// NaN
	return 0, false
}

// Compare orders two values of compatible kinds: numbers, strings,
// bools and sequences (lexicographically).
func Compare(a, b Value) (int, error) {
	if a.IsNumber() && b.IsNumber() {
		if c, ok := compareNumbers(a, b); ok {
			return c, nil
		}
	}
	if sa, ok := a.AsString(); ok {
		if sb, ok := b.AsString(); ok {
			return strings.Compare(sa, sb), nil
		}
	}
	if ba, ok := a.AsBool(); ok {
		if bb, ok := b.AsBool(); ok {
			return boolInt(ba) - boolInt(bb), nil
		}
	}
	if a.Kind() == KindSeq && b.Kind() == KindSeq {
		itemsA, errA := Collect(a)
		itemsB, errB := Collect(b)
		if errA == nil && errB == nil {
			for i := 0; i < len(itemsA) && i < len(itemsB); i++ {
				c, err := Compare(itemsA[i], itemsB[i])
				if err != nil || c != 0 {
					return c, err
				}
			}
			return len(itemsA) - len(itemsB), nil
		}
	}
	return 0, NewError(ErrTypeMismatch, fmt.Sprintf("cannot compare %s with %s", a.Kind(), b.Kind()))
}

// SortCompare is a total order usable for sorting heterogeneous values:
// incomparable values are ordered by kind.
func SortCompare(a, b Value) int {
	if c, err := Compare(a, b); err == nil {
		return c
	}
	ka, kb := sortKindRank(a.Kind()), sortKindRank(b.Kind())
	if ka != kb {
		return ka - kb
	}
	return strings.Compare(a.String(), b.String())
}

func sortKindRank(k Kind) int {
	switch k {
	case KindInteger, KindFloat:
		return int(KindInteger)
	default:
		return int(k)
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Contains implements the "in" operator: substring, item membership or key presence.
func Contains(container, needle Value) (bool, error) {
	if s, ok := container.AsString(); ok {
		n, ok := needle.AsString()
		if !ok {
			return false, NewError(ErrTypeMismatch, fmt.Sprintf("cannot check if %s is in string", needle.Kind()))
		}
		return strings.Contains(s, n), nil
	}
	switch container.Kind() {
	case KindMap:
		_, found := GetItem(container, needle)
		return found, nil
	case KindSeq, KindIterable:
		items, err := Collect(container)
		if err != nil {
			return false, err
		}
		for _, item := range items {
			if Equal(item, needle) {
				return true, nil
			}
		}
		return false, nil
	case KindUndefined:
		return false, nil
	}
	return false, NewError(ErrTypeMismatch, fmt.Sprintf("cannot perform a containment check on %s", container.Kind()))
}
