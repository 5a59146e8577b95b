// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package value

import (
	"fmt"
)

// Slice implements `v[start:stop:step]` over strings and sequences.
// A None stop means "until the end". Negative indexes count from the end.
func Slice(v, start, stop, step Value) (Value, error) {
	stepN := int64(1)
	if !step.IsNone() && !step.IsUndefined() {
		n, err := IntArg("step", step)
		if err != nil {
			return Undefined, err
		}
		if n == 0 {
			return Undefined, NewError(ErrInvalidOperation, "cannot slice by step size of 0")
		}
		stepN = n
	}

	var items []Value
	var runes []rune
	isString := false

	switch {
	case v.Kind() == KindString:
		s, _ := v.AsString()
		runes = []rune(s)
		isString = true
	case v.IsUndefined() || v.IsNone():
		return FromSlice(nil), nil
	default:
		collected, err := Collect(v)
		if err != nil {
			return Undefined, NewError(ErrInvalidOperation, fmt.Sprintf("value of type %s cannot be sliced", v.Kind()))
		}
		items = collected
	}

	length := len(items)
	if isString {
		length = len(runes)
	}

	indexes, err := sliceIndexes(length, start, stop, stepN)
	if err != nil {
		return Undefined, err
	}

	if isString {
		result := make([]rune, 0, len(indexes))
		for _, idx := range indexes {
			result = append(result, runes[idx])
		}
		if v.IsSafe() {
			return FromSafeString(string(result)), nil
		}
		return FromString(string(result)), nil
	}

	result := make([]Value, 0, len(indexes))
	for _, idx := range indexes {
		result = append(result, items[idx])
	}
	return FromSlice(result), nil
}

func sliceIndexes(length int, start, stop Value, step int64) ([]int, error) {
	bound := func(v Value, def int64) (int64, error) {
		if v.IsNone() || v.IsUndefined() {
			return def, nil
		}
		n, err := IntArg("slice index", v)
		if err != nil {
			return 0, err
		}
		if n < 0 {
			n += int64(length)
		}
		return n, nil
	}

	var from, to int64
	var err error
	if step > 0 {
		if from, err = bound(start, 0); err != nil {
			return nil, err
		}
		if to, err = bound(stop, int64(length)); err != nil {
			return nil, err
		}
		from = clamp64(from, 0, int64(length))
		to = clamp64(to, 0, int64(length))
	} else {
		if from, err = bound(start, int64(length)-1); err != nil {
			return nil, err
		}
		if to, err = bound(stop, -1); err != nil {
			return nil, err
		}
		from = clamp64(from, -1, int64(length)-1)
		// explicit negative stop beyond the start is clamped to "before first"
		if !stop.IsNone() && !stop.IsUndefined() {
			to = clamp64(to, -1, int64(length)-1)
		}
	}

	var result []int
	for i := from; (step > 0 && i < to) || (step < 0 && i > to); i += step {
		result = append(result, int(i))
	}
	return result, nil
}

func clamp64(v, min, max int64) int64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
