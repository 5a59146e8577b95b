// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package vm

import (
	"fmt"

	"carvel.dev/jtt/pkg/value"
)

// UndefinedBehavior decides what happens when Undefined is used.
type UndefinedBehavior int

const (
	// UndefinedLenient renders Undefined as empty text, treats it as false,
	// iterates it zero times and yields Undefined for any attribute or item
	// access on it. Missing attributes of defined values are Undefined.
	UndefinedLenient UndefinedBehavior = iota
	// UndefinedChainable is lenient and additionally lets method calls on
	// Undefined produce Undefined.
	UndefinedChainable
	// UndefinedStrict fails on any use of Undefined other than passing it
	// around or testing it with `is defined`.
	UndefinedStrict
)

func (b UndefinedBehavior) String() string {
	switch b {
	case UndefinedChainable:
		return "chainable"
	case UndefinedStrict:
		return "strict"
	default:
		return "lenient"
	}
}

func ParseUndefinedBehavior(s string) (UndefinedBehavior, error) {
	switch s {
	case "", "lenient":
		return UndefinedLenient, nil
	case "chainable":
		return UndefinedChainable, nil
	case "strict":
		return UndefinedStrict, nil
	default:
		return UndefinedLenient, fmt.Errorf("Unknown undefined behavior '%s' (expected lenient, chainable or strict)", s)
	}
}

func undefinedError(detail string) error {
	return value.NewError(value.ErrUndefined, detail)
}

func (b UndefinedBehavior) missingAttribute(parent value.Value, name string) (value.Value, error) {
	if b != UndefinedStrict {
		return value.Undefined, nil
	}
	if parent.IsUndefined() {
		return value.Undefined, undefinedError(fmt.Sprintf("cannot access attribute '%s' of undefined value", name))
	}
	return value.Undefined, value.NewError(value.ErrUnknownAttribute, fmt.Sprintf("%s has no attribute '%s'", parent.Kind(), name))
}

func (b UndefinedBehavior) missingItem(parent, key value.Value) (value.Value, error) {
	if b != UndefinedStrict {
		return value.Undefined, nil
	}
	if parent.IsUndefined() {
		return value.Undefined, undefinedError(fmt.Sprintf("cannot access item %s of undefined value", key.Repr()))
	}
	return value.Undefined, value.NewError(value.ErrUnknownAttribute, fmt.Sprintf("%s has no item %s", parent.Kind(), key.Repr()))
}

func (b UndefinedBehavior) isTrue(v value.Value) (bool, error) {
	if v.IsUndefined() && b == UndefinedStrict {
		return false, undefinedError("undefined value used as condition")
	}
	return v.IsTrue(), nil
}

func (b UndefinedBehavior) iterate(v value.Value) ([]value.Value, error) {
	if v.IsUndefined() {
		if b == UndefinedStrict {
			return nil, undefinedError("cannot iterate over undefined value")
		}
		return nil, nil
	}
	items, err := value.Collect(v)
	if err != nil {
		return nil, value.NewError(value.ErrInvalidOperation, fmt.Sprintf("%s is not iterable", v.Kind()))
	}
	return items, nil
}

func (b UndefinedBehavior) assertRenderable(v value.Value) error {
	if v.IsUndefined() && b == UndefinedStrict {
		return undefinedError("cannot render undefined value")
	}
	return nil
}
