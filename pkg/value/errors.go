// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package value

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures produced by values and objects.
type ErrorKind int

const (
	ErrInvalidOperation ErrorKind = iota
	ErrUnknownMethod
	ErrUnknownAttribute
	ErrTypeMismatch
	ErrOverflow
	ErrMissingArgument
	ErrTooManyArguments
	ErrInvalidArgument
	ErrUndefined
	ErrCannotUnpack
	ErrUnknownFunction
	ErrUnknownFilter
	ErrUnknownTest
	ErrUnknownBlock
)

func (k ErrorKind) String() string {
	switch k {
	case ErrUnknownMethod:
		return "unknown method"
	case ErrUnknownAttribute:
		return "unknown attribute"
	case ErrTypeMismatch:
		return "invalid operation"
	case ErrOverflow:
		return "overflow"
	case ErrMissingArgument:
		return "missing argument"
	case ErrTooManyArguments:
		return "too many arguments"
	case ErrInvalidArgument:
		return "invalid argument"
	case ErrUndefined:
		return "undefined value"
	case ErrCannotUnpack:
		return "cannot unpack"
	case ErrUnknownFunction:
		return "unknown function"
	case ErrUnknownFilter:
		return "unknown filter"
	case ErrUnknownTest:
		return "unknown test"
	case ErrUnknownBlock:
		return "unknown block"
	default:
		return "invalid operation"
	}
}

// Error is a value-level failure. The VM attaches source spans.
type Error struct {
	Kind   ErrorKind
	Detail string
}

func NewError(kind ErrorKind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

func (e *Error) Error() string {
	if len(e.Detail) == 0 {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// IsErrorKind reports whether err (or anything it wraps) is a value Error of kind.
func IsErrorKind(err error, kind ErrorKind) bool {
	var typedErr *Error
	return errors.As(err, &typedErr) && typedErr.Kind == kind
}

// UnknownMethodError is returned when a method cannot be resolved.
func UnknownMethodError(receiver Value, name string) *Error {
	return NewError(ErrUnknownMethod, fmt.Sprintf("%s has no method named %s", receiver.Kind(), name))
}
