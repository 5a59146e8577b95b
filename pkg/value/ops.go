// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package value

import (
	"fmt"
	"math"
	"math/big"
)

// Integers are int64 and widen into a signed 128-bit range on overflow.
var (
	maxWideInt = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	minWideInt = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
)

// MinWideInt returns the smallest representable (widened) integer.
func MinWideInt() Value { return fromBig(minWideInt) }

// MaxWideInt returns the largest representable (widened) integer.
func MaxWideInt() Value { return fromBig(maxWideInt) }

func checkedWide(v *big.Int, op string) (Value, error) {
	if v.Cmp(maxWideInt) > 0 || v.Cmp(minWideInt) < 0 {
		return Undefined, NewError(ErrOverflow, fmt.Sprintf("result of %s is out of integer range", op))
	}
	return fromBig(v), nil
}

func opError(op string, a, b Value) error {
	return NewError(ErrTypeMismatch, fmt.Sprintf("tried to use %s operator on unsupported types %s and %s", op, a.Kind(), b.Kind()))
}

// intOperands returns both values as big ints when both are integers or bools.
func intOperands(a, b Value) (*big.Int, *big.Int, bool) {
	ba, ok := asArithInt(a)
	if !ok {
		return nil, nil, false
	}
	bb, ok := asArithInt(b)
	if !ok {
		return nil, nil, false
	}
	return ba, bb, true
}

func asArithInt(v Value) (*big.Int, bool) {
	if b, ok := v.AsBool(); ok {
		return big.NewInt(int64(boolInt(b))), true
	}
	return v.AsBigInt()
}

func floatOperands(a, b Value) (float64, float64, bool) {
	if !isArith(a) || !isArith(b) {
		return 0, 0, false
	}
	fa, okA := arithFloat(a)
	fb, okB := arithFloat(b)
	return fa, fb, okA && okB
}

func isArith(v Value) bool {
	return v.IsNumber() || v.Kind() == KindBool
}

func arithFloat(v Value) (float64, bool) {
	if b, ok := v.AsBool(); ok {
		return float64(boolInt(b)), true
	}
	return v.AsFloat()
}

// Add implements "+": numbers, string concatenation and sequence concatenation.
func Add(a, b Value) (Value, error) {
	if ia, ib, ok := intOperands(a, b); ok {
		return checkedWide(new(big.Int).Add(ia, ib), "+")
	}
	if fa, fb, ok := floatOperands(a, b); ok {
		return FromFloat(fa + fb), nil
	}
	if sa, ok := a.AsString(); ok {
		if sb, ok := b.AsString(); ok {
			return FromString(sa + sb), nil
		}
	}
	if a.Kind() == KindSeq && b.Kind() == KindSeq {
		itemsA, err := Collect(a)
		if err != nil {
			return Undefined, err
		}
		itemsB, err := Collect(b)
		if err != nil {
			return Undefined, err
		}
		result := make([]Value, 0, len(itemsA)+len(itemsB))
		result = append(append(result, itemsA...), itemsB...)
		return FromSlice(result), nil
	}
	return Undefined, opError("+", a, b)
}

// Sub implements "-".
func Sub(a, b Value) (Value, error) {
	if ia, ib, ok := intOperands(a, b); ok {
		return checkedWide(new(big.Int).Sub(ia, ib), "-")
	}
	if fa, fb, ok := floatOperands(a, b); ok {
		return FromFloat(fa - fb), nil
	}
	return Undefined, opError("-", a, b)
}

// Mul implements "*" including string and sequence repetition.
func Mul(a, b Value) (Value, error) {
	if ia, ib, ok := intOperands(a, b); ok {
		return checkedWide(new(big.Int).Mul(ia, ib), "*")
	}
	if fa, fb, ok := floatOperands(a, b); ok {
		return FromFloat(fa * fb), nil
	}
	if n, ok := b.AsInt(); ok && b.Kind() == KindInteger {
		if s, ok := a.AsString(); ok {
			return repeatString(s, n), nil
		}
		if items, ok := a.AsSlice(); ok {
			return repeatSeq(items, n), nil
		}
	}
	if n, ok := a.AsInt(); ok && a.Kind() == KindInteger {
		if s, ok := b.AsString(); ok {
			return repeatString(s, n), nil
		}
		if items, ok := b.AsSlice(); ok {
			return repeatSeq(items, n), nil
		}
	}
	return Undefined, opError("*", a, b)
}

func repeatString(s string, n int64) Value {
	result := ""
	for i := int64(0); i < n; i++ {
		result += s
	}
	return FromString(result)
}

func repeatSeq(items []Value, n int64) Value {
	var result []Value
	for i := int64(0); i < n; i++ {
		result = append(result, items...)
	}
	return FromSlice(result)
}

// Div implements "/" which always produces a float.
func Div(a, b Value) (Value, error) {
	fa, fb, ok := floatOperands(a, b)
	if !ok {
		return Undefined, opError("/", a, b)
	}
	if fb == 0 {
		return Undefined, NewError(ErrInvalidOperation, "division by zero")
	}
	return FromFloat(fa / fb), nil
}

// IntDiv implements "//" (floor division).
func IntDiv(a, b Value) (Value, error) {
	if ia, ib, ok := intOperands(a, b); ok {
		if ib.Sign() == 0 {
			return Undefined, NewError(ErrInvalidOperation, "division by zero")
		}
		q, m := new(big.Int).QuoRem(ia, ib, new(big.Int))
		if m.Sign() != 0 && (m.Sign() < 0) != (ib.Sign() < 0) {
			q.Sub(q, big.NewInt(1))
		}
		return checkedWide(q, "//")
	}
	if fa, fb, ok := floatOperands(a, b); ok {
		if fb == 0 {
			return Undefined, NewError(ErrInvalidOperation, "division by zero")
		}
		return FromFloat(math.Floor(fa / fb)), nil
	}
	return Undefined, opError("//", a, b)
}

// Rem implements "%" with the sign of the divisor.
func Rem(a, b Value) (Value, error) {
	if ia, ib, ok := intOperands(a, b); ok {
		if ib.Sign() == 0 {
			return Undefined, NewError(ErrInvalidOperation, "modulo by zero")
		}
		m := new(big.Int).Rem(ia, ib)
		if m.Sign() != 0 && (m.Sign() < 0) != (ib.Sign() < 0) {
			m.Add(m, ib)
		}
		return checkedWide(m, "%")
	}
	if fa, fb, ok := floatOperands(a, b); ok {
		if fb == 0 {
			return Undefined, NewError(ErrInvalidOperation, "modulo by zero")
		}
		m := math.Mod(fa, fb)
		if m != 0 && (m < 0) != (fb < 0) {
			m += fb
		}
		return FromFloat(m), nil
	}
	return Undefined, opError("%", a, b)
}

// Pow implements "**". Negative integer exponents produce floats.
func Pow(a, b Value) (Value, error) {
	if ia, ib, ok := intOperands(a, b); ok && ib.Sign() >= 0 {
		if ia.CmpAbs(big.NewInt(1)) <= 0 {
			// 0, 1 and -1 never grow
			return fromBig(new(big.Int).Exp(ia, ib, nil)), nil
		}
		if ib.BitLen() > 32 {
			return Undefined, NewError(ErrOverflow, "result of ** is out of integer range")
		}
		result := big.NewInt(1)
		exp := ib.Int64()
		for i := int64(0); i < exp; i++ {
			result.Mul(result, ia)
			if result.BitLen() > 128 {
				return Undefined, NewError(ErrOverflow, "result of ** is out of integer range")
			}
		}
		return checkedWide(result, "**")
	}
	if fa, fb, ok := floatOperands(a, b); ok {
		return FromFloat(math.Pow(fa, fb)), nil
	}
	return Undefined, opError("**", a, b)
}

// Neg implements unary minus.
func Neg(a Value) (Value, error) {
	if ia, ok := a.AsBigInt(); ok {
		return checkedWide(ia.Neg(ia), "-")
	}
	if f, ok := a.data.(float64); ok {
		return FromFloat(-f), nil
	}
	return Undefined, NewError(ErrTypeMismatch, fmt.Sprintf("cannot negate %s", a.Kind()))
}

// Abs returns the absolute value. abs(min int64) widens; abs of the minimum
// widened integer overflows.
func Abs(a Value) (Value, error) {
	if ia, ok := a.AsBigInt(); ok {
		return checkedWide(ia.Abs(ia), "abs")
	}
	if f, ok := a.data.(float64); ok {
		return FromFloat(math.Abs(f)), nil
	}
	return Undefined, NewError(ErrTypeMismatch, fmt.Sprintf("cannot take absolute value of %s", a.Kind()))
}

// Concat implements "~": both operands are rendered and joined.
func Concat(a, b Value) Value {
	return FromString(a.String() + b.String())
}

// FromBigInt returns an integer value or an overflow error when v does not
// fit into the widened integer range.
func FromBigInt(v *big.Int) (Value, error) {
	return checkedWide(v, "integer literal")
}
