// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package value_test

import (
	"math"
	"testing"

	"carvel.dev/jtt/pkg/value"
	fuzz "github.com/google/gofuzz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAbsWidensMinInt64(t *testing.T) {
	result, err := value.Abs(value.FromInt(math.MinInt64))
	require.NoError(t, err)
	assert.Equal(t, value.KindInteger, result.Kind())
	assert.Equal(t, "9223372036854775808", result.String())

	_, fitsInt64 := result.AsInt()
	assert.False(t, fitsInt64)
}

func TestAbsOfWidenedMinimumOverflows(t *testing.T) {
	_, err := value.Abs(value.MinWideInt())
	require.Error(t, err)
	assert.True(t, value.IsErrorKind(err, value.ErrOverflow))
	assert.Contains(t, err.Error(), "out of integer range")
}

func TestArithmeticWidensAndOverflows(t *testing.T) {
	sum, err := value.Add(value.FromInt(math.MaxInt64), value.FromInt(1))
	require.NoError(t, err)
	assert.Equal(t, "9223372036854775808", sum.String())

	_, err = value.Add(value.MaxWideInt(), value.FromInt(1))
	assert.True(t, value.IsErrorKind(err, value.ErrOverflow))

	back, err := value.Sub(sum, value.FromInt(1))
	require.NoError(t, err)
	i, ok := back.AsInt()
	require.True(t, ok)
	assert.Equal(t, int64(math.MaxInt64), i)

	_, err = value.Pow(value.FromInt(2), value.FromInt(127))
	assert.True(t, value.IsErrorKind(err, value.ErrOverflow))

	p, err := value.Pow(value.FromInt(2), value.FromInt(100))
	require.NoError(t, err)
	assert.Equal(t, "1267650600228229401496703205376", p.String())
}

func TestArithmeticTypeMismatch(t *testing.T) {
	_, err := value.Sub(value.FromString("a"), value.FromInt(1))
	require.Error(t, err)
	assert.True(t, value.IsErrorKind(err, value.ErrTypeMismatch))
	assert.Equal(t, "invalid operation: tried to use - operator on unsupported types string and integer", err.Error())
}

func TestDivisionSemantics(t *testing.T) {
	res, err := value.Div(value.FromInt(7), value.FromInt(2))
	require.NoError(t, err)
	assert.Equal(t, "3.5", res.String())

	res, err = value.IntDiv(value.FromInt(-7), value.FromInt(2))
	require.NoError(t, err)
	assert.Equal(t, "-4", res.String())

	res, err = value.Rem(value.FromInt(-7), value.FromInt(3))
	require.NoError(t, err)
	assert.Equal(t, "2", res.String())

	_, err = value.Div(value.FromInt(1), value.FromInt(0))
	assert.Error(t, err)
}

func TestUndefinedIsFalsyAndEmpty(t *testing.T) {
	assert.False(t, value.Undefined.IsTrue())
	assert.Equal(t, "", value.Undefined.String())

	items, err := value.Collect(value.Undefined)
	require.NoError(t, err)
	assert.Len(t, items, 0)

	attr, found := value.GetAttr(value.Undefined, "anything")
	assert.False(t, found)
	assert.True(t, attr.IsUndefined())
}

func TestRendering(t *testing.T) {
	m := value.NewMap()
	m.SetString("a", value.FromInt(1))
	m.SetString("b", value.FromSlice([]value.Value{value.True, value.None, value.FromFloat(2)}))

	assert.Equal(t, "{'a': 1, 'b': [True, None, 2.0]}", value.FromMap(m).String())
	assert.Equal(t, "None", value.None.String())
	assert.Equal(t, "False", value.False.String())
	assert.Equal(t, "it's", value.FromString("it's").String())
	assert.Equal(t, `"it's"`, value.FromString("it's").Repr())
}

func TestEqualityAcrossNumbersAndObjects(t *testing.T) {
	assert.True(t, value.Equal(value.FromInt(1), value.FromFloat(1.0)))
	assert.True(t, value.Equal(value.FromString("x"), value.FromSafeString("x")))
	assert.False(t, value.Equal(value.FromString("1"), value.FromInt(1)))

	list := value.FromObject(value.NewMutableSeq([]value.Value{value.FromInt(1), value.FromInt(2)}))
	assert.True(t, value.Equal(list, value.FromSlice([]value.Value{value.FromInt(1), value.FromInt(2)})))

	ns1 := value.FromObject(value.NewNamespace(nil))
	ns2 := value.FromObject(value.NewNamespace(nil))
	assert.True(t, value.Equal(ns1, ns1))
	assert.False(t, value.Equal(ns1, ns2), "plain objects compare by identity")
}

func TestRowsCompareThroughTheirValues(t *testing.T) {
	table1 := value.NewTable([]string{"id"}, []string{"integer"}, [][]value.Value{{value.FromInt(1)}, {value.FromInt(2)}})
	table2 := value.NewTable([]string{"id"}, []string{"integer"}, [][]value.Value{{value.FromInt(2)}})

	assert.True(t, value.Equal(value.FromObject(table1.Row(1)), value.FromObject(table2.Row(0))))
	assert.False(t, value.Equal(value.FromObject(table1.Row(0)), value.FromObject(table2.Row(0))))

	byName, found := value.GetItem(value.FromObject(table1.Row(1)), value.FromString("id"))
	require.True(t, found)
	assert.Equal(t, "2", byName.String())

	byIndex, found := value.GetItem(value.FromObject(table1.Row(1)), value.FromInt(0))
	require.True(t, found)
	assert.Equal(t, "2", byIndex.String())
}

func TestZipIsLazyView(t *testing.T) {
	a := value.FromSlice([]value.Value{value.FromInt(1), value.FromInt(2), value.FromInt(3)})
	b := value.FromSlice([]value.Value{value.FromString("x"), value.FromString("y")})

	zip, err := value.NewZip(a, b)
	require.NoError(t, err)

	items, err := value.Collect(value.FromObject(zip))
	require.NoError(t, err)
	assert.Equal(t, "[[1, 'x'], [2, 'y']]", value.FromSlice(items).String())
}

func TestEnumeratorKeysAndValues(t *testing.T) {
	kwargs := value.NewKwargsFromPairs("a", 1, "b", "two")
	keys, err := value.EnumerateKeys(kwargs)
	require.NoError(t, err)
	first, _ := keys.Next()
	assert.Equal(t, "a", first.String())

	vals, err := value.EnumerateValues(kwargs)
	require.NoError(t, err)
	v1, _ := vals.Next()
	v2, _ := vals.Next()
	assert.Equal(t, "1", v1.String())
	assert.Equal(t, "two", v2.String())

	zip, err := value.NewZip(value.FromSlice(nil), value.FromSlice(nil))
	require.NoError(t, err)
	_, err = value.EnumerateKeys(&iterOnly{})
	assert.Error(t, err)
	_, err = value.EnumerateKeys(zip)
	assert.NoError(t, err)
}

type iterOnly struct{}

func (*iterOnly) Repr() value.ObjectRepr { return value.ReprIterable }
func (*iterOnly) Enumerate() value.Enumerator {
	return value.IterEnumerator(-1, func() value.Iterator { return value.NewSliceIterator(nil) })
}

func TestMethods(t *testing.T) {
	st := value.BackgroundState{}

	res, err := value.CallMethod(st, value.FromString("  Hi  "), "strip", nil)
	require.NoError(t, err)
	assert.Equal(t, "Hi", res.String())

	res, err = value.CallMethod(st, value.FromString("a,b,c"), "split", []value.Value{value.FromString(","), value.FromInt(1)})
	require.NoError(t, err)
	assert.Equal(t, "['a', 'b,c']", res.String())

	res, err = value.CallMethod(st, value.FromString("{} and {name}"), "format",
		[]value.Value{value.FromInt(1), value.FromObject(value.NewKwargsFromPairs("name", "x"))})
	require.NoError(t, err)
	assert.Equal(t, "1 and x", res.String())

	list := value.FromObject(value.NewMutableSeq(nil))
	_, err = value.CallMethod(st, list, "append", []value.Value{value.FromInt(5)})
	require.NoError(t, err)
	assert.Equal(t, "[5]", list.String())

	dict := value.FromObject(value.NewMutableMap(nil))
	_, err = value.CallMethod(st, dict, "update", []value.Value{value.FromObject(value.NewKwargsFromPairs("k", true))})
	require.NoError(t, err)
	assert.Equal(t, "{'k': True}", dict.String())

	_, err = value.CallMethod(st, value.FromInt(1), "nope", nil)
	require.Error(t, err)
	assert.True(t, value.IsErrorKind(err, value.ErrUnknownMethod))
}

func TestSplitlinesKeepsEmptyLines(t *testing.T) {
	st := value.BackgroundState{}

	for src, expected := range map[string]string{
		"a\n\nb":   "['a', '', 'b']",
		"a\r\nb\n": "['a', 'b']",
		"\n":       "['']",
		"":         "[]",
		"a\r\rb":   "['a', '', 'b']",
		"x\ny\r\n": "['x', 'y']",
	} {
		res, err := value.CallMethod(st, value.FromString(src), "splitlines", nil)
		require.NoError(t, err)
		assert.Equal(t, expected, res.String(), "splitlines of %q", src)
	}

	res, err := value.CallMethod(st, value.FromString("a\r\n\nb"), "splitlines", []value.Value{value.True})
	require.NoError(t, err)
	assert.Equal(t, "['a\\r\\n', '\\n', 'b']", res.String())
}

func TestMutableCollectionsUnwrap(t *testing.T) {
	seq := value.NewMutableSeq([]value.Value{value.FromInt(1)})
	items, ok := value.FromObject(seq).AsSlice()
	require.True(t, ok)
	items[0] = value.FromInt(2)
	assert.Equal(t, "[1]", value.FromObject(seq).String())

	m := value.NewMap()
	m.SetString("a", value.FromInt(1))
	snapshot, ok := value.FromObject(value.NewMutableMap(m)).AsMap()
	require.True(t, ok)
	assert.Equal(t, 1, snapshot.Len())

	_, ok = value.FromInt(1).AsSlice()
	assert.False(t, ok)
}

func TestFromGoSortsMapKeys(t *testing.T) {
	v := value.FromGo(map[string]interface{}{"b": 2, "a": []interface{}{"x", nil}})
	assert.Equal(t, "{'a': ['x', None], 'b': 2}", v.String())
}

func TestMapKeysConsistentWithEquality(t *testing.T) {
	f := fuzz.New().NilChance(0)

	for i := 0; i < 200; i++ {
		var num int32
		var str string
		f.Fuzz(&num)
		f.Fuzz(&str)

		m := value.NewMap()
		m.Set(value.FromInt(int64(num)), value.FromString(str))

		asFloat := value.FromFloat(float64(num))
		require.True(t, value.Equal(value.FromInt(int64(num)), asFloat))

		got, found := m.Get(asFloat)
		require.True(t, found, "equal values must address the same map entry")
		assert.Equal(t, str, got.String())

		assert.True(t, value.Equal(value.FromString(str), value.FromString(str)))
		c, err := value.Compare(value.FromString(str), value.FromSafeString(str))
		require.NoError(t, err)
		assert.Equal(t, 0, c)
	}
}
