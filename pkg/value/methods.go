// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package value

import (
	"fmt"
	"strings"
	"unicode"
)

// CallMethod invokes a method on any value. Objects resolve their own
// methods; strings, sequences and maps get the Python-style methods
// templates commonly use. Unresolvable names produce an UnknownMethod error.
func CallMethod(st State, v Value, name string, args []Value) (Value, error) {
	switch typed := v.data.(type) {
	case string:
		return stringMethod(v, typed, name, args)
	case safeString:
		result, err := stringMethod(v, string(typed), name, args)
		if err == nil {
			// methods preserve safety of their receiver
			if s, ok := result.data.(string); ok {
				result = FromSafeString(s)
			}
		}
		return result, err
	case seqData:
		return seqMethod(v, typed, name, args)
	case *Map:
		// maps of exported macros (imported modules) call their entries
		if attr, found := typed.Get(FromString(name)); found {
			if obj, ok := attr.data.(Object); ok {
				if _, ok := obj.(Callable); ok {
					return Call(st, attr, args)
				}
			}
		}
		return mapMethod(v, typed, name, args)
	case Object:
		if mc, ok := typed.(MethodCallable); ok {
			return mc.CallMethod(st, name, args)
		}
		// attribute holding a callable acts as a method
		if attr, found := GetAttr(v, name); found {
			return Call(st, attr, args)
		}
	}
	return Undefined, UnknownMethodError(v, name)
}

func stringMethod(self Value, s string, name string, args []Value) (Value, error) {
	switch name {
	case "lower":
		return FromString(strings.ToLower(s)), CheckArgCount(name, args, 0, 0)
	case "upper":
		return FromString(strings.ToUpper(s)), CheckArgCount(name, args, 0, 0)
	case "title":
		return FromString(titleCase(s)), CheckArgCount(name, args, 0, 0)
	case "capitalize":
		return FromString(capitalize(s)), CheckArgCount(name, args, 0, 0)

	case "strip", "lstrip", "rstrip":
		if err := CheckArgCount(name, args, 0, 1); err != nil {
			return Undefined, err
		}
		return FromString(stripString(name, s, args)), nil

	case "replace":
		if err := CheckArgCount(name, args, 2, 3); err != nil {
			return Undefined, err
		}
		old, err := StringArg(name, args[0])
		if err != nil {
			return Undefined, err
		}
		repl, err := StringArg(name, args[1])
		if err != nil {
			return Undefined, err
		}
		count := int64(-1)
		if len(args) == 3 {
			if count, err = IntArg(name, args[2]); err != nil {
				return Undefined, err
			}
		}
		return FromString(strings.Replace(s, old, repl, int(count))), nil

	case "split", "rsplit":
		args, kwargs := SplitKwargs(args)
		sepVal, _ := ArgOrKwarg(args, kwargs, 0, "sep")
		maxVal, hasMax := ArgOrKwarg(args, kwargs, 1, "maxsplit")
		maxSplit := int64(-1)
		if hasMax {
			var err error
			if maxSplit, err = IntArg(name, maxVal); err != nil {
				return Undefined, err
			}
		}
		var parts []string
		if sepVal.IsUndefined() || sepVal.IsNone() {
			parts = splitWhitespace(s, maxSplit, name == "rsplit")
		} else {
			sep, err := StringArg(name, sepVal)
			if err != nil {
				return Undefined, err
			}
			if sep == "" {
				return Undefined, NewError(ErrInvalidArgument, "empty separator")
			}
			parts = splitSep(s, sep, maxSplit, name == "rsplit")
		}
		items := make([]Value, len(parts))
		for i, p := range parts {
			items[i] = FromString(p)
		}
		return FromObject(NewMutableSeq(items)), nil

	case "splitlines":
		if err := CheckArgCount(name, args, 0, 1); err != nil {
			return Undefined, err
		}
		keepEnds := len(args) == 1 && args[0].IsTrue()
		lines := splitLines(s, keepEnds)
		items := make([]Value, len(lines))
		for i, l := range lines {
			items[i] = FromString(l)
		}
		return FromObject(NewMutableSeq(items)), nil

	case "startswith", "endswith":
		if err := CheckArgCount(name, args, 1, 1); err != nil {
			return Undefined, err
		}
		candidates := []Value{args[0]}
		if args[0].Kind() == KindSeq {
			candidates, _ = Collect(args[0])
		}
		for _, c := range candidates {
			affix, err := StringArg(name, c)
			if err != nil {
				return Undefined, err
			}
			if (name == "startswith" && strings.HasPrefix(s, affix)) || (name == "endswith" && strings.HasSuffix(s, affix)) {
				return True, nil
			}
		}
		return False, nil

	case "find", "count":
		if err := CheckArgCount(name, args, 1, 1); err != nil {
			return Undefined, err
		}
		sub, err := StringArg(name, args[0])
		if err != nil {
			return Undefined, err
		}
		if name == "count" {
			return FromInt(int64(strings.Count(s, sub))), nil
		}
		idx := strings.Index(s, sub)
		if idx < 0 {
			return FromInt(-1), nil
		}
		return FromInt(int64(len([]rune(s[:idx])))), nil

	case "join":
		if err := CheckArgCount(name, args, 1, 1); err != nil {
			return Undefined, err
		}
		items, err := Collect(args[0])
		if err != nil {
			return Undefined, err
		}
		strs := make([]string, len(items))
		for i, item := range items {
			strs[i] = item.String()
		}
		return FromString(strings.Join(strs, s)), nil

	case "format":
		return formatString(s, args)

	case "isdigit", "isalpha", "isalnum", "isspace", "isupper", "islower":
		return FromBool(stringPredicate(name, s)), CheckArgCount(name, args, 0, 0)

	case "zfill":
		if err := CheckArgCount(name, args, 1, 1); err != nil {
			return Undefined, err
		}
		width, err := IntArg(name, args[0])
		if err != nil {
			return Undefined, err
		}
		return FromString(zfill(s, int(width))), nil

	default:
		return Undefined, UnknownMethodError(self, name)
	}
}

func stripString(name, s string, args []Value) string {
	cutset := ""
	if len(args) == 1 && !args[0].IsNone() {
		cutset = args[0].String()
	}
	switch name {
	case "lstrip":
		if cutset == "" {
			return strings.TrimLeftFunc(s, unicode.IsSpace)
		}
		return strings.TrimLeft(s, cutset)
	case "rstrip":
		if cutset == "" {
			return strings.TrimRightFunc(s, unicode.IsSpace)
		}
		return strings.TrimRight(s, cutset)
	default:
		if cutset == "" {
			return strings.TrimSpace(s)
		}
		return strings.Trim(s, cutset)
	}
}

func splitWhitespace(s string, maxSplit int64, fromRight bool) []string {
	fields := strings.Fields(s)
	if maxSplit < 0 || int64(len(fields)) <= maxSplit+1 {
		return fields
	}
	if fromRight {
		cut := len(fields) - int(maxSplit)
		head := strings.TrimRightFunc(s, unicode.IsSpace)
		for i := len(fields) - 1; i >= cut; i-- {
			head = strings.TrimRightFunc(strings.TrimSuffix(head, fields[i]), unicode.IsSpace)
		}
		return append([]string{strings.TrimLeftFunc(head, unicode.IsSpace)}, fields[cut:]...)
	}
	rest := strings.TrimLeftFunc(s, unicode.IsSpace)
	for i := 0; i < int(maxSplit); i++ {
		rest = strings.TrimLeftFunc(strings.TrimPrefix(rest, fields[i]), unicode.IsSpace)
	}
	return append(append([]string{}, fields[:maxSplit]...), rest)
}

func splitSep(s, sep string, maxSplit int64, fromRight bool) []string {
	if maxSplit < 0 {
		return strings.Split(s, sep)
	}
	if !fromRight {
		return strings.SplitN(s, sep, int(maxSplit)+1)
	}
	var tail []string
	for i := int64(0); i < maxSplit; i++ {
		idx := strings.LastIndex(s, sep)
		if idx < 0 {
			break
		}
		tail = append([]string{s[idx+len(sep):]}, tail...)
		s = s[:idx]
	}
	return append([]string{s}, tail...)
}

func titleCase(s string) string {
	var sb strings.Builder
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				sb.WriteRune(unicode.ToLower(r))
			} else {
				sb.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
		} else {
			sb.WriteRune(r)
			prevLetter = false
		}
	}
	return sb.String()
}

func capitalize(s string) string {
	runes := []rune(strings.ToLower(s))
	if len(runes) > 0 {
		runes[0] = unicode.ToUpper(runes[0])
	}
	return string(runes)
}

func stringPredicate(name, s string) bool {
	if s == "" {
		return false
	}
	hasCased := false
	for _, r := range s {
		switch name {
		case "isdigit":
			if !unicode.IsDigit(r) {
				return false
			}
		case "isalpha":
			if !unicode.IsLetter(r) {
				return false
			}
		case "isalnum":
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
				return false
			}
		case "isspace":
			if !unicode.IsSpace(r) {
				return false
			}
		case "isupper":
			if unicode.IsLower(r) {
				return false
			}
			hasCased = hasCased || unicode.IsUpper(r)
		case "islower":
			if unicode.IsUpper(r) {
				return false
			}
			hasCased = hasCased || unicode.IsLower(r)
		}
	}
	if name == "isupper" || name == "islower" {
		return hasCased
	}
	return true
}

func zfill(s string, width int) string {
	runes := []rune(s)
	if len(runes) >= width {
		return s
	}
	sign := ""
	if len(runes) > 0 && (runes[0] == '-' || runes[0] == '+') {
		sign, runes = string(runes[0]), runes[1:]
	}
	return sign + strings.Repeat("0", width-len(runes)-len(sign)) + string(runes)
}

// formatString implements str.format with positional `{}`/`{0}` and
// keyword `{name}` fields. Format specs are not supported.
func formatString(s string, args []Value) (Value, error) {
	args, kwargs := SplitKwargs(args)
	var sb strings.Builder
	autoIdx := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '{' && i+1 < len(s) && s[i+1] == '{':
			sb.WriteByte('{')
			i++
		case c == '}' && i+1 < len(s) && s[i+1] == '}':
			sb.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(s[i:], '}')
			if end < 0 {
				return Undefined, NewError(ErrInvalidArgument, "unmatched '{' in format string")
			}
			field := s[i+1 : i+end]
			i += end
			var val Value
			var found bool
			switch {
			case field == "":
				val, found = argAt(args, autoIdx)
				autoIdx++
			case isDigits(field):
				var idx int
				fmt.Sscanf(field, "%d", &idx)
				val, found = argAt(args, idx)
			default:
				val, found = kwargs.Get(field)
			}
			if !found {
				return Undefined, NewError(ErrMissingArgument, fmt.Sprintf("format field '%s' has no argument", field))
			}
			sb.WriteString(val.String())
		default:
			sb.WriteByte(c)
		}
	}
	return FromString(sb.String()), nil
}

func argAt(args []Value, idx int) (Value, bool) {
	if idx < len(args) {
		return args[idx], true
	}
	return Undefined, false
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// splitLines breaks at \n, \r and \r\n. Empty lines are kept; a trailing
// line break does not start another line.
func splitLines(s string, keepEnds bool) []string {
	var lines []string
	for len(s) > 0 {
		idx := strings.IndexAny(s, "\r\n")
		if idx < 0 {
			lines = append(lines, s)
			break
		}
		end := idx + 1
		if s[idx] == '\r' && end < len(s) && s[end] == '\n' {
			end++
		}
		if keepEnds {
			lines = append(lines, s[:end])
		} else {
			lines = append(lines, s[:idx])
		}
		s = s[end:]
	}
	return lines
}
