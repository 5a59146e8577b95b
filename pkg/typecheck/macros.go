// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package typecheck

import (
	"fmt"

	"carvel.dev/jtt/pkg/filepos"
	tt "carvel.dev/jtt/pkg/texttemplate"
)

// MacroDecl is a top level macro with its optional funcsign comment.
type MacroDecl struct {
	Decl     *tt.Macro
	Funcsign string
	// FuncsignSpan is unknown when there is no funcsign comment
	FuncsignSpan filepos.Span
}

// DiscoverMacros returns top level macros in declaration order. A
// `-- funcsign:` comment in template data applies to the next macro; any
// other template data in between discards it. A comment that does not
// start on an earlier line than the macro is ignored.
func DiscoverMacros(ast *tt.Template) []MacroDecl {
	var (
		result  []MacroDecl
		pending *tt.EmitRaw
		sig     string
	)
	for _, stmt := range ast.Children {
		switch typed := stmt.(type) {
		case *tt.EmitRaw:
			if s, found := tt.FuncsignOf(typed.Raw); found {
				pending, sig = typed, s
			} else {
				pending, sig = nil, ""
			}
		case *tt.Macro:
			decl := MacroDecl{Decl: typed}
			if pending != nil && pending.Span.StartLine < typed.Span.StartLine {
				decl.Funcsign = sig
				decl.FuncsignSpan = pending.Span
				pending, sig = nil, ""
			}
			result = append(result, decl)
		}
	}
	return result
}

// MacroType converts a macro declaration into a function type. Macros
// without a funcsign are undefined functions. When err is not nil the
// returned type is still usable (undefined function).
func MacroType(decl *tt.Macro, funcsign string, reg *Registry) (Type, error) {
	fallback := Function{UndefinedFunction{FnName: decl.Name}}
	if funcsign == "" {
		return fallback, nil
	}

	sig, err := ParseSignature(funcsign, reg)
	if err != nil {
		return fallback, fmt.Errorf("%s: invalid funcsign: %w", decl.Name, err)
	}
	if len(sig.Args) != len(decl.Args) {
		return fallback, fmt.Errorf("%s: funcsign has %d args, but macro has %d args",
			decl.Name, len(sig.Args), len(decl.Args))
	}

	named := sig.WithNames(decl.Name, macroSpecs(decl))
	if varargs, kwargs := macroFlags(decl); varargs || kwargs {
		named.Variadic = true
	}
	return Function{named}, nil
}

func macroSpecs(decl *tt.Macro) []ArgSpec {
	requiredCount := len(decl.Args) - len(decl.Defaults)
	specs := make([]ArgSpec, len(decl.Args))
	for i, arg := range decl.Args {
		specs[i] = ArgSpec{Name: arg.ID, Optional: i >= requiredCount}
	}
	return specs
}

// macroFlags reports whether the macro body refers to varargs or kwargs,
// in which case extra call arguments are accepted.
func macroFlags(decl *tt.Macro) (varargs, kwargs bool) {
	names := tt.ReferencedNames(decl.Body)
	for _, def := range decl.Defaults {
		tt.Walk(def, func(node tt.Node) bool {
			if v, ok := node.(*tt.Var); ok {
				names[v.ID] = true
			}
			return true
		})
	}
	return names["varargs"], names["kwargs"]
}
