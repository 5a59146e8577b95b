// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

/*
Package filetests houses a test harness for evaluating templates and asserting
the expected output.
*/
package filetests

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"carvel.dev/jtt/pkg/files"
	"carvel.dev/jtt/pkg/value"
	"carvel.dev/jtt/pkg/version"
	"carvel.dev/jtt/pkg/workspace"
	"github.com/k14s/difflib"
)

// MainTemplateName is the name of the template under test.
const MainTemplateName = files.StdinTemplateName

var extraTemplateHeader = regexp.MustCompile(`(?m)^--- (\S+)\n`)

// EvaluateTemplate is the processing desired from source templates to the final result.
// templates always contains MainTemplateName.
type EvaluateTemplate func(templates map[string]string, order []string) (string, *TestErr)

// FileTests contain a suite of test cases, each described in a separate file, verifying the behavior of templates.
//
// Test cases:
// - are found within the directory at "PathToTests"
// - conventionally have a .tpltest extension
// - top-half is the template; bottom-half is the expected output; divided by `+++` and a blank line.
// - top-half may define additional templates (for include, import and extends), each introduced by
// a `--- <name>` line
//
// Types of template tests:
// - expected output starting with `ERR:` indicate that expected output is an error message
// - otherwise expected output is the literal output from template
//
// For example:
//
//	{% set msg = "hello" %}msg: {{ msg }}
//	+++
//
//	msg: hello
type FileTests struct {
	PathToTests      string
	EvalFunc         EvaluateTemplate
	ShowTemplateCode bool
	DataValues       *value.Map
}

// Run runs each tests: enumerates each file within FileTests.PathToTests; splits and evaluates using FileTests.EvalFunc
// optionally supplying FileTests.DataValues to that evaluation.
//
// If an error occurs and FileTests.ShowTemplateCode is set, then the output includes the debug output of the template.
func (f FileTests) Run(t *testing.T) {
	var testFiles []string
	version.Version = "0.0.0"

	err := filepath.Walk(f.PathToTests, func(walkedPath string, fi os.FileInfo, err error) error {
		if err != nil || fi.IsDir() {
			return err
		}
		testFiles = append(testFiles, walkedPath)
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to enumerate filetests: %s", err)
	}

	if f.EvalFunc == nil {
		f.EvalFunc = f.DefaultEvalTemplate
	}

	for _, filePath := range testFiles {
		t.Run(filePath, func(t *testing.T) {
			contents, err := os.ReadFile(filePath)
			if err != nil {
				t.Fatal(err)
			}

			pieces := strings.SplitN(string(contents), "\n+++\n\n", 2)

			if len(pieces) != 2 {
				t.Fatalf("expected file %s to include +++ separator", filePath)
			}
			expectedStr := pieces[1]

			templates, order := SplitTemplates(pieces[0])
			result, testErr := f.EvalFunc(templates, order)

			switch {
			case strings.HasPrefix(expectedStr, "ERR:"):
				if testErr == nil {
					err = fmt.Errorf("expected eval error, but did not receive it")
				} else {
					resultStr := TrimTrailingMultilineWhitespace(testErr.UserErr().Error())

					expectedStr = strings.TrimPrefix(expectedStr, "ERR:")
					expectedStr = strings.TrimPrefix(expectedStr, " ")
					expectedStr = strings.ReplaceAll(expectedStr, "__JTT_VERSION__", version.Version)
					expectedStr = TrimTrailingMultilineWhitespace(expectedStr)
					err = f.expectEquals(resultStr, expectedStr)
				}
			default:
				if testErr == nil {
					err = f.expectEquals(result, expectedStr)
				} else {
					err = testErr.TestErr()
				}
			}

			if err != nil {
				t.Fatalf("%s", err)
			}
		})
	}
}

// SplitTemplates separates the main template from additional templates
// introduced by `--- <name>` lines.
func SplitTemplates(src string) (map[string]string, []string) {
	templates := map[string]string{}
	order := []string{MainTemplateName}

	locs := extraTemplateHeader.FindAllStringSubmatchIndex(src, -1)
	if len(locs) == 0 {
		templates[MainTemplateName] = src
		return templates, order
	}

	templates[MainTemplateName] = strings.TrimSuffix(src[:locs[0][0]], "\n")
	for i, loc := range locs {
		name := src[loc[2]:loc[3]]
		end := len(src)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		templates[name] = strings.TrimSuffix(src[loc[1]:end], "\n")
		order = append(order, name)
	}
	return templates, order
}

// TestErr captures an error result from a single test.
type TestErr struct {
	realErr error
	testErr error
}

// NewTestErr creates a new TestErr
func NewTestErr(realErr, testErr error) *TestErr {
	return &TestErr{realErr, testErr}
}

// UserErr yields the error returned to the user
func (e TestErr) UserErr() error { return e.realErr }

// TestErr yields the error wrapped with helpful test context
func (e TestErr) TestErr() error { return e.testErr }

func (f FileTests) expectEquals(resultStr, expectedStr string) error {
	if resultStr != expectedStr {
		diff := difflib.PPDiff(strings.Split(expectedStr, "\n"), strings.Split(resultStr, "\n"))
		return fmt.Errorf("not equal\n\n### result %d chars:\n>>>%s<<<\n###expected %d chars:\n>>>%s<<<\n### diff expected...result:\n%s",
			len(resultStr), resultStr, len(expectedStr), expectedStr, diff)
	}
	return nil
}

// DefaultEvalTemplate renders the main template in an environment holding
// all templates of the test case.
func (f FileTests) DefaultEvalTemplate(templates map[string]string, order []string) (string, *TestErr) {
	builder := workspace.NewBuilder(workspace.EnvironmentOpts{})
	for _, name := range order {
		builder.AddTemplate(workspace.DefaultRootPackage, name, []byte(templates[name]))
	}

	env, err := builder.Build()
	if err != nil {
		return "", NewTestErr(err, fmt.Errorf("build error: %v", err))
	}

	if f.ShowTemplateCode {
		tpl, err := env.FindCompiledTemplate(MainTemplateName)
		if err == nil {
			fmt.Printf("### template:\n%s\n", tpl.DebugCodeAsString())
		}
	}

	out, err := env.Render(context.Background(), MainTemplateName, f.DataValues)
	if err != nil {
		return "", NewTestErr(err, fmt.Errorf("eval error: %v", err))
	}
	return out, nil
}

// TrimTrailingMultilineWhitespace returns a string with trailing whitespace trimmed from every line as well
// as trimmed trailing empty lines
func TrimTrailingMultilineWhitespace(s string) string {
	var trimmedLines []string
	for _, line := range strings.Split(s, "\n") {
		trimmedLine := strings.TrimRight(line, "\t ")
		trimmedLines = append(trimmedLines, trimmedLine)
	}
	multiline := strings.Join(trimmedLines, "\n")
	return strings.TrimRight(multiline, "\n")
}
