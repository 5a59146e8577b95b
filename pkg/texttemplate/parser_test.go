// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package texttemplate_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"carvel.dev/jtt/pkg/texttemplate"
	"github.com/k14s/difflib"
)

var (
	selectedFileTestPath = kvArg("TestParser.filetest")
	showErrs             = kvArg("TestParser.errs")
)

func TestParser(t *testing.T) {
	files, err := os.ReadDir("filetests")
	if err != nil {
		t.Fatal(err)
	}

	if len(selectedFileTestPath) > 0 {
		fmt.Printf("only running %s test(s)\n", selectedFileTestPath)
	}

	var errs []error

	for _, file := range files {
		filePath := filepath.Join("filetests", file.Name())

		if len(selectedFileTestPath) > 0 && !strings.HasPrefix(file.Name(), selectedFileTestPath) {
			continue
		}

		testDesc := fmt.Sprintf("checking %s ...\n", file.Name())
		fmt.Printf("%s", testDesc)

		contents, err := os.ReadFile(filePath)
		if err != nil {
			t.Fatal(err)
		}

		const (
			testSep   = "\n+++\n"
			errPrefix = "ERR:"
		)

		pieces := strings.SplitN(string(contents), testSep, 2)
		if len(pieces) != 2 {
			t.Fatalf("expected file %s to include +++ separator", filePath)
		}

		tpl, parseErr := texttemplate.NewParser(texttemplate.LexOptions{}).Parse([]byte(pieces[0]), file.Name())
		expectedStr := pieces[1]

		if strings.HasPrefix(expectedStr, errPrefix) {
			if parseErr == nil {
				err = fmt.Errorf("expected parse error, but did not receive it")
			} else {
				err = expectEquals(parseErr.Error(), strings.TrimSpace(strings.TrimPrefix(expectedStr, errPrefix)))
			}
		} else {
			if parseErr == nil {
				err = expectEquals(texttemplate.DebugASTAsString(tpl), expectedStr)
			} else {
				err = fmt.Errorf("parse error: %v", parseErr)
			}
		}

		if err != nil {
			fmt.Printf("   FAIL\n")
			if showErrs == "t" {
				sep := strings.Repeat(".", 80)
				fmt.Printf("%s\n%s%s\n", sep, err, sep)
			}
			errs = append(errs, fmt.Errorf("%s: %s", testDesc, err))
		} else {
			fmt.Printf("   .\n")
		}
	}

	for _, err := range errs {
		t.Errorf("%s", err.Error())
	}

	if len(selectedFileTestPath) > 0 {
		t.Errorf("skipped tests")
	}
}

func expectEquals(resultStr, expectedStr string) error {
	if resultStr != expectedStr {
		return fmt.Errorf("not equal; diff expected...actual:\n%s",
			difflib.PPDiff(strings.Split(expectedStr, "\n"), strings.Split(resultStr, "\n")))
	}
	return nil
}

func kvArg(name string) string {
	name += "="
	for _, arg := range os.Args {
		if strings.HasPrefix(arg, name) {
			return strings.TrimPrefix(arg, name)
		}
	}
	return ""
}
