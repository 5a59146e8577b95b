// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package template

import (
	"fmt"

	"carvel.dev/jtt/pkg/cmd/ui"
	"carvel.dev/jtt/pkg/typecheck"
	"github.com/spf13/cobra"
)

type TypecheckOptions struct {
	Debug            bool
	Template         string
	WarningsAsErrors bool

	EnvironmentFlags EnvironmentFlags
}

func NewTypecheckOptions() *TypecheckOptions {
	return &TypecheckOptions{}
}

func NewTypecheckCmd(o *TypecheckOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "typecheck",
		Aliases: []string{"tc"},
		Short:   "Check templates against types of macros, functions and filters",
		RunE:    func(_ *cobra.Command, _ []string) error { return o.Run() },
	}
	cmd.Flags().BoolVar(&o.Debug, "debug", false, "Enable debug output")
	cmd.Flags().StringVarP(&o.Template, "template", "t", "", "Check only the named template")
	cmd.Flags().BoolVar(&o.WarningsAsErrors, "warnings-as-errors", false, "Fail when warnings are found")
	o.EnvironmentFlags.Set(cmd)
	return cmd
}

func (o *TypecheckOptions) Run() error {
	return o.RunWithUI(ui.NewTTY(o.Debug))
}

func (o *TypecheckOptions) RunWithUI(ui ui.UI) error {
	env, err := o.EnvironmentFlags.Build(ui, uiWriter{ui})
	if err != nil {
		return err
	}
	defer env.Close()

	names := []string{o.Template}
	if len(o.Template) == 0 {
		names = env.TemplateNames()
	}

	var errorCount, warningCount int

	for _, name := range names {
		listener := typecheck.NewCollectingListener()
		if err := env.Typecheck(name, listener); err != nil {
			return err
		}
		for _, diag := range listener.Diagnostics() {
			if diag.Severity == typecheck.SeverityError {
				errorCount++
				ui.Printf("%s:%s\n", name, diag)
			} else {
				warningCount++
				ui.Warnf("%s:%s\n", name, diag)
			}
		}
		ui.Debugf("checked %s\n", name)
	}

	if errorCount > 0 || (o.WarningsAsErrors && warningCount > 0) {
		return fmt.Errorf("Typecheck found %d error(s) and %d warning(s)", errorCount, warningCount)
	}
	return nil
}
