// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	cmdtpl "carvel.dev/jtt/pkg/cmd/template"
	"carvel.dev/jtt/pkg/version"
	"github.com/cppforlife/cobrautil"
	"github.com/spf13/cobra"
)

type JttOptions struct{}

func NewDefaultJttOptions() *JttOptions {
	return &JttOptions{}
}

func NewDefaultJttCmd() *cobra.Command {
	return NewJttCmd(NewDefaultJttOptions())
}

func NewJttCmd(o *JttOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "jtt",
		Version: version.Version,
		Short:   "jtt renders Jinja templates organized in packages",
		Long: `jtt renders Jinja templates organized in packages.

Macros of all packages are resolved through a dispatch registry so that
adapter specific implementations (e.g. sqlite__quote) override defaults.`,
	}

	// Affects children as well
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	// Disable docs header
	cmd.DisableAutoGenTag = true

	cmd.AddCommand(NewVersionCmd(NewVersionOptions()))
	cmd.AddCommand(cmdtpl.NewCmd(cmdtpl.NewOptions()))
	cmd.AddCommand(cmdtpl.NewTypecheckCmd(cmdtpl.NewTypecheckOptions()))
	cmd.AddCommand(cmdtpl.NewDisasmCmd(cmdtpl.NewDisasmOptions()))

	// Reconfigure Commands
	cobrautil.VisitCommands(cmd, cobrautil.ReconfigureCmdWithSubcmd,
		cobrautil.DisallowExtraArgs, cobrautil.WrapRunEForCmd(cobrautil.ResolveFlagsForCmd))

	return cmd
}
