// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package template

import (
	"carvel.dev/jtt/pkg/cmd/ui"
	jtttpl "carvel.dev/jtt/pkg/template"
	"github.com/spf13/cobra"
)

type DisasmOptions struct {
	Template string
	CFG      bool
	DOT      bool

	EnvironmentFlags EnvironmentFlags
}

func NewDisasmOptions() *DisasmOptions {
	return &DisasmOptions{}
}

func NewDisasmCmd(o *DisasmOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disasm",
		Short: "Print compiled instructions of templates",
		RunE:  func(_ *cobra.Command, _ []string) error { return o.Run() },
	}
	cmd.Flags().StringVarP(&o.Template, "template", "t", "", "Print only the named template")
	cmd.Flags().BoolVar(&o.CFG, "cfg", false, "Group instructions by basic block")
	cmd.Flags().BoolVar(&o.DOT, "dot", false, "Print control flow graphs in graphviz format")
	o.EnvironmentFlags.Set(cmd)
	return cmd
}

func (o *DisasmOptions) Run() error {
	return o.RunWithUI(ui.NewTTY(false))
}

func (o *DisasmOptions) RunWithUI(ui ui.UI) error {
	env, err := o.EnvironmentFlags.Build(ui, uiWriter{ui})
	if err != nil {
		return err
	}
	defer env.Close()

	names := []string{o.Template}
	if len(o.Template) == 0 {
		names = env.TemplateNames()
	}

	for i, name := range names {
		tpl, err := env.FindCompiledTemplate(name)
		if err != nil {
			return err
		}
		if i > 0 {
			ui.Printf("\n")
		}
		ui.Printf("template %s:\n", name)

		switch {
		case o.DOT || o.CFG:
			o.printGraph(ui, "main", tpl.Instructions())
			for _, blockName := range tpl.BlockNames() {
				o.printGraph(ui, "block "+blockName, tpl.Blocks()[blockName])
			}
			for _, macro := range tpl.Macros() {
				o.printGraph(ui, "macro "+macro.Name, macro.Code)
			}
		default:
			ui.Printf("%s\n", tpl.DebugCodeAsString())
		}
	}
	return nil
}

func (o *DisasmOptions) printGraph(ui ui.UI, title string, instrs *jtttpl.Instructions) {
	cfg := jtttpl.BuildCFG(instrs)
	if o.DOT {
		ui.Printf("// %s\n%s\n", title, cfg.DOT())
		return
	}
	ui.Printf("%s:\n%s", title, cfg.Dump(instrs))
}

