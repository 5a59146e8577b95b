// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package template

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"carvel.dev/jtt/pkg/cmd/ui"
	"carvel.dev/jtt/pkg/files"
	"carvel.dev/jtt/pkg/jttlibrary"
	"carvel.dev/jtt/pkg/value"
	"github.com/spf13/cobra"
)

type RenderOptions struct {
	Debug    bool
	Template string
	Output   string

	EnvironmentFlags EnvironmentFlags
	DataValuesFlags  DataValuesFlags
}

func NewOptions() *RenderOptions {
	return &RenderOptions{}
}

func NewCmd(o *RenderOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "render",
		Aliases: []string{"r"},
		Short:   "Render templates",
		RunE:    func(_ *cobra.Command, _ []string) error { return o.Run() },
	}
	cmd.Flags().BoolVar(&o.Debug, "debug", false, "Enable debug output")
	cmd.Flags().StringVarP(&o.Template, "template", "t", "", "Render only the named template")
	cmd.Flags().StringVarP(&o.Output, "output", "o", "", "Directory for output")
	o.EnvironmentFlags.Set(cmd)
	o.DataValuesFlags.Set(cmd)
	return cmd
}

func (o *RenderOptions) Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	return o.RunWithUI(ctx, ui.NewTTY(o.Debug))
}

func (o *RenderOptions) RunWithUI(ctx context.Context, ui ui.UI) error {
	t1 := time.Now()

	defer func() {
		ui.Debugf("total: %s\n", time.Since(t1))
	}()

	root, err := o.DataValuesFlags.Values()
	if err != nil {
		return err
	}

	if o.DataValuesFlags.Inspect {
		return o.inspectValues(root, ui)
	}

	env, err := o.EnvironmentFlags.Build(ui, uiWriter{ui})
	if err != nil {
		return err
	}
	defer env.Close()

	names := []string{o.Template}
	if len(o.Template) == 0 {
		names = env.PackageTemplateNames(env.RootPackage())
	}
	if len(names) == 0 {
		return fmt.Errorf("Expected at least one template to render (use --file or --project)")
	}

	var outputFiles []files.OutputFile

	for _, name := range names {
		out, report, err := env.RenderWithReport(ctx, name, root)
		if err != nil {
			return fmt.Errorf("Rendering template '%s':\n%w", name, err)
		}
		ui.Debugf("render %s: %s in %s (macros: %v)\n", report.ID, name, report.Duration, report.MacroNames())

		outputFiles = append(outputFiles, files.NewOutputFile(name, []byte(out)))
	}

	if len(o.Output) > 0 {
		return files.NewOutputDirectory(o.Output, outputFiles, ui).Write()
	}

	for i, file := range outputFiles {
		if len(outputFiles) > 1 {
			if i > 0 {
				ui.Printf("\n")
			}
			ui.Printf("-- %s\n", file.RelativePath())
		}
		ui.Printf("%s", file.Bytes()) // no newline
	}
	return nil
}

func (o *RenderOptions) inspectValues(root *value.Map, ui ui.UI) error {
	toYAML := jttlibrary.SerializationAPI.Globals["toyaml"]

	encoded, err := value.Call(value.BackgroundState{}, toYAML, []value.Value{value.FromMap(root)})
	if err != nil {
		return fmt.Errorf("Marshaling data values: %w", err)
	}

	ui.Printf("%s", encoded.String()) // no newline
	return nil
}

// uiWriter sends print() and log() output of templates to stderr so that
// it does not mix with rendered output.
type uiWriter struct {
	ui ui.UI
}

func (w uiWriter) Write(data []byte) (int, error) {
	w.ui.Warnf("%s", data)
	return len(data), nil
}
