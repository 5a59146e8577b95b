// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package template

import (
	"fmt"
	"io"
	"os"

	"carvel.dev/jtt/pkg/adapter/sqlite"
	"carvel.dev/jtt/pkg/cmd/ui"
	"carvel.dev/jtt/pkg/experiments"
	"carvel.dev/jtt/pkg/files"
	"carvel.dev/jtt/pkg/starlarkfn"
	"carvel.dev/jtt/pkg/vm"
	"carvel.dev/jtt/pkg/workspace"
	"github.com/spf13/cobra"
)

// EnvironmentFlags select templates, host functions and settings an
// Environment is built from.
type EnvironmentFlags struct {
	Files     []string
	Recursive bool

	Project   string
	Functions []string
	SQLite    string

	RootPackage     string
	StrictUndefined bool
	AutoEscape      bool
}

func (s *EnvironmentFlags) Set(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&s.Files, "file", "f", nil, "File (ie local path, HTTP URL, -) (can be specified multiple times)")
	cmd.Flags().BoolVarP(&s.Recursive, "recursive", "R", true, "Interpret file as directory")

	cmd.Flags().StringVar(&s.Project, "project", "", "Project config file (e.g. "+workspace.ProjectConfigFileName+")")
	cmd.Flags().StringArrayVar(&s.Functions, "functions", nil, "Starlark file with host functions (can be specified multiple times)")
	cmd.Flags().StringVar(&s.SQLite, "sqlite", "", "SQLite database backing adapter.execute and run_query (e.g. ':memory:')")

	cmd.Flags().StringVar(&s.RootPackage, "root-package", "", "Name of the package templates given via --file belong to")
	cmd.Flags().BoolVar(&s.StrictUndefined, "strict-undefined", false, "Fail on any use of undefined values")
	cmd.Flags().BoolVar(&s.AutoEscape, "autoescape", false, "HTML escape output of expressions")
}

// BuiltEnvironment is an Environment plus resources to release after use.
type BuiltEnvironment struct {
	*workspace.Environment
	closers []io.Closer
}

func (e BuiltEnvironment) Close() error {
	var lastErr error
	for _, closer := range e.closers {
		if err := closer.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (s *EnvironmentFlags) Build(ui ui.UI, output io.Writer) (BuiltEnvironment, error) {
	built := BuiltEnvironment{}

	config := workspace.ProjectConfig{}
	if len(s.Project) > 0 {
		var err error
		config, err = workspace.LoadProjectConfig(s.Project)
		if err != nil {
			return built, err
		}
	}

	opts, err := config.EnvironmentOpts()
	if err != nil {
		return built, err
	}
	if len(s.RootPackage) > 0 {
		opts.RootPackage = s.RootPackage
	}
	if s.StrictUndefined {
		opts.Undefined = vm.UndefinedStrict
	}
	if s.AutoEscape {
		opts.AutoEscape = true
	}
	opts.Output = output
	opts.Env = os.LookupEnv

	builder := workspace.NewBuilder(opts)

	if err := config.Apply(builder); err != nil {
		return built, err
	}

	starlarkFiles, err := s.addFiles(builder, ui)
	if err != nil {
		return built, err
	}

	if len(s.Functions) > 0 {
		functionFiles, err := files.NewFiles(s.Functions, false)
		if err != nil {
			return built, fmt.Errorf("Loading functions: %w", err)
		}
		starlarkFiles = append(starlarkFiles, functionFiles...)
	}

	if len(starlarkFiles) > 0 {
		if !experiments.IsStarlarkFunctionsEnabled() {
			return built, fmt.Errorf("Loading Starlark functions requires the '%s' experiment (set %s=%s)",
				experiments.StarlarkFunctions, experiments.Env, experiments.StarlarkFunctions)
		}
		lib, err := starlarkfn.Load(starlarkFiles)
		if err != nil {
			return built, err
		}
		builder.AddLibrary(lib)
	}

	if len(s.SQLite) > 0 {
		conn, err := sqlite.Open(s.SQLite)
		if err != nil {
			return built, err
		}
		built.closers = append(built.closers, conn)
		builder.SetConnection(conn)
	}

	env, err := builder.Build()
	if err != nil {
		built.Close()
		return built, err
	}
	built.Environment = env
	return built, nil
}

// addFiles adds templates given via --file to the root package and
// returns Starlark files found among them.
func (s *EnvironmentFlags) addFiles(builder *workspace.Builder, ui ui.UI) ([]*files.File, error) {
	if len(s.Files) == 0 {
		return nil, nil
	}

	filesToProcess, err := files.NewFiles(s.Files, s.Recursive)
	if err != nil {
		return nil, err
	}

	var templateFiles, starlarkFiles []*files.File
	for _, file := range filesToProcess {
		switch file.Type() {
		case files.TypeTemplate:
			templateFiles = append(templateFiles, file)
		case files.TypeStarlark:
			starlarkFiles = append(starlarkFiles, file)
		default:
			ui.Debugf("skipping %s file '%s'\n", file.Type(), file.RelativePath())
		}
	}

	return starlarkFiles, builder.AddFiles(builder.RootPackage(), "", templateFiles)
}
