// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package template

import (
	"fmt"
	"os"
	"strings"

	"carvel.dev/jtt/pkg/files"
	"carvel.dev/jtt/pkg/jttlibrary"
	"carvel.dev/jtt/pkg/value"
	"carvel.dev/jtt/pkg/workspace"
	"github.com/spf13/cobra"
)

type DataValuesFlags struct {
	EnvFromStrings []string
	EnvFromYAML    []string

	KVsFromStrings []string
	KVsFromYAML    []string
	KVsFromFiles   []string

	Files []string

	Inspect bool

	// envFunc is os.Environ outside of tests
	envFunc func() []string
}

func (s *DataValuesFlags) Set(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&s.EnvFromStrings, "data-values-env", nil, "Extract data values (as strings) from prefixed env vars (format: PREFIX for PREFIX_all__key1=str) (can be specified multiple times)")
	cmd.Flags().StringArrayVar(&s.EnvFromYAML, "data-values-env-yaml", nil, "Extract data values (parsed as YAML) from prefixed env vars (format: PREFIX for PREFIX_all__key1=true) (can be specified multiple times)")

	cmd.Flags().StringArrayVarP(&s.KVsFromStrings, "data-value", "v", nil, "Set specific data value to given value, as string (format: all.key1.subkey=123) (can be specified multiple times)")
	cmd.Flags().StringArrayVar(&s.KVsFromYAML, "data-value-yaml", nil, "Set specific data value to given value, parsed as YAML (format: all.key1.subkey=true) (can be specified multiple times)")
	cmd.Flags().StringArrayVar(&s.KVsFromFiles, "data-value-file", nil, "Set specific data value to given file contents, as string (format: all.key1.subkey=/file/path) (can be specified multiple times)")

	cmd.Flags().StringArrayVar(&s.Files, "data-values-file", nil, "Merge data values from YAML, JSON or TOML file (can be specified multiple times)")

	cmd.Flags().BoolVar(&s.Inspect, "data-values-inspect", false, "Inspect data values")
}

type dataValuesFlagsSource struct {
	Values        []string
	TransformFunc func(string) (value.Value, error)
}

// Values builds the render context. Files are merged first, then env
// vars and finally individual key-values.
func (s *DataValuesFlags) Values() (*value.Map, error) {
	dataValues := workspace.NewEmptyDataValues()

	if len(s.Files) > 0 {
		dataFiles, err := files.NewFiles(s.Files, false)
		if err != nil {
			return nil, fmt.Errorf("Loading data values files: %w", err)
		}
		if err := dataValues.AddFiles(dataFiles); err != nil {
			return nil, err
		}
	}

	plainValFunc := func(rawVal string) (value.Value, error) { return value.FromString(rawVal), nil }

	yamlValFunc := func(rawVal string) (value.Value, error) {
		val, err := jttlibrary.DecodeYAML(rawVal)
		if err != nil {
			return value.Undefined, fmt.Errorf("Deserializing YAML value: %w", err)
		}
		return val, nil
	}

	for _, src := range []dataValuesFlagsSource{{s.EnvFromStrings, plainValFunc}, {s.EnvFromYAML, yamlValFunc}} {
		for _, envPrefix := range src.Values {
			err := s.env(dataValues, envPrefix, src.TransformFunc)
			if err != nil {
				return nil, fmt.Errorf("Extracting data values from env under prefix '%s': %w", envPrefix, err)
			}
		}
	}

	// KVs and files take precedence over environment variables
	for _, src := range []dataValuesFlagsSource{{s.KVsFromStrings, plainValFunc}, {s.KVsFromYAML, yamlValFunc}} {
		for _, kv := range src.Values {
			err := s.kv(dataValues, kv, src.TransformFunc)
			if err != nil {
				return nil, fmt.Errorf("Extracting data value from KV: %w", err)
			}
		}
	}

	for _, file := range s.KVsFromFiles {
		err := s.file(dataValues, file)
		if err != nil {
			return nil, fmt.Errorf("Extracting data value from file: %w", err)
		}
	}

	return dataValues.Map(), nil
}

func (s *DataValuesFlags) env(dataValues *workspace.DataValues, prefix string, valueFunc func(string) (value.Value, error)) error {
	envFunc := s.envFunc
	if envFunc == nil {
		envFunc = os.Environ
	}

	for _, envVar := range envFunc() {
		pieces := strings.SplitN(envVar, "=", 2)
		if len(pieces) != 2 {
			return fmt.Errorf("Expected env variable to be key-value pair (format: key=value)")
		}

		if !strings.HasPrefix(pieces[0], prefix+"_") {
			continue
		}

		val, err := valueFunc(pieces[1])
		if err != nil {
			return fmt.Errorf("Extracting data value from env variable '%s': %w", pieces[0], err)
		}

		// '__' gets translated into a '.' since periods may not be liked by shells
		err = dataValues.Set(strings.ReplaceAll(strings.TrimPrefix(pieces[0], prefix+"_"), "__", "."), val)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *DataValuesFlags) kv(dataValues *workspace.DataValues, kv string, valueFunc func(string) (value.Value, error)) error {
	pieces := strings.SplitN(kv, "=", 2)
	if len(pieces) != 2 {
		return fmt.Errorf("Expected format key=value")
	}

	val, err := valueFunc(pieces[1])
	if err != nil {
		return fmt.Errorf("Deserializing value for key '%s': %w", pieces[0], err)
	}

	return dataValues.Set(pieces[0], val)
}

func (s *DataValuesFlags) file(dataValues *workspace.DataValues, kv string) error {
	pieces := strings.SplitN(kv, "=", 2)
	if len(pieces) != 2 {
		return fmt.Errorf("Expected format key=/file/path")
	}

	contents, err := os.ReadFile(pieces[1])
	if err != nil {
		return fmt.Errorf("Reading file '%s': %w", pieces[1], err)
	}

	return dataValues.Set(pieces[0], value.FromString(string(contents)))
}
