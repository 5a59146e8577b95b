// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"carvel.dev/jtt/pkg/experiments"
	"carvel.dev/jtt/pkg/version"
	"github.com/spf13/cobra"
)

type VersionOptions struct {
	out io.Writer
}

func NewVersionOptions() *VersionOptions {
	return &VersionOptions{out: os.Stdout}
}

func NewVersionCmd(o *VersionOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		RunE:  func(_ *cobra.Command, _ []string) error { return o.Run() },
	}
	return cmd
}

func (o *VersionOptions) Run() error {
	fmt.Fprintf(o.out, "jtt version %s\n", version.Version)

	if enabled := experiments.GetEnabled(); len(enabled) > 0 {
		fmt.Fprintf(o.out, "- experiments: %s\n", strings.Join(enabled, ", "))
	}
	return nil
}
