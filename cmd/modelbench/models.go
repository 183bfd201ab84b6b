// Copyright 2025 The ModelBench Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models [-tags T] [MODEL ...]",
	Short: "List catalog models and their effective settings",
	// Silence errors because we will print the error ourselves in main.
	SilenceErrors: true,
	// Don't show usage for every error.
	SilenceUsage: true,
	// RunE because we want errors to affect the return status.
	RunE: func(cmd *cobra.Command, args []string) error {
		models, bases, err := loadModels(cmd.Context(), args)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%-42s%-6s%-22s%s\n", "NAME", "GPUS", "DOCKERFILE", "TAGS")
		for _, m := range models {
			dockerfile := m.Dockerfile
			if bases[m.Name] != "" {
				dockerfile += " (base override)"
			}
			fmt.Fprintf(w, "%-42s%-6d%-22s%s\n", m.Name, m.NGPUs, dockerfile, strings.Join(m.Tags, ","))
		}
		switch len(models) {
		case 0:
			fmt.Fprintln(w, "No models matched")
		case 1:
			fmt.Fprintln(w, "1 model")
		default:
			fmt.Fprintf(w, "%d models\n", len(models))
		}
		return nil
	},
}
