// Copyright 2025 The ModelBench Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/modelbench/modelbench/pkg/hostinfo"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var discoverCmd = &cobra.Command{
	Use:   "discover [-format json]",
	Short: "Probe the host GPU, OS, and device topology",
	Args:  cobra.NoArgs,
	// Silence errors because we will print the error ourselves in main.
	SilenceErrors: true,
	// Don't show usage for every error.
	SilenceUsage: true,
	// RunE because we want errors to affect the return status.
	RunE: func(cmd *cobra.Command, args []string) error {
		host, err := hostinfo.New().Info(cmd.Context())
		if err != nil {
			return err
		}
		switch *format {
		case "", "table":
			renderHost(cmd.OutOrStdout(), host)
			return nil
		case "json":
			b, err := json.MarshalIndent(host, "", "  ")
			if err != nil {
				return errors.Wrap(err, "encoding host info")
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		default:
			return errors.Errorf("unknown format %q", *format)
		}
	},
}

func renderHost(w io.Writer, h hostinfo.Host) {
	fmt.Fprintf(w, "%-18s%s\n", "GPU vendor:", h.Vendor)
	fmt.Fprintf(w, "%-18s%s\n", "GPU architecture:", h.Arch)
	fmt.Fprintf(w, "%-18s%d\n", "GPUs:", h.NGPUs)
	if h.Vendor == hostinfo.AMD {
		fmt.Fprintf(w, "%-18s%s\n", "Render nodes:", joinInts(h.RenderNodes))
	}
	fmt.Fprintf(w, "%-18s%s\n", "Host OS:", h.OS)
	fmt.Fprintf(w, "%-18s%d\n", "CPUs:", h.CPUs)
	if h.System.CPUModel != "" {
		fmt.Fprintf(w, "%-18s%s\n", "CPU model:", h.System.CPUModel)
	}
	if h.System.MemTotal != "" {
		fmt.Fprintf(w, "%-18s%s\n", "Memory:", h.System.MemTotal)
	}
	fmt.Fprintf(w, "%-18s%s\n", "Machine:", h.Machine)
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}
