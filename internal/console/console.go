// Copyright 2025 The ModelBench Authors
// SPDX-License-Identifier: Apache-2.0

// Package console runs host commands on behalf of the CLI with their output
// either streamed live or captured. Interactive-friendly commands (docker
// pull and friends) can be run under a pseudo-terminal so their progress
// rendering survives instead of degrading to line spam.
package console

import (
	"bytes"
	"context"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"

	"github.com/creack/pty"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
)

// Runner executes host commands.
type Runner struct {
	// Out receives live output; defaults to os.Stdout.
	Out io.Writer
	// Quiet suppresses live output and command-line logging.
	Quiet bool
}

func (r *Runner) out() io.Writer {
	if r.Out != nil {
		return r.Out
	}
	return os.Stdout
}

func (r *Runner) logf(format string, args ...any) {
	if !r.Quiet {
		log.Printf(format, args...)
	}
}

// Run executes the command, streaming combined output to Out.
func (r *Runner) Run(ctx context.Context, name string, args ...string) error {
	r.logf("[console] %s %s", name, strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, name, args...)
	if !r.Quiet {
		cmd.Stdout = r.out()
		cmd.Stderr = r.out()
	}
	return errors.Wrapf(cmd.Run(), "running %s", name)
}

// Capture executes the command and returns its combined output. The output
// also streams to Out unless Quiet is set.
func (r *Runner) Capture(ctx context.Context, name string, args ...string) (string, error) {
	r.logf("[console] %s %s", name, strings.Join(args, " "))
	var buf bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	if r.Quiet {
		cmd.Stdout = &buf
		cmd.Stderr = &buf
	} else {
		w := io.MultiWriter(&buf, r.out())
		cmd.Stdout = w
		cmd.Stderr = w
	}
	err := cmd.Run()
	return buf.String(), errors.Wrapf(err, "running %s", name)
}

// RunPTY executes the command under a pseudo-terminal when Out is a
// terminal, preserving the child's progress rendering. On non-terminal
// output (or when quiet) it behaves like Run.
func (r *Runner) RunPTY(ctx context.Context, name string, args ...string) error {
	f, ok := r.out().(*os.File)
	if r.Quiet || !ok || !isatty.IsTerminal(f.Fd()) {
		return r.Run(ctx, name, args...)
	}
	r.logf("[console] %s %s", name, strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, name, args...)
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return errors.Wrapf(err, "starting %s under pty", name)
	}
	defer ptmx.Close()
	// The copy ends with an EIO when the child closes its side; that is the
	// normal shutdown path for Linux ptys.
	_, _ = io.Copy(f, ptmx)
	return errors.Wrapf(cmd.Wait(), "running %s", name)
}

// ExitCode extracts the process exit code from a Run/Capture error: 0 on
// nil, the child's code for exit errors, -1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
