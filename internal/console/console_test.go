// Copyright 2025 The ModelBench Authors
// SPDX-License-Identifier: Apache-2.0

package console

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
)

func TestCapture(t *testing.T) {
	r := &Runner{Quiet: true}
	out, err := r.Capture(context.Background(), "sh", "-c", "echo stdout; echo stderr 1>&2")
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if !strings.Contains(out, "stdout") || !strings.Contains(out, "stderr") {
		t.Errorf("Capture = %q, want combined streams", out)
	}
}

func TestCaptureStreamsToOut(t *testing.T) {
	var live bytes.Buffer
	r := &Runner{Out: &live}
	out, err := r.Capture(context.Background(), "sh", "-c", "echo hello")
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if out != live.String() {
		t.Errorf("captured %q but streamed %q", out, live.String())
	}
}

func TestRunFailure(t *testing.T) {
	r := &Runner{Quiet: true}
	err := r.Run(context.Background(), "sh", "-c", "exit 3")
	if err == nil {
		t.Fatal("Run succeeded, want exit error")
	}
	if got := ExitCode(err); got != 3 {
		t.Errorf("ExitCode = %d, want 3", got)
	}
}

func TestRunPTYFallsBackWithoutTerminal(t *testing.T) {
	var buf bytes.Buffer
	r := &Runner{Out: &buf}
	if err := r.RunPTY(context.Background(), "sh", "-c", "echo via-fallback"); err != nil {
		t.Fatalf("RunPTY: %v", err)
	}
	if !strings.Contains(buf.String(), "via-fallback") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestExitCode(t *testing.T) {
	if got := ExitCode(nil); got != 0 {
		t.Errorf("ExitCode(nil) = %d", got)
	}
	if got := ExitCode(errors.New("not an exec error")); got != -1 {
		t.Errorf("ExitCode(plain) = %d, want -1", got)
	}
}
