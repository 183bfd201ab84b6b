// Copyright 2025 The ModelBench Authors
// SPDX-License-Identifier: Apache-2.0

package local

import (
	"context"
	"io"
	"sync"

	"github.com/modelbench/modelbench/internal/logtail"
	"github.com/modelbench/modelbench/pkg/build"
)

// localHandle implements build.Handle for executions driven by the docker CLI
type localHandle struct {
	id         string
	cancel     context.CancelFunc
	output     *logtail.Stream
	tail       *logtail.Tail
	resultChan chan build.Result

	statusMu sync.RWMutex
	status   build.State
}

func newLocalHandle(id string, cancel context.CancelFunc, bufferSize int) *localHandle {
	return &localHandle{
		id:         id,
		cancel:     cancel,
		output:     logtail.NewStream(bufferSize),
		tail:       logtail.NewTail(bufferSize),
		resultChan: make(chan build.Result, 1),
		status:     build.StateStarting,
	}
}

// RunID implements build.Handle
func (h *localHandle) RunID() string {
	return h.id
}

// Wait implements build.Handle
func (h *localHandle) Wait(ctx context.Context) (build.Result, error) {
	defer h.output.Close()
	select {
	case result := <-h.resultChan:
		return result, nil
	case <-ctx.Done():
		// Context timeout - this is different from execution cancellation
		return build.Result{}, ctx.Err()
	}
}

// OutputStream implements build.Handle
func (h *localHandle) OutputStream() io.Reader {
	return h.output
}

// Status implements build.Handle
func (h *localHandle) Status() build.State {
	h.statusMu.RLock()
	defer h.statusMu.RUnlock()
	return h.status
}

// Cancel cancels the execution
func (h *localHandle) Cancel() {
	defer h.output.Close()
	h.cancel()
}

// updateStatus updates the handle's status
func (h *localHandle) updateStatus(state build.State) {
	h.statusMu.Lock()
	defer h.statusMu.Unlock()
	h.status = state
}

// setResult sets the final result without blocking if one is already set
func (h *localHandle) setResult(result build.Result) {
	select {
	case h.resultChan <- result:
	default:
	}
}

// Write streams a chunk of output to the follower and the retained tail
func (h *localHandle) Write(p []byte) (n int, err error) {
	h.tail.Write(p)
	return h.output.Write(p)
}

// outputTail returns the retained window of combined output
func (h *localHandle) outputTail() string {
	return string(h.tail.Bytes())
}
