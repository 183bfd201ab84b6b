// Copyright 2025 The ModelBench Authors
// SPDX-License-Identifier: Apache-2.0

// Package logtail provides bounded capture of process output: a Tail that
// retains only the most recent bytes of a log, and a Stream that lets one
// reader follow output as it is produced without ever blocking the writer.
package logtail

import (
	"io"
	"sync"
)

// Tail is a writer that keeps the last Limit bytes written to it. Earlier
// output is discarded at line granularity where possible so the retained
// window starts on a line boundary.
type Tail struct {
	mu        sync.Mutex
	limit     int
	buf       []byte
	truncated bool
}

// NewTail returns a Tail retaining at most limit bytes.
func NewTail(limit int) *Tail {
	if limit <= 0 {
		panic("logtail: limit must be positive")
	}
	return &Tail{limit: limit}
}

// Write implements io.Writer. It never fails.
func (t *Tail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(p) >= t.limit {
		t.buf = append(t.buf[:0], p[len(p)-t.limit:]...)
		t.truncated = t.truncated || len(p) > t.limit
		return len(p), nil
	}
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = t.buf[over:]
		t.truncated = true
	}
	if t.truncated {
		// Resync to the next line boundary so the window does not open
		// mid-line.
		for i, c := range t.buf {
			if c == '\n' {
				t.buf = t.buf[i+1:]
				break
			}
		}
	}
	return len(p), nil
}

// Bytes returns a copy of the retained window.
func (t *Tail) Bytes() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]byte, len(t.buf))
	copy(out, t.buf)
	return out
}

// Truncated reports whether any output was discarded.
func (t *Tail) Truncated() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.truncated
}

// Stream is a single-reader pipe whose writes never block. Pending data is
// capped: if the reader falls more than limit bytes behind, the oldest
// unread data is dropped. Read blocks until data arrives or the stream is
// closed; after close and drain it returns io.EOF.
type Stream struct {
	mu      sync.Mutex
	cond    *sync.Cond
	limit   int
	pending []byte
	closed  bool
}

// NewStream returns a Stream whose unread backlog is capped at limit bytes.
func NewStream(limit int) *Stream {
	if limit <= 0 {
		panic("logtail: limit must be positive")
	}
	s := &Stream{limit: limit}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Write implements io.Writer. Writing to a closed stream discards the data
// without error so producers need not track reader lifetime.
func (s *Stream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return len(p), nil
	}
	s.pending = append(s.pending, p...)
	if over := len(s.pending) - s.limit; over > 0 {
		s.pending = s.pending[over:]
	}
	s.cond.Broadcast()
	return len(p), nil
}

// Read implements io.Reader.
func (s *Stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.pending) == 0 && !s.closed {
		s.cond.Wait()
	}
	if len(s.pending) == 0 {
		return 0, io.EOF
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

// Close releases any blocked reader. It is safe to call multiple times.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cond.Broadcast()
	return nil
}
