// Copyright 2025 The ModelBench Authors
// SPDX-License-Identifier: Apache-2.0

package logtail

import (
	"io"
	"strings"
	"testing"
	"time"
)

func TestTailRetainsWindow(t *testing.T) {
	tail := NewTail(16)
	for i := 0; i < 10; i++ {
		if _, err := tail.Write([]byte("line\n")); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	got := string(tail.Bytes())
	if len(got) > 16 {
		t.Errorf("retained %d bytes, limit 16", len(got))
	}
	if !tail.Truncated() {
		t.Error("Truncated() = false after overflow")
	}
	if got != "" && !strings.HasPrefix(got, "line") {
		t.Errorf("window does not start on a line boundary: %q", got)
	}
}

func TestTailSmallWrites(t *testing.T) {
	tail := NewTail(64)
	tail.Write([]byte("hello "))
	tail.Write([]byte("world"))
	if got := string(tail.Bytes()); got != "hello world" {
		t.Errorf("Bytes() = %q, want %q", got, "hello world")
	}
	if tail.Truncated() {
		t.Error("Truncated() = true without overflow")
	}
}

func TestTailOversizeWrite(t *testing.T) {
	tail := NewTail(4)
	tail.Write([]byte("abcdefgh"))
	if got := string(tail.Bytes()); got != "efgh" {
		t.Errorf("Bytes() = %q, want %q", got, "efgh")
	}
	if !tail.Truncated() {
		t.Error("Truncated() = false after oversize write")
	}
}

func TestStreamReadFollowsWrites(t *testing.T) {
	s := NewStream(1024)
	go func() {
		s.Write([]byte("first\n"))
		s.Write([]byte("second\n"))
		s.Close()
	}()
	out, err := io.ReadAll(s)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if got := string(out); got != "first\nsecond\n" {
		t.Errorf("ReadAll = %q", got)
	}
}

func TestStreamReadBlocksUntilWrite(t *testing.T) {
	s := NewStream(1024)
	done := make(chan string, 1)
	go func() {
		buf := make([]byte, 16)
		n, _ := s.Read(buf)
		done <- string(buf[:n])
	}()
	select {
	case got := <-done:
		t.Fatalf("Read returned %q before any write", got)
	case <-time.After(10 * time.Millisecond):
	}
	s.Write([]byte("data"))
	select {
	case got := <-done:
		if got != "data" {
			t.Errorf("Read = %q, want %q", got, "data")
		}
	case <-time.After(time.Second):
		t.Fatal("Read did not observe write")
	}
}

func TestStreamDropsOldestWhenBehind(t *testing.T) {
	s := NewStream(8)
	s.Write([]byte("aaaa"))
	s.Write([]byte("bbbbcccc"))
	s.Close()
	out, err := io.ReadAll(s)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if got := string(out); got != "bbbbcccc" {
		t.Errorf("ReadAll = %q, want retained suffix %q", got, "bbbbcccc")
	}
}

func TestStreamWriteAfterClose(t *testing.T) {
	s := NewStream(8)
	s.Close()
	if _, err := s.Write([]byte("late")); err != nil {
		t.Errorf("Write after Close: %v", err)
	}
	if _, err := s.Read(make([]byte, 4)); err != io.EOF {
		t.Errorf("Read after Close = %v, want io.EOF", err)
	}
}
