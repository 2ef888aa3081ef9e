/*
 *
 * Copyright 2025 gRPC authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

//go:build linux

package broadcast

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/diabloget/sync-process-comms/internal/shm"
)

const (
	testPoll    = 5 * time.Millisecond
	testTimeout = 5 * time.Second
	testTick    = time.Millisecond
)

// newTestRegion creates a region for one test. The returned handle belongs
// to the test; participants attach their own.
func newTestRegion(t *testing.T, opts shm.Options) *shm.Region {
	t.Helper()

	if opts.Dir == "" {
		opts.Dir = t.TempDir()
	}
	if opts.Name == "" {
		opts.Name = fmt.Sprintf("bcast-%d", time.Now().UnixNano())
	}
	r, err := shm.Create(opts)
	if err != nil {
		t.Fatalf("Failed to create region: %v", err)
	}
	t.Cleanup(func() {
		r.Close()
		r.Unlink()
	})
	return r
}

// attach maps r a second time, as a separate participant process would.
func attach(t *testing.T, r *shm.Region) *shm.Region {
	t.Helper()

	other, err := shm.Attach(filepath.Dir(r.Path()), r.Name())
	if err != nil {
		t.Fatalf("Failed to attach region: %v", err)
	}
	t.Cleanup(func() {
		other.Close()
	})
	return other
}

// syncBuffer is a byte sink safe for use while a test polls it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) WriteByte(c byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.WriteByte(c)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

// eventLog collects hook events.
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) add(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) pending() []int32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]int32, 0, len(l.events))
	for _, ev := range l.events {
		out = append(out, ev.Pending)
	}
	return out
}

// cancelTerminator stands in for SIGTERM delivery inside one process: it
// cancels the context a participant runs under and records who was asked
// to stop.
type cancelTerminator struct {
	mu      sync.Mutex
	cancels map[uint32]context.CancelFunc
	called  []uint32
}

func newCancelTerminator() *cancelTerminator {
	return &cancelTerminator{cancels: make(map[uint32]context.CancelFunc)}
}

func (c *cancelTerminator) context(parent context.Context, owner uint32) context.Context {
	ctx, cancel := context.WithCancel(parent)
	c.mu.Lock()
	c.cancels[owner] = cancel
	c.mu.Unlock()
	return ctx
}

func (c *cancelTerminator) Terminate(owner uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.called = append(c.called, owner)
	if cancel, ok := c.cancels[owner]; ok {
		cancel()
	}
	return nil
}

func (c *cancelTerminator) terminated() []uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]uint32(nil), c.called...)
}
