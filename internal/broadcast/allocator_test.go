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
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diabloget/sync-process-comms/internal/shm"
)

func TestAllocatorAcquireRelease(t *testing.T) {
	r := newTestRegion(t, shm.Options{Capacity: 2})
	a := NewAllocator(r, testPoll)

	require.NoError(t, a.Acquire(context.Background()))
	require.NoError(t, a.Acquire(context.Background()))
	assert.Equal(t, uint32(0), a.Free())

	a.Release()
	assert.Equal(t, uint32(1), a.Free())
	a.ReleaseN(1)
	assert.Equal(t, uint32(2), a.Free())
}

func TestAllocatorBlocksWhenFull(t *testing.T) {
	r := newTestRegion(t, shm.Options{Capacity: 1})
	a := NewAllocator(r, testPoll)
	require.NoError(t, a.Acquire(context.Background()))

	done := make(chan error, 1)
	go func() {
		done <- a.Acquire(context.Background())
	}()

	select {
	case err := <-done:
		t.Fatalf("Acquire returned with no free slot: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	a.Release()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(testTimeout):
		t.Fatal("Acquire not released")
	}
}

func TestAllocatorInterruptedByShutdown(t *testing.T) {
	r := newTestRegion(t, shm.Options{Capacity: 1})
	a := NewAllocator(r, testPoll)
	require.NoError(t, a.Acquire(context.Background()))

	done := make(chan error, 1)
	go func() {
		done <- a.Acquire(context.Background())
	}()

	time.Sleep(20 * time.Millisecond)
	r.Header().RequestShutdown()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrCapacityWaitInterrupted)
	case <-time.After(testTimeout):
		t.Fatal("Acquire did not observe shutdown")
	}
}

func TestAllocatorContextCanceled(t *testing.T) {
	r := newTestRegion(t, shm.Options{Capacity: 1})
	a := NewAllocator(r, testPoll)
	require.NoError(t, a.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := a.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrCapacityWaitInterrupted)
}

func TestGuardsWith(t *testing.T) {
	r := newTestRegion(t, shm.Options{Capacity: 3})
	g := NewGuards(r)

	require.NoError(t, g.With(4, func(s *shm.Slot) {
		assert.Equal(t, uint32(1), s.Position(), "index wraps modulo capacity")
		assert.Equal(t, uint32(0), r.Guard(1).Value(), "guard held inside With")
	}))
	assert.Equal(t, uint32(1), r.Guard(1).Value())
}
