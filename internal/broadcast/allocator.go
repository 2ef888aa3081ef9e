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

package broadcast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diabloget/sync-process-comms/internal/shm"
)

// Allocator is the capacity counter of a region. It holds one permit per
// free slot; producers take a permit before claiming a position and the
// last reader of a slot gives it back.
type Allocator struct {
	hdr  *shm.Header
	sem  *shm.Sema
	poll time.Duration
}

// NewAllocator returns the allocator of r.
func NewAllocator(r *shm.Region, poll time.Duration) *Allocator {
	h := r.Header()
	return &Allocator{hdr: h, sem: h.FreeSlots(), poll: poll}
}

// Acquire blocks until a slot is free and takes it. It fails with
// ErrCapacityWaitInterrupted once shutdown is requested and with ctx.Err()
// when ctx ends. A free slot is taken even if shutdown was requested in the
// meantime; callers re-check the flag.
func (a *Allocator) Acquire(ctx context.Context) error {
	err := a.sem.Wait(ctx, a.hdr.ShutdownRequested, a.poll)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, shm.ErrWaitInterrupted), errors.Is(err, shm.ErrSemaDestroyed):
		return fmt.Errorf("%w: %w", ErrCapacityWaitInterrupted, err)
	default:
		return err
	}
}

// Release returns one slot.
func (a *Allocator) Release() {
	a.sem.Post()
}

// ReleaseN returns n slots at once.
func (a *Allocator) ReleaseN(n uint32) {
	a.sem.PostN(n)
}

// Free returns the number of free slots.
func (a *Allocator) Free() uint32 {
	return a.sem.Value()
}
