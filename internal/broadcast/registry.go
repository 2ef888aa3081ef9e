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
	"fmt"

	"k8s.io/utils/clock"

	"github.com/diabloget/sync-process-comms/internal/shm"
)

// Registry is the table of receivers currently attached to a region. Every
// read and write of the table, and the producer's read of the active
// receiver count at publish time, happens under the registry mutex.
type Registry struct {
	region *shm.Region
	hdr    *shm.Header
	mu     *shm.Sema
	alloc  *Allocator
	guards Guards
	clock  clock.PassiveClock
}

// NewRegistry returns the receiver registry of r.
func NewRegistry(r *shm.Region, alloc *Allocator, clk clock.PassiveClock) *Registry {
	if clk == nil {
		clk = clock.RealClock{}
	}
	h := r.Header()
	return &Registry{
		region: r,
		hdr:    h,
		mu:     h.RegistryMutex(),
		alloc:  alloc,
		guards: NewGuards(r),
		clock:  clk,
	}
}

// Lock takes the registry mutex.
func (g *Registry) Lock() error {
	if err := g.mu.Lock(); err != nil {
		return fmt.Errorf("registry mutex: %w", err)
	}
	return nil
}

// Unlock releases the registry mutex.
func (g *Registry) Unlock() {
	g.mu.Unlock()
}

// Register claims the first free row for owner. The receiver's cursor
// starts at the current write cursor: it only sees bytes published from
// now on.
func (g *Registry) Register(owner uint32, mode Mode) (int, error) {
	if owner == 0 {
		return -1, ErrInvalidOwner
	}
	if err := g.Lock(); err != nil {
		return -1, err
	}
	defer g.Unlock()

	for i := 0; i < int(g.hdr.MaxReceivers()); i++ {
		rs := g.region.Receiver(i)
		if rs.Occupied() {
			continue
		}
		rs.Claim(owner, g.hdr.WriteCursor(), uint32(mode), g.clock.Now())
		g.hdr.ConsumerJoined()
		return i, nil
	}
	return -1, ErrReceiverTableFull
}

// Unregister frees row i. It is a no-op for a free row.
func (g *Registry) Unregister(i int) error {
	if err := g.Lock(); err != nil {
		return err
	}
	defer g.Unlock()
	g.unregisterLocked(i)
	return nil
}

func (g *Registry) unregisterLocked(i int) bool {
	rs := g.region.Receiver(i)
	if !rs.Occupied() {
		return false
	}
	rs.Release()
	g.hdr.ConsumerLeft()
	return true
}

// SnapshotActiveCount returns the number of registered receivers.
func (g *Registry) SnapshotActiveCount() (uint32, error) {
	if err := g.Lock(); err != nil {
		return 0, err
	}
	defer g.Unlock()
	return g.hdr.ActiveConsumers(), nil
}

// ForEachActive calls fn for every occupied row under the registry mutex.
func (g *Registry) ForEachActive(fn func(i int, rs *shm.ReceiverSlot)) error {
	if err := g.Lock(); err != nil {
		return err
	}
	defer g.Unlock()
	g.forEachActiveLocked(fn)
	return nil
}

func (g *Registry) forEachActiveLocked(fn func(i int, rs *shm.ReceiverSlot)) {
	for i := 0; i < int(g.hdr.MaxReceivers()); i++ {
		if rs := g.region.Receiver(i); rs.Occupied() {
			fn(i, rs)
		}
	}
}

// Leave is the exit path of a receiver: unless shutdown was requested it
// settles the slots the receiver was counted in but never consumed, frees
// the row and posts the completion counter. holding reports whether the
// receiver took a wake permit it did not consume.
//
// Every unconsumed publication left exactly one permit on the row's wake
// semaphore, so the permits name the slots owed, starting at the cursor.
func (g *Registry) Leave(i int, holding bool) error {
	if err := g.Lock(); err != nil {
		return err
	}
	defer g.Unlock()

	rs := g.region.Receiver(i)
	if !rs.Occupied() {
		return nil
	}

	var err error
	if !g.hdr.ShutdownRequested() {
		owed := rs.Wake().Drain()
		if holding {
			owed++
		}
		err = g.settleLocked(rs, owed)
	}
	g.unregisterLocked(i)
	g.hdr.Completion().Post()
	return err
}

func (g *Registry) settleLocked(rs *shm.ReceiverSlot, owed uint32) error {
	capacity := g.region.Capacity()
	cursor := rs.Cursor()
	for k := uint32(0); k < owed; k++ {
		idx := (cursor + k) % capacity
		var left int32
		if err := g.guards.With(idx, func(s *shm.Slot) {
			left = s.DecrementReaders()
			if left == 0 {
				g.alloc.Release()
			}
		}); err != nil {
			return err
		}
	}
	rs.SetCursor((cursor + owed) % capacity)
	return nil
}
