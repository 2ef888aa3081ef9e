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

	"github.com/diabloget/sync-process-comms/internal/shm"
)

// Guards gives access to the per-slot exclusion primitives. Every read or
// write of a slot, including the reference count decrement, happens with
// the slot's guard held.
type Guards struct {
	region *shm.Region
}

// NewGuards returns the guards of r.
func NewGuards(r *shm.Region) Guards {
	return Guards{region: r}
}

// Lock takes the guard of slot idx and returns the slot.
func (g Guards) Lock(idx uint32) (*shm.Slot, error) {
	if err := g.region.Guard(idx).Lock(); err != nil {
		return nil, fmt.Errorf("slot %d guard: %w", idx, err)
	}
	return g.region.Slot(idx), nil
}

// Unlock releases the guard of slot idx.
func (g Guards) Unlock(idx uint32) {
	g.region.Guard(idx).Unlock()
}

// With runs fn with the guard of slot idx held. fn must not block.
func (g Guards) With(idx uint32, fn func(*shm.Slot)) error {
	s, err := g.Lock(idx)
	if err != nil {
		return err
	}
	defer g.Unlock(idx)
	fn(s)
	return nil
}
