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

// Producers is the table of emitters attached to a region, guarded by the
// producer mutex together with the write cursor. The coordinator uses it to
// reach every producer by identity.
type Producers struct {
	region *shm.Region
	hdr    *shm.Header
	mu     *shm.Sema
	clock  clock.PassiveClock
}

// NewProducers returns the producer table of r.
func NewProducers(r *shm.Region, clk clock.PassiveClock) *Producers {
	if clk == nil {
		clk = clock.RealClock{}
	}
	h := r.Header()
	return &Producers{region: r, hdr: h, mu: h.ProducerMutex(), clock: clk}
}

// Lock takes the producer mutex.
func (p *Producers) Lock() error {
	if err := p.mu.Lock(); err != nil {
		return fmt.Errorf("producer mutex: %w", err)
	}
	return nil
}

// Unlock releases the producer mutex.
func (p *Producers) Unlock() {
	p.mu.Unlock()
}

// Join claims the first free producer row for owner.
func (p *Producers) Join(owner uint32, mode Mode) (int, error) {
	if owner == 0 {
		return -1, ErrInvalidOwner
	}
	if err := p.Lock(); err != nil {
		return -1, err
	}
	defer p.Unlock()

	for i := 0; i < int(p.hdr.MaxProducers()); i++ {
		ps := p.region.Producer(i)
		if ps.Occupied() {
			continue
		}
		ps.Claim(owner, uint32(mode), p.clock.Now())
		p.hdr.ProducerJoined()
		return i, nil
	}
	return -1, ErrProducerTableFull
}

// Leave frees row i and posts the completion counter. It is a no-op for a
// free row.
func (p *Producers) Leave(i int) error {
	if err := p.Lock(); err != nil {
		return err
	}
	defer p.Unlock()

	ps := p.region.Producer(i)
	if !ps.Occupied() {
		return nil
	}
	ps.Release()
	p.hdr.ProducerLeft()
	p.hdr.Completion().Post()
	return nil
}

// ClaimPosition takes the write cursor and advances it by one.
func (p *Producers) ClaimPosition() (uint32, error) {
	if err := p.Lock(); err != nil {
		return 0, err
	}
	defer p.Unlock()

	pos := p.hdr.WriteCursor()
	p.hdr.SetWriteCursor((pos + 1) % p.region.Capacity())
	return pos, nil
}

func (p *Producers) forEachActiveLocked(fn func(i int, ps *shm.ProducerSlot)) {
	for i := 0; i < int(p.hdr.MaxProducers()); i++ {
		if ps := p.region.Producer(i); ps.Occupied() {
			fn(i, ps)
		}
	}
}
