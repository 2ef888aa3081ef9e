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

package shm

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"time"
)

// DefaultPollInterval bounds a single futex sleep inside Sema.Wait so that the
// interrupted predicate and the context are re-checked even if a wake-up was
// lost.
const DefaultPollInterval = 250 * time.Millisecond

const (
	semaLive      = uint32(0)
	semaDestroyed = uint32(1)
)

// Sema is a counting semaphore stored in shared memory. It is usable from any
// process that maps the region: waiters block on the shared futex keyed by the
// address of count.
//
// A Sema initialized with one permit is used as a mutex (Lock/Unlock).
type Sema struct {
	count   uint32 // 0x00: available permits
	waiters uint32 // 0x04: callers currently inside futexWait
	state   uint32 // 0x08: live / destroyed
	pad     uint32 // 0x0C: padding to 16B
}

// Init sets the permit count and marks the semaphore live.
func (s *Sema) Init(n uint32) {
	atomic.StoreUint32(&s.state, semaLive)
	atomic.StoreUint32(&s.waiters, 0)
	atomic.StoreUint32(&s.count, n)
}

// Value returns the number of available permits.
func (s *Sema) Value() uint32 {
	return atomic.LoadUint32(&s.count)
}

// Destroyed reports whether Destroy has been called.
func (s *Sema) Destroyed() bool {
	return atomic.LoadUint32(&s.state) == semaDestroyed
}

// TryAcquire takes one permit if one is available.
func (s *Sema) TryAcquire() bool {
	for {
		c := atomic.LoadUint32(&s.count)
		if c == 0 {
			return false
		}
		if atomic.CompareAndSwapUint32(&s.count, c, c-1) {
			return true
		}
	}
}

// Drain takes every available permit and returns how many were taken.
func (s *Sema) Drain() uint32 {
	return atomic.SwapUint32(&s.count, 0)
}

// Post adds one permit.
func (s *Sema) Post() {
	s.PostN(1)
}

// PostN adds n permits and wakes up to n waiters.
func (s *Sema) PostN(n uint32) {
	if n == 0 {
		return
	}
	atomic.AddUint32(&s.count, n)
	// The count is published before waiters is read: a waiter that registers
	// after this load finds count != 0 inside futexWait and does not sleep.
	if atomic.LoadUint32(&s.waiters) != 0 {
		futexWake(&s.count, int(n))
	}
}

// Destroy marks the semaphore destroyed and wakes every waiter. Subsequent
// waits that find no permit fail with ErrSemaDestroyed.
func (s *Sema) Destroy() {
	atomic.StoreUint32(&s.state, semaDestroyed)
	futexWake(&s.count, math.MaxInt32)
}

// Wait blocks until a permit is taken. It returns early with ctx.Err() when
// ctx ends, with ErrWaitInterrupted when interrupted reports true, and with
// ErrSemaDestroyed after Destroy. An available permit always wins over an
// interruption.
//
// poll bounds one futex sleep; zero selects DefaultPollInterval.
func (s *Sema) Wait(ctx context.Context, interrupted func() bool, poll time.Duration) error {
	if s.TryAcquire() {
		return nil
	}
	if poll <= 0 {
		poll = DefaultPollInterval
	}

	stop := context.AfterFunc(ctx, func() {
		futexWake(&s.count, math.MaxInt32)
	})
	defer stop()

	for {
		if s.TryAcquire() {
			return nil
		}
		if s.Destroyed() {
			return ErrSemaDestroyed
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if interrupted != nil && interrupted() {
			return ErrWaitInterrupted
		}

		atomic.AddUint32(&s.waiters, 1)
		err := futexWait(&s.count, 0, poll)
		atomic.AddUint32(&s.waiters, ^uint32(0))
		if err != nil && !errors.Is(err, errFutexTimeout) {
			return err
		}
	}
}

// Lock acquires a semaphore used as a mutex. It only fails once the
// semaphore is destroyed.
func (s *Sema) Lock() error {
	return s.Wait(context.Background(), nil, 0)
}

// Unlock releases a semaphore used as a mutex.
func (s *Sema) Unlock() {
	s.Post()
}
