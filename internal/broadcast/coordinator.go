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
	"os"
	"time"

	"github.com/go-logr/logr"
	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
	"k8s.io/utils/clock"

	"github.com/diabloget/sync-process-comms/internal/shm"
)

// Terminator asks a participant to stop. Owner ids are the ids recorded in
// the registries.
type Terminator interface {
	Terminate(owner uint32) error
}

// SignalTerminator sends SIGTERM to the process whose pid is the owner id.
// It never signals pid 0 or the calling process.
type SignalTerminator struct{}

func (SignalTerminator) Terminate(owner uint32) error {
	if owner == 0 || int(owner) == os.Getpid() {
		return nil
	}
	if err := unix.Kill(int(owner), unix.SIGTERM); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("failed to signal %d: %w", owner, err)
	}
	return nil
}

// NopTerminator relies on the shutdown flag and the forced wake-ups alone.
type NopTerminator struct{}

func (NopTerminator) Terminate(uint32) error { return nil }

// CoordinatorConfig configures a Coordinator.
type CoordinatorConfig struct {
	Terminator   Terminator  // SignalTerminator when nil
	Clock        clock.Clock // real clock when nil
	PollInterval time.Duration
}

// Coordinator drives the shutdown of a region. Shutdown runs once; the
// region handle is closed and the region unlinked when it returns.
type Coordinator struct {
	participant
	cfg CoordinatorConfig
}

// NewCoordinator returns a coordinator for r.
func NewCoordinator(r *shm.Region, cfg CoordinatorConfig) *Coordinator {
	if cfg.Terminator == nil {
		cfg.Terminator = SignalTerminator{}
	}
	return &Coordinator{
		participant: newParticipant(r, cfg.Clock, cfg.PollInterval),
		cfg:         cfg,
	}
}

// Shutdown requests shutdown, wakes every blocked participant, waits for
// each participant active at that moment to report completion, then
// destroys every semaphore and releases the region. If ctx ends before all
// participants reported, teardown still happens and ctx.Err() is part of
// the returned error. The statistics are read after the final wait.
func (c *Coordinator) Shutdown(ctx context.Context) (Stats, error) {
	log := logr.FromContextOrDiscard(ctx).WithValues("role", "coordinator", "region", c.region.Name())

	c.hdr.RequestShutdown()
	log.Info("Shutdown requested")

	var errs error
	expected, producers, err := c.wakeAll(&errs)
	if err != nil {
		return Stats{}, multierr.Combine(err, c.teardown())
	}

	c.alloc.ReleaseN(c.region.Capacity())

	for _, owner := range producers {
		errs = multierr.Append(errs, c.cfg.Terminator.Terminate(owner))
	}

	log.Info("Waiting for participants", "expected", expected)
	done := uint32(0)
	for ; done < expected; done++ {
		if err := c.hdr.Completion().Wait(ctx, nil, c.poll); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("waited for %d of %d participants: %w", done, expected, err))
			break
		}
		log.V(1).Info("Participant finished", "done", done+1, "expected", expected)
	}

	stats := ReadStats(c.region)
	errs = multierr.Append(errs, c.teardown())
	if errs == nil {
		log.Info("Region released", "bytes", stats.TotalBytes)
	}
	return stats, errs
}

// wakeAll snapshots the active participants, wakes every registered
// receiver and asks it to terminate. Completion permits posted by
// participants that left before the snapshot are drained so they cannot
// satisfy the final wait. Termination failures are appended to errs.
func (c *Coordinator) wakeAll(errs *error) (uint32, []uint32, error) {
	if err := c.registry.Lock(); err != nil {
		return 0, nil, err
	}
	defer c.registry.Unlock()

	if err := c.producers.Lock(); err != nil {
		return 0, nil, err
	}
	c.hdr.Completion().Drain()
	expected := c.hdr.ActiveProducers() + c.hdr.ActiveConsumers()
	var owners []uint32
	c.producers.forEachActiveLocked(func(_ int, ps *shm.ProducerSlot) {
		owners = append(owners, ps.OwnerID())
	})
	c.producers.Unlock()

	c.registry.forEachActiveLocked(func(_ int, rs *shm.ReceiverSlot) {
		rs.Wake().Post()
		multierr.AppendInto(errs, c.cfg.Terminator.Terminate(rs.OwnerID()))
	})
	return expected, owners, nil
}

// teardown destroys every semaphore, marks the region destroyed, unmaps it
// and removes the backing file.
func (c *Coordinator) teardown() error {
	for _, s := range c.region.Semaphores() {
		s.Destroy()
	}
	c.hdr.SetState(shm.StateDestroyed)
	return multierr.Combine(c.region.Close(), c.region.Unlink())
}
