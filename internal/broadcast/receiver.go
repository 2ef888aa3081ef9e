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
	"io"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/utils/clock"

	"github.com/diabloget/sync-process-comms/internal/codec"
	"github.com/diabloget/sync-process-comms/internal/shm"
	"github.com/diabloget/sync-process-comms/internal/sink"
)

// ReceiverConfig configures a Receiver.
type ReceiverConfig struct {
	Owner        uint32 // participant id, usually the pid
	Key          codec.Key
	Mode         Mode
	Pacer        Pacer          // Unpaced when nil
	Sink         io.ByteWriter  // destination of decoded bytes, discarded when nil
	Clock        clock.Clock    // real clock when nil
	PollInterval time.Duration
	OnConsume    func(Event) // called after every consumed byte
}

// Receiver is a consumer: it registers, then reads every byte published
// after its registration in position order.
type Receiver struct {
	participant
	cfg      ReceiverConfig
	row      int
	received uint64
}

// NewReceiver returns a receiver working on r.
func NewReceiver(r *shm.Region, cfg ReceiverConfig) *Receiver {
	if cfg.Pacer == nil {
		cfg.Pacer = Unpaced{}
	}
	if cfg.Sink == nil {
		cfg.Sink = discard{}
	}
	return &Receiver{
		participant: newParticipant(r, cfg.Clock, cfg.PollInterval),
		cfg:         cfg,
		row:         -1,
	}
}

// Row returns the registry row claimed by Run, or -1.
func (rc *Receiver) Row() int {
	return rc.row
}

// Run registers the receiver and consumes until shutdown is requested, the
// pacer stops or ctx ends. A full registry fails with ErrReceiverTableFull
// before anything is written to the region. Once registered, every exit
// goes through Registry.Leave.
func (rc *Receiver) Run(ctx context.Context) (err error) {
	log := logr.FromContextOrDiscard(ctx).WithValues("role", "receiver", "owner", rc.cfg.Owner)

	row, err := rc.registry.Register(rc.cfg.Owner, rc.cfg.Mode)
	if err != nil {
		return fmt.Errorf("failed to register receiver: %w", err)
	}
	rc.row = row
	rs := rc.region.Receiver(row)
	log.Info("Receiver registered", "row", row, "mode", rc.cfg.Mode, "cursor", rs.Cursor())

	holding := false
	defer func() {
		if lerr := rc.registry.Leave(row, holding); lerr != nil && !errors.Is(lerr, shm.ErrSemaDestroyed) && err == nil {
			err = fmt.Errorf("failed to leave registry: %w", lerr)
		}
		log.Info("Receiver finished", "received", rc.received)
	}()

	for {
		if rc.hdr.ShutdownRequested() {
			log.V(1).Info("Shutdown requested")
			return nil
		}
		if err := rc.cfg.Pacer.Turn(ctx); err != nil {
			return stopReason(log, err)
		}

		err := rs.Wake().Wait(ctx, rc.hdr.ShutdownRequested, rc.poll)
		switch {
		case err == nil:
		case errors.Is(err, shm.ErrWaitInterrupted), errors.Is(err, shm.ErrSemaDestroyed):
			return nil
		default:
			return stopReason(log, err)
		}
		holding = true

		// The coordinator posts every wake semaphore on shutdown; such a
		// permit does not name a published slot.
		if rc.hdr.ShutdownRequested() {
			return nil
		}

		ev, err := rc.consume(rs)
		if err != nil {
			return err
		}
		holding = false
		rc.received++
		rc.report(log, ev)

		if err := rc.cfg.Sink.WriteByte(ev.Char); err != nil {
			return fmt.Errorf("failed to write to sink: %w", err)
		}
		if err := rc.cfg.Pacer.Rest(ctx); err != nil {
			return stopReason(log, err)
		}
	}
}

// consume reads the slot at the receiver's cursor. The reference count is
// decremented with the guard held; the reader that brings it to zero
// returns the slot to the allocator.
func (rc *Receiver) consume(rs *shm.ReceiverSlot) (Event, error) {
	pos := rs.Cursor()
	slot, err := rc.guards.Lock(pos)
	if err != nil {
		return Event{}, err
	}
	ev := Event{
		Owner:      rc.cfg.Owner,
		Position:   pos,
		Char:       codec.Decode(slot.Payload(), rc.cfg.Key),
		InsertedAt: slot.InsertedAt(),
	}
	ev.Pending = slot.DecrementReaders()
	if ev.Pending == 0 {
		rc.alloc.Release()
	}
	rc.guards.Unlock(pos)

	rs.SetCursor((pos + 1) % rc.region.Capacity())
	rs.AddConsumed(1)
	return ev, nil
}

func (rc *Receiver) report(log logr.Logger, ev Event) {
	log.V(1).Info("Consumed",
		"position", ev.Position,
		"char", sink.Printable(ev.Char),
		"insertedAt", ev.InsertedAt,
		"pending", ev.Pending)
	if ev.Pending < 0 {
		log.Error(nil, "Slot reference count went negative", "position", ev.Position, "pending", ev.Pending)
	}
	if rc.cfg.OnConsume != nil {
		rc.cfg.OnConsume(ev)
	}
}

type discard struct{}

func (discard) WriteByte(byte) error { return nil }
