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

// EmitterConfig configures an Emitter.
type EmitterConfig struct {
	Owner        uint32 // participant id, usually the pid
	Key          codec.Key
	Mode         Mode
	Pacer        Pacer       // Unpaced when nil
	Clock        clock.Clock // real clock when nil
	PollInterval time.Duration
	OnPublish    func(Event) // called after every publication
}

// Emitter is a producer: it publishes the region's source payload, one byte
// per slot, from the first byte to the last.
type Emitter struct {
	participant
	cfg  EmitterConfig
	row  int
	next uint32 // private cursor into the source payload
}

// NewEmitter returns an emitter working on r.
func NewEmitter(r *shm.Region, cfg EmitterConfig) *Emitter {
	if cfg.Pacer == nil {
		cfg.Pacer = Unpaced{}
	}
	return &Emitter{
		participant: newParticipant(r, cfg.Clock, cfg.PollInterval),
		cfg:         cfg,
		row:         -1,
	}
}

// Run joins the producer table and publishes until the source is exhausted,
// shutdown is requested, the pacer stops or ctx ends. Those are all normal
// stops. The completion counter is posted exactly once if the join
// succeeded.
func (e *Emitter) Run(ctx context.Context) (err error) {
	log := logr.FromContextOrDiscard(ctx).WithValues("role", "emitter", "owner", e.cfg.Owner)

	row, err := e.producers.Join(e.cfg.Owner, e.cfg.Mode)
	if err != nil {
		return fmt.Errorf("failed to join producer table: %w", err)
	}
	e.row = row
	log.Info("Emitter started", "row", row, "mode", e.cfg.Mode, "sourceLen", len(e.region.Source()))

	defer func() {
		if lerr := e.producers.Leave(row); lerr != nil && !errors.Is(lerr, shm.ErrSemaDestroyed) && err == nil {
			err = fmt.Errorf("failed to leave producer table: %w", lerr)
		}
		log.Info("Emitter finished", "sent", e.next)
	}()

	for {
		if e.hdr.ShutdownRequested() {
			log.V(1).Info("Shutdown requested")
			return nil
		}
		b, err := e.peek()
		if errors.Is(err, ErrSourceExhausted) {
			log.Info("End of source reached")
			return nil
		}

		if err := e.cfg.Pacer.Turn(ctx); err != nil {
			return stopReason(log, err)
		}
		if err := e.alloc.Acquire(ctx); err != nil {
			if errors.Is(err, ErrCapacityWaitInterrupted) {
				// Capacity was over-released by the coordinator; nothing to
				// give back.
				return nil
			}
			return stopReason(log, err)
		}
		if ctx.Err() != nil && !e.hdr.ShutdownRequested() {
			e.alloc.Release()
			return stopReason(log, ctx.Err())
		}

		ev, err := e.publish(b)
		if errors.Is(err, ErrShutdownRequested) {
			return nil
		}
		if err != nil {
			return err
		}
		e.next++
		e.report(log, ev)

		if err := e.cfg.Pacer.Rest(ctx); err != nil {
			return stopReason(log, err)
		}
	}
}

func (e *Emitter) peek() (byte, error) {
	src := e.region.Source()
	if int(e.next) >= len(src) {
		return 0, ErrSourceExhausted
	}
	return src[e.next], nil
}

// publish writes one byte into the next slot. The reference count snapshot,
// the position claim and the wake-ups all happen in one registry critical
// section so that no receiver can join or leave in between.
func (e *Emitter) publish(b byte) (Event, error) {
	if err := e.registry.Lock(); err != nil {
		return Event{}, err
	}
	defer e.registry.Unlock()

	if e.hdr.ShutdownRequested() {
		return Event{}, ErrShutdownRequested
	}

	readers := e.hdr.ActiveConsumers()
	pos, err := e.producers.ClaimPosition()
	if err != nil {
		return Event{}, err
	}

	now := e.clock.Now()
	slot, err := e.guards.Lock(pos)
	if err != nil {
		return Event{}, err
	}
	if pending := slot.PendingReaders(); pending != 0 {
		e.guards.Unlock(pos)
		return Event{}, fmt.Errorf("%w: slot %d has %d pending readers", ErrSlotInUse, pos, pending)
	}
	slot.Store(codec.Encode(b, e.cfg.Key), pos, now, int32(readers))
	e.guards.Unlock(pos)

	e.hdr.AddTotalBytes(1)
	e.region.Producer(e.row).AddProduced(1)

	if readers == 0 {
		e.alloc.Release()
	} else {
		e.registry.forEachActiveLocked(func(_ int, rs *shm.ReceiverSlot) {
			rs.Wake().Post()
		})
	}

	return Event{
		Owner:      e.cfg.Owner,
		Position:   pos,
		Char:       b,
		InsertedAt: now,
		Pending:    int32(readers),
	}, nil
}

func (e *Emitter) report(log logr.Logger, ev Event) {
	log.V(1).Info("Published",
		"position", ev.Position,
		"char", sink.Printable(ev.Char),
		"insertedAt", ev.InsertedAt,
		"pending", ev.Pending)
	if e.cfg.OnPublish != nil {
		e.cfg.OnPublish(ev)
	}
}

// stopReason maps the error that ended a loop to the loop's result: input
// exhaustion and cancellation are normal stops.
func stopReason(log logr.Logger, err error) error {
	switch {
	case errors.Is(err, io.EOF):
		log.Info("Input closed")
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.V(1).Info("Stopped", "reason", err.Error())
		return nil
	default:
		return err
	}
}
