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
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Memory layout constants
const (
	// Magic bytes for region identification
	RegionMagic = "SHMCAST\x00"

	// Current layout version
	RegionVersion = uint32(1)

	// Header size (aligned to 256 bytes)
	HeaderSize = 256

	// Fixed record sizes inside the arena
	SemaSize         = 16
	SlotSize         = 24
	ReceiverSlotSize = 48
	ProducerSlotSize = 32

	// Limits enforced at creation
	MaxCapacity     = 1 << 16
	MaxParticipants = 1024
	MaxSourceSize   = 1 << 20

	// Default table sizes
	DefaultMaxReceivers = 50
	DefaultMaxProducers = 50
)

// Region lifecycle states stored in the header.
const (
	StateInitializing = uint32(0)
	StateReady        = uint32(1)
	StateDestroyed    = uint32(2)
)

// Header is the fixed control block at offset zero of every region.
type Header struct {
	magic           [8]byte  // 0x00: "SHMCAST\0"
	version         uint32   // 0x08: layout version
	state           uint32   // 0x0C: initializing / ready / destroyed
	totalSize       uint64   // 0x10: total region size
	capacity        uint32   // 0x18: number of slots
	maxReceivers    uint32   // 0x1C: receiver table rows
	maxProducers    uint32   // 0x20: producer table rows
	sourceLen       uint32   // 0x24: source payload length
	sourceSum       uint64   // 0x28: xxhash of the source payload
	createdAt       int64    // 0x30: creation time, unix nanoseconds
	instance        [16]byte // 0x38: instance id
	writeCursor     uint32   // 0x48: next slot to write (producer mutex)
	shutdown        uint32   // 0x4C: shutdown requested flag
	totalProducers  uint32   // 0x50: producers ever joined
	activeProducers uint32   // 0x54: producers currently joined
	totalConsumers  uint32   // 0x58: receivers ever registered
	activeConsumers uint32   // 0x5C: receivers currently registered
	totalBytes      uint64   // 0x60: bytes published
	reserved        [24]byte // 0x68-0x7F: reserved
	freeSlots       Sema     // 0x80: capacity counter
	producerMutex   Sema     // 0x90: write cursor + producer table
	registryMutex   Sema     // 0xA0: receiver table
	completion      Sema     // 0xB0: shutdown completion counter
	pad             [64]byte // 0xC0-0xFF: padding to 256B
}

// Magic returns the magic bytes
func (h *Header) Magic() [8]byte {
	return h.magic
}

// SetMagic sets the magic bytes
func (h *Header) SetMagic(magic [8]byte) {
	h.magic = magic
}

// Version returns the layout version
func (h *Header) Version() uint32 {
	return atomic.LoadUint32(&h.version)
}

// SetVersion sets the layout version
func (h *Header) SetVersion(version uint32) {
	atomic.StoreUint32(&h.version, version)
}

// State returns the lifecycle state
func (h *Header) State() uint32 {
	return atomic.LoadUint32(&h.state)
}

// SetState sets the lifecycle state
func (h *Header) SetState(state uint32) {
	atomic.StoreUint32(&h.state, state)
}

// TotalSize returns the total region size
func (h *Header) TotalSize() uint64 {
	return atomic.LoadUint64(&h.totalSize)
}

// Capacity returns the number of slots
func (h *Header) Capacity() uint32 {
	return atomic.LoadUint32(&h.capacity)
}

// MaxReceivers returns the number of receiver table rows
func (h *Header) MaxReceivers() uint32 {
	return atomic.LoadUint32(&h.maxReceivers)
}

// MaxProducers returns the number of producer table rows
func (h *Header) MaxProducers() uint32 {
	return atomic.LoadUint32(&h.maxProducers)
}

// SourceLen returns the length of the source payload
func (h *Header) SourceLen() uint32 {
	return atomic.LoadUint32(&h.sourceLen)
}

// SourceSum returns the checksum recorded for the source payload
func (h *Header) SourceSum() uint64 {
	return atomic.LoadUint64(&h.sourceSum)
}

// CreatedAt returns the creation time of the region
func (h *Header) CreatedAt() time.Time {
	return time.Unix(0, atomic.LoadInt64(&h.createdAt))
}

// Instance returns the id assigned to the region at creation
func (h *Header) Instance() uuid.UUID {
	return uuid.UUID(h.instance)
}

func newInstanceID() [16]byte {
	return [16]byte(uuid.New())
}

// WriteCursor returns the next slot index to be written
func (h *Header) WriteCursor() uint32 {
	return atomic.LoadUint32(&h.writeCursor)
}

// SetWriteCursor sets the next slot index to be written. Callers hold the
// producer mutex.
func (h *Header) SetWriteCursor(idx uint32) {
	atomic.StoreUint32(&h.writeCursor, idx)
}

// ShutdownRequested reports whether the coordinator has started shutdown
func (h *Header) ShutdownRequested() bool {
	return atomic.LoadUint32(&h.shutdown) != 0
}

// RequestShutdown sets the shutdown flag. The transition is one-way.
func (h *Header) RequestShutdown() {
	atomic.StoreUint32(&h.shutdown, 1)
}

// TotalProducers returns the number of producers that ever joined
func (h *Header) TotalProducers() uint32 {
	return atomic.LoadUint32(&h.totalProducers)
}

// ActiveProducers returns the number of producers currently joined
func (h *Header) ActiveProducers() uint32 {
	return atomic.LoadUint32(&h.activeProducers)
}

// ProducerJoined bumps both producer counters. Callers hold the producer mutex.
func (h *Header) ProducerJoined() {
	atomic.AddUint32(&h.totalProducers, 1)
	atomic.AddUint32(&h.activeProducers, 1)
}

// ProducerLeft decrements the active producer counter. Callers hold the
// producer mutex.
func (h *Header) ProducerLeft() {
	atomic.AddUint32(&h.activeProducers, ^uint32(0))
}

// TotalConsumers returns the number of receivers that ever registered
func (h *Header) TotalConsumers() uint32 {
	return atomic.LoadUint32(&h.totalConsumers)
}

// ActiveConsumers returns the number of receivers currently registered
func (h *Header) ActiveConsumers() uint32 {
	return atomic.LoadUint32(&h.activeConsumers)
}

// ConsumerJoined bumps both receiver counters. Callers hold the registry mutex.
func (h *Header) ConsumerJoined() {
	atomic.AddUint32(&h.totalConsumers, 1)
	atomic.AddUint32(&h.activeConsumers, 1)
}

// ConsumerLeft decrements the active receiver counter. Callers hold the
// registry mutex.
func (h *Header) ConsumerLeft() {
	atomic.AddUint32(&h.activeConsumers, ^uint32(0))
}

// TotalBytes returns the number of bytes published
func (h *Header) TotalBytes() uint64 {
	return atomic.LoadUint64(&h.totalBytes)
}

// AddTotalBytes adds n to the published byte counter
func (h *Header) AddTotalBytes(n uint64) {
	atomic.AddUint64(&h.totalBytes, n)
}

// FreeSlots returns the capacity counter
func (h *Header) FreeSlots() *Sema {
	return &h.freeSlots
}

// ProducerMutex returns the semaphore guarding the write cursor and the
// producer table
func (h *Header) ProducerMutex() *Sema {
	return &h.producerMutex
}

// RegistryMutex returns the semaphore guarding the receiver table
func (h *Header) RegistryMutex() *Sema {
	return &h.registryMutex
}

// Completion returns the shutdown completion counter
func (h *Header) Completion() *Sema {
	return &h.completion
}

// Slot is one cell of the ring. Its fields are only read or written while the
// slot guard is held.
type Slot struct {
	insertedAt     int64  // 0x00: publish time, unix nanoseconds
	position       uint32 // 0x08: self index
	pendingReaders int32  // 0x0C: receivers still owed a read
	payload        uint32 // 0x10: encoded byte in the low 8 bits
	pad            uint32 // 0x14: padding to 24B
}

// Payload returns the encoded byte
func (s *Slot) Payload() byte {
	return byte(atomic.LoadUint32(&s.payload))
}

// Position returns the slot's own index
func (s *Slot) Position() uint32 {
	return atomic.LoadUint32(&s.position)
}

// InsertedAt returns the time the current payload was published
func (s *Slot) InsertedAt() time.Time {
	return time.Unix(0, atomic.LoadInt64(&s.insertedAt))
}

// PendingReaders returns the number of receivers still owed this slot
func (s *Slot) PendingReaders() int32 {
	return atomic.LoadInt32(&s.pendingReaders)
}

// Store publishes a payload into the slot and sets its reference count.
func (s *Slot) Store(payload byte, position uint32, at time.Time, readers int32) {
	atomic.StoreUint32(&s.payload, uint32(payload))
	atomic.StoreUint32(&s.position, position)
	atomic.StoreInt64(&s.insertedAt, at.UnixNano())
	atomic.StoreInt32(&s.pendingReaders, readers)
}

// DecrementReaders drops the reference count by one and returns the result.
func (s *Slot) DecrementReaders() int32 {
	return atomic.AddInt32(&s.pendingReaders, -1)
}

func (s *Slot) reset(position uint32) {
	s.Store(0, position, time.Unix(0, 0), 0)
}

// ReceiverSlot is one row of the receiver table. A row is occupied iff its
// owner id is non-zero.
type ReceiverSlot struct {
	wake     Sema   // 0x00: private wake signal
	ownerID  uint32 // 0x10: owner id (pid), 0 when free
	cursor   uint32 // 0x14: next slot this receiver consumes
	mode     uint32 // 0x18: pacing mode, informational
	pad      uint32 // 0x1C: padding
	joinedAt int64  // 0x20: registration time, unix nanoseconds
	consumed uint64 // 0x28: bytes consumed
}

// Wake returns the receiver's private wake signal
func (r *ReceiverSlot) Wake() *Sema {
	return &r.wake
}

// OwnerID returns the id of the owning participant, 0 when free
func (r *ReceiverSlot) OwnerID() uint32 {
	return atomic.LoadUint32(&r.ownerID)
}

// Occupied reports whether the row is claimed
func (r *ReceiverSlot) Occupied() bool {
	return r.OwnerID() != 0
}

// Cursor returns the next slot index this receiver will consume
func (r *ReceiverSlot) Cursor() uint32 {
	return atomic.LoadUint32(&r.cursor)
}

// SetCursor sets the next slot index this receiver will consume
func (r *ReceiverSlot) SetCursor(idx uint32) {
	atomic.StoreUint32(&r.cursor, idx)
}

// Mode returns the pacing mode recorded at registration
func (r *ReceiverSlot) Mode() uint32 {
	return atomic.LoadUint32(&r.mode)
}

// JoinedAt returns the registration time
func (r *ReceiverSlot) JoinedAt() time.Time {
	return time.Unix(0, atomic.LoadInt64(&r.joinedAt))
}

// Consumed returns the number of bytes this receiver consumed
func (r *ReceiverSlot) Consumed() uint64 {
	return atomic.LoadUint64(&r.consumed)
}

// AddConsumed adds n to the consumed counter
func (r *ReceiverSlot) AddConsumed(n uint64) {
	atomic.AddUint64(&r.consumed, n)
}

// Claim marks the row as owned. The wake signal is left untouched; it is
// initialized once at creation.
func (r *ReceiverSlot) Claim(owner, cursor, mode uint32, at time.Time) {
	atomic.StoreUint32(&r.cursor, cursor)
	atomic.StoreUint32(&r.mode, mode)
	atomic.StoreInt64(&r.joinedAt, at.UnixNano())
	atomic.StoreUint64(&r.consumed, 0)
	atomic.StoreUint32(&r.ownerID, owner)
}

// Release frees the row.
func (r *ReceiverSlot) Release() {
	atomic.StoreUint32(&r.ownerID, 0)
}

// ProducerSlot is one row of the producer table.
type ProducerSlot struct {
	ownerID  uint32 // 0x00: owner id (pid), 0 when free
	mode     uint32 // 0x04: pacing mode, informational
	joinedAt int64  // 0x08: join time, unix nanoseconds
	produced uint64 // 0x10: bytes published
	reserved uint64 // 0x18: padding to 32B
}

// OwnerID returns the id of the owning participant, 0 when free
func (p *ProducerSlot) OwnerID() uint32 {
	return atomic.LoadUint32(&p.ownerID)
}

// Occupied reports whether the row is claimed
func (p *ProducerSlot) Occupied() bool {
	return p.OwnerID() != 0
}

// Mode returns the pacing mode recorded at join
func (p *ProducerSlot) Mode() uint32 {
	return atomic.LoadUint32(&p.mode)
}

// JoinedAt returns the join time
func (p *ProducerSlot) JoinedAt() time.Time {
	return time.Unix(0, atomic.LoadInt64(&p.joinedAt))
}

// Produced returns the number of bytes this producer published
func (p *ProducerSlot) Produced() uint64 {
	return atomic.LoadUint64(&p.produced)
}

// AddProduced adds n to the produced counter
func (p *ProducerSlot) AddProduced(n uint64) {
	atomic.AddUint64(&p.produced, n)
}

// Claim marks the row as owned.
func (p *ProducerSlot) Claim(owner, mode uint32, at time.Time) {
	atomic.StoreUint32(&p.mode, mode)
	atomic.StoreInt64(&p.joinedAt, at.UnixNano())
	atomic.StoreUint64(&p.produced, 0)
	atomic.StoreUint32(&p.ownerID, owner)
}

// Release frees the row.
func (p *ProducerSlot) Release() {
	atomic.StoreUint32(&p.ownerID, 0)
}

// Layout describes where each part of the arena lives. It is a pure function
// of the parameters recorded in the header.
type Layout struct {
	Capacity        uint32
	MaxReceivers    uint32
	MaxProducers    uint32
	SourceLen       uint32
	SourceOffset    uint64
	ReceiversOffset uint64
	ProducersOffset uint64
	SlotsOffset     uint64
	GuardsOffset    uint64
	TotalSize       uint64
}

// CalculateLayout calculates the arena layout for a region with the given
// parameters.
func CalculateLayout(capacity, maxReceivers, maxProducers, sourceLen uint32) (Layout, error) {
	if capacity == 0 || capacity > MaxCapacity {
		return Layout{}, fmt.Errorf("%w: capacity %d outside [1, %d]", ErrInvalidLayout, capacity, MaxCapacity)
	}
	if maxReceivers == 0 || maxReceivers > MaxParticipants {
		return Layout{}, fmt.Errorf("%w: receiver table size %d outside [1, %d]", ErrInvalidLayout, maxReceivers, MaxParticipants)
	}
	if maxProducers == 0 || maxProducers > MaxParticipants {
		return Layout{}, fmt.Errorf("%w: producer table size %d outside [1, %d]", ErrInvalidLayout, maxProducers, MaxParticipants)
	}
	if sourceLen > MaxSourceSize {
		return Layout{}, fmt.Errorf("%w: source length %d exceeds %d", ErrInvalidLayout, sourceLen, MaxSourceSize)
	}

	l := Layout{
		Capacity:     capacity,
		MaxReceivers: maxReceivers,
		MaxProducers: maxProducers,
		SourceLen:    sourceLen,
	}
	l.SourceOffset = alignTo64(HeaderSize)
	l.ReceiversOffset = alignTo64(l.SourceOffset + uint64(sourceLen))
	l.ProducersOffset = alignTo64(l.ReceiversOffset + uint64(maxReceivers)*ReceiverSlotSize)
	l.SlotsOffset = alignTo64(l.ProducersOffset + uint64(maxProducers)*ProducerSlotSize)
	l.GuardsOffset = alignTo64(l.SlotsOffset + uint64(capacity)*SlotSize)
	l.TotalSize = alignTo64(l.GuardsOffset + uint64(capacity)*SemaSize)
	return l, nil
}

// alignTo64 aligns a size to 64-byte boundary
func alignTo64(size uint64) uint64 {
	return (size + 63) &^ 63
}

// ValidateHeader checks a mapped header and returns the layout it declares.
func ValidateHeader(h *Header) (Layout, error) {
	if string(h.magic[:]) != RegionMagic {
		return Layout{}, fmt.Errorf("%w: invalid magic bytes", ErrInvalidLayout)
	}
	if h.Version() != RegionVersion {
		return Layout{}, fmt.Errorf("%w: unsupported version %d, expected %d", ErrInvalidLayout, h.Version(), RegionVersion)
	}
	switch h.State() {
	case StateReady:
	case StateDestroyed:
		return Layout{}, fmt.Errorf("%w: region has been destroyed", ErrAttach)
	default:
		return Layout{}, fmt.Errorf("%w: region is still initializing", ErrAttach)
	}

	l, err := CalculateLayout(h.Capacity(), h.MaxReceivers(), h.MaxProducers(), h.SourceLen())
	if err != nil {
		return Layout{}, err
	}
	if h.TotalSize() != l.TotalSize {
		return Layout{}, fmt.Errorf("%w: total size mismatch: got %d, expected %d", ErrInvalidLayout, h.TotalSize(), l.TotalSize)
	}
	return l, nil
}
