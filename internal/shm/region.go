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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"unsafe"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/multierr"
	"k8s.io/utils/clock"
)

// FilePrefix is prepended to region names to build the backing file name.
const FilePrefix = "shmcast_"

// Options configures a region at creation time.
type Options struct {
	Name         string // region name shared by every participant
	Dir          string // backing directory; empty selects /dev/shm or os.TempDir()
	Capacity     uint32 // number of slots
	MaxReceivers uint32 // receiver table rows, DefaultMaxReceivers when zero
	MaxProducers uint32 // producer table rows, DefaultMaxProducers when zero
	Source       []byte // payload copied into the region
	Replace      bool   // remove a stale region of the same name first
	Clock        clock.PassiveClock
}

func (o *Options) setDefaults() {
	if o.MaxReceivers == 0 {
		o.MaxReceivers = DefaultMaxReceivers
	}
	if o.MaxProducers == 0 {
		o.MaxProducers = DefaultMaxProducers
	}
	if o.Clock == nil {
		o.Clock = clock.RealClock{}
	}
}

// Region is a mapped broadcast region. Every accessor computes its view from
// an offset into the mapping; nothing in shared memory holds a Go pointer.
type Region struct {
	file   *os.File // backing file, nil after Close
	mem    []byte   // memory-mapped region
	name   string
	path   string
	layout Layout
}

// Name returns the region name
func (r *Region) Name() string {
	return r.name
}

// Path returns the backing file path
func (r *Region) Path() string {
	return r.path
}

// Layout returns the arena layout of the region
func (r *Region) Layout() Layout {
	return r.layout
}

// Capacity returns the number of slots
func (r *Region) Capacity() uint32 {
	return r.layout.Capacity
}

// Size returns the size of the mapping in bytes
func (r *Region) Size() int {
	return len(r.mem)
}

func (r *Region) at(off uint64) unsafe.Pointer {
	return unsafe.Pointer(&r.mem[off])
}

// Header returns the control header
func (r *Region) Header() *Header {
	return (*Header)(r.at(0))
}

// Source returns the source payload. The slice aliases shared memory and must
// not be modified.
func (r *Region) Source() []byte {
	off := r.layout.SourceOffset
	return r.mem[off : off+uint64(r.layout.SourceLen) : off+uint64(r.layout.SourceLen)]
}

// Slot returns slot i of the ring
func (r *Region) Slot(i uint32) *Slot {
	return (*Slot)(r.at(r.layout.SlotsOffset + uint64(i%r.layout.Capacity)*SlotSize))
}

// Guard returns the exclusion semaphore of slot i
func (r *Region) Guard(i uint32) *Sema {
	return (*Sema)(r.at(r.layout.GuardsOffset + uint64(i%r.layout.Capacity)*SemaSize))
}

// Receiver returns row i of the receiver table
func (r *Region) Receiver(i int) *ReceiverSlot {
	if i < 0 || i >= int(r.layout.MaxReceivers) {
		panic(fmt.Sprintf("shm: receiver row %d out of range [0, %d)", i, r.layout.MaxReceivers))
	}
	return (*ReceiverSlot)(r.at(r.layout.ReceiversOffset + uint64(i)*ReceiverSlotSize))
}

// Producer returns row i of the producer table
func (r *Region) Producer(i int) *ProducerSlot {
	if i < 0 || i >= int(r.layout.MaxProducers) {
		panic(fmt.Sprintf("shm: producer row %d out of range [0, %d)", i, r.layout.MaxProducers))
	}
	return (*ProducerSlot)(r.at(r.layout.ProducersOffset + uint64(i)*ProducerSlotSize))
}

// Semaphores returns every synchronization primitive of the region: the four
// header semaphores, each slot guard and each receiver wake signal.
func (r *Region) Semaphores() []*Sema {
	h := r.Header()
	out := []*Sema{h.FreeSlots(), h.ProducerMutex(), h.RegistryMutex(), h.Completion()}
	for i := uint32(0); i < r.layout.Capacity; i++ {
		out = append(out, r.Guard(i))
	}
	for i := 0; i < int(r.layout.MaxReceivers); i++ {
		out = append(out, r.Receiver(i).Wake())
	}
	return out
}

// initialize writes a fresh header and arena. The state becomes ready last so
// that attaching processes never observe a half-built region.
func (r *Region) initialize(opts Options) {
	h := r.Header()
	h.SetState(StateInitializing)
	var magic [8]byte
	copy(magic[:], RegionMagic)
	h.SetMagic(magic)
	h.SetVersion(RegionVersion)
	h.totalSize = r.layout.TotalSize
	h.capacity = r.layout.Capacity
	h.maxReceivers = r.layout.MaxReceivers
	h.maxProducers = r.layout.MaxProducers
	h.sourceLen = r.layout.SourceLen
	h.createdAt = opts.Clock.Now().UnixNano()
	h.instance = newInstanceID()
	h.writeCursor = 0
	h.shutdown = 0
	h.totalProducers, h.activeProducers = 0, 0
	h.totalConsumers, h.activeConsumers = 0, 0
	h.totalBytes = 0

	src := r.mem[r.layout.SourceOffset : r.layout.SourceOffset+uint64(r.layout.SourceLen)]
	copy(src, opts.Source)
	h.sourceSum = xxhash.Sum64(src)

	h.FreeSlots().Init(r.layout.Capacity)
	h.ProducerMutex().Init(1)
	h.RegistryMutex().Init(1)
	h.Completion().Init(0)

	for i := 0; i < int(r.layout.MaxReceivers); i++ {
		rs := r.Receiver(i)
		rs.Release()
		rs.SetCursor(0)
		rs.Wake().Init(0)
	}
	for i := 0; i < int(r.layout.MaxProducers); i++ {
		r.Producer(i).Release()
	}
	for i := uint32(0); i < r.layout.Capacity; i++ {
		r.Slot(i).reset(i)
		r.Guard(i).Init(1)
	}

	h.SetState(StateReady)
}

// verifySource checks the source payload against the checksum in the header.
func (r *Region) verifySource() error {
	if sum := xxhash.Sum64(r.Source()); sum != r.Header().SourceSum() {
		return fmt.Errorf("%w: source checksum mismatch: got %016x, expected %016x", ErrInvalidLayout, sum, r.Header().SourceSum())
	}
	return nil
}

// Close unmaps the memory and closes the file. The backing file stays in
// place; see Unlink.
func (r *Region) Close() error {
	var err error
	if r.mem != nil {
		err = multierr.Append(err, munmap(r.mem))
		r.mem = nil
	}
	if r.file != nil {
		err = multierr.Append(err, r.file.Close())
		r.file = nil
	}
	return err
}

// Unlink removes the backing file. Existing mappings stay valid.
func (r *Region) Unlink() error {
	if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove region file %s: %w", r.path, err)
	}
	return nil
}

// Path returns the backing file path for a region name. An empty dir selects
// /dev/shm when available and the temporary directory otherwise.
func Path(dir, name string) string {
	if dir != "" {
		return filepath.Join(dir, FilePrefix+name)
	}
	if isDevShmAvailable() {
		return filepath.Join("/dev/shm", FilePrefix+name)
	}
	return filepath.Join(os.TempDir(), FilePrefix+name)
}

// isDevShmAvailable checks if /dev/shm is available
func isDevShmAvailable() bool {
	info, err := os.Stat("/dev/shm")
	if err != nil {
		return false
	}
	return info.IsDir()
}

// Exists checks if a region backing file exists
func Exists(dir, name string) bool {
	_, err := os.Stat(Path(dir, name))
	return err == nil
}

// Remove removes a region backing file by name
func Remove(dir, name string) error {
	return os.Remove(Path(dir, name))
}
