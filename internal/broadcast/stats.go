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
	"time"

	"github.com/diabloget/sync-process-comms/internal/shm"
)

// Stats is a point-in-time view of a region. Counters are read without
// taking any mutex; they are for reporting only.
type Stats struct {
	Name              string        `json:"name" yaml:"name"`
	Instance          string        `json:"instance" yaml:"instance"`
	State             string        `json:"state" yaml:"state"`
	CreatedAt         time.Time     `json:"createdAt" yaml:"createdAt"`
	Capacity          uint32        `json:"capacity" yaml:"capacity"`
	FreeSlots         uint32        `json:"freeSlots" yaml:"freeSlots"`
	InFlight          uint32        `json:"inFlight" yaml:"inFlight"`
	WriteCursor       uint32        `json:"writeCursor" yaml:"writeCursor"`
	SourceLen         uint32        `json:"sourceLen" yaml:"sourceLen"`
	ShutdownRequested bool          `json:"shutdownRequested" yaml:"shutdownRequested"`
	TotalProducers    uint32        `json:"totalProducers" yaml:"totalProducers"`
	ActiveProducers   uint32        `json:"activeProducers" yaml:"activeProducers"`
	TotalConsumers    uint32        `json:"totalConsumers" yaml:"totalConsumers"`
	ActiveConsumers   uint32        `json:"activeConsumers" yaml:"activeConsumers"`
	TotalBytes        uint64        `json:"totalBytes" yaml:"totalBytes"`
	Producers         []MemberStats `json:"producers,omitempty" yaml:"producers,omitempty"`
	Receivers         []MemberStats `json:"receivers,omitempty" yaml:"receivers,omitempty"`
}

// MemberStats describes one occupied registry row.
type MemberStats struct {
	Row      int       `json:"row" yaml:"row"`
	Owner    uint32    `json:"owner" yaml:"owner"`
	Mode     string    `json:"mode" yaml:"mode"`
	JoinedAt time.Time `json:"joinedAt" yaml:"joinedAt"`
	Cursor   *uint32   `json:"cursor,omitempty" yaml:"cursor,omitempty"`
	Bytes    uint64    `json:"bytes" yaml:"bytes"`
	Backlog  uint32    `json:"backlog,omitempty" yaml:"backlog,omitempty"`
}

func stateName(s uint32) string {
	switch s {
	case shm.StateInitializing:
		return "initializing"
	case shm.StateReady:
		return "ready"
	case shm.StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// ReadStats reads the counters and registries of r.
func ReadStats(r *shm.Region) Stats {
	h := r.Header()
	st := Stats{
		Name:              r.Name(),
		Instance:          h.Instance().String(),
		State:             stateName(h.State()),
		CreatedAt:         h.CreatedAt(),
		Capacity:          h.Capacity(),
		FreeSlots:         h.FreeSlots().Value(),
		WriteCursor:       h.WriteCursor(),
		SourceLen:         h.SourceLen(),
		ShutdownRequested: h.ShutdownRequested(),
		TotalProducers:    h.TotalProducers(),
		ActiveProducers:   h.ActiveProducers(),
		TotalConsumers:    h.TotalConsumers(),
		ActiveConsumers:   h.ActiveConsumers(),
		TotalBytes:        h.TotalBytes(),
	}
	for i := uint32(0); i < h.Capacity(); i++ {
		if r.Slot(i).PendingReaders() > 0 {
			st.InFlight++
		}
	}
	for i := 0; i < int(h.MaxProducers()); i++ {
		ps := r.Producer(i)
		if !ps.Occupied() {
			continue
		}
		st.Producers = append(st.Producers, MemberStats{
			Row:      i,
			Owner:    ps.OwnerID(),
			Mode:     Mode(ps.Mode()).String(),
			JoinedAt: ps.JoinedAt(),
			Bytes:    ps.Produced(),
		})
	}
	for i := 0; i < int(h.MaxReceivers()); i++ {
		rs := r.Receiver(i)
		if !rs.Occupied() {
			continue
		}
		cursor := rs.Cursor()
		st.Receivers = append(st.Receivers, MemberStats{
			Row:      i,
			Owner:    rs.OwnerID(),
			Mode:     Mode(rs.Mode()).String(),
			JoinedAt: rs.JoinedAt(),
			Cursor:   &cursor,
			Bytes:    rs.Consumed(),
			Backlog:  rs.Wake().Value(),
		})
	}
	return st
}
