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

//go:build linux

package broadcast

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/diabloget/sync-process-comms/internal/shm"
)

func TestReadStats(t *testing.T) {
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	joined := created.Add(time.Minute)

	r := newTestRegion(t, shm.Options{
		Name:     "stats",
		Capacity: 4,
		Source:   []byte("hello"),
		Clock:    testingclock.NewFakePassiveClock(created),
	})
	clk := testingclock.NewFakePassiveClock(joined)

	_, err := NewProducers(r, clk).Join(1, ModeManual)
	require.NoError(t, err)
	row, err := NewRegistry(r, NewAllocator(r, testPoll), clk).Register(2, ModeAutomatic)
	require.NoError(t, err)

	r.Header().SetWriteCursor(1)
	r.Slot(0).Store('x', 0, joined, 1)
	require.True(t, r.Header().FreeSlots().TryAcquire())
	r.Receiver(row).Wake().Post()

	st := ReadStats(r)
	zero := uint32(0)
	want := Stats{
		Name:            "stats",
		Instance:        r.Header().Instance().String(),
		State:           "ready",
		CreatedAt:       r.Header().CreatedAt(),
		Capacity:        4,
		FreeSlots:       3,
		InFlight:        1,
		WriteCursor:     1,
		SourceLen:       5,
		TotalProducers:  1,
		ActiveProducers: 1,
		TotalConsumers:  1,
		ActiveConsumers: 1,
		Producers: []MemberStats{
			{Row: 0, Owner: 1, Mode: "manual", JoinedAt: r.Producer(0).JoinedAt()},
		},
		Receivers: []MemberStats{
			{Row: 0, Owner: 2, Mode: "automatic", JoinedAt: r.Receiver(0).JoinedAt(), Cursor: &zero, Backlog: 1},
		},
	}
	if diff := cmp.Diff(want, st); diff != "" {
		t.Errorf("ReadStats() mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, st.CreatedAt.Equal(created))
	assert.True(t, st.Receivers[0].JoinedAt.Equal(joined))
}

func TestStatsEncodings(t *testing.T) {
	r := newTestRegion(t, shm.Options{Name: "enc", Capacity: 2})
	st := ReadStats(r)

	js, err := json.Marshal(st)
	require.NoError(t, err)
	assert.Contains(t, string(js), `"capacity":2`)
	assert.NotContains(t, string(js), `"receivers"`)

	ys, err := yaml.Marshal(st)
	require.NoError(t, err)
	assert.Contains(t, string(ys), "freeSlots: 2")
}
