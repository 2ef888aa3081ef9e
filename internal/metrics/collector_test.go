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

package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diabloget/sync-process-comms/internal/broadcast"
)

func sampleStats() broadcast.Stats {
	return broadcast.Stats{
		Name:            "demo",
		Capacity:        4,
		FreeSlots:       3,
		InFlight:        1,
		TotalBytes:      12,
		TotalProducers:  2,
		ActiveProducers: 1,
		TotalConsumers:  3,
		ActiveConsumers: 1,
		Producers:       []broadcast.MemberStats{{Owner: 10, Bytes: 12}},
		Receivers:       []broadcast.MemberStats{{Owner: 20, Bytes: 11, Backlog: 1}},
	}
}

func TestNoMetricsCollected(t *testing.T) {
	c := NewRegionCollector(func() (broadcast.Stats, bool) { return broadcast.Stats{}, false })
	if err := testutil.CollectAndCompare(c, strings.NewReader(""), ""); err != nil {
		t.Fatal(err)
	}
}

func TestMetricsCollected(t *testing.T) {
	c := NewRegionCollector(func() (broadcast.Stats, bool) { return sampleStats(), true })

	err := testutil.CollectAndCompare(c, strings.NewReader(`
		# HELP shmcast_region_free_slots Permits currently held by the capacity counter.
		# TYPE shmcast_region_free_slots gauge
		shmcast_region_free_slots{region="demo"} 3
		# HELP shmcast_region_bytes_total Bytes published into the region.
		# TYPE shmcast_region_bytes_total counter
		shmcast_region_bytes_total{region="demo"} 12
		# HELP shmcast_participants_active Participants currently attached, by role.
		# TYPE shmcast_participants_active gauge
		shmcast_participants_active{region="demo",role="producer"} 1
		shmcast_participants_active{region="demo",role="receiver"} 1
		# HELP shmcast_receiver_backlog_slots Published slots a receiver has been woken for but not consumed.
		# TYPE shmcast_receiver_backlog_slots gauge
		shmcast_receiver_backlog_slots{owner="20",region="demo"} 1
`), "shmcast_region_free_slots", "shmcast_region_bytes_total", "shmcast_participants_active", "shmcast_receiver_backlog_slots")
	if err != nil {
		t.Fatal(err)
	}

	// 5 region series, 4 participant series, 1 producer, 2 receiver.
	assert.Equal(t, 12, testutil.CollectAndCount(c))
}

func TestRegistryGathers(t *testing.T) {
	reg := NewRegistry(func() (broadcast.Stats, bool) { return sampleStats(), true })
	n, err := testutil.GatherAndCount(reg, "shmcast_region_capacity_slots", "shmcast_producer_bytes_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
