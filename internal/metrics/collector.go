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

// Package metrics exports region counters to Prometheus.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/diabloget/sync-process-comms/internal/broadcast"
)

const namespace = "shmcast"

var (
	descCapacity = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "region", "capacity_slots"),
		"Number of slots in the ring.",
		[]string{"region"}, nil,
	)
	descFreeSlots = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "region", "free_slots"),
		"Permits currently held by the capacity counter.",
		[]string{"region"}, nil,
	)
	descInFlight = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "region", "in_flight_slots"),
		"Slots written but not yet read by every receiver counted at write time.",
		[]string{"region"}, nil,
	)
	descBytes = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "region", "bytes_total"),
		"Bytes published into the region.",
		[]string{"region"}, nil,
	)
	descShutdown = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "region", "shutdown_requested"),
		"1 once the coordinator has requested shutdown.",
		[]string{"region"}, nil,
	)
	descActive = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "participants", "active"),
		"Participants currently attached, by role.",
		[]string{"region", "role"}, nil,
	)
	descJoined = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "participants", "joined_total"),
		"Participants that ever joined, by role.",
		[]string{"region", "role"}, nil,
	)
	descProduced = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "producer", "bytes_total"),
		"Bytes published by one producer.",
		[]string{"region", "owner"}, nil,
	)
	descConsumed = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "receiver", "bytes_total"),
		"Bytes consumed by one receiver.",
		[]string{"region", "owner"}, nil,
	)
	descBacklog = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "receiver", "backlog_slots"),
		"Published slots a receiver has been woken for but not consumed.",
		[]string{"region", "owner"}, nil,
	)
)

// StatsFunc returns the current statistics of a region. ok is false when
// the region cannot be read; nothing is collected then.
type StatsFunc func() (st broadcast.Stats, ok bool)

type regionCollector struct {
	stats StatsFunc
}

var _ prometheus.Collector = &regionCollector{}

// NewRegionCollector returns a collector reading a fresh snapshot from
// stats on every scrape.
func NewRegionCollector(stats StatsFunc) prometheus.Collector {
	return &regionCollector{stats: stats}
}

// Describe implements the prometheus.Collector interface.
func (c *regionCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		descCapacity, descFreeSlots, descInFlight, descBytes, descShutdown,
		descActive, descJoined, descProduced, descConsumed, descBacklog,
	} {
		ch <- d
	}
}

// Collect implements the prometheus.Collector interface.
func (c *regionCollector) Collect(ch chan<- prometheus.Metric) {
	st, ok := c.stats()
	if !ok {
		return
	}
	name := st.Name

	gauge := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
	}
	counter := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, v, labels...)
	}

	gauge(descCapacity, float64(st.Capacity), name)
	gauge(descFreeSlots, float64(st.FreeSlots), name)
	gauge(descInFlight, float64(st.InFlight), name)
	counter(descBytes, float64(st.TotalBytes), name)
	shutdown := 0.0
	if st.ShutdownRequested {
		shutdown = 1
	}
	gauge(descShutdown, shutdown, name)

	gauge(descActive, float64(st.ActiveProducers), name, "producer")
	gauge(descActive, float64(st.ActiveConsumers), name, "receiver")
	counter(descJoined, float64(st.TotalProducers), name, "producer")
	counter(descJoined, float64(st.TotalConsumers), name, "receiver")

	for _, p := range st.Producers {
		counter(descProduced, float64(p.Bytes), name, strconv.FormatUint(uint64(p.Owner), 10))
	}
	for _, r := range st.Receivers {
		owner := strconv.FormatUint(uint64(r.Owner), 10)
		counter(descConsumed, float64(r.Bytes), name, owner)
		gauge(descBacklog, float64(r.Backlog), name, owner)
	}
}
