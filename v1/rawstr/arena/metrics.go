// Copyright 2026 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package arena

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	liveBuffersDesc = prometheus.NewDesc(
		"compactstr_arena_live_buffers",
		"Number of heap buffers currently owned by string handles.",
		nil, nil,
	)
	liveBytesDesc = prometheus.NewDesc(
		"compactstr_arena_live_bytes",
		"Total size in bytes of live heap buffers.",
		nil, nil,
	)
	allocsDesc = prometheus.NewDesc(
		"compactstr_arena_allocs_total",
		"Number of heap buffers allocated.",
		nil, nil,
	)
	freesDesc = prometheus.NewDesc(
		"compactstr_arena_frees_total",
		"Number of heap buffers freed.",
		nil, nil,
	)
	reusedDesc = prometheus.NewDesc(
		"compactstr_arena_reused_total",
		"Number of allocations served from the freed-buffer cache.",
		nil, nil,
	)
	segmentsDesc = prometheus.NewDesc(
		"compactstr_arena_segments",
		"Number of slot segments allocated by the arena.",
		nil, nil,
	)
)

// Collector exports arena statistics to Prometheus.
type Collector struct {
	arena *Arena
}

// NewCollector returns a collector reading from a.
func NewCollector(a *Arena) *Collector {
	return &Collector{arena: a}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- liveBuffersDesc
	ch <- liveBytesDesc
	ch <- allocsDesc
	ch <- freesDesc
	ch <- reusedDesc
	ch <- segmentsDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.arena.Stats()
	ch <- prometheus.MustNewConstMetric(liveBuffersDesc, prometheus.GaugeValue, float64(s.Live))
	ch <- prometheus.MustNewConstMetric(liveBytesDesc, prometheus.GaugeValue, float64(s.LiveBytes))
	ch <- prometheus.MustNewConstMetric(allocsDesc, prometheus.CounterValue, float64(s.Allocs))
	ch <- prometheus.MustNewConstMetric(freesDesc, prometheus.CounterValue, float64(s.Frees))
	ch <- prometheus.MustNewConstMetric(reusedDesc, prometheus.CounterValue, float64(s.Reused))
	ch <- prometheus.MustNewConstMetric(segmentsDesc, prometheus.GaugeValue, float64(s.Segments))
}
