// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package metrics exposes the counters of a Dispatcher to Prometheus.
package metrics

import (
	"github.com/itsManjeet/eventfilter/dispatch"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "eventfilter"

type stat struct {
	desc  *prometheus.Desc
	kind  prometheus.ValueType
	value func(dispatch.Stats) float64
}

// collector implements prometheus.Collector over Dispatcher.Stats.
type collector struct {
	d     *dispatch.Dispatcher
	stats []stat
}

var _ prometheus.Collector = (*collector)(nil)

// NewCollector returns a collector reporting the counters of d, labelled
// with the dispatcher's instance id.
func NewCollector(d *dispatch.Dispatcher) prometheus.Collector {
	labels := prometheus.Labels{"dispatcher": d.ID()}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, labels)
	}
	return &collector{d: d, stats: []stat{
		{desc("filter_generation", "The generation of the active filter."), prometheus.GaugeValue,
			func(s dispatch.Stats) float64 { return float64(s.Generation) }},
		{desc("reloads_total", "The number of accepted filter reloads."), prometheus.CounterValue,
			func(s dispatch.Stats) float64 { return float64(s.Reloads) }},
		{desc("callsites", "The number of registered call sites."), prometheus.GaugeValue,
			func(s dispatch.Stats) float64 { return float64(s.CallSites) }},
		{desc("events_recorded_total", "The number of events delivered to the sink."), prometheus.CounterValue,
			func(s dispatch.Stats) float64 { return float64(s.Recorded) }},
		{desc("interest_cache_misses_total", "The number of call site interests recomputed."), prometheus.CounterValue,
			func(s dispatch.Stats) float64 { return float64(s.CacheMisses) }},
		{desc("spans_entered_total", "The number of spans entered."), prometheus.CounterValue,
			func(s dispatch.Stats) float64 { return float64(s.SpansEntered) }},
		{desc("spans_disabled_total", "The number of spans entered disabled."), prometheus.CounterValue,
			func(s dispatch.Stats) float64 { return float64(s.SpansDisabled) }},
	}}
}

// Describe implements prometheus.Collector.
func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	for _, s := range c.stats {
		ch <- s.desc
	}
}

// Collect implements prometheus.Collector.
func (c *collector) Collect(ch chan<- prometheus.Metric) {
	st := c.d.Stats()
	for _, s := range c.stats {
		ch <- prometheus.MustNewConstMetric(s.desc, s.kind, s.value(st))
	}
}
