//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of tapcsv.
//
// tapcsv is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// tapcsv is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with tapcsv. If not, see https://www.gnu.org/licenses/.

// Package metrics counts what a sync run did, per stream, with Prometheus collectors.
//
// A Collector owns its own registry so several runs in one process never share counters. The
// registry can be exported in the node_exporter textfile format at the end of a run.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aaronlmathis/tapcsv/core"
)

const namespace = "tapcsv"

// Collector holds the run metrics of one tap invocation.
type Collector struct {
	registry        *prometheus.Registry
	filesDiscovered *prometheus.CounterVec
	recordsExtract  *prometheus.CounterVec
	warnings        *prometheus.CounterVec
	streamDuration  *prometheus.GaugeVec
	lastSuccess     prometheus.Gauge
}

// NewCollector creates a collector with a fresh registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		filesDiscovered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_discovered_total",
			Help:      "Eligible files discovered per stream.",
		}, []string{"stream"}),
		recordsExtract: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_extracted_total",
			Help:      "Records extracted per stream.",
		}, []string{"stream"}),
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warnings_total",
			Help:      "Non-fatal warnings per stream and kind.",
		}, []string{"stream", "kind"}),
		streamDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_duration_seconds",
			Help:      "Wall time spent syncing each stream.",
		}, []string{"stream"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful sync.",
		}),
	}
	c.registry.MustRegister(c.filesDiscovered, c.recordsExtract, c.warnings, c.streamDuration, c.lastSuccess)
	return c
}

// Registry exposes the collector's registry for gathering.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// FilesDiscovered adds n discovered files for stream.
func (c *Collector) FilesDiscovered(stream string, n int) {
	c.filesDiscovered.WithLabelValues(stream).Add(float64(n))
}

// RecordsExtracted adds n extracted records for stream.
func (c *Collector) RecordsExtracted(stream string, n int64) {
	c.recordsExtract.WithLabelValues(stream).Add(float64(n))
}

// StreamDuration sets the sync time of stream.
func (c *Collector) StreamDuration(stream string, d time.Duration) {
	c.streamDuration.WithLabelValues(stream).Set(d.Seconds())
}

// Succeeded stamps the completion time of a successful run.
func (c *Collector) Succeeded(at time.Time) {
	c.lastSuccess.Set(float64(at.Unix()))
}

// Warning counts w. It matches core.WarningHandler.
func (c *Collector) Warning(w core.Warning) {
	c.warnings.WithLabelValues(w.Stream, string(w.Kind)).Inc()
}

// WriteTextfile writes the registry in the textfile-collector format, atomically.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}
