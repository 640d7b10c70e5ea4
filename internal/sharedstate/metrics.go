// Copyright 2017 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sharedstate

import "github.com/prometheus/client_golang/prometheus"

// collector exposes State's counters as a Prometheus Collector without
// pulling Prometheus bookkeeping into State itself.
type collector struct {
	state *State

	received     *prometheus.Desc
	parityErrors *prometheus.Desc
	dataGaps     *prometheus.Desc
	unknownAPID  *prometheus.Desc
	syncDrift    *prometheus.Desc
}

// NewCollector returns a prometheus.Collector reporting s's counters under
// the eve_l0b_ namespace.
func NewCollector(s *State) prometheus.Collector {
	return &collector{
		state: s,
		received: prometheus.NewDesc("eve_l0b_packets_received_total",
			"Packets received per channel.", []string{"channel"}, nil),
		parityErrors: prometheus.NewDesc("eve_l0b_parity_errors_total",
			"Pixel parity errors per channel.", []string{"channel"}, nil),
		dataGaps: prometheus.NewDesc("eve_l0b_data_gaps_total",
			"Detected sequence gaps per channel.", []string{"channel"}, nil),
		unknownAPID: prometheus.NewDesc("eve_l0b_unknown_apid_total",
			"Packets with an unrecognized APID.", nil, nil),
		syncDrift: prometheus.NewDesc("eve_l0b_sync_drift_warnings_total",
			"Times the sync search skipped more than the expected drift.", nil, nil),
	}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.received
	ch <- c.parityErrors
	ch <- c.dataGaps
	ch <- c.unknownAPID
	ch <- c.syncDrift
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	channels := map[string]*ChannelCounters{
		"megs_a": &c.state.MegsA,
		"megs_b": &c.state.MegsB,
		"megs_p": &c.state.MegsP,
		"esp":    &c.state.ESP,
		"shk":    &c.state.SHK,
	}
	for name, cnt := range channels {
		ch <- prometheus.MustNewConstMetric(c.received, prometheus.CounterValue, float64(cnt.Received), name)
		ch <- prometheus.MustNewConstMetric(c.parityErrors, prometheus.CounterValue, float64(cnt.ParityErrors), name)
		ch <- prometheus.MustNewConstMetric(c.dataGaps, prometheus.CounterValue, float64(cnt.DataGaps), name)
	}
	ch <- prometheus.MustNewConstMetric(c.unknownAPID, prometheus.CounterValue, float64(c.state.UnknownAPID))
	ch <- prometheus.MustNewConstMetric(c.syncDrift, prometheus.CounterValue, float64(c.state.SyncDriftWarns))
}
