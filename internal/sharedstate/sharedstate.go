// Copyright 2017 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package sharedstate holds the counters and latest-image snapshots that
// are written by the ingest pipeline and read by diagnostics (the
// Prometheus endpoint, and potentially a future status display).
package sharedstate

import (
	"sync"
	"sync/atomic"
)

// ChannelCounters tracks per-channel health counters. All fields are
// updated with atomic operations so readers never need to hold a lock.
type ChannelCounters struct {
	Received     uint64
	ParityErrors uint64
	DataGaps     uint64
}

func (c *ChannelCounters) addReceived(n uint64)     { atomic.AddUint64(&c.Received, n) }
func (c *ChannelCounters) addParityErrors(n uint64) { atomic.AddUint64(&c.ParityErrors, n) }
func (c *ChannelCounters) addDataGaps(n uint64)     { atomic.AddUint64(&c.DataGaps, n) }

// ImageSnapshot is a defensive copy of the most recently completed image
// for one CCD channel.
type ImageSnapshot struct {
	Pixels       [][]uint16
	TAISeconds   float64
	ParityErrors int
}

// State is the process-wide shared state. The zero value is ready to use.
type State struct {
	MegsA ChannelCounters
	MegsB ChannelCounters
	MegsP ChannelCounters
	ESP   ChannelCounters
	SHK   ChannelCounters

	UnknownAPID    uint64
	SyncDriftWarns uint64

	imgMu    sync.Mutex
	megsAImg *ImageSnapshot
	megsBImg *ImageSnapshot
}

// New returns a ready-to-use, zeroed State.
func New() *State { return &State{} }

// RecordUnknownAPID increments the unknown-APID counter.
func (s *State) RecordUnknownAPID() { atomic.AddUint64(&s.UnknownAPID, 1) }

// RecordSyncDrift increments the sync-drift-warning counter.
func (s *State) RecordSyncDrift() { atomic.AddUint64(&s.SyncDriftWarns, 1) }

func (s *State) counters(apidName string) *ChannelCounters {
	switch apidName {
	case "megs_a":
		return &s.MegsA
	case "megs_b":
		return &s.MegsB
	case "megs_p":
		return &s.MegsP
	case "esp":
		return &s.ESP
	case "shk":
		return &s.SHK
	default:
		return nil
	}
}

// RecordReceived increments the receive counter for channel.
func (s *State) RecordReceived(channel string) {
	if c := s.counters(channel); c != nil {
		c.addReceived(1)
	}
}

// RecordParityErrors adds n parity errors to channel's counter.
func (s *State) RecordParityErrors(channel string, n int) {
	if c := s.counters(channel); c != nil && n > 0 {
		c.addParityErrors(uint64(n))
	}
}

// RecordDataGap adds n skipped samples/packets to channel's gap counter.
func (s *State) RecordDataGap(channel string, n int) {
	if c := s.counters(channel); c != nil && n > 0 {
		c.addDataGaps(uint64(n))
	}
}

// SetMegsAImage publishes a new MEGS-A image snapshot.
func (s *State) SetMegsAImage(snap *ImageSnapshot) {
	s.imgMu.Lock()
	s.megsAImg = snap
	s.imgMu.Unlock()
}

// SetMegsBImage publishes a new MEGS-B image snapshot.
func (s *State) SetMegsBImage(snap *ImageSnapshot) {
	s.imgMu.Lock()
	s.megsBImg = snap
	s.imgMu.Unlock()
}

// MegsAImage returns the most recently published MEGS-A snapshot, or nil.
func (s *State) MegsAImage() *ImageSnapshot {
	s.imgMu.Lock()
	defer s.imgMu.Unlock()
	return s.megsAImg
}

// MegsBImage returns the most recently published MEGS-B snapshot, or nil.
func (s *State) MegsBImage() *ImageSnapshot {
	s.imgMu.Lock()
	defer s.imgMu.Unlock()
	return s.megsBImg
}
