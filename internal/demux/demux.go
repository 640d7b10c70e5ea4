// Copyright 2017 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package demux routes decoded packets to their channel processor by APID.
package demux

import (
	"time"

	"github.com/stanford-ssi/eve-l0b/internal/ccsds"
	"github.com/stanford-ssi/eve-l0b/internal/sharedstate"
)

// Handlers groups the per-channel packet sinks a Dispatcher routes to.
// Any field may be nil, in which case packets for that channel are
// counted as received and dropped (used by -skipESP/-skipMP). now is the
// local wall-clock time the packet was captured at, threaded through so
// receive-time header fields never depend on the packet's own secondary
// header.
type Handlers struct {
	MegsA func(now time.Time, pkt ccsds.Packet)
	MegsB func(now time.Time, pkt ccsds.Packet)
	MegsP func(now time.Time, pkt ccsds.Packet)
	ESP   func(now time.Time, pkt ccsds.Packet)
	SHK   func(now time.Time, pkt ccsds.Packet)
}

// Dispatcher routes packets to Handlers and updates SharedState counters.
type Dispatcher struct {
	Handlers Handlers
	State    *sharedstate.State
}

// Dispatch routes pkt by APID. Unrecognized APIDs increment the
// unknown-APID counter and are dropped; this never happens in practice
// since the framer already rejects unknown APIDs before a packet reaches
// here, but is kept as a defensive fallback matching the archival writer's
// "unk" product path.
func (d *Dispatcher) Dispatch(now time.Time, pkt ccsds.Packet) {
	switch pkt.Header.APID {
	case ccsds.APIDMegsA:
		d.State.RecordReceived("megs_a")
		if d.Handlers.MegsA != nil {
			d.Handlers.MegsA(now, pkt)
		}
	case ccsds.APIDMegsB:
		d.State.RecordReceived("megs_b")
		if d.Handlers.MegsB != nil {
			d.Handlers.MegsB(now, pkt)
		}
	case ccsds.APIDMegsP:
		d.State.RecordReceived("megs_p")
		if d.Handlers.MegsP != nil {
			d.Handlers.MegsP(now, pkt)
		}
	case ccsds.APIDESP:
		d.State.RecordReceived("esp")
		if d.Handlers.ESP != nil {
			d.Handlers.ESP(now, pkt)
		}
	case ccsds.APIDHousekeeping:
		d.State.RecordReceived("shk")
		if d.Handlers.SHK != nil {
			d.Handlers.SHK(now, pkt)
		}
	default:
		d.State.RecordUnknownAPID()
	}
}
