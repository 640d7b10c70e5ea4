// Copyright 2017 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package housekeeping accumulates spacecraft housekeeping packets into
// fixed-size table records carrying both raw DN and engineering-converted
// values.
package housekeeping

import (
	"encoding/binary"
	"time"

	"github.com/stanford-ssi/eve-l0b/internal/ccsds"
	"github.com/stanford-ssi/eve-l0b/internal/timeconv"
)

// NColumns is the number of raw DN columns carried per housekeeping row;
// each has a matching engineering-converted column produced by Convert.
const NColumns = 107

const payloadOffset = 8 // past the 8 octet secondary header

// Row is one housekeeping sample: raw telemetry counts plus their
// engineering-unit conversion.
type Row struct {
	Raw [NColumns]uint32
	Eng [NColumns]float64
}

// Record accumulates NRows Rows before it is handed to the ProductWriter.
type Record struct {
	Rows       []Row
	TAISeconds float64
	ReceiveTAI float64
	DataGaps   int
	prevSeq    int
}

// Accumulator folds consecutive housekeeping packets into fixed-row
// Records, identical in lifecycle to integration.Accumulator.
type Accumulator struct {
	NRows int
	rec   *Record
}

// New returns an Accumulator producing nRows-row records.
func New(nRows int) *Accumulator {
	return &Accumulator{NRows: nRows}
}

func decodeRow(payload []byte) Row {
	var row Row
	for i := 0; i < NColumns; i++ {
		off := payloadOffset + i*4
		if off+4 > len(payload) {
			break
		}
		row.Raw[i] = binary.BigEndian.Uint32(payload[off : off+4])
	}
	row.Eng = Convert(row.Raw)
	return row
}

// Feed folds one packet in, returning a completed Record once NRows rows
// have accumulated. now is the local wall-clock time pkt was captured at;
// on the first packet of a record it becomes ReceiveTAI, independent of
// the packet's own secondary-header time. Gaps in the sequence counter
// are zero-filled.
func (a *Accumulator) Feed(now time.Time, pkt ccsds.Packet) (*Record, bool) {
	seq := int(pkt.Header.SequenceCount)
	if a.rec == nil {
		a.rec = &Record{Rows: make([]Row, 0, a.NRows), prevSeq: seq - 1}
		if pkt.HasTime {
			a.rec.TAISeconds = pkt.Timestamp.TAISeconds()
		}
		a.rec.ReceiveTAI = timeconv.FromUnix(now)
	}

	gap := seq - a.rec.prevSeq - 1
	if gap < 0 {
		gap = 0
	}
	for i := 0; i < gap && len(a.rec.Rows) < a.NRows; i++ {
		var zero Row
		zero.Eng = Convert(zero.Raw)
		a.rec.Rows = append(a.rec.Rows, zero)
		a.rec.DataGaps++
	}

	if len(a.rec.Rows) < a.NRows {
		a.rec.Rows = append(a.rec.Rows, decodeRow(pkt.Payload))
	}
	a.rec.prevSeq = seq

	if len(a.rec.Rows) >= a.NRows {
		done := a.rec
		a.rec = nil
		return done, true
	}
	return nil, false
}

// Flush delivers the in-progress record, if any rows have accumulated.
func (a *Accumulator) Flush() (*Record, bool) {
	if a.rec != nil && len(a.rec.Rows) > 0 {
		done := a.rec
		a.rec = nil
		return done, true
	}
	return nil, false
}
