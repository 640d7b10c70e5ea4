// Copyright 2017 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package integration accumulates the fixed-cadence MEGS-P and ESP
// photometer samples into fixed-size table records.
package integration

import (
	"encoding/binary"
	"time"

	"github.com/stanford-ssi/eve-l0b/internal/ccsds"
	"github.com/stanford-ssi/eve-l0b/internal/timeconv"
)

// Row is one sample row of a photometer record.
type Row struct {
	Channels []uint16 // raw DN per photometer channel in this packet
}

// Record is a fixed-row-count accumulation ready for the ProductWriter once
// it fills (zero-filled gap rows count toward the fill) or is flushed.
type Record struct {
	Rows       []Row
	FirstSeq   int
	TAISeconds float64
	ReceiveTAI float64
	DataGaps   int
	Temps      []float64 // housekeeping temperature floats read from the first packet's payload
	filled     int
	prevSeq    int
}

// Accumulator folds consecutive packets from one photometer APID into
// fixed-size Records of NRows rows, one row per packet, using
// ChannelsPerRow uint16 DN samples per packet starting at PayloadOffset.
// TempCount temperature floats are read once per record, from the first
// packet's payload at TempOffset.
type Accumulator struct {
	Channel        string
	NRows          int
	ChannelsPerRow int
	PayloadOffset  int
	TempOffset     int
	TempCount      int

	rec *Record
}

// New returns an Accumulator for one channel.
func New(channel string, nRows, channelsPerRow, payloadOffset, tempOffset, tempCount int) *Accumulator {
	return &Accumulator{
		Channel:        channel,
		NRows:          nRows,
		ChannelsPerRow: channelsPerRow,
		PayloadOffset:  payloadOffset,
		TempOffset:     tempOffset,
		TempCount:      tempCount,
	}
}

func (a *Accumulator) newRecord(seq int) *Record {
	return &Record{Rows: make([]Row, 0, a.NRows), FirstSeq: seq, prevSeq: seq - 1}
}

func decodeRow(payload []byte, offset, n int) Row {
	row := Row{Channels: make([]uint16, n)}
	for i := 0; i < n; i++ {
		off := offset + i*2
		if off+2 > len(payload) {
			break
		}
		row.Channels[i] = binary.BigEndian.Uint16(payload[off : off+2])
	}
	return row
}

// decodeTemps reads n raw 16-bit DN values starting at offset and reports
// them as float64, per channel-accumulation semantics shared with the row
// decoder above.
func decodeTemps(payload []byte, offset, n int) []float64 {
	temps := make([]float64, n)
	for i := 0; i < n; i++ {
		off := offset + i*2
		if off+2 > len(payload) {
			break
		}
		temps[i] = float64(binary.BigEndian.Uint16(payload[off : off+2]))
	}
	return temps
}

// Feed folds one packet in, returning a completed Record when the row
// count reaches NRows. now is the local wall-clock time pkt was captured
// at; on the first packet of a record it becomes ReceiveTAI, independent
// of the packet's own secondary-header time. Sequence gaps are filled
// with zeroed rows and the gap counter is advanced by the skip count, per
// channel-accumulation semantics shared with the image assemblers.
func (a *Accumulator) Feed(now time.Time, pkt ccsds.Packet) (*Record, bool) {
	seq := int(pkt.Header.SequenceCount)
	if a.rec == nil {
		a.rec = a.newRecord(seq)
		if pkt.HasTime {
			a.rec.TAISeconds = pkt.Timestamp.TAISeconds()
		}
		a.rec.ReceiveTAI = timeconv.FromUnix(now)
		a.rec.Temps = decodeTemps(pkt.Payload, a.TempOffset, a.TempCount)
	}

	gap := seq - a.rec.prevSeq - 1
	if gap < 0 {
		gap = 0
	}
	a.rec.DataGaps += gap
	for i := 0; i < gap && len(a.rec.Rows) < a.NRows; i++ {
		a.rec.Rows = append(a.rec.Rows, Row{Channels: make([]uint16, a.ChannelsPerRow)})
	}

	if len(a.rec.Rows) < a.NRows {
		a.rec.Rows = append(a.rec.Rows, decodeRow(pkt.Payload, a.PayloadOffset, a.ChannelsPerRow))
	}
	a.rec.prevSeq = seq

	if len(a.rec.Rows) >= a.NRows {
		done := a.rec
		a.rec = nil
		return done, true
	}
	return nil, false
}

// Flush delivers the in-progress record, if any rows have been folded in.
func (a *Accumulator) Flush() (*Record, bool) {
	if a.rec != nil && len(a.rec.Rows) > 0 {
		done := a.rec
		a.rec = nil
		return done, true
	}
	return nil, false
}
