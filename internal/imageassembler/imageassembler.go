// Copyright 2017 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package imageassembler reassembles a sequence of up to 2395 CCD image
// packets into one 2048x1024 pixel frame, the MEGS-A/MEGS-B pipeline's
// core algorithm.
package imageassembler

import (
	"encoding/binary"
	"time"

	"github.com/stanford-ssi/eve-l0b/internal/ccsds"
	"github.com/stanford-ssi/eve-l0b/internal/timeconv"
)

const (
	imageWidth         = 2048
	imageHeight        = 1024
	pixelsPerPacket    = 876
	pairsPerHalfPacket = 438
	maxVCDUCount       = 2395
	lastVCDUPixels     = 8 // sequence counter 2394 only carries 8 pixels
	secondaryHeaderLen = 8
	modeWordLen        = 2
	pixelAreaOffset    = secondaryHeaderLen + modeWordLen

	liveVirtualColumnOffset = 2044
	testPatternOffset       = 0

	pixelBias = 0x2000 // 14 bit two's complement zero bias
	pixelMask = 0x3FFF
)

// twosComplement maps a raw 14 bit biased sample to its signed value,
// ported from the reference pixel lookup table's semantics: subtracting
// the bias and reinterpreting the result as the 14 bit two's complement
// value, stored back as an unsigned 14 bit quantity per spec (values are
// reported as 0..0x3FFF even though the underlying sample is signed).
func twosComplement(biased uint16) uint16 {
	return (biased - pixelBias) & pixelMask
}

// oddParity15 computes the odd parity of the low 15 bits of v (14 data
// bits plus the frame-start bit).
func oddParity15(v uint16) uint16 {
	x := v & 0x7FFF
	var bits int
	for x != 0 {
		bits += int(x & 1)
		x >>= 1
	}
	if bits%2 == 0 {
		return 1
	}
	return 0
}

// State is one in-progress or just-completed image reassembly.
type State int

// Valid values for State.
const (
	Idle State = iota
	Accumulating
)

// Record is one CCD frame, complete or partial.
type Record struct {
	Pixels [imageHeight][imageWidth]uint16

	VCDUCount    int
	TestPattern  bool
	ParityErrors int
	DataGaps     int

	TAISeconds float64
	ReceiveTAI float64
	prevSeq    int
}

// Assembler reassembles one MEGS channel's packet stream into Records,
// returning each boundary-terminated record from Feed and the final
// in-progress record from Flush.
type Assembler struct {
	Channel string // "megs_a" or "megs_b", used only for logging/labels

	state  State
	rec    *Record
	offset int // 0 or liveVirtualColumnOffset, fixed for the life of the current record
}

// New returns an Assembler for the given channel name.
func New(channel string) *Assembler {
	return &Assembler{Channel: channel}
}

func detectTestPattern(payload []byte) bool {
	if len(payload) < secondaryHeaderLen+4 {
		return false
	}
	b := payload[secondaryHeaderLen : secondaryHeaderLen+4]
	return b[0] == 0x00 && b[1] == 0x02 && b[2] == 0x00 && b[3] == 0x01
}

// Feed folds one packet into the current record, returning a completed
// Record when a frame boundary is crossed. now is the local wall-clock
// time at which pkt was captured; on the packet that starts a new frame
// it becomes the record's ReceiveTAI, independent of the packet's own
// secondary-header time. The returned bool is true iff a Record is
// returned; the caller must treat a nil/false return as "no delivery
// yet", never as an error.
func (a *Assembler) Feed(now time.Time, pkt ccsds.Packet) (*Record, bool) {
	seq := int(pkt.Header.SequenceCount)

	var delivered *Record
	haveDelivery := false

	newFrame := a.state == Idle || seq == 0 || seq <= a.rec.prevSeq
	if newFrame {
		if a.state == Accumulating && a.rec.VCDUCount > 0 {
			delivered = a.rec
			haveDelivery = true
		}
		rec := &Record{prevSeq: -1}
		rec.TestPattern = detectTestPattern(pkt.Payload)
		if rec.TestPattern {
			a.offset = testPatternOffset
		} else {
			a.offset = liveVirtualColumnOffset
		}
		if pkt.HasTime {
			rec.TAISeconds = pkt.Timestamp.TAISeconds()
		}
		rec.ReceiveTAI = timeconv.FromUnix(now)
		a.rec = rec
		a.state = Accumulating
	} else if gap := seq - a.rec.prevSeq - 1; gap > 0 {
		a.rec.DataGaps += gap
	}

	a.foldPacket(seq, pkt.Payload)
	a.rec.prevSeq = seq
	a.rec.VCDUCount++

	return delivered, haveDelivery
}

func (a *Assembler) foldPacket(seq int, payload []byte) {
	rec := a.rec
	jLimit := 1750 // inclusive, the normal per-packet pixel-pair range
	if seq == maxVCDUCount-1 {
		jLimit = (lastVCDUPixels - 1) * 2 // the final, partial packet carries only lastVCDUPixels pixels
	}
	for j := 0; j <= jLimit; j += 2 {
		wordOff := pixelAreaOffset + j
		if wordOff+2 > len(payload) {
			break
		}
		raw := binary.BigEndian.Uint16(payload[wordOff : wordOff+2])
		jrel := j / 2

		expected := oddParity15(raw)
		actual := (raw >> 15) & 1

		var value uint16
		if rec.TestPattern {
			value = raw & pixelMask
		} else {
			value = twosComplement(raw & pixelMask)
		}

		k := seq*pairsPerHalfPacket + jrel/2

		var x, y int
		if jrel%2 == 0 {
			y = k >> 11
			x = (k + a.offset) & (imageWidth - 1)
		} else {
			y = (imageHeight - 1) - (k >> 11)
			x = (imageWidth - 1) - ((k + a.offset) & (imageWidth - 1))
		}

		if expected != actual {
			rec.ParityErrors++
		}
		if y >= 0 && y < imageHeight && x >= 0 && x < imageWidth {
			rec.Pixels[y][x] = value
		}
	}
}

// Flush delivers the in-progress record, if non-empty, at end of stream.
func (a *Assembler) Flush() (*Record, bool) {
	if a.state == Accumulating && a.rec != nil && a.rec.VCDUCount > 0 {
		rec := a.rec
		a.state = Idle
		a.rec = nil
		return rec, true
	}
	return nil, false
}
