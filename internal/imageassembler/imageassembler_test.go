// Copyright 2017 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package imageassembler

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stanford-ssi/eve-l0b/internal/ccsds"
)

// buildTestPatternPacket returns the payload for one test-pattern packet
// of the given sequence counter, with every pixel word after the first
// encoding its jrel index verbatim (parity bit forced to match, since
// test-pattern mode still checks parity per spec). The first pixel word is
// the tail of the test-pattern marker, 0x0001, whose parity bit is also
// consistent.
func buildTestPatternPacket(seq int, lastPacket bool) []byte {
	payload := make([]byte, pixelAreaOffset+1760)

	limit := 1750
	if lastPacket {
		limit = (lastVCDUPixels - 1) * 2
	}
	for j := 0; j <= limit; j += 2 {
		jrel := uint16(j / 2)
		parity := oddParity15(jrel)
		word := jrel | parity<<15
		off := pixelAreaOffset + j
		binary.BigEndian.PutUint16(payload[off:off+2], word)
	}
	// Sequence-zero marker bytes live right after the secondary header; they
	// are written last because the second half overlaps the first pixel word.
	payload[secondaryHeaderLen+0] = 0x00
	payload[secondaryHeaderLen+1] = 0x02
	payload[secondaryHeaderLen+2] = 0x00
	payload[secondaryHeaderLen+3] = 0x01
	return payload
}

func feed(t *testing.T, a *Assembler, seq int, payload []byte) (*Record, bool) {
	t.Helper()
	pkt := ccsds.Packet{Header: ccsds.Header{SequenceCount: uint16(seq)}, Payload: payload}
	return a.Feed(time.Now(), pkt)
}

func TestFullFrameTestPattern(t *testing.T) {
	a := New("megs_a")
	var delivered *Record
	for seq := 0; seq < maxVCDUCount; seq++ {
		rec, ok := feed(t, a, seq, buildTestPatternPacket(seq, seq == maxVCDUCount-1))
		if ok {
			delivered = rec
		}
	}
	final, ok := a.Flush()
	if !ok {
		t.Fatal("Flush() ok = false, want true")
	}
	if delivered != nil {
		t.Fatal("frame delivered before the natural end of stream; flush should be the only delivery here")
	}
	if final.VCDUCount != maxVCDUCount {
		t.Errorf("VCDUCount = %d, want %d", final.VCDUCount, maxVCDUCount)
	}
	if !final.TestPattern {
		t.Error("TestPattern = false, want true")
	}
	if final.ParityErrors != 0 {
		t.Errorf("ParityErrors = %d, want 0", final.ParityErrors)
	}
}

func TestFrameBoundaryOnSequenceWrap(t *testing.T) {
	a := New("megs_a")
	feed(t, a, 0, buildTestPatternPacket(0, false))
	feed(t, a, 1, buildTestPatternPacket(1, false))
	// Sequence drops back to 0: this should deliver the in-progress record.
	rec, ok := feed(t, a, 0, buildTestPatternPacket(0, false))
	if !ok {
		t.Fatal("Feed() did not deliver at frame boundary")
	}
	if rec.VCDUCount != 2 {
		t.Errorf("delivered VCDUCount = %d, want 2", rec.VCDUCount)
	}
}

func TestDataGapCounted(t *testing.T) {
	a := New("megs_a")
	feed(t, a, 0, buildTestPatternPacket(0, false))
	feed(t, a, 5, buildTestPatternPacket(5, false))
	rec, ok := a.Flush()
	if !ok {
		t.Fatal("Flush() ok = false")
	}
	if rec.DataGaps != 4 {
		t.Errorf("DataGaps = %d, want 4", rec.DataGaps)
	}
}

func TestParityErrorDetected(t *testing.T) {
	a := New("megs_a")
	payload := buildTestPatternPacket(0, false)
	// Flip the parity bit of the first pixel word without fixing the data,
	// so the recomputed parity disagrees with bit 15.
	off := pixelAreaOffset
	word := binary.BigEndian.Uint16(payload[off : off+2])
	binary.BigEndian.PutUint16(payload[off:off+2], word^0x8000)
	_, _ = feed(t, a, 0, payload)
	rec, ok := a.Flush()
	if !ok {
		t.Fatal("Flush() ok = false")
	}
	if rec.ParityErrors == 0 {
		t.Error("ParityErrors = 0, want > 0")
	}
}
