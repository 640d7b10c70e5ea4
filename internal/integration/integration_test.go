// Copyright 2017 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package integration

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stanford-ssi/eve-l0b/internal/ccsds"
)

func pktWithDN(seq int, dn uint16) ccsds.Packet {
	payload := make([]byte, 16)
	binary.BigEndian.PutUint16(payload[8:10], dn)
	return ccsds.Packet{Header: ccsds.Header{SequenceCount: uint16(seq)}, Payload: payload}
}

func TestAccumulatorFillsRecord(t *testing.T) {
	a := New("esp", 3, 1, 8, 10, 2)
	if _, ok := a.Feed(time.Now(), pktWithDN(0, 10)); ok {
		t.Fatal("Feed() delivered before NRows reached")
	}
	if _, ok := a.Feed(time.Now(), pktWithDN(1, 20)); ok {
		t.Fatal("Feed() delivered before NRows reached")
	}
	rec, ok := a.Feed(time.Now(), pktWithDN(2, 30))
	if !ok {
		t.Fatal("Feed() did not deliver at NRows")
	}
	if len(rec.Rows) != 3 {
		t.Fatalf("len(Rows) = %d, want 3", len(rec.Rows))
	}
	for i, want := range []uint16{10, 20, 30} {
		if got := rec.Rows[i].Channels[0]; got != want {
			t.Errorf("Rows[%d].Channels[0] = %d, want %d", i, got, want)
		}
	}
	if len(rec.Temps) != 2 {
		t.Fatalf("len(Temps) = %d, want 2", len(rec.Temps))
	}
}

func TestAccumulatorZeroFillsGap(t *testing.T) {
	a := New("esp", 5, 1, 8, 10, 2)
	a.Feed(time.Now(), pktWithDN(0, 1))
	rec, ok := a.Feed(time.Now(), pktWithDN(3, 4))
	if !ok {
		t.Fatal("Feed() did not deliver")
	}
	if rec.DataGaps != 2 {
		t.Errorf("DataGaps = %d, want 2", rec.DataGaps)
	}
	if got := rec.Rows[1].Channels[0]; got != 0 {
		t.Errorf("gap row = %d, want 0", got)
	}
	if got := rec.Rows[2].Channels[0]; got != 0 {
		t.Errorf("gap row = %d, want 0", got)
	}
	if got := rec.Rows[4].Channels[0]; got != 4 {
		t.Errorf("last row = %d, want 4", got)
	}
}

func TestAccumulatorFlushPartial(t *testing.T) {
	a := New("esp", 10, 1, 8, 10, 2)
	if _, ok := a.Flush(); ok {
		t.Fatal("Flush() on empty accumulator returned a record")
	}
	a.Feed(time.Now(), pktWithDN(0, 5))
	rec, ok := a.Flush()
	if !ok {
		t.Fatal("Flush() did not return the partial record")
	}
	if len(rec.Rows) != 1 {
		t.Errorf("len(Rows) = %d, want 1", len(rec.Rows))
	}
}

func TestAccumulatorCapturesWallClockReceiveTime(t *testing.T) {
	a := New("esp", 1, 1, 8, 10, 2)
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	rec, ok := a.Feed(now, pktWithDN(0, 1))
	if !ok {
		t.Fatal("Feed() did not deliver at NRows")
	}
	if rec.TAISeconds != 0 {
		t.Errorf("TAISeconds = %v, want 0 (no secondary header in this payload)", rec.TAISeconds)
	}
	if rec.ReceiveTAI == rec.TAISeconds {
		t.Error("ReceiveTAI should be derived from wall-clock time, not TAISeconds")
	}
}
