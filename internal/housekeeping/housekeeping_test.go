// Copyright 2017 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package housekeeping

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stanford-ssi/eve-l0b/internal/ccsds"
)

func pkt(seq int) ccsds.Packet {
	payload := make([]byte, payloadOffset+NColumns*4)
	binary.BigEndian.PutUint32(payload[payloadOffset:payloadOffset+4], uint32(seq+1))
	return ccsds.Packet{Header: ccsds.Header{SequenceCount: uint16(seq)}, Payload: payload}
}

func TestAccumulatorFillsAndConverts(t *testing.T) {
	a := New(2)
	a.Feed(time.Now(), pkt(0))
	rec, ok := a.Feed(time.Now(), pkt(1))
	if !ok {
		t.Fatal("Feed() did not deliver at NRows")
	}
	if len(rec.Rows) != 2 {
		t.Fatalf("len(Rows) = %d, want 2", len(rec.Rows))
	}
	if rec.Rows[0].Raw[0] != 1 {
		t.Errorf("Rows[0].Raw[0] = %d, want 1", rec.Rows[0].Raw[0])
	}
	if rec.Rows[0].Eng[0] == 0 && rec.Rows[0].Raw[0] != 0 {
		t.Error("Eng[0] was not derived from Raw[0]")
	}
}
