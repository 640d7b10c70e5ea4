// Copyright 2017 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ccsds

import "testing"

func TestDecodeHeader(t *testing.T) {
	// version=0, type=0, secondary=1, APID=601 (0x259), seqFlags=3, seqCount=42, length=1760
	w0 := uint16(1)<<11 | 601
	w1 := uint16(3)<<14 | 42
	b := []byte{byte(w0 >> 8), byte(w0), byte(w1 >> 8), byte(w1), 0x06, 0xE0}
	h := DecodeHeader(b)
	if h.APID != 601 {
		t.Errorf("APID = %d, want 601", h.APID)
	}
	if !h.SecondaryHeaderFlag {
		t.Error("SecondaryHeaderFlag = false, want true")
	}
	if h.SequenceCount != 42 {
		t.Errorf("SequenceCount = %d, want 42", h.SequenceCount)
	}
	if h.PacketDataLength != 0x06E0 {
		t.Errorf("PacketDataLength = %#x, want 0x06E0", h.PacketDataLength)
	}
	if got, want := h.PayloadLength(), 0x06E0+1; got != want {
		t.Errorf("PayloadLength() = %d, want %d", got, want)
	}
}

func TestDecodeTimestamp(t *testing.T) {
	payload := []byte{0x00, 0x00, 0x00, 0x64, 0x80, 0x00, 0xAA, 0xAA}
	ts, ok := DecodeTimestamp(payload)
	if !ok {
		t.Fatal("DecodeTimestamp() ok = false")
	}
	if ts.Seconds != 100 {
		t.Errorf("Seconds = %d, want 100", ts.Seconds)
	}
	if ts.Subseconds < 0.49 || ts.Subseconds > 0.51 {
		t.Errorf("Subseconds = %v, want ~0.5", ts.Subseconds)
	}
}

func TestPayloadLengthLookup(t *testing.T) {
	if n, ok := PayloadLength(APIDMegsA); !ok || n != 1762 {
		t.Errorf("PayloadLength(MegsA) = (%d, %v), want (1762, true)", n, ok)
	}
	if _, ok := PayloadLength(9999); ok {
		t.Error("PayloadLength(9999) ok = true, want false")
	}
}
