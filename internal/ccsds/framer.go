// Copyright 2017 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ccsds

import (
	"errors"
	"fmt"
	"io"

	"github.com/stanford-ssi/eve-l0b/internal/bytesource"
)

// FramingErrorKind classifies a non-fatal framing problem.
type FramingErrorKind int

// Valid values for FramingErrorKind.
const (
	UnexpectedLength FramingErrorKind = iota
	TruncatedPacket
	UnknownAPID
)

// FramingError reports a single malformed or unrecognized packet. It is
// never fatal: the framer resumes the sync search immediately after
// returning one.
type FramingError struct {
	Kind FramingErrorKind
	APID uint16
	Err  error
}

func (e *FramingError) Error() string {
	switch e.Kind {
	case UnexpectedLength:
		return fmt.Sprintf("ccsds: unexpected payload length for APID %d: %v", e.APID, e.Err)
	case TruncatedPacket:
		return fmt.Sprintf("ccsds: truncated packet for APID %d: %v", e.APID, e.Err)
	case UnknownAPID:
		return fmt.Sprintf("ccsds: unknown APID %d", e.APID)
	default:
		return "ccsds: framing error"
	}
}

func (e *FramingError) Unwrap() error { return e.Err }

// Framer pulls a byte stream apart into validated space packets.
//
// It is not safe for concurrent use; the pipeline drives exactly one
// Framer from exactly one goroutine, per the single-producer design this
// system relies on.
type Framer struct {
	src bytesource.ByteSource

	// USB selects the byte-swapped sync marker used on the FPGA word path.
	USB bool

	syncDrift uint64 // sync searches that consumed more than MaxSyncDrift bytes, cumulative
}

// NewFramer wraps src. If usb is true, the framer hunts for the
// byte-swapped sync marker instead of the file-path marker.
func NewFramer(src bytesource.ByteSource, usb bool) *Framer {
	return &Framer{src: src, USB: usb}
}

// SyncDriftWarnings reports how many times the sync search consumed more
// than MaxSyncDrift bytes before finding the next marker.
func (f *Framer) SyncDriftWarnings() uint64 { return f.syncDrift }

func (f *Framer) wantMarker() uint32 {
	if f.USB {
		return SyncMarkerUSB
	}
	return SyncMarker
}

// findSync consumes bytes from the source one at a time until the sync
// marker is found in a 32 bit shift register, mirroring the reference
// reader's byte-at-a-time search exactly.
func (f *Framer) findSync() error {
	want := f.wantMarker()
	var shiftReg uint32
	var b [1]byte
	skipped := 0
	for {
		if err := f.src.ReadExact(b[:]); err != nil {
			return err
		}
		shiftReg = shiftReg<<8 | uint32(b[0])
		if shiftReg == want {
			if skipped > MaxSyncDrift {
				f.syncDrift++
			}
			return nil
		}
		skipped++
	}
}

// NextPacket reads and validates the next packet on the stream. It returns
// io.EOF when the underlying source is exhausted, or a *FramingError for a
// malformed or unrecognized packet; callers should continue calling
// NextPacket after a *FramingError, since the framer has already resumed
// the sync search.
func (f *Framer) NextPacket() (Packet, error) {
	if err := f.findSync(); err != nil {
		return Packet{}, err
	}
	var hdr [PrimaryHeaderSize]byte
	if err := f.src.ReadExact(hdr[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return Packet{}, io.EOF
		}
		return Packet{}, &FramingError{Kind: TruncatedPacket, Err: err}
	}
	h := DecodeHeader(hdr[:])

	if !IsKnown(h.APID) {
		// Drain the payload so the stream stays in sync, then report.
		payload := make([]byte, h.PayloadLength())
		_ = f.src.ReadExact(payload)
		return Packet{}, &FramingError{Kind: UnknownAPID, APID: h.APID}
	}
	want, _ := PayloadLength(h.APID)
	if h.PayloadLength() != want {
		payload := make([]byte, h.PayloadLength())
		_ = f.src.ReadExact(payload)
		return Packet{}, &FramingError{Kind: UnexpectedLength, APID: h.APID, Err: fmt.Errorf("got %d want %d", h.PayloadLength(), want)}
	}

	payload := make([]byte, h.PayloadLength())
	if err := f.src.ReadExact(payload); err != nil {
		return Packet{}, &FramingError{Kind: TruncatedPacket, APID: h.APID, Err: err}
	}

	pkt := Packet{Header: h, Payload: payload}
	if h.SecondaryHeaderFlag {
		if ts, ok := DecodeTimestamp(payload); ok {
			pkt.Timestamp = ts
			pkt.HasTime = true
		}
	}
	return pkt, nil
}
