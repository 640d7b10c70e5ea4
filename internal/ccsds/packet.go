// Copyright 2017 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ccsds finds, validates and parses CCSDS space packets out of a
// byte stream.
package ccsds

import "github.com/stanford-ssi/eve-l0b/internal/timeconv"

// SyncMarker is the 4 byte marker that precedes every packet on the
// file/replay path.
const SyncMarker uint32 = 0x1ACFFC1D

// SyncMarkerUSB is SyncMarker with all four bytes reversed, as observed on
// the FPGA's 32 bit word-oriented USB path.
const SyncMarkerUSB uint32 = 0x1DFCCF1A

// PrimaryHeaderSize is the length in bytes of the CCSDS primary header.
const PrimaryHeaderSize = 6

// MaxSyncDrift is the number of bytes that may be skipped while hunting for
// the next sync marker before the gap is counted as unusually large. It is
// not an error threshold; gaps of any size are tolerated.
const MaxSyncDrift = 4

// Header is the decoded CCSDS primary header plus the derived secondary
// header timestamp, when present.
type Header struct {
	Version             uint8
	Type                uint8
	SecondaryHeaderFlag bool
	APID                uint16
	SequenceFlags       uint8
	SequenceCount       uint16 // 14 bits
	PacketDataLength    uint16 // as carried on the wire: payload length - 1
}

// Packet is one fully reassembled, validated space packet.
type Packet struct {
	Header    Header
	Payload   []byte // PacketDataLength+1 bytes
	Timestamp timeconv.Timestamp
	HasTime   bool
}

// DecodeHeader parses the 6 byte primary header in b.
func DecodeHeader(b []byte) Header {
	_ = b[5]
	w0 := uint16(b[0])<<8 | uint16(b[1])
	w1 := uint16(b[2])<<8 | uint16(b[3])
	length := uint16(b[4])<<8 | uint16(b[5])
	return Header{
		Version:             uint8(w0 >> 13),
		Type:                uint8((w0 >> 12) & 1),
		SecondaryHeaderFlag: (w0>>11)&1 != 0,
		APID:                w0 & 0x07FF,
		SequenceFlags:       uint8(w1 >> 14),
		SequenceCount:       w1 & 0x3FFF,
		PacketDataLength:    length,
	}
}

// PayloadLength returns the number of bytes that follow the primary header
// for this packet, per the CCSDS length-field convention (field value is
// payload length minus one).
func (h Header) PayloadLength() int {
	return int(h.PacketDataLength) + 1
}

// DecodeTimestamp extracts the secondary-header time code from the first 6
// bytes of payload: a 4 byte big-endian seconds count followed by a 2 byte
// big-endian subseconds count of which all 16 bits are significant.
func DecodeTimestamp(payload []byte) (timeconv.Timestamp, bool) {
	if len(payload) < 6 {
		return timeconv.Timestamp{}, false
	}
	seconds := uint32(payload[0])<<24 | uint32(payload[1])<<16 | uint32(payload[2])<<8 | uint32(payload[3])
	sub := uint16(payload[4])<<8 | uint16(payload[5])
	return timeconv.Timestamp{Seconds: seconds, Subseconds: timeconv.DecodeSubseconds(sub)}, true
}
