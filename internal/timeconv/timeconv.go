// Copyright 2017 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package timeconv converts between the spacecraft's TAI packet timestamps
// and the time.Time values the rest of the pipeline works with.
//
// The original instrument software hand-rolled year/day-of-year arithmetic
// for this conversion (see tai_to_ydhms.cpp in the reference material); the
// standard library's time package already does leap-year-correct
// day-of-year math, so that machinery is not reproduced here.
package timeconv

import "time"

// TAILeapSeconds is the fixed TAI-UTC offset baked into the instrument
// software at build time. It is not recomputed from a leap-second table;
// the source this system is derived from did the same.
const TAILeapSeconds = 37.0

// TAIEpochOffsetToUnix is TAI seconds at the Unix epoch (1970-01-01) minus
// TAI seconds at the TAI epoch (1958-01-01), i.e. the constant to add to a
// Unix timestamp to get seconds since the TAI epoch (before the leap-second
// correction below).
const TAIEpochOffsetToUnix = 378691200.0

// Timestamp is a packet secondary-header time: whole seconds since the TAI
// epoch plus a fractional part in [0, 1).
type Timestamp struct {
	Seconds    uint32
	Subseconds float64 // derived from the packet's 16 significant subsecond bits
}

// TAISeconds returns the fractional TAI seconds represented by t.
func (t Timestamp) TAISeconds() float64 {
	return float64(t.Seconds) + t.Subseconds
}

// ToUnix converts t to a wall-clock time.Time, undoing the TAI epoch shift
// and the fixed leap-second offset exactly as the archival writer does.
func (t Timestamp) ToUnix() time.Time {
	unix := t.TAISeconds() - TAIEpochOffsetToUnix
	if unix > TAILeapSeconds {
		unix -= TAILeapSeconds
	}
	sec := int64(unix)
	nsec := int64((unix - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}

// FromUnix converts a wall-clock time to fractional TAI seconds, the
// inverse of ToUnix. Valid for any real wall-clock "now": unix is always
// well past TAILeapSeconds, so the leap correction ToUnix conditionally
// subtracts is always re-added here.
func FromUnix(t time.Time) float64 {
	unix := float64(t.Unix()) + float64(t.Nanosecond())/1e9
	return unix + TAILeapSeconds + TAIEpochOffsetToUnix
}

// DecodeSubseconds turns the 16-bit subsecond field carried in a secondary
// header into a fraction of a second.
func DecodeSubseconds(raw uint16) float64 {
	return float64(raw) / 65536.0
}
