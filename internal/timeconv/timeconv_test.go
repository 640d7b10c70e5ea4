// Copyright 2017 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package timeconv

import (
	"testing"
	"time"
)

func TestToUnix(t *testing.T) {
	cases := []struct {
		name       string
		seconds    uint32
		subseconds float64
		wantUnix   int64
	}{
		{"epoch-plus-offset-plus-leap", uint32(TAIEpochOffsetToUnix + TAILeapSeconds + 100), 0, 100},
		{"before-leap-threshold", 40, 0, 40 - int64(TAIEpochOffsetToUnix)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ts := Timestamp{Seconds: c.seconds, Subseconds: c.subseconds}
			got := ts.ToUnix().Unix()
			if got != c.wantUnix {
				t.Errorf("ToUnix() = %d, want %d", got, c.wantUnix)
			}
		})
	}
}

func TestFromUnixRoundTripsWithToUnix(t *testing.T) {
	want := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	tai := FromUnix(want)
	got := Timestamp{Seconds: uint32(tai)}.ToUnix()
	if got.Unix() != want.Unix() {
		t.Errorf("ToUnix(FromUnix(t)) = %v, want %v", got, want)
	}
}

func TestDecodeSubseconds(t *testing.T) {
	if got := DecodeSubseconds(0); got != 0 {
		t.Errorf("DecodeSubseconds(0) = %v, want 0", got)
	}
	if got := DecodeSubseconds(32768); got < 0.49 || got > 0.51 {
		t.Errorf("DecodeSubseconds(32768) = %v, want ~0.5", got)
	}
}
