// Copyright 2017 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package housekeeping

import "testing"

func TestLerpTableEndpoints(t *testing.T) {
	tbl := lerpTable{{0, -50}, {16383, 150}}
	if got := tbl.eval(0); got != -50 {
		t.Errorf("eval(0) = %v, want -50", got)
	}
	if got := tbl.eval(16383); got != 150 {
		t.Errorf("eval(16383) = %v, want 150", got)
	}
	if got := tbl.eval(32000); got != 150 {
		t.Errorf("eval(above range) = %v, want clamped 150", got)
	}
}

func TestLerpTableMidpoint(t *testing.T) {
	tbl := lerpTable{{0, 0}, {100, 200}}
	if got := tbl.eval(50); got != 100 {
		t.Errorf("eval(50) = %v, want 100", got)
	}
}

func TestConvertUsesThermistorColumns(t *testing.T) {
	var raw [NColumns]uint32
	raw[40] = 1000
	raw[0] = 1000
	eng := Convert(raw)
	if eng[40] == eng[0] {
		t.Error("thermistor and default-table columns produced identical conversions for the same DN")
	}
}

func TestThermistorLogZeroDN(t *testing.T) {
	if got := thermistorLog(0); got != 450.0 {
		t.Errorf("thermistorLog(0) = %v, want 450", got)
	}
}
