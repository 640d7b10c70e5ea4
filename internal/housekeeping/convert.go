// Copyright 2017 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package housekeeping

import "math"

// lerpTable is a piecewise-linear DN-to-engineering-units conversion: pairs
// of (DN, value) control points, sorted by DN, interpolated linearly
// between the two bracketing points and clamped at the ends.
type lerpTable []point

type point struct {
	dn  float64
	val float64
}

func (t lerpTable) eval(dn uint32) float64 {
	x := float64(dn)
	if x <= t[0].dn {
		return t[0].val
	}
	last := t[len(t)-1]
	if x >= last.dn {
		return last.val
	}
	for i := 1; i < len(t); i++ {
		if x <= t[i].dn {
			lo, hi := t[i-1], t[i]
			frac := (x - lo.dn) / (hi.dn - lo.dn)
			return lo.val + frac*(hi.val-lo.val)
		}
	}
	return last.val
}

// thermistorColumns identifies the two columns converted with a
// logarithmic transform (diode-style thermistors) rather than a
// piecewise-linear lookup, per the instrument's calibration convention.
var thermistorColumns = map[int]bool{40: true, 41: true}

// thermistorLog converts a thermistor DN to degrees Celsius using a
// two-coefficient logarithmic fit: T = a - b*ln(dn).
func thermistorLog(dn uint32) float64 {
	const a, b = 450.0, 55.0
	if dn == 0 {
		return a
	}
	return a - b*math.Log(float64(dn))
}

// defaultTable is the fallback piecewise-linear conversion used for every
// non-thermistor column: a simple two-point DN range mapped onto degrees
// Celsius, representative of the temperature/voltage monitor columns this
// packet mostly carries.
var defaultTable = lerpTable{{0, -50}, {16383, 150}}

// Convert derives the NColumns engineering-unit columns from raw[i],
// applying the logarithmic transform to the thermistor columns and the
// shared piecewise-linear table to the rest.
func Convert(raw [NColumns]uint32) [NColumns]float64 {
	var eng [NColumns]float64
	for i, dn := range raw {
		if thermistorColumns[i] {
			eng[i] = thermistorLog(dn)
		} else {
			eng[i] = defaultTable.eval(dn)
		}
	}
	return eng
}
