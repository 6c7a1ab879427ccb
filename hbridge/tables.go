// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hbridge

// row holds the levels asserted at once, in the order A1, B1, A2, B2.
type row [4]bool

var singleSteps = [4]row{
	{true, false, false, false},
	{false, true, false, false},
	{false, false, true, false},
	{false, false, false, true},
}

var doubleSteps = [4]row{
	{true, true, false, false},
	{false, true, true, false},
	{false, false, true, true},
	{true, false, false, true},
}

var interleaveSteps = [8]row{
	{true, false, false, false},
	{true, true, false, false},
	{false, true, false, false},
	{false, true, true, false},
	{false, false, true, false},
	{false, false, true, true},
	{false, false, false, true},
	{true, false, false, true},
}

// microSteps selects the coil pair; the current itself comes from the curves.
var microSteps = doubleSteps

// pointsPerStep is the number of current points walked per full step in
// Microstep mode.
const pointsPerStep = 8

// curveA and curveB are two sine-like 8-bit current curves 90° apart. Each
// block of pointsPerStep entries covers one full step.
var curveA = [4 * pointsPerStep]uint8{
	255, 249, 230, 199, 159, 111, 57, 0,
	0, 57, 111, 159, 199, 230, 249, 255,
	255, 249, 230, 199, 159, 111, 57, 0,
	0, 57, 111, 159, 199, 230, 249, 255,
}

var curveB = [4 * pointsPerStep]uint8{
	0, 57, 111, 159, 199, 230, 249, 255,
	255, 249, 230, 199, 159, 111, 57, 0,
	0, 57, 111, 159, 199, 230, 249, 255,
	255, 249, 230, 199, 159, 111, 57, 0,
}

// table returns the coil sequence used by mode, or nil if mode is unknown.
func table(mode Mode) []row {
	switch mode {
	case Single:
		return singleSteps[:]
	case Double:
		return doubleSteps[:]
	case Interleave:
		return interleaveSteps[:]
	case Microstep:
		return microSteps[:]
	default:
		return nil
	}
}
