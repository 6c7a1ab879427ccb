// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package hbridge drives a bipolar stepper motor through a pair of
// H-bridges, one per coil.
//
// The four coil inputs (A1, A2, B1, B2) are plain GPIO outputs. When the
// bridge enable inputs are wired to PWM capable pins the driver can also
// limit the coil current and interpolate it between full steps
// (micro-stepping).
//
// # Step modes
//
// Single energizes one coil terminal at a time, Double two adjacent ones,
// Interleave alternates both for half steps and Microstep fades the current
// between two coils over 8 points per full step.
//
// Typical drivers: L298N, L293D, TB6612FNG.
//
// https://www.st.com/resource/en/datasheet/l298.pdf
package hbridge
