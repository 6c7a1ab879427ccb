// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package motorshield drives the stepper ports of an Adafruit Motor Shield
// v1 (and its many clones).
//
// The eight bridge inputs of the two L293D are latched by a 74HC595 shift
// register, fed here through an SPI port: SER on MOSI, CLK on SCLK and LATCH
// on CS. The four enable inputs are plain PWM pins of the host.
//
// # Shield pinout
//
// Stepper port 1 uses M1 and M2, enabled by PWM2A (D11) and PWM2B (D3).
// Stepper port 2 uses M3 and M4, enabled by PWM0A (D6) and PWM0B (D5).
//
// https://learn.adafruit.com/adafruit-motor-shield
package motorshield
