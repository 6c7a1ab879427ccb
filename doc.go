// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package micstep is a container for the H-bridge stepper motor driver and
// its board configuration.
//
// See package hbridge for the driver itself, package motorshield for the
// Adafruit Motor Shield v1 and package boardcfg to describe the wiring.
package micstep
