// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hbridge_test

import (
	"log"
	"time"

	"github.com/GermanBionicSystems/micstep/hbridge"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

func Example() {
	// Make sure periph is initialized.
	if _, err := host.Init(); err != nil {
		log.Fatal(err)
	}

	// Coils of an L298N on GPIO5-8, enable inputs on the hardware PWM pins.
	opts := &hbridge.Opts{
		PWMA:        gpioreg.ByName("GPIO12"),
		PWMB:        gpioreg.ByName("GPIO13"),
		PowerFactor: 0.8,
	}
	dev, err := hbridge.New(
		gpioreg.ByName("GPIO5"), gpioreg.ByName("GPIO6"),
		gpioreg.ByName("GPIO7"), gpioreg.ByName("GPIO8"),
		opts)
	if err != nil {
		log.Fatal(err)
	}
	defer dev.Halt()

	// 200 steps per minute, one full turn of a 1.8° motor.
	hold := time.Minute / 200
	for range 200 {
		if err := dev.Step(hbridge.Forward, hbridge.Microstep, hold); err != nil {
			log.Fatal(err)
		}
	}
}
