// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// micstep turns a stepper motor wired to two H-bridges.
//
// The wiring and speed come from a board file, see package boardcfg.
//
//	micstep -config board.yaml -steps 400 -dir backward
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/GermanBionicSystems/micstep/boardcfg"
	"github.com/GermanBionicSystems/micstep/hbridge"
	"periph.io/x/host/v3"
)

func mainImpl() error {
	config := flag.String("config", "", "board configuration file, defaults are used when empty")
	steps := flag.Int("steps", 200, "number of steps to do")
	dir := flag.String("dir", "forward", "rotation direction: forward or backward")
	mode := flag.String("mode", "", "step mode, overrides the board file")
	verbose := flag.Bool("v", false, "verbose mode")
	flag.Parse()
	if !*verbose {
		log.SetOutput(io.Discard)
	}
	log.SetFlags(log.Lmicroseconds)
	if flag.NArg() != 0 {
		return errors.New("unexpected argument, try -help")
	}

	var direction hbridge.Direction
	switch *dir {
	case "forward":
		direction = hbridge.Forward
	case "backward":
		direction = hbridge.Backward
	default:
		return fmt.Errorf("invalid direction %q", *dir)
	}

	c := boardcfg.Default()
	if *config != "" {
		var err error
		if c, err = boardcfg.Load(*config); err != nil {
			return err
		}
	}
	if err := boardcfg.ApplyEnv(&c); err != nil {
		return err
	}
	if *mode != "" {
		c.Mode = *mode
	}
	m, err := c.StepMode()
	if err != nil {
		return err
	}

	if _, err := host.Init(); err != nil {
		return err
	}
	var dev *hbridge.Dev
	if c.Shield.Port != 0 {
		var port io.Closer
		if dev, port, err = boardcfg.OpenShield(&c); err != nil {
			return err
		}
		defer port.Close()
	} else if dev, err = boardcfg.Open(&c); err != nil {
		return err
	}
	log.Printf("%s: %d %s steps, %s, held %s", dev, *steps, m, direction, c.StepDelay())

	hold := c.StepDelay()
	start := time.Now()
	for i := 0; i < *steps; i++ {
		if err := dev.Step(direction, m, hold); err != nil {
			_ = dev.Release()
			return err
		}
	}
	log.Printf("done in %s, position %d", time.Since(start), dev.Position())

	time.Sleep(c.ReleaseDelay())
	return dev.Release()
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "micstep: %s.\n", err)
		os.Exit(1)
	}
}
