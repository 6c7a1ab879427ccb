// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package motorshield

import (
	"errors"
	"fmt"
	"sync"

	"github.com/GermanBionicSystems/micstep/hbridge"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

const devName = "MotorShield"

var (
	// ErrNotImplemented is returned by the latch pins for PWM.
	ErrNotImplemented = errors.New("motorshield: not implemented")

	// ErrInvalidPort is returned for a stepper port other than 1 or 2.
	ErrInvalidPort = errors.New("motorshield: invalid stepper port")
)

// Latch bits of each bridge input, as wired on the shield.
const (
	m1a = 2
	m1b = 3
	m2a = 1
	m2b = 4
	m3a = 5
	m3b = 7
	m4a = 0
	m4b = 6
)

// ports lists the latch bits A1, A2, B1, B2 of each stepper port.
var ports = [2][4]int{
	{m1a, m1b, m2a, m2b},
	{m3a, m3b, m4a, m4b},
}

var motorNames = [8]string{"M4A", "M2A", "M1A", "M1B", "M2B", "M3A", "M4B", "M3B"}

// Dev is a handle to the shield's 74HC595 latch.
type Dev struct {
	mu   sync.Mutex
	conn spi.Conn
	// value is the last latched byte. Its initial value is out of range so
	// the first write always goes through.
	value uint16
	pins  [8]Pin
}

// Conn connects to the latch through port.
func Conn(port spi.Port) (spi.Conn, error) {
	return port.Connect(physic.MegaHertz, spi.Mode0, 8)
}

// New returns the shield connected through c and clears all the bridge
// inputs.
func New(c spi.Conn) (*Dev, error) {
	d := &Dev{conn: c, value: 1 << 8}
	for i := range d.pins {
		d.pins[i] = Pin{dev: d, bit: i}
	}
	if err := d.write(0, 0xff); err != nil {
		return nil, fmt.Errorf("motorshield: failed to clear latch: %w", err)
	}
	return d, nil
}

// Stepper returns a driver for the motor on stepper port 1 or 2.
//
// pwmA and pwmB are the host pins wired to the enable inputs of that port;
// they may be nil if the enable jumpers are fitted, in which case
// micro-stepping is not available. The other fields of opts are used as is.
func (d *Dev) Stepper(port int, pwmA, pwmB gpio.PinOut, opts *hbridge.Opts) (*hbridge.Dev, error) {
	if port < 1 || port > len(ports) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPort, port)
	}
	o := hbridge.Opts{}
	if opts != nil {
		o = *opts
	}
	o.PWMA, o.PWMB = pwmA, pwmB
	b := ports[port-1]
	return hbridge.New(&d.pins[b[0]], &d.pins[b[1]], &d.pins[b[2]], &d.pins[b[3]], &o)
}

// Latched returns the byte currently latched.
func (d *Dev) Latched() byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return byte(d.value)
}

// Halt clears all the bridge inputs.
//
// Halt implements conn.Resource.
func (d *Dev) Halt() error {
	return d.write(0, 0xff)
}

func (d *Dev) String() string {
	return devName
}

// write latches value for the bits in mask, skipping the transfer when
// nothing changes.
func (d *Dev) write(value, mask byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	v := (byte(d.value) &^ mask) | (value & mask)
	if d.value == uint16(v) {
		return nil
	}
	if err := d.conn.Tx([]byte{v}, nil); err != nil {
		return err
	}
	d.value = uint16(v)
	return nil
}

// Pin is one bridge input behind the latch.
type Pin struct {
	dev *Dev
	bit int
}

// Halt implements conn.Resource.
func (p *Pin) Halt() error {
	return nil
}

// Name returns the shield label of the input, e.g. "M1A".
func (p *Pin) Name() string {
	return motorNames[p.bit]
}

// Number returns the latch bit.
func (p *Pin) Number() int {
	return p.bit
}

// Deprecated: returns "Out"
func (p *Pin) Function() string {
	return "Out"
}

// Out latches l on the input.
func (p *Pin) Out(l gpio.Level) error {
	mask := byte(1 << p.bit)
	var v byte
	if l {
		v = mask
	}
	return p.dev.write(v, mask)
}

// PWM is not supported by the latch.
func (p *Pin) PWM(duty gpio.Duty, f physic.Frequency) error {
	return ErrNotImplemented
}

func (p *Pin) String() string {
	return devName + "_" + p.Name()
}

var _ gpio.PinOut = &Pin{}
var _ conn.Resource = &Dev{}
