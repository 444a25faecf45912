// Package hardware drives the bin's GPIO peripherals: ultrasonic ranging
// probes, gate servos and the deposit button. Every device owns explicit pin
// handles so tests can substitute fakes.
package hardware

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Init loads the periph host drivers. Must run before any pin lookup.
func Init() error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("hardware: host init: %w", err)
	}
	return nil
}

// Pin resolves a BCM pin number to a handle.
func Pin(bcm int) (gpio.PinIO, error) {
	if bcm <= 0 {
		return nil, fmt.Errorf("hardware: pin %d not wired", bcm)
	}
	p := gpioreg.ByName(fmt.Sprintf("GPIO%d", bcm))
	if p == nil {
		return nil, fmt.Errorf("hardware: no such pin GPIO%d", bcm)
	}
	return p, nil
}
