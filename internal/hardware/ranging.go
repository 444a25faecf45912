package hardware

import (
	"context"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
)

const (
	// SpeedOfSound in cm/s at room temperature.
	SpeedOfSound = 34300.0

	DefaultEchoTimeout  = 100 * time.Millisecond
	DefaultTriggerPulse = 10 * time.Microsecond

	// ctx is checked once every ctxCheckEvery polls of the echo line.
	ctxCheckEvery = 1024
)

// DistanceSensor drives one HC-SR04 style probe.
type DistanceSensor struct {
	trigger gpio.PinOut
	echo    gpio.PinIn
	timeout time.Duration
	pulse   time.Duration
}

// NewDistanceSensor configures the echo line as a pulled-down input and parks
// the trigger low. timeout bounds each of the two echo edge waits.
func NewDistanceSensor(trigger gpio.PinOut, echo gpio.PinIn, timeout time.Duration) (*DistanceSensor, error) {
	if timeout <= 0 {
		timeout = DefaultEchoTimeout
	}
	if err := echo.In(gpio.PullDown, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("hardware: echo %s: %w", echo, err)
	}
	if err := trigger.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("hardware: trigger %s: %w", trigger, err)
	}
	return &DistanceSensor{trigger: trigger, echo: echo, timeout: timeout, pulse: DefaultTriggerPulse}, nil
}

// Measure returns the distance to the nearest obstacle in centimetres.
func (s *DistanceSensor) Measure(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := s.trigger.Out(gpio.High); err != nil {
		return 0, fmt.Errorf("hardware: trigger %s: %w", s.trigger, err)
	}
	time.Sleep(s.pulse)
	if err := s.trigger.Out(gpio.Low); err != nil {
		return 0, fmt.Errorf("hardware: trigger %s: %w", s.trigger, err)
	}

	start, err := s.waitFor(ctx, gpio.High)
	if err != nil {
		return 0, err
	}
	end, err := s.waitFor(ctx, gpio.Low)
	if err != nil {
		return 0, err
	}
	return Distance(end.Sub(start)), nil
}

// busy-wait: the echo pulse is only a few hundred µs wide
func (s *DistanceSensor) waitFor(ctx context.Context, level gpio.Level) (time.Time, error) {
	deadline := time.Now().Add(s.timeout)
	for i := 1; ; i++ {
		if s.echo.Read() == level {
			return time.Now(), nil
		}
		now := time.Now()
		if now.After(deadline) {
			return time.Time{}, fmt.Errorf("%w: echo %s never went %s within %s", ErrSensorTimeout, s.echo, level, s.timeout)
		}
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return time.Time{}, err
			}
		}
	}
}

// Distance converts an echo round-trip time into centimetres.
func Distance(roundTrip time.Duration) float64 {
	return roundTrip.Seconds() * SpeedOfSound / 2
}
