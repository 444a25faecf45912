package hardware

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// Servo duty cycles (percent of a 20ms period).
const (
	ServoFrequency = 50 * physic.Hertz

	DutyClosed  = 2.5  // 0°
	DutyNeutral = 7.5  // 90°
	DutyOpen    = 12.5 // 180°
)

// Position is the last angle commanded to a gate.
type Position uint32

const (
	Closed Position = iota
	Open
)

func (p Position) String() string {
	if p == Open {
		return "open"
	}
	return "closed"
}

// GateTiming holds the physical delays of a gate sequence.
type GateTiming struct {
	Settle     time.Duration // at neutral before moving to the target
	Dwell      time.Duration // hold after a plain open/close
	CloseDwell time.Duration // hold after closing at the end of a deposit
}

func DefaultGateTiming() GateTiming {
	return GateTiming{
		Settle:     100 * time.Millisecond,
		Dwell:      time.Second,
		CloseDwell: 2 * time.Second,
	}
}

// Gate drives one compartment servo. Sequences on the same gate are
// serialised, so the last command issued is the position the gate ends in.
type Gate struct {
	name   string
	pin    gpio.PinOut
	timing GateTiming

	mu  sync.Mutex
	pos atomic.Uint32
}

func NewGate(name string, pin gpio.PinOut, timing GateTiming) (*Gate, error) {
	if err := pin.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("%w: gate %s pin %s: %v", ErrActuator, name, pin, err)
	}
	return &Gate{name: name, pin: pin, timing: timing}, nil
}

type step struct {
	duty float64
	hold time.Duration
	pos  Position
}

func (g *Gate) Open(ctx context.Context) error {
	return g.run(ctx, step{DutyOpen, g.timing.Dwell, Open})
}

func (g *Gate) Close(ctx context.Context) error {
	return g.run(ctx, step{DutyClosed, g.timing.Dwell, Closed})
}

// Deposit opens the gate for window, then closes it, as one uninterrupted sequence.
func (g *Gate) Deposit(ctx context.Context, window time.Duration) error {
	return g.run(ctx,
		step{DutyOpen, window, Open},
		step{DutyClosed, g.timing.CloseDwell, Closed},
	)
}

func (g *Gate) Position() Position {
	return Position(g.pos.Load())
}

func (g *Gate) Name() string { return g.name }

func (g *Gate) run(ctx context.Context, steps ...step) (err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	// il generatore PWM va sempre fermato, anche su cancel
	defer func() {
		if herr := g.pin.Out(gpio.Low); herr != nil && err == nil {
			err = fmt.Errorf("%w: gate %s halt: %v", ErrActuator, g.name, herr)
		}
	}()

	if err := g.drive(DutyNeutral); err != nil {
		return err
	}
	if err := sleep(ctx, g.timing.Settle); err != nil {
		return err
	}
	for _, s := range steps {
		if err := g.drive(s.duty); err != nil {
			return err
		}
		g.pos.Store(uint32(s.pos))
		if err := sleep(ctx, s.hold); err != nil {
			return err
		}
	}
	return nil
}

func (g *Gate) drive(percent float64) error {
	if err := g.pin.PWM(DutyPercent(percent), ServoFrequency); err != nil {
		return fmt.Errorf("%w: gate %s pwm %.1f%%: %v", ErrActuator, g.name, percent, err)
	}
	return nil
}

// DutyPercent converts a duty cycle percentage to a periph duty value.
func DutyPercent(percent float64) gpio.Duty {
	return gpio.Duty(percent / 100 * float64(gpio.DutyMax))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
