package hardware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"
)

// echoPin goes high on read number riseAt and back low on read fallAt.
// A negative value means the edge never comes.
type echoPin struct {
	*gpiotest.Pin
	mu     sync.Mutex
	reads  int
	riseAt int
	fallAt int
}

func (p *echoPin) Read() gpio.Level {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reads++
	if p.riseAt < 0 || p.reads < p.riseAt {
		return gpio.Low
	}
	if p.fallAt >= 0 && p.reads >= p.fallAt {
		return gpio.Low
	}
	return gpio.High
}

type servoPin struct {
	*gpiotest.Pin
	mu     sync.Mutex
	duties []gpio.Duty
	halts  int
}

func (p *servoPin) PWM(d gpio.Duty, _ physic.Frequency) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.duties = append(p.duties, d)
	return nil
}

func (p *servoPin) Out(l gpio.Level) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l == gpio.Low {
		p.halts++
	}
	return nil
}

func (p *servoPin) snapshot() ([]gpio.Duty, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]gpio.Duty(nil), p.duties...), p.halts
}

func fastTiming() GateTiming {
	return GateTiming{Settle: time.Millisecond, Dwell: 5 * time.Millisecond, CloseDwell: 5 * time.Millisecond}
}

func TestDistance(t *testing.T) {
	require.InDelta(t, 17.15, Distance(time.Millisecond), 1e-9)
	require.InDelta(t, 0, Distance(0), 1e-9)
}

func TestMeasureReturnsDistance(t *testing.T) {
	trig := &gpiotest.Pin{N: "GPIO24", Num: 24}
	echo := &echoPin{Pin: &gpiotest.Pin{N: "GPIO23", Num: 23}, riseAt: 3, fallAt: 50}

	s, err := NewDistanceSensor(trig, echo, 50*time.Millisecond)
	require.NoError(t, err)

	d, err := s.Measure(context.Background())
	require.NoError(t, err)
	require.GreaterOrEqual(t, d, 0.0)
	require.Less(t, d, Distance(50*time.Millisecond))
	require.Equal(t, gpio.Low, trig.Read())
}

func TestMeasureTimesOutWhenEchoNeverRises(t *testing.T) {
	trig := &gpiotest.Pin{N: "GPIO24", Num: 24}
	echo := &echoPin{Pin: &gpiotest.Pin{N: "GPIO23", Num: 23}, riseAt: -1, fallAt: -1}

	s, err := NewDistanceSensor(trig, echo, 20*time.Millisecond)
	require.NoError(t, err)

	start := time.Now()
	_, err = s.Measure(context.Background())
	require.ErrorIs(t, err, ErrSensorTimeout)
	require.Less(t, time.Since(start), time.Second)
}

func TestMeasureTimesOutWhenEchoNeverFalls(t *testing.T) {
	trig := &gpiotest.Pin{N: "GPIO24", Num: 24}
	echo := &echoPin{Pin: &gpiotest.Pin{N: "GPIO23", Num: 23}, riseAt: 1, fallAt: -1}

	s, err := NewDistanceSensor(trig, echo, 20*time.Millisecond)
	require.NoError(t, err)

	_, err = s.Measure(context.Background())
	require.ErrorIs(t, err, ErrSensorTimeout)
}

func TestMeasureHonoursCancelledContext(t *testing.T) {
	trig := &gpiotest.Pin{N: "GPIO24", Num: 24}
	echo := &echoPin{Pin: &gpiotest.Pin{N: "GPIO23", Num: 23}, riseAt: -1, fallAt: -1}
	s, err := NewDistanceSensor(trig, echo, time.Second)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Measure(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestGateOpenSequence(t *testing.T) {
	pin := &servoPin{Pin: &gpiotest.Pin{N: "GPIO19", Num: 19}}
	g, err := NewGate("trash", pin, fastTiming())
	require.NoError(t, err)
	require.Equal(t, Closed, g.Position())

	require.NoError(t, g.Open(context.Background()))
	require.Equal(t, Open, g.Position())

	duties, halts := pin.snapshot()
	require.Equal(t, []gpio.Duty{DutyPercent(DutyNeutral), DutyPercent(DutyOpen)}, duties)
	require.Equal(t, 2, halts) // one at construction, one after the sequence

	// idempotent: a second open still runs the full sequence and ends open
	require.NoError(t, g.Open(context.Background()))
	require.Equal(t, Open, g.Position())
	duties, _ = pin.snapshot()
	require.Len(t, duties, 4)
}

func TestGateDepositEndsClosed(t *testing.T) {
	pin := &servoPin{Pin: &gpiotest.Pin{N: "GPIO26", Num: 26}}
	g, err := NewGate("paper", pin, fastTiming())
	require.NoError(t, err)

	require.NoError(t, g.Deposit(context.Background(), 10*time.Millisecond))
	require.Equal(t, Closed, g.Position())

	duties, _ := pin.snapshot()
	require.Equal(t, []gpio.Duty{
		DutyPercent(DutyNeutral),
		DutyPercent(DutyOpen),
		DutyPercent(DutyClosed),
	}, duties)
}

func TestGateHaltsOnCancel(t *testing.T) {
	pin := &servoPin{Pin: &gpiotest.Pin{N: "GPIO19", Num: 19}}
	g, err := NewGate("trash", pin, fastTiming())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Deposit(ctx, time.Minute) }()

	require.Eventually(t, func() bool { return g.Position() == Open }, time.Second, time.Millisecond)
	cancel()

	err = <-done
	require.True(t, errors.Is(err, context.Canceled))
	_, halts := pin.snapshot()
	require.Equal(t, 2, halts)
}

func TestGateLastCommandWins(t *testing.T) {
	pin := &servoPin{Pin: &gpiotest.Pin{N: "GPIO19", Num: 19}}
	g, err := NewGate("trash", pin, fastTiming())
	require.NoError(t, err)

	deposit := make(chan error, 1)
	go func() { deposit <- g.Deposit(context.Background(), 30*time.Millisecond) }()
	require.Eventually(t, func() bool { return g.Position() == Open }, time.Second, time.Millisecond)

	// issued while the deposit is holding the gate open
	require.NoError(t, g.Open(context.Background()))
	require.NoError(t, <-deposit)
	require.Equal(t, Open, g.Position())

	duties, _ := pin.snapshot()
	require.Equal(t, []gpio.Duty{
		DutyPercent(DutyNeutral), DutyPercent(DutyOpen), DutyPercent(DutyClosed),
		DutyPercent(DutyNeutral), DutyPercent(DutyOpen),
	}, duties)
}

type levelPin struct {
	*gpiotest.Pin
	mu sync.Mutex
	l  gpio.Level
}

func (p *levelPin) set(l gpio.Level) {
	p.mu.Lock()
	p.l = l
	p.mu.Unlock()
}

func (p *levelPin) Read() gpio.Level {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.l
}

func TestButtonEmitsRisingEdges(t *testing.T) {
	pin := &levelPin{Pin: &gpiotest.Pin{N: "GPIO27", Num: 27}}
	b, err := NewButton(pin, time.Millisecond, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan time.Time, 8)
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for p := range b.Presses(ctx) {
			got <- p
		}
	}()

	pin.set(gpio.High)
	select {
	case <-got:
	case <-time.After(time.Second):
		t.Fatal("no press")
	}

	// held down: no second press until released
	select {
	case <-got:
		t.Fatal("press while held")
	case <-time.After(20 * time.Millisecond):
	}

	pin.set(gpio.Low)
	time.Sleep(10 * time.Millisecond)
	pin.set(gpio.High)
	select {
	case <-got:
	case <-time.After(time.Second):
		t.Fatal("no second press")
	}

	cancel()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("presses channel not closed")
	}
}

func TestButtonHoldOffSuppressesBounce(t *testing.T) {
	pin := &levelPin{Pin: &gpiotest.Pin{N: "GPIO27", Num: 27}}
	b, err := NewButton(pin, time.Millisecond, time.Hour)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan time.Time, 8)
	go func() {
		for p := range b.Presses(ctx) {
			got <- p
		}
	}()

	for i := 0; i < 3; i++ {
		pin.set(gpio.High)
		time.Sleep(5 * time.Millisecond)
		pin.set(gpio.Low)
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(10 * time.Millisecond)
	require.Len(t, got, 1)
}
