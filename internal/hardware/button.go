package hardware

import (
	"context"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
)

const DefaultButtonPoll = 20 * time.Millisecond

// Button watches the deposit button with a sleep-based poll.
type Button struct {
	pin     gpio.PinIn
	poll    time.Duration
	holdOff time.Duration
}

// NewButton configures pin as a pulled-down input. Rising edges closer than
// holdOff to the previous press are ignored.
func NewButton(pin gpio.PinIn, poll, holdOff time.Duration) (*Button, error) {
	if poll <= 0 {
		poll = DefaultButtonPoll
	}
	if err := pin.In(gpio.PullDown, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("hardware: button %s: %w", pin, err)
	}
	return &Button{pin: pin, poll: poll, holdOff: holdOff}, nil
}

// Presses emits the time of every press until ctx ends. Sends never block:
// a press arriving while nobody is receiving is dropped.
func (b *Button) Presses(ctx context.Context) <-chan time.Time {
	out := make(chan time.Time)
	go func() {
		defer close(out)
		t := time.NewTicker(b.poll)
		defer t.Stop()

		prev := gpio.Low
		var last time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-t.C:
				lvl := b.pin.Read()
				if lvl == gpio.High && prev == gpio.Low && now.Sub(last) >= b.holdOff {
					last = now
					select {
					case out <- now:
					default:
					}
				}
				prev = lvl
			}
		}
	}()
	return out
}
