package bin_simulator

import (
	"context"
	"time"
)

// Presses emits a simulated button press every interval until ctx ends. A
// press is skipped if the consumer is still busy with the previous one, as a
// real button pressed mid-cycle would be.
func Presses(ctx context.Context, interval time.Duration) <-chan time.Time {
	out := make(chan time.Time)
	if interval <= 0 {
		close(out)
		return out
	}
	go func() {
		defer close(out)
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-t.C:
				select {
				case out <- now:
				default:
				}
			}
		}
	}()
	return out
}
