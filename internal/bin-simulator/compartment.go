package bin_simulator

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"
)

// ====== Tunables ======
const (
	// altezza di un oggetto depositato, in cm
	itemMin = 0.5
	itemMax = 2.5

	// rumore del sensore ultrasonico, ± cm
	sensorNoise = 0.3

	// tempo di corsa del servo simulato
	defaultTravel = 150 * time.Millisecond
)

// Compartment simulates one waste slot: a gate and a ranging probe looking
// at a pile that grows with every deposit.
type Compartment struct {
	// seq serialises whole gate sequences, so the last command wins
	seq sync.Mutex

	mu     sync.Mutex
	name   string
	height float64 // cm
	fill   float64 // cm di rifiuti accumulati
	open   bool
	travel time.Duration
	rng    *rand.Rand

	deposits int
}

func NewCompartment(name string, height float64, seed int64) *Compartment {
	return &Compartment{
		name:   name,
		height: math.Max(1, height),
		travel: defaultTravel,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// WithTravel overrides the simulated servo travel time.
func (c *Compartment) WithTravel(d time.Duration) *Compartment {
	c.mu.Lock()
	c.travel = d
	c.mu.Unlock()
	return c
}

func (c *Compartment) Open(ctx context.Context) error {
	c.seq.Lock()
	defer c.seq.Unlock()
	return c.move(ctx, true)
}

func (c *Compartment) Close(ctx context.Context) error {
	c.seq.Lock()
	defer c.seq.Unlock()
	return c.move(ctx, false)
}

// Deposit opens, waits for the item, drops it on the pile and closes. A
// command issued meanwhile runs after the gate has closed.
func (c *Compartment) Deposit(ctx context.Context, window time.Duration) error {
	c.seq.Lock()
	defer c.seq.Unlock()
	if err := c.move(ctx, true); err != nil {
		return err
	}
	if err := sleep(ctx, window); err != nil {
		_ = c.move(context.Background(), false)
		return err
	}
	c.mu.Lock()
	c.fill = math.Min(c.height, c.fill+itemMin+c.rng.Float64()*(itemMax-itemMin))
	c.deposits++
	c.mu.Unlock()
	return c.move(ctx, false)
}

func (c *Compartment) move(ctx context.Context, open bool) error {
	c.mu.Lock()
	travel := c.travel
	c.mu.Unlock()
	if err := sleep(ctx, travel); err != nil {
		return err
	}
	c.mu.Lock()
	c.open = open
	c.mu.Unlock()
	return nil
}

// Measure returns the lid-to-pile distance with a little noise.
func (c *Compartment) Measure(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	noise := (c.rng.Float64()*2 - 1) * sensorNoise
	return math.Max(0, c.height-c.fill+noise), nil
}

// Empty simulates the bin being emptied by the collection service.
func (c *Compartment) Empty() {
	c.mu.Lock()
	c.fill = 0
	c.mu.Unlock()
}

func (c *Compartment) Fill() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fill
}

func (c *Compartment) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *Compartment) Deposits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deposits
}

func (c *Compartment) Name() string { return c.name }

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
