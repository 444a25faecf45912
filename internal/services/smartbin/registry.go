package smartbin

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/LeonardoBeccarini/smartbin/internal/model"
)

// Gate moves one compartment flap. Implementations serialise their own
// sequences.
type Gate interface {
	Open(ctx context.Context) error
	Close(ctx context.Context) error
	Deposit(ctx context.Context, window time.Duration) error
}

// RangeSensor measures the distance from the lid to the waste, in cm.
type RangeSensor interface {
	Measure(ctx context.Context) (float64, error)
}

// Compartment is one enabled waste slot.
type Compartment struct {
	Category model.Category
	Gate     Gate
	Sensor   RangeSensor
}

// Registry is the immutable set of enabled compartments.
type Registry struct {
	order         []model.Category
	byCategory    map[model.Category]Compartment
	fallback      model.Category
	minConfidence float64
}

// NewRegistry fails if a category repeats, a handle is missing or the
// fallback compartment is not among the enabled ones.
func NewRegistry(compartments []Compartment, fallback model.Category, minConfidence float64) (*Registry, error) {
	if len(compartments) == 0 {
		return nil, ErrNoCompartments
	}
	r := &Registry{
		byCategory:    make(map[model.Category]Compartment, len(compartments)),
		fallback:      fallback,
		minConfidence: minConfidence,
	}
	for _, c := range compartments {
		if c.Category == model.CategoryUnknown {
			return nil, fmt.Errorf("smartbin: compartment without a category")
		}
		if _, dup := r.byCategory[c.Category]; dup {
			return nil, fmt.Errorf("smartbin: duplicate compartment %s", c.Category)
		}
		if c.Gate == nil || c.Sensor == nil {
			return nil, fmt.Errorf("smartbin: compartment %s is missing its gate or sensor", c.Category)
		}
		r.byCategory[c.Category] = c
		r.order = append(r.order, c.Category)
	}
	sort.Slice(r.order, func(i, j int) bool { return r.order[i] < r.order[j] })

	if _, ok := r.byCategory[fallback]; !ok {
		return nil, fmt.Errorf("%w: fallback %s is not enabled", ErrUnknownCategory, fallback)
	}
	return r, nil
}

// Categories returns the enabled categories sorted by category value,
// whatever the order they were configured in.
func (r *Registry) Categories() []model.Category {
	return append([]model.Category(nil), r.order...)
}

func (r *Registry) Get(c model.Category) (Compartment, error) {
	comp, ok := r.byCategory[c]
	if !ok {
		return Compartment{}, fmt.Errorf("%w: %s", ErrUnknownCategory, c)
	}
	return comp, nil
}

func (r *Registry) Fallback() model.Category { return r.fallback }

// Resolve maps a classification to the compartment that receives the item.
// Unknown, low-confidence and disabled labels all go to the fallback.
func (r *Registry) Resolve(res model.ClassificationResult) model.Category {
	if res.Label == model.CategoryUnknown || res.Confidence <= r.minConfidence {
		return r.fallback
	}
	if _, ok := r.byCategory[res.Label]; !ok {
		return r.fallback
	}
	return res.Label
}

// EnabledPins filters the chassis pin table down to the enabled categories.
// Every enabled category must be present and fully wired.
func EnabledPins(table []model.CompartmentPins, enabled []model.Category) ([]model.CompartmentPins, error) {
	if len(enabled) == 0 {
		return nil, ErrNoCompartments
	}
	byCat := make(map[model.Category]model.CompartmentPins, len(table))
	for _, p := range table {
		byCat[p.Category] = p
	}
	out := make([]model.CompartmentPins, 0, len(enabled))
	seen := make(map[model.Category]bool, len(enabled))
	for _, c := range enabled {
		if seen[c] {
			continue
		}
		seen[c] = true
		p, ok := byCat[c]
		if !ok {
			return nil, fmt.Errorf("%w: %s has no pin assignment", ErrUnknownCategory, c)
		}
		if !p.Wired() {
			return nil, fmt.Errorf("smartbin: compartment %s is enabled but not wired", c)
		}
		out = append(out, p)
	}
	return out, nil
}
