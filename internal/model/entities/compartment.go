package entities

// CompartmentPins is the wiring of one compartment: an ultrasonic ranging
// probe (trigger/echo) and a gate servo. Pin numbers are BCM; 0 = not wired.
type CompartmentPins struct {
	Category   Category `json:"category"`
	TriggerPin int      `json:"trigger_pin"`
	EchoPin    int      `json:"echo_pin"`
	ServoPin   int      `json:"servo_pin"`
}

// Wired reports whether every pin of the compartment has been assigned.
func (p CompartmentPins) Wired() bool {
	return p.TriggerPin > 0 && p.EchoPin > 0 && p.ServoPin > 0
}

// DefaultPinTable is the superset of compartments the bin chassis supports.
// Only trash and paper are wired on the reference build.
func DefaultPinTable() []CompartmentPins {
	return []CompartmentPins{
		{Category: CategoryTrash, TriggerPin: 24, EchoPin: 23, ServoPin: 19},
		{Category: CategoryPaper, TriggerPin: 21, EchoPin: 20, ServoPin: 26},
		{Category: CategoryPlastic},
		{Category: CategoryMetal},
		{Category: CategoryGlass},
		{Category: CategoryCardboard},
	}
}

// DefaultButtonPin is the deposit button line (pull-down, HIGH = pressed).
const DefaultButtonPin = 27
