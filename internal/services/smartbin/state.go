package smartbin

// State of the press-triggered cycle.
type State int32

const (
	StateIdle State = iota
	StateCapturing
	StateClassifying
	StateActuating
	StateMeasuring
	StateReporting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateClassifying:
		return "classifying"
	case StateActuating:
		return "actuating"
	case StateMeasuring:
		return "measuring"
	case StateReporting:
		return "reporting"
	default:
		return "invalid"
	}
}
