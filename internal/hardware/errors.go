package hardware

import "errors"

var (
	// ErrSensorTimeout: the echo line never changed level within the timeout.
	ErrSensorTimeout = errors.New("hardware: sensor timeout")
	ErrActuator      = errors.New("hardware: actuator error")
)
