package smartbin

import "errors"

var (
	// ErrUnknownCategory: the category is not one of the enabled compartments.
	ErrUnknownCategory = errors.New("smartbin: unknown category")
	ErrNoCompartments  = errors.New("smartbin: no compartments enabled")
	ErrCommandDropped  = errors.New("smartbin: command queue full")
)
