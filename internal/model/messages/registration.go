package messages

// RegistrationEvent is published once, on bin/{id}/add, when a new device
// identity is generated.
type RegistrationEvent struct {
	BinID string `json:"bin_id"`
}
