package messages

import (
	"github.com/LeonardoBeccarini/smartbin/internal/model/entities"
)

// FullnessEvent reports the fill level of one compartment after a deposit.
type FullnessEvent struct {
	BinID      string            `json:"bin_id"`
	TrashType  entities.Category `json:"trash_type"`
	Percentage float64           `json:"percentage"`
}
