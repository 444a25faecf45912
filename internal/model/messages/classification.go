package messages

import (
	"github.com/LeonardoBeccarini/smartbin/internal/model/entities"
)

// ImageRef points at a capture already staged in the object store.
type ImageRef struct {
	Bucket string
	Key    string
}

// ClassificationResult is produced once per capture. Confidence is 0..100.
type ClassificationResult struct {
	Label      entities.Category
	Confidence float64
}

// Unclassified is the result used whenever the classifier gives no answer.
func Unclassified() ClassificationResult {
	return ClassificationResult{Label: entities.CategoryUnknown}
}
