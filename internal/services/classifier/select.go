package classifier

import (
	"github.com/LeonardoBeccarini/smartbin/internal/model"
)

// Label is one detection returned by the remote model.
type Label struct {
	Name       string
	Confidence float64
}

// SelectLabel picks the detection with the highest confidence strictly above
// threshold; on ties the first one wins. Names outside the category set, or no
// qualifying detection at all, give an unknown label.
func SelectLabel(labels []Label, threshold float64) model.ClassificationResult {
	best := -1
	for i, l := range labels {
		if l.Confidence <= threshold {
			continue
		}
		if best < 0 || l.Confidence > labels[best].Confidence {
			best = i
		}
	}
	if best < 0 {
		return model.Unclassified()
	}
	cat, ok := model.ParseCategory(labels[best].Name)
	if !ok {
		return model.ClassificationResult{Label: model.CategoryUnknown, Confidence: labels[best].Confidence}
	}
	return model.ClassificationResult{Label: cat, Confidence: labels[best].Confidence}
}
