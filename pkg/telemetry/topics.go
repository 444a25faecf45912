package telemetry

import "strings"

// Topics are namespaced by device identity.
type Topics struct {
	Add      string
	Action   string
	Fullness string
}

const topicTmpl = "bin/{id}/"

func TopicsFor(binID string) Topics {
	base := strings.Replace(topicTmpl, "{id}", binID, 1)
	return Topics{
		Add:      base + "add",
		Action:   base + "action",
		Fullness: base + "fullness",
	}
}
