package messages

// Action is an operator command for every gate of the bin.
type Action string

const (
	ActionOpen  Action = "open"
	ActionClose Action = "close"
)

// RemoteCommand arrives on bin/{id}/action as a bare UTF-8 string.
type RemoteCommand struct {
	Action Action
}

// ParseRemoteCommand accepts only the exact payloads "open" and "close".
func ParseRemoteCommand(payload []byte) (RemoteCommand, bool) {
	switch a := Action(payload); a {
	case ActionOpen, ActionClose:
		return RemoteCommand{Action: a}, true
	default:
		return RemoteCommand{}, false
	}
}
