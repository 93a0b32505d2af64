package message

type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusFailed    Status = "failed"
	StatusDeleted   Status = "deleted"
)

func (s Status) Valid() bool {
	switch s {
	case StatusSent, StatusDelivered, StatusRead, StatusFailed, StatusDeleted:
		return true
	}
	return false
}

// CanTransition reports whether the read-state machine allows from -> to.
// Repeating a state is allowed so that read transitions stay idempotent.
// Deleted is reachable from any live state and is terminal.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	if from == StatusDeleted {
		return false
	}
	switch to {
	case StatusDelivered:
		return from == StatusSent
	case StatusRead:
		return from == StatusSent || from == StatusDelivered
	case StatusDeleted:
		return true
	case StatusFailed:
		return from == StatusSent
	}
	return false
}
