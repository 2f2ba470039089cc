package room

// Status describes the lifecycle of a room.
type Status int

const (
	// StatusUnspecified represents an invalid room status value.
	StatusUnspecified Status = iota
	// StatusWaiting indicates the room is gathering members.
	StatusWaiting
	// StatusLive indicates the room's session is in progress.
	StatusLive
	// StatusDissolved indicates the room is terminally closed.
	StatusDissolved
)

// IsStatusTransitionAllowed reports whether a status transition is permitted.
// Dissolution is reachable from waiting and live; nothing leaves dissolved.
func IsStatusTransitionAllowed(from, to Status) bool {
	switch from {
	case StatusWaiting:
		return to == StatusLive || to == StatusDissolved
	case StatusLive:
		return to == StatusDissolved
	default:
		return false
	}
}

// StatusLabel returns a stable label for a room status.
func StatusLabel(status Status) string {
	switch status {
	case StatusWaiting:
		return "WAITING"
	case StatusLive:
		return "LIVE"
	case StatusDissolved:
		return "DISSOLVED"
	default:
		return "UNSPECIFIED"
	}
}
