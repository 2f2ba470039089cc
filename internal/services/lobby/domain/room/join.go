package room

// JoinResult is the outcome of a join attempt. Full and disbanded rooms are
// expected outcomes, not faults, so they travel as values rather than errors.
type JoinResult int

const (
	// JoinResultUnspecified represents an invalid join outcome value.
	JoinResultUnspecified JoinResult = iota
	// JoinResultOK indicates the caller holds a seat in the room.
	JoinResultOK
	// JoinResultRoomFull indicates every seat was already taken.
	JoinResultRoomFull
	// JoinResultDisbanded indicates the room already left the waiting state.
	JoinResultDisbanded
	// JoinResultOtherError indicates the room could not be joined for any
	// other reason, such as the room never existing.
	JoinResultOtherError
)

// DecideJoin evaluates a join attempt against a locked room snapshot.
// Order matters: a room that left the waiting state reports disbanded
// even when it is also full.
func DecideJoin(r Room) JoinResult {
	if r.Status != StatusWaiting {
		return JoinResultDisbanded
	}
	if r.JoinedCount >= r.MaxCount {
		return JoinResultRoomFull
	}
	return JoinResultOK
}

// JoinResultLabel returns a stable label for a join outcome.
func JoinResultLabel(result JoinResult) string {
	switch result {
	case JoinResultOK:
		return "OK"
	case JoinResultRoomFull:
		return "ROOM_FULL"
	case JoinResultDisbanded:
		return "DISBANDED"
	case JoinResultOtherError:
		return "OTHER_ERROR"
	default:
		return "UNSPECIFIED"
	}
}
