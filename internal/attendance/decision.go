package attendance

import (
	"time"

	"presence/internal/apperr"
)

// ErrNotCheckedIn rejects a check-out for a person with no record today.
var ErrNotCheckedIn = apperr.BadRequest("NotCheckedIn", "user has not checked in today")

// Window splits the day. Both values are offsets from local midnight.
type Window struct {
	CheckIn  time.Duration
	CheckOut time.Duration
}

// Action is what a recognition event amounts to.
type Action int

const (
	ActionCheckIn Action = iota
	ActionCheckOut
	ActionAlreadyCheckedIn
	ActionAlreadyCheckedOut
)

func (a Action) String() string {
	switch a {
	case ActionCheckIn:
		return "checked_in"
	case ActionCheckOut:
		return "checked_out"
	case ActionAlreadyCheckedIn:
		return "already_checked_in"
	case ActionAlreadyCheckedOut:
		return "already_checked_out"
	default:
		return "unknown"
	}
}

// Changed reports whether the action writes anything.
func (a Action) Changed() bool {
	return a == ActionCheckIn || a == ActionCheckOut
}

// Decision is the outcome of Decide. For no-ops Record is the existing record
// unchanged; otherwise it is the record to persist.
type Decision struct {
	Action Action
	Record Record
}

// Decide classifies a recognition at now for a person whose record for the
// same day is existing (nil when there is none). It performs no I/O.
//
// Events up to and including the check-out threshold are check-ins; later
// events are check-outs. Thresholds are exclusive: an event exactly at the
// check-in threshold is still on time.
func Decide(now time.Time, w Window, existing *Record) (Decision, error) {
	tod := TimeOfDay(now)

	if tod <= w.CheckOut {
		if existing != nil && existing.CheckIn != nil {
			return Decision{Action: ActionAlreadyCheckedIn, Record: *existing}, nil
		}
		status := StatusPresent
		if tod > w.CheckIn {
			status = StatusLate
		}
		at := now
		return Decision{
			Action: ActionCheckIn,
			Record: Record{
				Date:    DateOf(now),
				Status:  status,
				CheckIn: &at,
			},
		}, nil
	}

	if existing == nil {
		return Decision{}, ErrNotCheckedIn
	}
	if existing.CheckOut != nil {
		return Decision{Action: ActionAlreadyCheckedOut, Record: *existing}, nil
	}
	rec := *existing
	at := now
	rec.CheckOut = &at
	return Decision{Action: ActionCheckOut, Record: rec}, nil
}

// TimeOfDay returns the offset of t from midnight in t's location.
func TimeOfDay(t time.Time) time.Duration {
	h, m, s := t.Clock()
	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(t.Nanosecond())
}

// DateOf truncates t to its calendar day in t's location, expressed as
// midnight UTC so it round-trips through a DATE column.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
