// Package appointments tracks already-booked appointments for the acting
// role and applies lifecycle transitions to them.
package appointments

import "github.com/wolfman30/carebook/internal/booking"

// Action is a lifecycle transition.
type Action string

const (
	ActionConfirm  Action = "confirm"
	ActionCancel   Action = "cancel"
	ActionComplete Action = "complete"
	ActionNoShow   Action = "no-show"
)

// ActionsFor lists the transitions to offer for an appointment in status s:
//
//	PENDING   -> confirm, cancel
//	CONFIRMED -> cancel, complete, no-show
//
// Terminal statuses offer nothing. The directory is the only enforcer;
// Manager itself does not consult this table.
func ActionsFor(s booking.Status) []Action {
	switch s {
	case booking.StatusPending:
		return []Action{ActionConfirm, ActionCancel}
	case booking.StatusConfirmed:
		return []Action{ActionCancel, ActionComplete, ActionNoShow}
	}
	return nil
}

// Allows reports whether a is offered for status s.
func Allows(s booking.Status, a Action) bool {
	for _, offered := range ActionsFor(s) {
		if offered == a {
			return true
		}
	}
	return false
}

// Target is the status an appointment ends in after a succeeds.
func (a Action) Target() booking.Status {
	switch a {
	case ActionConfirm:
		return booking.StatusConfirmed
	case ActionCancel:
		return booking.StatusCancelled
	case ActionComplete:
		return booking.StatusCompleted
	case ActionNoShow:
		return booking.StatusNoShow
	}
	return ""
}

// ParseAction accepts the action names used on the command line.
func ParseAction(s string) (Action, bool) {
	switch a := Action(s); a {
	case ActionConfirm, ActionCancel, ActionComplete, ActionNoShow:
		return a, true
	}
	return "", false
}
