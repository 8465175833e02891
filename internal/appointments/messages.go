package appointments

import "fmt"

// Messages is the text catalog for manager outcomes.
type Messages struct {
	LoadFailed       string
	Confirmed        string
	Cancelled        string
	Completed        string
	NoShow           string
	TransitionFailed string // %s: action
	InProgress       string
	ReasonTooLong    string // %d: limit
	MissingID        string
}

// DefaultMessages is the English catalog.
var DefaultMessages = Messages{
	LoadFailed:       "Could not load appointments. Please try again.",
	Confirmed:        "Appointment confirmed.",
	Cancelled:        "Appointment cancelled.",
	Completed:        "Appointment marked as completed.",
	NoShow:           "Appointment marked as no-show.",
	TransitionFailed: "Could not %s the appointment. Please try again.",
	InProgress:       "This appointment is already being updated.",
	ReasonTooLong:    "The cancellation reason must be at most %d characters.",
	MissingID:        "No appointment selected.",
}

func (m Messages) success(a Action) string {
	switch a {
	case ActionConfirm:
		return m.Confirmed
	case ActionCancel:
		return m.Cancelled
	case ActionComplete:
		return m.Completed
	default:
		return m.NoShow
	}
}

func render(tmpl string, args ...any) string {
	if len(args) == 0 {
		return tmpl
	}
	return fmt.Sprintf(tmpl, args...)
}
