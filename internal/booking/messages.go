package booking

import "fmt"

// Messages is the text catalog for coordinator outcomes. The coordinator
// picks the entry and its arguments; wording lives here.
type Messages struct {
	MissingProfessional string
	InvalidDate         string // %q: date as given
	NoSlotsAvailable    string // %s: date
	SlotsLoadFailed     string
	SlotUnavailable     string // %s: slot label
	IncompleteSelection string
	InvalidSlot         string // %s: slot label
	NotesTooLong        string // %d: limit
	Booked              string // %s: slot label
	SlotTaken           string // %s: slot label
	SubmitFailed        string
}

// DefaultMessages is the English catalog.
var DefaultMessages = Messages{
	MissingProfessional: "Select a professional before choosing a date.",
	InvalidDate:         "%q is not a valid date (expected YYYY-MM-DD).",
	NoSlotsAvailable:    "No available times on %s. Try another date.",
	SlotsLoadFailed:     "Could not load available times. Please try again.",
	SlotUnavailable:     "The %s slot is not available.",
	IncompleteSelection: "Select a date and an available time before booking.",
	InvalidSlot:         "The %s slot has no readable start time. Please pick another one.",
	NotesTooLong:        "Notes must be at most %d characters.",
	Booked:              "Appointment requested for %s.",
	SlotTaken:           "The %s slot was just taken. Available times have been refreshed.",
	SubmitFailed:        "Could not book the appointment. Please try again.",
}

func render(tmpl string, args ...any) string {
	if len(args) == 0 {
		return tmpl
	}
	return fmt.Sprintf(tmpl, args...)
}
