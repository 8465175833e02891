package schedule

import "fmt"

// Messages renders editor outcomes for the notification sink.
type Messages struct {
	MissingProfessional string
	NotConfigured       string
	NotLoaded           string
	LoadFailed          string
	ScheduleSaved       string
	ScheduleSaveFailed  string
	Invalid             string // %s: validation detail
	AbsenceCreated      string // %s: absence type
	AbsenceCreateFailed string
	AbsenceDeleted      string
	AbsenceDeleteFailed string
}

// DefaultMessages is the English catalog.
var DefaultMessages = Messages{
	MissingProfessional: "Select a professional profile first.",
	NotConfigured:       "No weekly schedule configured yet. A default template has been prepared.",
	NotLoaded:           "Load the weekly schedule before saving it.",
	LoadFailed:          "Could not load availability. Please try again.",
	ScheduleSaved:       "Weekly schedule saved.",
	ScheduleSaveFailed:  "Could not save the weekly schedule. Please try again.",
	Invalid:             "Please fix the schedule: %s",
	AbsenceCreated:      "Absence (%s) added.",
	AbsenceCreateFailed: "Could not add the absence. Please try again.",
	AbsenceDeleted:      "Absence removed.",
	AbsenceDeleteFailed: "Could not remove the absence. Please try again.",
}

func render(tmpl string, args ...any) string {
	if len(args) == 0 {
		return tmpl
	}
	return fmt.Sprintf(tmpl, args...)
}
