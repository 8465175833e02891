package booking

import (
	"time"

	"github.com/wolfman30/carebook/internal/domainerr"
)

// TimeSlot is one bookable interval as computed by the directory. It is
// only meaningful for the (professional, date, duration) query that
// produced it.
type TimeSlot struct {
	StartUTC    time.Time `json:"startUtc"`
	StartTime   string    `json:"startTime,omitempty"`
	EndTime     string    `json:"endTime,omitempty"`
	Duration    int       `json:"duration"`
	IsAvailable bool      `json:"isAvailable"`
}

// Label is the wall-clock start shown to users.
func (s TimeSlot) Label() string {
	return s.LabelIn(time.UTC)
}

// LabelIn prefers the server supplied StartTime and otherwise renders
// StartUTC in loc.
func (s TimeSlot) LabelIn(loc *time.Location) string {
	if s.StartTime != "" {
		return s.StartTime
	}
	if s.StartUTC.IsZero() {
		return ""
	}
	if loc == nil {
		loc = time.UTC
	}
	return s.StartUTC.In(loc).Format("15:04")
}

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
	StatusCompleted Status = "COMPLETED"
	StatusNoShow    Status = "NO_SHOW"
)

// IsTerminal reports whether no further transition is offered.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

// Appointment mirrors the directory's appointment record.
type Appointment struct {
	ID                 string `json:"id"`
	ProfessionalID     string `json:"professionalId"`
	PatientID          string `json:"patientId"`
	Date               string `json:"date"`
	StartTime          string `json:"startTime"`
	EndTime            string `json:"endTime"`
	Notes              string `json:"notes,omitempty"`
	Status             Status `json:"status"`
	CancellationReason string `json:"cancellationReason,omitempty"`
}

// CreateRequest is the booking submission payload.
type CreateRequest struct {
	ProfessionalID string    `json:"professionalId"`
	StartTimeUTC   time.Time `json:"startTimeUtc"`
	Notes          string    `json:"notes,omitempty"`
}

// MaxNotesLength bounds the free-text notes of a booking, in runes.
const MaxNotesLength = 500

// DefaultDurationMinutes is used when neither the caller nor the user's
// stored preference names a slot length.
const DefaultDurationMinutes = 30

// State is a point-in-time copy of a coordinator's flow.
type State struct {
	ProfessionalID   string
	ProfessionalName string
	SelectedDate     string
	SelectedSlot     *TimeSlot
	DurationMinutes  int
	Notes            string
	AvailableSlots   []TimeSlot
	IsLoadingSlots   bool
	IsSubmitting     bool
	LastError        *domainerr.Error
	CanSubmit        bool
}

// SubmitResult tells the caller what to do after a successful booking.
// The coordinator never navigates by itself.
type SubmitResult struct {
	Appointment            *Appointment
	NavigateToAppointments bool
}
