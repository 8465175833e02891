// Package booking coordinates a single booking flow: pick a professional
// and a date, load the computed slots, hold one selection and submit it
// against the directory, which may reject it if someone else booked first.
package booking

import "context"

// SlotGateway returns the computed slots for a professional on a date
// (YYYY-MM-DD). Implementations must be side-effect free.
type SlotGateway interface {
	GetAvailabilitySlots(ctx context.Context, professionalID, date string, durationMinutes int) ([]TimeSlot, error)
}

// BookingGateway creates appointments. A taken slot is reported with an
// error matching domainerr.ErrTimeSlotUnavailable.
type BookingGateway interface {
	CreateAppointment(ctx context.Context, req CreateRequest) (*Appointment, error)
}

// DurationPreferences yields a user's preferred slot length in minutes.
// ok is false when the user never stored one.
type DurationPreferences interface {
	PreferredDuration(ctx context.Context, userID string) (minutes int, ok bool, err error)
}

// UserSource identifies who is booking. session.Provider satisfies it.
type UserSource interface {
	CurrentUserID() string
}
