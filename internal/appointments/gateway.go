package appointments

import (
	"context"

	"github.com/wolfman30/carebook/internal/booking"
	"github.com/wolfman30/carebook/internal/session"
)

// MutationGateway applies lifecycle transitions remotely and returns the
// updated record.
type MutationGateway interface {
	ConfirmAppointment(ctx context.Context, id string) (*booking.Appointment, error)
	CancelAppointment(ctx context.Context, id, reason string) (*booking.Appointment, error)
	CompleteAppointment(ctx context.Context, id string) (*booking.Appointment, error)
	MarkNoShow(ctx context.Context, id string) (*booking.Appointment, error)
}

// ListGateway lists appointments visible to the caller.
type ListGateway interface {
	ListAppointments(ctx context.Context, filter Filter) (Page, error)
	ListUpcoming(ctx context.Context, filter Filter) (Page, error)
}

// Filter narrows a listing. Dates are YYYY-MM-DD; zero values are omitted.
type Filter struct {
	From           string
	To             string
	Status         booking.Status
	ProfessionalID string
	PatientID      string
	Page           int
	Limit          int
}

// Page is one listing response.
type Page struct {
	Items []booking.Appointment `json:"items"`
	Total int                   `json:"total"`
}

// Scope tells the manager whose appointments it is looking at.
// session.Provider satisfies it.
type Scope interface {
	ActiveRole() session.Role
	CurrentProfessionalID() string
	CurrentPatientID() string
}

// scoped fills the entity id of the acting role when the caller left it
// empty. Admins see everything they ask for.
func scoped(s Scope, f Filter) Filter {
	if s == nil {
		return f
	}
	switch s.ActiveRole() {
	case session.RoleProfessional:
		if f.ProfessionalID == "" {
			f.ProfessionalID = s.CurrentProfessionalID()
		}
	case session.RolePatient:
		if f.PatientID == "" {
			f.PatientID = s.CurrentPatientID()
		}
	}
	return f
}
