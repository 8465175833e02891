package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/wolfman30/carebook/internal/appointments"
	"github.com/wolfman30/carebook/internal/booking"
	"github.com/wolfman30/carebook/internal/domainerr"
	"github.com/wolfman30/carebook/internal/schedule"
	"github.com/wolfman30/carebook/internal/session"
)

var (
	_ booking.SlotGateway          = (*Client)(nil)
	_ booking.BookingGateway       = (*Client)(nil)
	_ appointments.MutationGateway = (*Client)(nil)
	_ appointments.ListGateway     = (*Client)(nil)
	_ schedule.ScheduleGateway     = (*Client)(nil)
	_ schedule.AbsenceGateway      = (*Client)(nil)
	_ session.Refresher            = (*Client)(nil)
)

// GetAvailabilitySlots lists the computed slots of a professional on date.
func (c *Client) GetAvailabilitySlots(ctx context.Context, professionalID, date string, durationMinutes int) ([]booking.TimeSlot, error) {
	q := url.Values{}
	q.Set("date", date)
	if durationMinutes > 0 {
		q.Set("duration", strconv.Itoa(durationMinutes))
	}
	var resp struct {
		Slots []booking.TimeSlot `json:"slots"`
	}
	err := c.do(ctx, request{
		op:     "get_slots",
		method: http.MethodGet,
		path:   fmt.Sprintf("/professionals/%s/availability/slots", escape(professionalID)),
		query:  q,
		out:    &resp,
	})
	if err != nil {
		return nil, err
	}
	return resp.Slots, nil
}

// CreateAppointment books a slot. Every call carries a fresh idempotency
// key, reused only by the automatic retry after re-authentication.
func (c *Client) CreateAppointment(ctx context.Context, req booking.CreateRequest) (*booking.Appointment, error) {
	var appt booking.Appointment
	err := c.do(ctx, request{
		op:       "create_appointment",
		method:   http.MethodPost,
		path:     "/appointments",
		body:     req,
		out:      &appt,
		header:   http.Header{headerIdempotency: []string{uuid.NewString()}},
		conflict: domainerr.CodeTimeSlotUnavailable,
	})
	if err != nil {
		return nil, err
	}
	return &appt, nil
}

func (c *Client) ListAppointments(ctx context.Context, filter appointments.Filter) (appointments.Page, error) {
	return c.listAppointments(ctx, "list_appointments", "/appointments", filter)
}

func (c *Client) ListUpcoming(ctx context.Context, filter appointments.Filter) (appointments.Page, error) {
	return c.listAppointments(ctx, "list_upcoming", "/appointments/upcoming", filter)
}

func (c *Client) listAppointments(ctx context.Context, op, path string, f appointments.Filter) (appointments.Page, error) {
	q := url.Values{}
	setIf(q, "from", f.From)
	setIf(q, "to", f.To)
	setIf(q, "status", string(f.Status))
	setIf(q, "professionalId", f.ProfessionalID)
	setIf(q, "patientId", f.PatientID)
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	var page appointments.Page
	err := c.do(ctx, request{op: op, method: http.MethodGet, path: path, query: q, out: &page})
	return page, err
}

func (c *Client) ConfirmAppointment(ctx context.Context, id string) (*booking.Appointment, error) {
	return c.transition(ctx, "confirm", id, nil)
}

func (c *Client) CancelAppointment(ctx context.Context, id, reason string) (*booking.Appointment, error) {
	body := struct {
		Reason string `json:"reason,omitempty"`
	}{Reason: reason}
	return c.transition(ctx, "cancel", id, body)
}

func (c *Client) CompleteAppointment(ctx context.Context, id string) (*booking.Appointment, error) {
	return c.transition(ctx, "complete", id, nil)
}

func (c *Client) MarkNoShow(ctx context.Context, id string) (*booking.Appointment, error) {
	return c.transition(ctx, "no-show", id, nil)
}

func (c *Client) transition(ctx context.Context, action, id string, body any) (*booking.Appointment, error) {
	var appt booking.Appointment
	err := c.do(ctx, request{
		op:     "appointment_" + action,
		method: http.MethodPatch,
		path:   fmt.Sprintf("/appointments/%s/%s", escape(id), action),
		body:   body,
		out:    &appt,
	})
	if err != nil {
		return nil, err
	}
	if appt.ID == "" {
		return nil, nil
	}
	return &appt, nil
}

// GetWeeklySchedule fetches a professional's schedule. A 404 is reported as
// PROFILE_NOT_FOUND.
func (c *Client) GetWeeklySchedule(ctx context.Context, professionalID string) (*schedule.WeeklySchedule, error) {
	var ws schedule.WeeklySchedule
	err := c.do(ctx, request{
		op:       "get_schedule",
		method:   http.MethodGet,
		path:     fmt.Sprintf("/professionals/%s/schedule", escape(professionalID)),
		out:      &ws,
		notFound: domainerr.CodeProfileNotFound,
	})
	if err != nil {
		return nil, err
	}
	return &ws, nil
}

// UpdateWeeklySchedule replaces the whole schedule and returns the server's
// normalized copy.
func (c *Client) UpdateWeeklySchedule(ctx context.Context, professionalID string, ws schedule.WeeklySchedule) (*schedule.WeeklySchedule, error) {
	var saved schedule.WeeklySchedule
	err := c.do(ctx, request{
		op:     "update_schedule",
		method: http.MethodPut,
		path:   fmt.Sprintf("/professionals/%s/schedule", escape(professionalID)),
		body:   ws,
		out:    &saved,
	})
	if err != nil {
		return nil, err
	}
	if len(saved.Days) == 0 {
		return nil, nil
	}
	return &saved, nil
}

func (c *Client) ListAbsences(ctx context.Context, professionalID string, filter schedule.AbsenceFilter) ([]schedule.Absence, error) {
	q := url.Values{}
	setIf(q, "from", filter.From)
	setIf(q, "to", filter.To)
	setIf(q, "type", string(filter.Type))
	var resp struct {
		Items []schedule.Absence `json:"items"`
	}
	err := c.do(ctx, request{
		op:     "list_absences",
		method: http.MethodGet,
		path:   fmt.Sprintf("/professionals/%s/absences", escape(professionalID)),
		query:  q,
		out:    &resp,
	})
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *Client) CreateAbsence(ctx context.Context, professionalID string, absence schedule.Absence) (*schedule.Absence, error) {
	var created schedule.Absence
	err := c.do(ctx, request{
		op:     "create_absence",
		method: http.MethodPost,
		path:   fmt.Sprintf("/professionals/%s/absences", escape(professionalID)),
		body:   absence,
		out:    &created,
	})
	if err != nil {
		return nil, err
	}
	if created.ID == "" {
		return nil, nil
	}
	return &created, nil
}

func (c *Client) DeleteAbsence(ctx context.Context, professionalID, absenceID string) error {
	return c.do(ctx, request{
		op:     "delete_absence",
		method: http.MethodDelete,
		path:   fmt.Sprintf("/professionals/%s/absences/%s", escape(professionalID), escape(absenceID)),
	})
}

// Refresh exchanges a refresh token for a new token pair. It is sent
// without credentials so it can back a session.Store.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (session.Tokens, error) {
	var resp struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	err := c.do(ctx, request{
		op:        "refresh_token",
		method:    http.MethodPost,
		path:      "/auth/refresh",
		body:      map[string]string{"refreshToken": refreshToken},
		out:       &resp,
		anonymous: true,
	})
	if err != nil {
		return session.Tokens{}, err
	}
	if resp.AccessToken == "" {
		return session.Tokens{}, errors.New("apiclient: refresh_token: empty access token")
	}
	return session.Tokens{Access: resp.AccessToken, Refresh: resp.RefreshToken}, nil
}

func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}
