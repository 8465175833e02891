package appointments

import (
	"context"
	"sync"
	"unicode/utf8"

	"github.com/wolfman30/carebook/internal/booking"
	"github.com/wolfman30/carebook/internal/domainerr"
	"github.com/wolfman30/carebook/internal/notify"
	"github.com/wolfman30/carebook/internal/observability/metrics"
	"github.com/wolfman30/carebook/pkg/logging"
)

// MaxCancelReasonLength bounds a cancellation reason, in runes.
const MaxCancelReasonLength = 500

// Config wires a Manager.
type Config struct {
	Mutations MutationGateway
	Lists     ListGateway
	Scope     Scope
	Sink      notify.Sink
	Metrics   *metrics.BookingMetrics
	Logger    *logging.Logger
	Messages  *Messages
}

// Manager holds the appointment list shown to the acting role. Listings
// replace the list; transitions replace the one appointment they touched.
// At most one transition per appointment id is in flight at a time.
type Manager struct {
	mutations MutationGateway
	lists     ListGateway
	scope     Scope
	sink      notify.Sink
	metrics   *metrics.BookingMetrics
	logger    *logging.Logger
	msgs      Messages

	mu       sync.Mutex
	items    []booking.Appointment
	total    int
	loading  int
	listGen  uint64
	inFlight map[string]Action
	lastErr  *domainerr.Error
}

func NewManager(cfg Config) *Manager {
	if cfg.Mutations == nil || cfg.Lists == nil {
		panic("appointments: mutation and list gateways required")
	}
	m := &Manager{
		mutations: cfg.Mutations,
		lists:     cfg.Lists,
		scope:     cfg.Scope,
		sink:      cfg.Sink,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		msgs:      DefaultMessages,
		inFlight:  make(map[string]Action),
	}
	if m.sink == nil {
		m.sink = notify.Discard{}
	}
	if m.logger == nil {
		m.logger = logging.Default()
	}
	if cfg.Messages != nil {
		m.msgs = *cfg.Messages
	}
	return m
}

// Appointments returns a copy of the held list.
func (m *Manager) Appointments() []booking.Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]booking.Appointment(nil), m.items...)
}

// Total is the server side count reported by the last listing.
func (m *Manager) Total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// Find returns the held appointment with id.
func (m *Manager) Find(id string) (booking.Appointment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.items {
		if a.ID == id {
			return a, true
		}
	}
	return booking.Appointment{}, false
}

// IsLoading is true while any listing or transition is outstanding.
func (m *Manager) IsLoading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading > 0
}

// InFlight reports whether a transition for id is outstanding.
func (m *Manager) InFlight(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.inFlight[id]
	return ok
}

func (m *Manager) LastError() *domainerr.Error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// LoadAppointments replaces the held list with the listing for filter.
// Empty professional/patient ids are filled from the acting context.
func (m *Manager) LoadAppointments(ctx context.Context, filter Filter) error {
	return m.load(ctx, "list", scoped(m.scope, filter), m.lists.ListAppointments)
}

// LoadUpcomingAppointments replaces the held list with the next limit
// appointments of the acting context.
func (m *Manager) LoadUpcomingAppointments(ctx context.Context, limit int) error {
	return m.load(ctx, "upcoming", scoped(m.scope, Filter{Limit: limit}), m.lists.ListUpcoming)
}

func (m *Manager) load(ctx context.Context, kind string, filter Filter, fetch func(context.Context, Filter) (Page, error)) error {
	m.mu.Lock()
	m.listGen++
	gen := m.listGen
	m.loading++
	m.mu.Unlock()

	page, err := fetch(ctx, filter)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.loading--
	if gen != m.listGen {
		m.logger.Debug("appointments: discarding stale listing", "kind", kind)
		return domainerr.ErrSuperseded
	}
	if err != nil {
		m.lastErr = domainerr.As(err)
		m.logger.Warn("appointments: listing failed", "kind", kind, "error", err)
		m.sink.Error(m.msgs.LoadFailed)
		return m.lastErr
	}
	m.items = append([]booking.Appointment(nil), page.Items...)
	m.total = page.Total
	m.lastErr = nil
	m.logger.Debug("appointments: listing loaded", "kind", kind, "count", len(page.Items), "total", page.Total)
	return nil
}

// Confirm moves a pending appointment to CONFIRMED.
func (m *Manager) Confirm(ctx context.Context, id string) error {
	return m.transition(ctx, id, ActionConfirm, func(ctx context.Context) (*booking.Appointment, error) {
		return m.mutations.ConfirmAppointment(ctx, id)
	})
}

// Cancel cancels an appointment with an optional reason.
func (m *Manager) Cancel(ctx context.Context, id, reason string) error {
	if utf8.RuneCountInString(reason) > MaxCancelReasonLength {
		m.metrics.ObserveTransition(string(ActionCancel), metrics.OutcomeRejected)
		m.sink.Warning(render(m.msgs.ReasonTooLong, MaxCancelReasonLength))
		return domainerr.Newf(domainerr.CodeValidationFailed, "cancellation reason exceeds %d characters", MaxCancelReasonLength)
	}
	return m.transition(ctx, id, ActionCancel, func(ctx context.Context) (*booking.Appointment, error) {
		return m.mutations.CancelAppointment(ctx, id, reason)
	})
}

// Complete marks an appointment as attended. Callers are expected to offer
// it only for CONFIRMED appointments; the directory rejects anything else.
func (m *Manager) Complete(ctx context.Context, id string) error {
	return m.transition(ctx, id, ActionComplete, func(ctx context.Context) (*booking.Appointment, error) {
		return m.mutations.CompleteAppointment(ctx, id)
	})
}

// MarkNoShow marks a confirmed appointment as missed.
func (m *Manager) MarkNoShow(ctx context.Context, id string) error {
	return m.transition(ctx, id, ActionNoShow, func(ctx context.Context) (*booking.Appointment, error) {
		return m.mutations.MarkNoShow(ctx, id)
	})
}

// Apply runs action on id. reason is only used for cancellations.
func (m *Manager) Apply(ctx context.Context, action Action, id, reason string) error {
	switch action {
	case ActionConfirm:
		return m.Confirm(ctx, id)
	case ActionCancel:
		return m.Cancel(ctx, id, reason)
	case ActionComplete:
		return m.Complete(ctx, id)
	case ActionNoShow:
		return m.MarkNoShow(ctx, id)
	}
	return domainerr.Newf(domainerr.CodeValidationFailed, "unknown action %q", action)
}

func (m *Manager) transition(ctx context.Context, id string, action Action, call func(context.Context) (*booking.Appointment, error)) error {
	if id == "" {
		m.metrics.ObserveTransition(string(action), metrics.OutcomeRejected)
		m.sink.Warning(m.msgs.MissingID)
		return domainerr.New(domainerr.CodeValidationFailed, "appointment id required")
	}

	m.mu.Lock()
	if pending, busy := m.inFlight[id]; busy {
		m.mu.Unlock()
		m.metrics.ObserveTransition(string(action), metrics.OutcomeRejected)
		m.logger.Info("appointments: transition refused, another in flight", "appointment_id", id, "action", action, "pending", pending)
		m.sink.Warning(m.msgs.InProgress)
		return domainerr.Newf(domainerr.CodeTransitionInProgress, "%s already in progress for %s", pending, id)
	}
	m.inFlight[id] = action
	m.loading++
	m.mu.Unlock()

	updated, err := call(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inFlight, id)
	m.loading--
	if err != nil {
		m.lastErr = domainerr.As(err)
		m.metrics.ObserveTransition(string(action), metrics.OutcomeFailure)
		m.logger.Warn("appointments: transition failed", "appointment_id", id, "action", action, "error", err)
		m.sink.Error(render(m.msgs.TransitionFailed, action))
		return m.lastErr
	}

	next := make([]booking.Appointment, len(m.items))
	copy(next, m.items)
	for i := range next {
		if next[i].ID != id {
			continue
		}
		if updated != nil {
			next[i] = *updated
		} else {
			next[i].Status = action.Target()
		}
	}
	m.items = next
	// A listing issued before this commit holds the old record.
	m.listGen++
	m.lastErr = nil
	m.metrics.ObserveTransition(string(action), metrics.OutcomeSuccess)
	m.logger.Info("appointments: transition applied", "appointment_id", id, "action", action)
	m.sink.Success(m.msgs.success(action))
	return nil
}
