package booking

import (
	"context"
	"errors"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/wolfman30/carebook/internal/domainerr"
	"github.com/wolfman30/carebook/internal/notify"
	"github.com/wolfman30/carebook/internal/observability/metrics"
	"github.com/wolfman30/carebook/pkg/logging"
)

const dateLayout = "2006-01-02"

// Config wires a Coordinator.
type Config struct {
	Slots       SlotGateway
	Bookings    BookingGateway
	Preferences DurationPreferences
	Users       UserSource

	// Location interprets a slot's wall-clock start when the directory did
	// not send an absolute instant. Nil means UTC.
	Location *time.Location
	// DefaultDuration replaces DefaultDurationMinutes when positive.
	DefaultDuration int

	// Sink receives outcome notices while the coordinator holds its lock,
	// so it must not call back into the coordinator.
	Sink     notify.Sink
	Metrics  *metrics.BookingMetrics
	Logger   *logging.Logger
	Messages *Messages
}

type attempt struct {
	professionalID   string
	professionalName string
	selectedDate     string
	selectedSlot     *TimeSlot
	durationMinutes  int
	notes            string
}

// Coordinator drives one booking flow. Every operation settles into either
// success or a recorded error that is also announced on the sink; the
// returned error is the same outcome for callers that prefer to branch on
// it.
//
// Responses are matched against generation counters: a slot load applies
// only if no newer load or reset happened meanwhile, and a submission
// applies only to the flow that issued it.
type Coordinator struct {
	slots           SlotGateway
	bookings        BookingGateway
	prefs           DurationPreferences
	users           UserSource
	loc             *time.Location
	defaultDuration int
	sink            notify.Sink
	metrics         *metrics.BookingMetrics
	logger          *logging.Logger
	msgs            Messages

	mu         sync.Mutex
	attempt    attempt
	available  []TimeSlot
	loading    bool
	submitting bool
	lastErr    *domainerr.Error
	flow       uint64
	slotGen    uint64
}

// NewCoordinator builds a Coordinator with a clean flow.
func NewCoordinator(cfg Config) *Coordinator {
	if cfg.Slots == nil || cfg.Bookings == nil {
		panic("booking: slot and booking gateways required")
	}
	c := &Coordinator{
		slots:           cfg.Slots,
		bookings:        cfg.Bookings,
		prefs:           cfg.Preferences,
		users:           cfg.Users,
		loc:             cfg.Location,
		defaultDuration: cfg.DefaultDuration,
		sink:            cfg.Sink,
		metrics:         cfg.Metrics,
		logger:          cfg.Logger,
		msgs:            DefaultMessages,
	}
	if c.loc == nil {
		c.loc = time.UTC
	}
	if c.defaultDuration <= 0 {
		c.defaultDuration = DefaultDurationMinutes
	}
	if c.sink == nil {
		c.sink = notify.Discard{}
	}
	if c.logger == nil {
		c.logger = logging.Default()
	}
	if cfg.Messages != nil {
		c.msgs = *cfg.Messages
	}
	return c
}

// InitializeFlow starts a clean flow for a professional. A non-positive
// duration falls back to the user's stored preference, then to the
// configured default.
func (c *Coordinator) InitializeFlow(ctx context.Context, professionalID, professionalName string, durationMinutes int) {
	if durationMinutes <= 0 {
		durationMinutes = c.preferredDuration(ctx)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
	c.attempt.professionalID = professionalID
	c.attempt.professionalName = professionalName
	c.attempt.durationMinutes = durationMinutes
	c.logger.Debug("booking: flow initialized", "professional_id", professionalID, "duration_mins", durationMinutes)
}

func (c *Coordinator) preferredDuration(ctx context.Context) int {
	if c.prefs == nil || c.users == nil {
		return c.defaultDuration
	}
	userID := c.users.CurrentUserID()
	if userID == "" {
		return c.defaultDuration
	}
	mins, ok, err := c.prefs.PreferredDuration(ctx, userID)
	if err != nil {
		c.logger.Warn("booking: duration preference lookup failed", "user_id", userID, "error", err)
		return c.defaultDuration
	}
	if !ok || mins <= 0 {
		return c.defaultDuration
	}
	return mins
}

// LoadAvailableSlots queries the slots of the flow's professional for date
// (YYYY-MM-DD) and replaces the held list. The current selection is
// dropped, including one made while the load was outstanding. A response that arrives after a newer load or a reset is
// discarded and ErrSuperseded is returned.
func (c *Coordinator) LoadAvailableSlots(ctx context.Context, date string) error {
	c.mu.Lock()
	profID := c.attempt.professionalID
	if profID == "" {
		c.mu.Unlock()
		c.metrics.ObserveSlotQuery(metrics.OutcomeRejected)
		c.sink.Warning(c.msgs.MissingProfessional)
		return domainerr.New(domainerr.CodeMissingProfessional, "no professional selected")
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		c.mu.Unlock()
		c.metrics.ObserveSlotQuery(metrics.OutcomeRejected)
		c.sink.Warning(render(c.msgs.InvalidDate, date))
		return domainerr.Newf(domainerr.CodeValidationFailed, "invalid date %q", date)
	}
	c.slotGen++
	gen := c.slotGen
	c.loading = true
	c.attempt.selectedSlot = nil
	c.attempt.selectedDate = date
	duration := c.attempt.durationMinutes
	c.mu.Unlock()

	slots, err := c.slots.GetAvailabilitySlots(ctx, profID, date, duration)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.slotGen {
		c.metrics.ObserveSlotQuery(metrics.OutcomeStale)
		c.logger.Debug("booking: discarding stale slot response", "professional_id", profID, "date", date)
		return domainerr.ErrSuperseded
	}
	c.loading = false
	// A slot picked while the load was out belongs to the previous list.
	c.attempt.selectedSlot = nil
	if err != nil {
		c.available = nil
		c.lastErr = domainerr.As(err)
		c.metrics.ObserveSlotQuery(metrics.OutcomeFailure)
		c.logger.Warn("booking: slot query failed", "professional_id", profID, "date", date, "error", err)
		c.sink.Error(c.msgs.SlotsLoadFailed)
		return c.lastErr
	}
	c.available = append([]TimeSlot(nil), slots...)
	c.lastErr = nil
	c.metrics.ObserveSlotQuery(metrics.OutcomeSuccess)
	c.logger.Debug("booking: slots loaded", "professional_id", profID, "date", date, "count", len(slots))
	if !anyAvailable(slots) {
		c.sink.Info(render(c.msgs.NoSlotsAvailable, date))
	}
	return nil
}

func anyAvailable(slots []TimeSlot) bool {
	for _, s := range slots {
		if s.IsAvailable {
			return true
		}
	}
	return false
}

// SelectSlot holds slot as the selection. Unavailable slots are refused and
// leave the current selection untouched.
func (c *Coordinator) SelectSlot(slot TimeSlot) error {
	label := slot.LabelIn(c.loc)
	if !slot.IsAvailable {
		c.sink.Warning(render(c.msgs.SlotUnavailable, label))
		return domainerr.Newf(domainerr.CodeSlotUnavailable, "slot %s is not available", label)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	s := slot
	c.attempt.selectedSlot = &s
	return nil
}

// CanSubmit reports whether Submit would issue a request right now.
func (c *Coordinator) CanSubmit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canSubmitLocked()
}

func (c *Coordinator) canSubmitLocked() bool {
	return c.attempt.selectedSlot != nil &&
		c.attempt.selectedDate != "" &&
		c.attempt.professionalID != "" &&
		!c.submitting
}

// Submit books the selected slot.
//
// On success the flow is reset and the result asks the caller to show the
// appointment list. When the slot was taken meanwhile the selection is
// cleared and the slots of the selected date are reloaded before Submit
// returns. Any other failure keeps the selection so the user can retry.
// A Submit while another one is outstanding is refused without touching
// the one in flight.
func (c *Coordinator) Submit(ctx context.Context, notes string) (SubmitResult, error) {
	c.mu.Lock()
	if !c.canSubmitLocked() {
		c.mu.Unlock()
		c.metrics.ObserveSubmission(metrics.OutcomeRejected)
		c.sink.Warning(c.msgs.IncompleteSelection)
		return SubmitResult{}, domainerr.New(domainerr.CodeIncompleteSelection, "selection incomplete or submission in progress")
	}
	if utf8.RuneCountInString(notes) > MaxNotesLength {
		c.mu.Unlock()
		c.metrics.ObserveSubmission(metrics.OutcomeRejected)
		c.sink.Warning(render(c.msgs.NotesTooLong, MaxNotesLength))
		return SubmitResult{}, domainerr.Newf(domainerr.CodeValidationFailed, "notes exceed %d characters", MaxNotesLength)
	}
	slot := *c.attempt.selectedSlot
	label := slot.LabelIn(c.loc)
	date := c.attempt.selectedDate
	start, err := c.startInstant(date, slot)
	if err != nil {
		c.mu.Unlock()
		c.metrics.ObserveSubmission(metrics.OutcomeRejected)
		c.sink.Warning(render(c.msgs.InvalidSlot, label))
		return SubmitResult{}, err
	}
	req := CreateRequest{
		ProfessionalID: c.attempt.professionalID,
		StartTimeUTC:   start,
		Notes:          notes,
	}
	c.attempt.notes = notes
	c.submitting = true
	flow := c.flow
	c.mu.Unlock()

	appt, err := c.bookings.CreateAppointment(ctx, req)

	c.mu.Lock()
	if flow != c.flow {
		c.mu.Unlock()
		return c.settleAbandoned(req, label, appt, err)
	}

	switch {
	case err == nil:
		c.resetLocked()
		c.mu.Unlock()
		c.metrics.ObserveSubmission(metrics.OutcomeSuccess)
		c.logAppointment("booking: appointment created", req, appt)
		c.sink.Success(render(c.msgs.Booked, label))
		return SubmitResult{Appointment: appt, NavigateToAppointments: true}, nil

	case errors.Is(err, domainerr.ErrTimeSlotUnavailable):
		conflict := domainerr.As(err)
		c.attempt.selectedSlot = nil
		c.lastErr = conflict
		c.mu.Unlock()
		c.metrics.ObserveSubmission(metrics.OutcomeConflict)
		c.logger.Info("booking: slot taken", "professional_id", req.ProfessionalID, "date", date, "slot", label)
		c.sink.Warning(render(c.msgs.SlotTaken, label))

		// The flow stays in submitting state until the refresh settles.
		_ = c.LoadAvailableSlots(ctx, date)

		c.mu.Lock()
		if flow == c.flow {
			c.submitting = false
			if c.lastErr == nil {
				c.lastErr = conflict
			}
		}
		c.mu.Unlock()
		return SubmitResult{}, conflict

	default:
		c.submitting = false
		c.lastErr = domainerr.As(err)
		failure := c.lastErr
		c.mu.Unlock()
		c.metrics.ObserveSubmission(metrics.OutcomeFailure)
		c.logger.Warn("booking: submission failed", "professional_id", req.ProfessionalID, "date", date, "slot", label, "error", err)
		c.sink.Error(c.msgs.SubmitFailed)
		return SubmitResult{}, failure
	}
}

// settleAbandoned handles a submission whose flow was reset while the
// request was out. State belongs to the new flow and is left alone, but a
// created appointment is still announced since it exists remotely.
func (c *Coordinator) settleAbandoned(req CreateRequest, label string, appt *Appointment, err error) (SubmitResult, error) {
	if err == nil {
		c.metrics.ObserveSubmission(metrics.OutcomeSuccess)
		c.logAppointment("booking: appointment created after flow was reset", req, appt)
		c.sink.Success(render(c.msgs.Booked, label))
		return SubmitResult{Appointment: appt}, nil
	}
	c.metrics.ObserveSubmission(metrics.OutcomeStale)
	c.logger.Info("booking: discarding submission outcome of abandoned flow", "professional_id", req.ProfessionalID, "error", err)
	return SubmitResult{}, domainerr.ErrSuperseded
}

func (c *Coordinator) logAppointment(msg string, req CreateRequest, appt *Appointment) {
	id := ""
	if appt != nil {
		id = appt.ID
	}
	c.logger.Info(msg, "appointment_id", id, "professional_id", req.ProfessionalID, "start_utc", req.StartTimeUTC.Format(time.RFC3339))
}

// startInstant is the absolute start of slot on date.
func (c *Coordinator) startInstant(date string, slot TimeSlot) (time.Time, error) {
	if !slot.StartUTC.IsZero() {
		return slot.StartUTC.UTC(), nil
	}
	t, err := time.ParseInLocation(dateLayout+" 15:04", date+" "+slot.StartTime, c.loc)
	if err != nil {
		return time.Time{}, domainerr.Newf(domainerr.CodeValidationFailed, "slot start %q on %s is not a valid time", slot.StartTime, date)
	}
	return t.UTC(), nil
}

// Reset clears the flow. In-flight responses issued before the reset are
// discarded when they arrive.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

func (c *Coordinator) resetLocked() {
	c.attempt = attempt{}
	c.available = nil
	c.loading = false
	c.submitting = false
	c.lastErr = nil
	c.flow++
	c.slotGen++
}

// State returns a copy of the flow.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := State{
		ProfessionalID:   c.attempt.professionalID,
		ProfessionalName: c.attempt.professionalName,
		SelectedDate:     c.attempt.selectedDate,
		DurationMinutes:  c.attempt.durationMinutes,
		Notes:            c.attempt.notes,
		AvailableSlots:   append([]TimeSlot(nil), c.available...),
		IsLoadingSlots:   c.loading,
		IsSubmitting:     c.submitting,
		LastError:        c.lastErr,
		CanSubmit:        c.canSubmitLocked(),
	}
	if c.attempt.selectedSlot != nil {
		slot := *c.attempt.selectedSlot
		s.SelectedSlot = &slot
	}
	return s
}
