package schedule

import (
	"context"
	"errors"
	"sync"

	"github.com/wolfman30/carebook/internal/domainerr"
	"github.com/wolfman30/carebook/internal/notify"
	"github.com/wolfman30/carebook/internal/observability/metrics"
	"github.com/wolfman30/carebook/pkg/logging"
)

// ScheduleGateway reads and fully replaces a professional's weekly schedule.
// GetWeeklySchedule returns an error matching domainerr.ErrProfileNotFound
// when nothing is configured yet.
type ScheduleGateway interface {
	GetWeeklySchedule(ctx context.Context, professionalID string) (*WeeklySchedule, error)
	UpdateWeeklySchedule(ctx context.Context, professionalID string, schedule WeeklySchedule) (*WeeklySchedule, error)
}

// AbsenceGateway manages a professional's absences.
type AbsenceGateway interface {
	ListAbsences(ctx context.Context, professionalID string, filter AbsenceFilter) ([]Absence, error)
	CreateAbsence(ctx context.Context, professionalID string, absence Absence) (*Absence, error)
	DeleteAbsence(ctx context.Context, professionalID, absenceID string) error
}

// ProfessionalSource yields the professional being edited. session.Provider
// satisfies it.
type ProfessionalSource interface {
	CurrentProfessionalID() string
}

// EditorConfig wires an Editor.
type EditorConfig struct {
	Schedules ScheduleGateway
	Absences  AbsenceGateway
	Session   ProfessionalSource
	// ProfessionalID pins the editor to one professional (admin editing
	// someone else). Empty means "whoever the session acts as".
	ProfessionalID string
	Sink           notify.Sink
	Metrics        *metrics.BookingMetrics
	Logger         *logging.Logger
	Messages       *Messages
}

// UpdateOptions carries the optional fields of a schedule update. Zero
// values keep what the held schedule has.
type UpdateOptions struct {
	SlotDuration int
	TimeZone     string
	IsActive     *bool
}

// Editor owns the client-side copy of a weekly schedule and absence list.
type Editor struct {
	schedules      ScheduleGateway
	absences       AbsenceGateway
	session        ProfessionalSource
	professionalID string
	sink           notify.Sink
	metrics        *metrics.BookingMetrics
	logger         *logging.Logger
	msgs           Messages

	mu          sync.Mutex
	schedule    *WeeklySchedule
	configured  bool
	absenceList []Absence
	loading     int
	saving      int
	scheduleGen uint64
	absenceGen  uint64
	lastErr     *domainerr.Error
}

// NewEditor builds an Editor.
func NewEditor(cfg EditorConfig) *Editor {
	if cfg.Schedules == nil || cfg.Absences == nil {
		panic("schedule: schedule and absence gateways required")
	}
	e := &Editor{
		schedules:      cfg.Schedules,
		absences:       cfg.Absences,
		session:        cfg.Session,
		professionalID: cfg.ProfessionalID,
		sink:           cfg.Sink,
		metrics:        cfg.Metrics,
		logger:         cfg.Logger,
		msgs:           DefaultMessages,
	}
	if e.sink == nil {
		e.sink = notify.Discard{}
	}
	if e.logger == nil {
		e.logger = logging.Default()
	}
	if cfg.Messages != nil {
		e.msgs = *cfg.Messages
	}
	return e
}

// Schedule returns a copy of the held schedule, or nil before any load.
func (e *Editor) Schedule() *WeeklySchedule {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.schedule == nil {
		return nil
	}
	c := e.schedule.Clone()
	return &c
}

// Configured is false when the server reported no schedule and the held
// schedule is the default template.
func (e *Editor) Configured() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.configured
}

// Absences returns a copy of the held absence list.
func (e *Editor) Absences() []Absence {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Absence(nil), e.absenceList...)
}

func (e *Editor) IsLoading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loading > 0
}

func (e *Editor) IsSaving() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.saving > 0
}

// LastError is the most recent recorded failure, nil after a success.
func (e *Editor) LastError() *domainerr.Error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

func (e *Editor) currentProfessional() string {
	if e.professionalID != "" {
		return e.professionalID
	}
	if e.session == nil {
		return ""
	}
	return e.session.CurrentProfessionalID()
}

func (e *Editor) requireProfessional() (string, error) {
	id := e.currentProfessional()
	if id == "" {
		e.sink.Warning(e.msgs.MissingProfessional)
		return "", domainerr.New(domainerr.CodeMissingProfessional, "no professional selected")
	}
	return id, nil
}

// LoadWeeklySchedule fetches the schedule. A missing profile is not an
// error: the default template is held instead and Configured reports false.
func (e *Editor) LoadWeeklySchedule(ctx context.Context) error {
	profID, err := e.requireProfessional()
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.scheduleGen++
	gen := e.scheduleGen
	e.loading++
	e.mu.Unlock()

	ws, err := e.schedules.GetWeeklySchedule(ctx, profID)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.loading--
	if gen != e.scheduleGen {
		return domainerr.ErrSuperseded
	}
	switch {
	case errors.Is(err, domainerr.ErrProfileNotFound):
		tmpl := DefaultWeeklySchedule()
		e.schedule = &tmpl
		e.configured = false
		e.lastErr = nil
		e.logger.Info("schedule: no schedule configured", "professional_id", profID)
		e.sink.Info(e.msgs.NotConfigured)
		return nil
	case err != nil:
		e.lastErr = domainerr.As(err)
		e.logger.Warn("schedule: load failed", "professional_id", profID, "error", err)
		e.sink.Error(e.msgs.LoadFailed)
		return e.lastErr
	}
	c := ws.Clone()
	e.schedule = &c
	e.configured = true
	e.lastErr = nil
	return nil
}

// UpdateWeeklySchedule submits the whole week. It requires a prior
// LoadWeeklySchedule. On success the held schedule becomes the server's
// normalized response.
func (e *Editor) UpdateWeeklySchedule(ctx context.Context, days []DaySchedule, opts UpdateOptions) error {
	profID, err := e.requireProfessional()
	if err != nil {
		return err
	}

	// The pass-through fields come from the held schedule, so an update
	// before any load would reset them on the server.
	e.mu.Lock()
	if e.schedule == nil {
		e.mu.Unlock()
		e.metrics.ObserveScheduleMutation("update_schedule", metrics.OutcomeRejected)
		e.sink.Warning(e.msgs.NotLoaded)
		return domainerr.New(domainerr.CodeValidationFailed, "schedule not loaded")
	}
	base := e.schedule.Clone()
	e.mu.Unlock()

	payload := WeeklySchedule{
		Days:                Normalize(days),
		DefaultSlotDuration: base.DefaultSlotDuration,
		BufferTime:          base.BufferTime,
		TimeZone:            base.TimeZone,
		IsActive:            base.IsActive,
	}
	if opts.SlotDuration != 0 {
		payload.DefaultSlotDuration = opts.SlotDuration
	}
	if opts.TimeZone != "" {
		payload.TimeZone = opts.TimeZone
	}
	if opts.IsActive != nil {
		payload.IsActive = *opts.IsActive
	}
	if err := payload.Validate(); err != nil {
		e.metrics.ObserveScheduleMutation("update_schedule", metrics.OutcomeRejected)
		e.sink.Warning(render(e.msgs.Invalid, domainerr.As(err).Message))
		return err
	}

	e.mu.Lock()
	e.scheduleGen++
	gen := e.scheduleGen
	e.saving++
	e.mu.Unlock()

	saved, err := e.schedules.UpdateWeeklySchedule(ctx, profID, payload)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.saving--
	if err != nil {
		e.lastErr = domainerr.As(err)
		e.metrics.ObserveScheduleMutation("update_schedule", metrics.OutcomeFailure)
		e.logger.Warn("schedule: update failed", "professional_id", profID, "error", err)
		e.sink.Error(e.msgs.ScheduleSaveFailed)
		return e.lastErr
	}
	e.metrics.ObserveScheduleMutation("update_schedule", metrics.OutcomeSuccess)
	e.sink.Success(e.msgs.ScheduleSaved)
	if gen != e.scheduleGen {
		return domainerr.ErrSuperseded
	}
	if saved == nil {
		saved = &payload
	}
	c := saved.Clone()
	e.schedule = &c
	e.configured = true
	e.lastErr = nil
	return nil
}

// LoadAbsences replaces the held absence list.
func (e *Editor) LoadAbsences(ctx context.Context, filter AbsenceFilter) error {
	profID, err := e.requireProfessional()
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.absenceGen++
	gen := e.absenceGen
	e.loading++
	e.mu.Unlock()

	items, err := e.absences.ListAbsences(ctx, profID, filter)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.loading--
	if gen != e.absenceGen {
		return domainerr.ErrSuperseded
	}
	if err != nil {
		e.lastErr = domainerr.As(err)
		e.logger.Warn("schedule: list absences failed", "professional_id", profID, "error", err)
		e.sink.Error(e.msgs.LoadFailed)
		return e.lastErr
	}
	e.absenceList = append([]Absence(nil), items...)
	e.lastErr = nil
	return nil
}

// CreateAbsence submits a new absence and appends the server's copy to the
// held list once the server accepts it. A failure leaves the list as it was.
func (e *Editor) CreateAbsence(ctx context.Context, absence Absence) (*Absence, error) {
	profID, err := e.requireProfessional()
	if err != nil {
		return nil, err
	}
	if err := absence.Validate(); err != nil {
		e.metrics.ObserveScheduleMutation("create_absence", metrics.OutcomeRejected)
		e.sink.Warning(render(e.msgs.Invalid, domainerr.As(err).Message))
		return nil, err
	}

	e.mu.Lock()
	e.absenceGen++
	e.saving++
	e.mu.Unlock()

	created, err := e.absences.CreateAbsence(ctx, profID, absence)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.saving--
	if err != nil {
		e.lastErr = domainerr.As(err)
		e.metrics.ObserveScheduleMutation("create_absence", metrics.OutcomeFailure)
		e.logger.Warn("schedule: create absence failed", "professional_id", profID, "error", err)
		e.sink.Error(e.msgs.AbsenceCreateFailed)
		return nil, e.lastErr
	}
	if created == nil {
		created = &absence
	}
	next := make([]Absence, 0, len(e.absenceList)+1)
	next = append(next, e.absenceList...)
	next = append(next, *created)
	e.absenceList = next
	e.lastErr = nil
	e.metrics.ObserveScheduleMutation("create_absence", metrics.OutcomeSuccess)
	e.sink.Success(render(e.msgs.AbsenceCreated, created.Type))
	out := *created
	return &out, nil
}

// DeleteAbsence removes an absence remotely, then from the held list.
func (e *Editor) DeleteAbsence(ctx context.Context, absenceID string) error {
	profID, err := e.requireProfessional()
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.absenceGen++
	e.saving++
	e.mu.Unlock()

	err = e.absences.DeleteAbsence(ctx, profID, absenceID)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.saving--
	if err != nil {
		e.lastErr = domainerr.As(err)
		e.metrics.ObserveScheduleMutation("delete_absence", metrics.OutcomeFailure)
		e.logger.Warn("schedule: delete absence failed", "professional_id", profID, "absence_id", absenceID, "error", err)
		e.sink.Error(e.msgs.AbsenceDeleteFailed)
		return e.lastErr
	}
	next := make([]Absence, 0, len(e.absenceList))
	for _, a := range e.absenceList {
		if a.ID != absenceID {
			next = append(next, a)
		}
	}
	e.absenceList = next
	e.lastErr = nil
	e.metrics.ObserveScheduleMutation("delete_absence", metrics.OutcomeSuccess)
	e.sink.Success(e.msgs.AbsenceDeleted)
	return nil
}
