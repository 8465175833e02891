package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/carebook/internal/appointments"
	"github.com/wolfman30/carebook/internal/booking"
	"github.com/wolfman30/carebook/internal/domainerr"
	"github.com/wolfman30/carebook/internal/observability/metrics"
	"github.com/wolfman30/carebook/internal/schedule"
	"github.com/wolfman30/carebook/internal/session"
	"github.com/wolfman30/carebook/pkg/logging"
)

type fakeCreds struct {
	mu        sync.Mutex
	token     string
	next      string
	role      session.Role
	reauths   int
	reauthErr error
}

func (f *fakeCreds) Token(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token, nil
}

func (f *fakeCreds) Reauthenticate(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reauths++
	if f.reauthErr != nil {
		return f.reauthErr
	}
	f.token = f.next
	return nil
}

func (f *fakeCreds) ActiveRole() session.Role { return f.role }

func newTestClient(t *testing.T, creds Credentials, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	c, err := New(Options{BaseURL: ts.URL + "/", Credentials: creds, Logger: logging.Discard()})
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(Options{BaseURL: "  "})
	assert.Error(t, err)
}

func TestGetAvailabilitySlots(t *testing.T) {
	creds := &fakeCreds{token: "tok-1", role: session.RolePatient}
	c := newTestClient(t, creds, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/professionals/prof-1/availability/slots", r.URL.Path)
		assert.Equal(t, "2025-06-10", r.URL.Query().Get("date"))
		assert.Equal(t, "30", r.URL.Query().Get("duration"))
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Equal(t, "PATIENT", r.Header.Get("X-Acting-Context"))
		writeJSON(w, http.StatusOK, `{"slots":[
			{"startUtc":"2025-06-10T09:00:00Z","startTime":"09:00","endTime":"09:30","duration":30,"isAvailable":true},
			{"startUtc":"2025-06-10T09:30:00Z","startTime":"09:30","endTime":"10:00","duration":30,"isAvailable":false}]}`)
	})

	slots, err := c.GetAvailabilitySlots(context.Background(), "prof-1", "2025-06-10", 30)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.True(t, slots[0].IsAvailable)
	assert.False(t, slots[1].IsAvailable)
	assert.Equal(t, time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC), slots[0].StartUTC)
	assert.Equal(t, "09:30", slots[1].Label())
}

func TestCreateAppointment(t *testing.T) {
	creds := &fakeCreds{token: "tok-1", role: session.RolePatient}
	c := newTestClient(t, creds, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/appointments", r.URL.Path)
		_, err := uuid.Parse(r.Header.Get("Idempotency-Key"))
		assert.NoError(t, err)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "prof-1", body["professionalId"])
		assert.Equal(t, "2025-06-10T09:00:00Z", body["startTimeUtc"])
		assert.Equal(t, "check-up", body["notes"])
		writeJSON(w, http.StatusCreated, `{"id":"apt-1","professionalId":"prof-1","patientId":"pat-1","date":"2025-06-10","startTime":"09:00","endTime":"09:30","status":"PENDING"}`)
	})

	appt, err := c.CreateAppointment(context.Background(), booking.CreateRequest{
		ProfessionalID: "prof-1",
		StartTimeUTC:   time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC),
		Notes:          "check-up",
	})
	require.NoError(t, err)
	assert.Equal(t, "apt-1", appt.ID)
	assert.Equal(t, booking.StatusPending, appt.Status)
}

func TestConflictMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{name: "409", status: http.StatusConflict, body: `{"message":"slot taken"}`},
		{name: "code on 400", status: http.StatusBadRequest, body: `{"code":"TIME_SLOT_UNAVAILABLE","message":"slot taken"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tc.status, tc.body)
			})
			_, err := c.CreateAppointment(context.Background(), booking.CreateRequest{ProfessionalID: "prof-1"})
			require.Error(t, err)
			assert.ErrorIs(t, err, domainerr.ErrTimeSlotUnavailable)
			de := domainerr.As(err)
			assert.Equal(t, tc.status, de.Status)
			assert.Equal(t, "slot taken", de.Message)
		})
	}
}

func TestConflictOutsideBookingIsGenericFailure(t *testing.T) {
	c := newTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, `{"message":"appointment changed concurrently"}`)
	})

	_, err := c.ConfirmAppointment(context.Background(), "apt-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domainerr.ErrTimeSlotUnavailable)
	assert.Equal(t, domainerr.CodeRemoteFailure, domainerr.CodeOf(err))

	_, err = c.UpdateWeeklySchedule(context.Background(), "prof-1", schedule.DefaultWeeklySchedule())
	assert.Equal(t, domainerr.CodeRemoteFailure, domainerr.CodeOf(err))
}

func TestNotFoundMapping(t *testing.T) {
	c := newTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, `{"message":"nothing here"}`)
	})

	_, err := c.GetWeeklySchedule(context.Background(), "prof-1")
	assert.ErrorIs(t, err, domainerr.ErrProfileNotFound)

	err = c.DeleteAbsence(context.Background(), "prof-1", "abs-1")
	assert.Equal(t, domainerr.CodeNotFound, domainerr.CodeOf(err))
}

func TestGenericFailureTruncatesBody(t *testing.T) {
	long := strings.Repeat("x", 1000)
	c := newTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(long))
	})

	_, err := c.ListAppointments(context.Background(), appointments.Filter{})
	require.Error(t, err)
	de := domainerr.As(err)
	assert.Equal(t, domainerr.CodeRemoteFailure, de.Code)
	assert.Equal(t, http.StatusInternalServerError, de.Status)
	assert.Len(t, de.Message, 300)
	assert.True(t, strings.HasPrefix(err.Error(), "apiclient: list_appointments:"))
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	body := []byte(strings.Repeat("x", 299) + "é" + strings.Repeat("y", 50))
	got := truncate(body)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("x", 299), got)

	short := []byte("né")
	assert.Equal(t, "né", truncate(short))
}

func TestUnknownRemoteCodeIsGenericFailure(t *testing.T) {
	c := newTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, `{"code":"INVALID_TRANSITION","message":"appointment already completed"}`)
	})
	_, err := c.CompleteAppointment(context.Background(), "apt-1")
	de := domainerr.As(err)
	assert.Equal(t, domainerr.CodeRemoteFailure, de.Code)
	assert.Equal(t, "INVALID_TRANSITION: appointment already completed", de.Message)
}

func TestReauthenticatesOnceOn401(t *testing.T) {
	creds := &fakeCreds{token: "stale", next: "fresh", role: session.RolePatient}
	var keys []string
	var mu sync.Mutex
	c := newTestClient(t, creds, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		keys = append(keys, r.Header.Get("Idempotency-Key"))
		mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer fresh" {
			writeJSON(w, http.StatusUnauthorized, `{"code":"UNAUTHENTICATED"}`)
			return
		}
		writeJSON(w, http.StatusCreated, `{"id":"apt-2","status":"CONFIRMED"}`)
	})

	appt, err := c.CreateAppointment(context.Background(), booking.CreateRequest{ProfessionalID: "prof-1"})
	require.NoError(t, err)
	assert.Equal(t, "apt-2", appt.ID)
	assert.Equal(t, 1, creds.reauths)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, keys, 2)
	assert.Equal(t, keys[0], keys[1], "retry reuses the idempotency key")
}

func TestSecond401IsUnauthenticated(t *testing.T) {
	creds := &fakeCreds{token: "stale", next: "still-bad"}
	var calls atomic.Int32
	c := newTestClient(t, creds, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.ListUpcoming(context.Background(), appointments.Filter{})
	assert.ErrorIs(t, err, domainerr.ErrUnauthenticated)
	assert.Equal(t, 1, creds.reauths)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFailedReauthIsUnauthenticated(t *testing.T) {
	creds := &fakeCreds{token: "stale", reauthErr: errors.New("refresh token expired")}
	var calls atomic.Int32
	c := newTestClient(t, creds, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.GetAvailabilitySlots(context.Background(), "prof-1", "2025-06-10", 30)
	assert.Equal(t, domainerr.CodeUnauthenticated, domainerr.CodeOf(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestLifecycleTransitions(t *testing.T) {
	type seen struct {
		method, path, body string
	}
	var (
		mu  sync.Mutex
		got []seen
	)
	c := newTestClient(t, &fakeCreds{token: "t", role: session.RoleProfessional}, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		got = append(got, seen{r.Method, r.URL.Path, string(b)})
		mu.Unlock()
		id := strings.Split(r.URL.Path, "/")[2]
		writeJSON(w, http.StatusOK, `{"id":"`+id+`","status":"CONFIRMED"}`)
	})
	ctx := context.Background()

	appt, err := c.ConfirmAppointment(ctx, "apt-9")
	require.NoError(t, err)
	assert.Equal(t, "apt-9", appt.ID)
	_, err = c.CancelAppointment(ctx, "apt-9", "patient request")
	require.NoError(t, err)
	_, err = c.CompleteAppointment(ctx, "apt-9")
	require.NoError(t, err)
	_, err = c.MarkNoShow(ctx, "apt-9")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 4)
	assert.Equal(t, seen{http.MethodPatch, "/appointments/apt-9/confirm", ""}, got[0])
	assert.Equal(t, seen{http.MethodPatch, "/appointments/apt-9/cancel", `{"reason":"patient request"}`}, got[1])
	assert.Equal(t, "/appointments/apt-9/complete", got[2].path)
	assert.Equal(t, "/appointments/apt-9/no-show", got[3].path)
}

func TestListAppointmentsQuery(t *testing.T) {
	c := newTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/appointments", r.URL.Path)
		assert.Equal(t, "2025-06-01", q.Get("from"))
		assert.Equal(t, "2025-06-30", q.Get("to"))
		assert.Equal(t, "PENDING", q.Get("status"))
		assert.Equal(t, "prof-1", q.Get("professionalId"))
		assert.Equal(t, "", q.Get("patientId"))
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "20", q.Get("limit"))
		writeJSON(w, http.StatusOK, `{"items":[{"id":"apt-1","status":"PENDING"}],"total":21}`)
	})

	page, err := c.ListAppointments(context.Background(), appointments.Filter{
		From: "2025-06-01", To: "2025-06-30", Status: booking.StatusPending,
		ProfessionalID: "prof-1", Page: 2, Limit: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, 21, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "apt-1", page.Items[0].ID)
}

func TestScheduleRoundTrip(t *testing.T) {
	c := newTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/professionals/prof-1/schedule", r.URL.Path)
		switch r.Method {
		case http.MethodGet:
			b, _ := json.Marshal(schedule.DefaultWeeklySchedule())
			writeJSON(w, http.StatusOK, string(b))
		case http.MethodPut:
			var ws schedule.WeeklySchedule
			require.NoError(t, json.NewDecoder(r.Body).Decode(&ws))
			ws.TimeZone = "Europe/Madrid"
			b, _ := json.Marshal(ws)
			writeJSON(w, http.StatusOK, string(b))
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	})

	ws, err := c.GetWeeklySchedule(context.Background(), "prof-1")
	require.NoError(t, err)
	assert.Equal(t, schedule.DefaultWeeklySchedule(), *ws)

	saved, err := c.UpdateWeeklySchedule(context.Background(), "prof-1", *ws)
	require.NoError(t, err)
	assert.Equal(t, "Europe/Madrid", saved.TimeZone)
	assert.Len(t, saved.Days, 7)
}

func TestAbsences(t *testing.T) {
	c := newTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			assert.Equal(t, "VACATION", r.URL.Query().Get("type"))
			writeJSON(w, http.StatusOK, `{"items":[{"id":"abs-1","type":"VACATION","startDate":"2025-08-01","endDate":"2025-08-10"}]}`)
		case http.MethodPost:
			writeJSON(w, http.StatusCreated, `{"id":"abs-2","type":"CONFERENCE","startDate":"2025-09-01","endDate":"2025-09-03"}`)
		case http.MethodDelete:
			assert.Equal(t, "/professionals/prof-1/absences/abs-1", r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
		}
	})
	ctx := context.Background()

	items, err := c.ListAbsences(ctx, "prof-1", schedule.AbsenceFilter{Type: schedule.AbsenceVacation})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "abs-1", items[0].ID)

	created, err := c.CreateAbsence(ctx, "prof-1", schedule.Absence{Type: schedule.AbsenceConference, StartDate: "2025-09-01", EndDate: "2025-09-03"})
	require.NoError(t, err)
	assert.Equal(t, "abs-2", created.ID)

	require.NoError(t, c.DeleteAbsence(ctx, "prof-1", "abs-1"))
}

func TestRefreshIsAnonymous(t *testing.T) {
	creds := &fakeCreds{token: "expired"}
	c := newTestClient(t, creds, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/refresh", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "refresh-1", body["refreshToken"])
		writeJSON(w, http.StatusOK, `{"accessToken":"access-2","refreshToken":"refresh-2"}`)
	})

	tokens, err := c.Refresh(context.Background(), "refresh-1")
	require.NoError(t, err)
	assert.Equal(t, session.Tokens{Access: "access-2", Refresh: "refresh-2"}, tokens)
	assert.Equal(t, 0, creds.reauths)
}

func TestRemoteCallLatencyObserved(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewBookingMetrics(reg)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"slots":[]}`)
	}))
	t.Cleanup(ts.Close)
	c, err := New(Options{BaseURL: ts.URL, Metrics: m, Logger: logging.Discard()})
	require.NoError(t, err)

	_, err = c.GetAvailabilitySlots(context.Background(), "prof-1", "2025-06-10", 30)
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	var count uint64
	for _, f := range families {
		if f.GetName() != "carebook_api_request_duration_seconds" {
			continue
		}
		for _, metric := range f.GetMetric() {
			count += metric.GetHistogram().GetSampleCount()
		}
	}
	assert.Equal(t, uint64(1), count)
}
