package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/carebook/internal/apiclient"
	"github.com/wolfman30/carebook/internal/appointments"
	"github.com/wolfman30/carebook/internal/booking"
	"github.com/wolfman30/carebook/internal/config"
	"github.com/wolfman30/carebook/internal/notify"
	"github.com/wolfman30/carebook/internal/observability/metrics"
	"github.com/wolfman30/carebook/internal/preferences"
	"github.com/wolfman30/carebook/internal/schedule"
	"github.com/wolfman30/carebook/internal/session"
	"github.com/wolfman30/carebook/pkg/logging"
)

// app holds everything a subcommand needs, built once per invocation.
type app struct {
	cfg     *config.Config
	logger  *logging.Logger
	out     io.Writer
	loc     *time.Location
	session *session.Store
	api     *apiclient.Client
	prefs   preferences.Store
	redis   *redis.Client
	sink    notify.Sink

	registry *prometheus.Registry
	metrics  *metrics.BookingMetrics
}

func newApp(ctx context.Context, cfg *config.Config, out, errOut io.Writer, role string) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	logger := logging.NewWithWriter(errOut, cfg.LogLevel).With("env", cfg.Env)

	a := &app{
		cfg:    cfg,
		logger: logger,
		out:    out,
		loc:    loc,
		sink:   notify.Fanout{notify.NewWriterSink(out), notify.NewLogSink(logger)},
	}
	if cfg.MetricsEnabled {
		a.registry = prometheus.NewRegistry()
		a.metrics = metrics.NewBookingMetrics(a.registry)
	}

	// The refresher has to exist before the session, and the authenticated
	// client needs the session.
	anon, err := apiclient.New(apiclient.Options{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.HTTPTimeout,
		Metrics: a.metrics,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	store, err := session.FromToken(
		session.Tokens{Access: cfg.AccessToken, Refresh: cfg.RefreshToken},
		session.WithRefresher(anon),
		session.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	if role != "" {
		r, err := session.ParseRole(role)
		if err != nil {
			return nil, err
		}
		if err := store.UseContext(r); err != nil {
			return nil, err
		}
	}
	store.OnAuthLost(func(error) {
		a.sink.Error("Your session has expired. Sign in again and update CAREBOOK_ACCESS_TOKEN.")
	})
	a.session = store
	a.api = anon.WithCredentials(store)

	a.prefs = preferences.NewMemoryStore()
	if addr := strings.TrimSpace(cfg.RedisAddr); addr != "" {
		opts := &redis.Options{Addr: addr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		a.redis = redis.NewClient(opts)
		if err := a.redis.Ping(ctx).Err(); err != nil {
			logger.Warn("redis not available, preferences kept in memory", "error", err)
			_ = a.redis.Close()
			a.redis = nil
		} else {
			a.prefs = preferences.NewRedisStore(a.redis, nil)
		}
	}

	logger.Debug("carebook: session ready", "user_id", store.CurrentUserID(), "role", store.ActiveRole())
	return a, nil
}

func (a *app) close() {
	a.logMetrics()
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("redis close failed", "error", err)
		}
	}
}

// logMetrics writes the non-zero counters of this invocation at debug
// level. A CLI process is too short lived to be scraped.
func (a *app) logMetrics() {
	if a.registry == nil {
		return
	}
	families, err := a.registry.Gather()
	if err != nil {
		a.logger.Warn("metrics gather failed", "error", err)
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			switch {
			case m.GetCounter() != nil:
				a.logger.Debug("metric", "name", mf.GetName(), "labels", strings.Join(labels, ","), "value", m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				a.logger.Debug("metric", "name", mf.GetName(), "labels", strings.Join(labels, ","),
					"count", m.GetHistogram().GetSampleCount(), "sum_seconds", m.GetHistogram().GetSampleSum())
			}
		}
	}
}

func (a *app) bookingConfig() booking.Config {
	return booking.Config{
		Slots:           a.api,
		Bookings:        a.api,
		Preferences:     a.prefs,
		Users:           a.session,
		Location:        a.loc,
		DefaultDuration: a.cfg.DefaultSlotDurationMins,
		Sink:            a.sink,
		Metrics:         a.metrics,
		Logger:          a.logger,
	}
}

func (a *app) appointments() *appointments.Manager {
	return appointments.NewManager(appointments.Config{
		Mutations: a.api,
		Lists:     a.api,
		Scope:     a.session,
		Sink:      a.sink,
		Metrics:   a.metrics,
		Logger:    a.logger,
	})
}

func (a *app) scheduleEditor(professionalID string) *schedule.Editor {
	return schedule.NewEditor(schedule.EditorConfig{
		Schedules:      a.api,
		Absences:       a.api,
		Session:        a.session,
		ProfessionalID: professionalID,
		Sink:           a.sink,
		Metrics:        a.metrics,
		Logger:         a.logger,
	})
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}
