// Package preferences persists per-user booking preferences. Today that is
// the preferred slot length offered when a booking flow starts.
package preferences

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// MaxDurationMinutes bounds a stored slot length.
const MaxDurationMinutes = 8 * 60

// ErrInvalidDuration is returned for a non-positive or oversized duration.
var ErrInvalidDuration = errors.New("preferences: duration must be between 1 and 480 minutes")

// Store reads and writes preferred slot durations. Both implementations
// satisfy booking.DurationPreferences.
type Store interface {
	PreferredDuration(ctx context.Context, userID string) (int, bool, error)
	SetPreferredDuration(ctx context.Context, userID string, minutes int) error
}

func validDuration(minutes int) error {
	if minutes <= 0 || minutes > MaxDurationMinutes {
		return ErrInvalidDuration
	}
	return nil
}

// RedisStore keeps preferences in Redis without expiry.
type RedisStore struct {
	redis  *redis.Client
	tracer trace.Tracer
}

func NewRedisStore(client *redis.Client, tracer trace.Tracer) *RedisStore {
	if client == nil {
		panic("preferences: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("carebook.internal.preferences")
	}
	return &RedisStore{redis: client, tracer: tracer}
}

func durationKey(userID string) string {
	return fmt.Sprintf("carebook:pref:duration:%s", userID)
}

func (s *RedisStore) PreferredDuration(ctx context.Context, userID string) (int, bool, error) {
	ctx, span := s.tracer.Start(ctx, "preferences.get_duration")
	defer span.End()
	span.SetAttributes(attribute.String("carebook.user_id", userID))

	raw, err := s.redis.Get(ctx, durationKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		span.RecordError(err)
		return 0, false, fmt.Errorf("preferences: failed to load duration: %w", err)
	}
	minutes, err := strconv.Atoi(raw)
	if err != nil || validDuration(minutes) != nil {
		// A corrupt value is treated as unset rather than blocking bookings.
		return 0, false, nil
	}
	return minutes, true, nil
}

func (s *RedisStore) SetPreferredDuration(ctx context.Context, userID string, minutes int) error {
	if err := validDuration(minutes); err != nil {
		return err
	}
	ctx, span := s.tracer.Start(ctx, "preferences.set_duration")
	defer span.End()
	span.SetAttributes(attribute.String("carebook.user_id", userID), attribute.Int("carebook.duration_mins", minutes))

	if err := s.redis.Set(ctx, durationKey(userID), strconv.Itoa(minutes), 0).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("preferences: failed to persist duration: %w", err)
	}
	return nil
}

// MemoryStore keeps preferences for the life of the process.
type MemoryStore struct {
	mu        sync.RWMutex
	durations map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{durations: make(map[string]int)}
}

func (s *MemoryStore) PreferredDuration(_ context.Context, userID string) (int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.durations[userID]
	return m, ok, nil
}

func (s *MemoryStore) SetPreferredDuration(_ context.Context, userID string, minutes int) error {
	if err := validDuration(minutes); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.durations[userID] = minutes
	return nil
}
