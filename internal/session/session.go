// Package session holds the acting identity of the client: who is signed
// in, which roles (contexts) they may act under, which one is active and
// the tokens used to talk to the directory API.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/wolfman30/carebook/pkg/logging"
)

// Role is the context a user acts under, distinct from their identity.
type Role string

const (
	RoleAdmin        Role = "ADMIN"
	RoleProfessional Role = "PROFESSIONAL"
	RolePatient      Role = "PATIENT"
)

// ParseRole accepts any casing.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleProfessional, RolePatient:
		return r, nil
	}
	return "", fmt.Errorf("session: unknown role %q", s)
}

var (
	// ErrContextNotAvailable is returned when switching to a role the
	// identity does not hold.
	ErrContextNotAvailable = errors.New("session: context not available for this identity")

	// ErrNoRefresher is returned by Reauthenticate when no refresher is set.
	ErrNoRefresher = errors.New("session: no refresher configured")
)

// Provider is the contract the booking core consumes.
type Provider interface {
	CurrentUserID() string
	CurrentProfessionalID() string
	CurrentPatientID() string
	ActiveRole() Role
	Token(ctx context.Context) (string, error)
	Reauthenticate(ctx context.Context) error
}

// ActingContext pairs a role with the entity the identity acts as in that
// role (professional id, patient id; empty for ADMIN).
type ActingContext struct {
	Role     Role   `json:"role"`
	EntityID string `json:"entityId,omitempty"`
}

// Tokens are the credentials for the directory API.
type Tokens struct {
	Access  string
	Refresh string
}

// Refresher exchanges a refresh token for a new token pair.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (Tokens, error)
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context, refreshToken string) (Tokens, error)

func (f RefresherFunc) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	return f(ctx, refreshToken)
}

// Store is the multi-context session store. It is safe for concurrent use;
// switching context never waits for in-flight booking work.
type Store struct {
	mu       sync.RWMutex
	userID   string
	contexts map[Role]string
	active   Role
	tokens   Tokens

	refreshMu sync.Mutex
	refresher Refresher
	onLost    []func(error)
	logger    *logging.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithRefresher sets the token refresher used on authentication loss.
func WithRefresher(r Refresher) Option {
	return func(s *Store) { s.refresher = r }
}

// WithLogger sets the store logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore creates a session for userID. The first context becomes active.
func NewStore(userID string, contexts []ActingContext, tokens Tokens, opts ...Option) *Store {
	s := &Store{
		userID:   userID,
		contexts: make(map[Role]string, len(contexts)),
		tokens:   tokens,
	}
	for i, c := range contexts {
		s.contexts[c.Role] = c.EntityID
		if i == 0 {
			s.active = c.Role
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.Default()
	}
	return s
}

func (s *Store) CurrentUserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// CurrentProfessionalID is non-empty only while acting as a professional.
func (s *Store) CurrentProfessionalID() string {
	return s.entityFor(RoleProfessional)
}

// CurrentPatientID is non-empty only while acting as a patient.
func (s *Store) CurrentPatientID() string {
	return s.entityFor(RolePatient)
}

func (s *Store) entityFor(role Role) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active != role {
		return ""
	}
	return s.contexts[role]
}

func (s *Store) ActiveRole() Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Contexts lists the contexts available to the identity, ordered by role.
func (s *Store) Contexts() []ActingContext {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ActingContext, 0, len(s.contexts))
	for role, id := range s.contexts {
		out = append(out, ActingContext{Role: role, EntityID: id})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Role < out[j].Role })
	return out
}

// UseContext switches the active role.
func (s *Store) UseContext(role Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contexts[role]; !ok {
		return fmt.Errorf("%w: %s", ErrContextNotAvailable, role)
	}
	if s.active != role {
		s.logger.Info("session: context switched", "from", s.active, "to", role)
	}
	s.active = role
	return nil
}

// Token returns the current access token.
func (s *Store) Token(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tokens.Access == "" {
		return "", errors.New("session: not signed in")
	}
	return s.tokens.Access, nil
}

// OnAuthLost registers fn to be called when re-authentication fails, which
// is where a UI would start its sign-in flow.
func (s *Store) OnAuthLost(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onLost = append(s.onLost, fn)
}

// Reauthenticate refreshes the token pair. Concurrent callers are
// serialized; a caller that arrives after another refresh already swapped
// the token reuses it.
func (s *Store) Reauthenticate(ctx context.Context) error {
	s.mu.RLock()
	before := s.tokens.Access
	s.mu.RUnlock()

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	s.mu.RLock()
	current := s.tokens
	refresher := s.refresher
	s.mu.RUnlock()
	if current.Access != before {
		return nil
	}
	if refresher == nil || current.Refresh == "" {
		s.authLost(ErrNoRefresher)
		return ErrNoRefresher
	}

	next, err := refresher.Refresh(ctx, current.Refresh)
	if err != nil {
		err = fmt.Errorf("session: refresh: %w", err)
		s.authLost(err)
		return err
	}
	if next.Refresh == "" {
		next.Refresh = current.Refresh
	}

	s.mu.Lock()
	s.tokens = next
	if claims, perr := parseClaims(next.Access); perr == nil {
		s.applyClaimsLocked(claims)
	}
	s.mu.Unlock()

	s.logger.Info("session: re-authenticated", "user_id", s.CurrentUserID())
	return nil
}

func (s *Store) authLost(err error) {
	s.mu.RLock()
	listeners := append([]func(error){}, s.onLost...)
	s.mu.RUnlock()
	s.logger.Warn("session: authentication lost", "error", err)
	for _, fn := range listeners {
		fn(err)
	}
}
