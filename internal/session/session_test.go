package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/carebook/pkg/logging"
)

func signToken(t *testing.T, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestStoreRoleScopedIDs(t *testing.T) {
	s := NewStore("user-1", []ActingContext{
		{Role: RolePatient, EntityID: "pat-1"},
		{Role: RoleProfessional, EntityID: "prof-1"},
	}, Tokens{Access: "a"}, WithLogger(logging.Discard()))

	assert.Equal(t, RolePatient, s.ActiveRole())
	assert.Equal(t, "pat-1", s.CurrentPatientID())
	assert.Empty(t, s.CurrentProfessionalID())

	require.NoError(t, s.UseContext(RoleProfessional))
	assert.Equal(t, "prof-1", s.CurrentProfessionalID())
	assert.Empty(t, s.CurrentPatientID())
	assert.Equal(t, "user-1", s.CurrentUserID())
}

func TestUseContextRejectsUnknownRole(t *testing.T) {
	s := NewStore("user-1", []ActingContext{{Role: RolePatient, EntityID: "pat-1"}}, Tokens{}, WithLogger(logging.Discard()))
	err := s.UseContext(RoleAdmin)
	assert.ErrorIs(t, err, ErrContextNotAvailable)
	assert.Equal(t, RolePatient, s.ActiveRole())
}

func TestFromTokenHonoursActiveContextClaim(t *testing.T) {
	access := signToken(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-9"},
		Contexts: []ActingContext{
			{Role: RolePatient, EntityID: "pat-9"},
			{Role: RoleProfessional, EntityID: "prof-9"},
		},
		ActiveContext: RoleProfessional,
	})

	s, err := FromToken(Tokens{Access: access}, WithLogger(logging.Discard()))
	require.NoError(t, err)
	assert.Equal(t, "user-9", s.CurrentUserID())
	assert.Equal(t, RoleProfessional, s.ActiveRole())
	assert.Equal(t, "prof-9", s.CurrentProfessionalID())
	assert.Len(t, s.Contexts(), 2)
}

func TestFromTokenRejectsGarbage(t *testing.T) {
	_, err := FromToken(Tokens{Access: "not-a-jwt"})
	assert.Error(t, err)

	noSubject := signToken(t, Claims{})
	_, err = FromToken(Tokens{Access: noSubject})
	assert.Error(t, err)
}

func TestReauthenticateSwapsTokensAndKeepsActiveRole(t *testing.T) {
	first := signToken(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
		Contexts: []ActingContext{
			{Role: RolePatient, EntityID: "pat-1"},
			{Role: RoleProfessional, EntityID: "prof-1"},
		},
	})
	second := signToken(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1", ID: "rotated"},
		Contexts: []ActingContext{
			{Role: RolePatient, EntityID: "pat-1"},
			{Role: RoleProfessional, EntityID: "prof-1"},
		},
	})

	var calls atomic.Int32
	refresher := RefresherFunc(func(_ context.Context, refresh string) (Tokens, error) {
		calls.Add(1)
		assert.Equal(t, "refresh-1", refresh)
		return Tokens{Access: second}, nil
	})

	s, err := FromToken(Tokens{Access: first, Refresh: "refresh-1"}, WithRefresher(refresher), WithLogger(logging.Discard()))
	require.NoError(t, err)
	require.NoError(t, s.UseContext(RoleProfessional))

	require.NoError(t, s.Reauthenticate(context.Background()))
	token, err := s.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, second, token)
	assert.Equal(t, RoleProfessional, s.ActiveRole())
	assert.Equal(t, int32(1), calls.Load())
}

func TestReauthenticateFailureNotifiesListeners(t *testing.T) {
	boom := errors.New("refresh token expired")
	s := NewStore("user-1", nil, Tokens{Access: "a", Refresh: "r"},
		WithRefresher(RefresherFunc(func(context.Context, string) (Tokens, error) { return Tokens{}, boom })),
		WithLogger(logging.Discard()))

	var lost error
	s.OnAuthLost(func(err error) { lost = err })

	err := s.Reauthenticate(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, lost, boom)
}

func TestReauthenticateWithoutRefresher(t *testing.T) {
	s := NewStore("user-1", nil, Tokens{Access: "a"}, WithLogger(logging.Discard()))
	assert.ErrorIs(t, s.Reauthenticate(context.Background()), ErrNoRefresher)
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" professional ")
	require.NoError(t, err)
	assert.Equal(t, RoleProfessional, r)

	_, err = ParseRole("nurse")
	assert.Error(t, err)
}
