package session

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the access token payload issued by the directory API.
type Claims struct {
	jwt.RegisteredClaims
	Contexts      []ActingContext `json:"contexts"`
	ActiveContext Role            `json:"active_context,omitempty"`
}

// parseClaims decodes the token without verifying its signature. The
// client never holds the signing key; the API verifies every request.
func parseClaims(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("session: parse token: %w", err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("session: token has no subject")
	}
	return claims, nil
}

// FromToken builds a Store from the claims of an access token.
func FromToken(tokens Tokens, opts ...Option) (*Store, error) {
	claims, err := parseClaims(tokens.Access)
	if err != nil {
		return nil, err
	}
	s := NewStore(claims.Subject, claims.Contexts, tokens, opts...)
	s.mu.Lock()
	s.active = ""
	s.applyClaimsLocked(claims)
	s.mu.Unlock()
	return s, nil
}

func (s *Store) applyClaimsLocked(c *Claims) {
	s.userID = c.Subject
	if len(c.Contexts) > 0 {
		s.contexts = make(map[Role]string, len(c.Contexts))
		for _, ac := range c.Contexts {
			s.contexts[ac.Role] = ac.EntityID
		}
	}
	if _, ok := s.contexts[s.active]; ok {
		return
	}
	if _, ok := s.contexts[c.ActiveContext]; ok {
		s.active = c.ActiveContext
		return
	}
	s.active = ""
	if len(c.Contexts) > 0 {
		s.active = c.Contexts[0].Role
	}
}
