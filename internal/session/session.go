// Package session holds the terminal's authenticated backend session as an
// explicitly passed object: created after login, injected into whatever
// needs the current user or role, torn down at logout. Nothing here is
// global state.
package session

import (
	"errors"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"supermarket/terminal/internal/domain"
)

var ErrNoSession = errors.New("no active session")

// tokenClaims mirrors the claims the backend puts into its access tokens.
// The signing key is the backend's, so the token is decoded without
// signature verification; the backend re-verifies it on every call anyway.
type tokenClaims struct {
	jwtlib.RegisteredClaims
	Role string `json:"role"`
	Name string `json:"name"`
}

type Session struct {
	mu        sync.RWMutex
	token     string
	name      string
	email     string
	role      string
	expiresAt time.Time
}

func New() *Session {
	return &Session{}
}

// Establish installs the credentials from a successful login. Claims from
// the token fill in anything the login response body left empty.
func (s *Session) Establish(resp domain.LoginResponse) {
	claims := decodeClaims(resp.Token)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = resp.Token
	s.name = resp.Name
	s.email = resp.Email
	s.role = resp.Role
	s.expiresAt = time.Time{}

	if claims != nil {
		if s.role == "" {
			s.role = claims.Role
		}
		if s.name == "" {
			s.name = claims.Name
		}
		if claims.ExpiresAt != nil {
			s.expiresAt = claims.ExpiresAt.Time
		}
	}
}

func decodeClaims(token string) *tokenClaims {
	if token == "" {
		return nil
	}
	claims := &tokenClaims{}
	parser := jwtlib.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil
	}
	return claims
}

// Token implements backend.TokenSource. It returns the empty string once
// the token has expired so expired credentials are never sent.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" || s.expiredLocked() {
		return ""
	}
	return s.token
}

func (s *Session) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *Session) Email() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.email
}

func (s *Session) Role() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

func (s *Session) IsAdmin() bool {
	return s.Role() == "admin"
}

// Active reports whether a non-expired session is established.
func (s *Session) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != "" && !s.expiredLocked()
}

func (s *Session) expiredLocked() bool {
	return !s.expiresAt.IsZero() && time.Now().After(s.expiresAt)
}

// Logout discards all credentials.
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.name = ""
	s.email = ""
	s.role = ""
	s.expiresAt = time.Time{}
}
