package session

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"supermarket/terminal/internal/domain"
)

func signedToken(t *testing.T, role string, expiresAt time.Time) string {
	t.Helper()
	claims := tokenClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
		},
		Role: role,
		Name: "Asha",
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("backend-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestEstablishFillsRoleFromClaims(t *testing.T) {
	s := New()
	s.Establish(domain.LoginResponse{
		Token: signedToken(t, "cashier", time.Now().Add(time.Hour)),
	})

	if !s.Active() {
		t.Fatalf("expected active session")
	}
	if s.Role() != "cashier" {
		t.Fatalf("expected role cashier from claims, got %q", s.Role())
	}
	if s.Name() != "Asha" {
		t.Fatalf("expected name from claims, got %q", s.Name())
	}
	if s.Token() == "" {
		t.Fatalf("expected token to be available")
	}
}

func TestLoginResponseFieldsWinOverClaims(t *testing.T) {
	s := New()
	s.Establish(domain.LoginResponse{
		Token: signedToken(t, "cashier", time.Now().Add(time.Hour)),
		Name:  "Admin A",
		Role:  "admin",
	})

	if s.Role() != "admin" || !s.IsAdmin() {
		t.Fatalf("expected explicit role to win, got %q", s.Role())
	}
	if s.Name() != "Admin A" {
		t.Fatalf("expected explicit name to win, got %q", s.Name())
	}
}

func TestExpiredTokenIsNeverSent(t *testing.T) {
	s := New()
	s.Establish(domain.LoginResponse{
		Token: signedToken(t, "cashier", time.Now().Add(-time.Minute)),
	})

	if s.Active() {
		t.Fatalf("expected expired session to be inactive")
	}
	if s.Token() != "" {
		t.Fatalf("expired token must not be exposed")
	}
}

func TestOpaqueTokenStillUsable(t *testing.T) {
	s := New()
	s.Establish(domain.LoginResponse{Token: "not-a-jwt", Role: "cashier"})

	if !s.Active() {
		t.Fatalf("expected session with opaque token to be active")
	}
	if s.Token() != "not-a-jwt" {
		t.Fatalf("expected opaque token passthrough")
	}
}

func TestLogoutTearsDownEverything(t *testing.T) {
	s := New()
	s.Establish(domain.LoginResponse{Token: "tok", Name: "A", Role: "admin"})
	s.Logout()

	if s.Active() || s.Token() != "" || s.Role() != "" || s.Name() != "" {
		t.Fatalf("expected empty session after logout")
	}
}
