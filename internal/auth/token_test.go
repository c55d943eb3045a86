// ABOUTME: Unit tests for credential issuance
// ABOUTME: Tests fixed claims, default and explicit expiry, and expiry validation

package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"

// freezeTime pins the package clock for the duration of the test.
func freezeTime(t *testing.T, at time.Time) {
	t.Helper()
	prev := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = prev })
}

func parseUnverified(t *testing.T, token string) *Claims {
	t.Helper()
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		t.Fatalf("ParseUnverified() error = %v", err)
	}
	return claims
}

func TestIssue_DefaultClaims(t *testing.T) {
	issuedAt := time.Unix(1_700_000_000, 0)
	freezeTime(t, issuedAt)

	token, err := Issue(testSecret, nil)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Fatalf("Issue() = %q, want three-part token", token)
	}

	claims := parseUnverified(t, token)
	if claims.Subject != "user" {
		t.Errorf("sub = %q, want %q", claims.Subject, "user")
	}
	if claims.Issuer != "issuer" {
		t.Errorf("iss = %q, want %q", claims.Issuer, "issuer")
	}
	if got := claims.IssuedAt.Unix(); got != issuedAt.Unix() {
		t.Errorf("iat = %d, want %d", got, issuedAt.Unix())
	}
	wantExp := issuedAt.Add(3 * 52 * 7 * 24 * time.Hour).Unix()
	if got := claims.ExpiresAt.Unix(); got != wantExp {
		t.Errorf("exp = %d, want %d", got, wantExp)
	}
}

func TestIssue_ExplicitExpiry(t *testing.T) {
	issuedAt := time.Unix(1_700_000_000, 0)
	freezeTime(t, issuedAt)

	expiry := issuedAt.Add(time.Hour)
	token, err := Issue(testSecret, &expiry)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	claims := parseUnverified(t, token)
	if got := claims.ExpiresAt.Unix(); got != expiry.Unix() {
		t.Errorf("exp = %d, want %d", got, expiry.Unix())
	}
	if claims.ExpiresAt.Unix() <= claims.IssuedAt.Unix() {
		t.Errorf("exp %d must be after iat %d", claims.ExpiresAt.Unix(), claims.IssuedAt.Unix())
	}
}

func TestIssue_RejectsPastExpiry(t *testing.T) {
	issuedAt := time.Unix(1_700_000_000, 0)
	freezeTime(t, issuedAt)

	for _, expiry := range []time.Time{issuedAt, issuedAt.Add(-time.Hour)} {
		_, err := Issue(testSecret, &expiry)
		if !errors.Is(err, ErrInvalidExpiry) {
			t.Errorf("Issue(exp=%v) error = %v, want ErrInvalidExpiry", expiry, err)
		}
	}
}

func TestIssue_VerifiesWithSameSecret(t *testing.T) {
	token, err := Issue(testSecret, nil)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	gate := NewGate(true, testSecret)
	if err := gate.Verify("Bearer " + token); err != nil {
		t.Errorf("Verify() error = %v", err)
	}

	other := NewGate(true, "different-secret")
	if err := other.Verify("Bearer " + token); !errors.Is(err, ErrAuthInvalid) {
		t.Errorf("Verify() with other secret error = %v, want ErrAuthInvalid", err)
	}
}
