package auth

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIssueAndVerify(t *testing.T) {
	s := NewSigner("secret123", 5*time.Minute, time.Minute)
	tok, claims := s.Issue("abc")

	got, err := s.Verify(tok, "abc")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got.SessionID != "abc" || !got.ExpiresAt.Equal(claims.ExpiresAt) {
		t.Fatalf("mismatch: %+v vs %+v", got, claims)
	}
	if _, err := s.Verify(tok, ""); err != nil {
		t.Fatalf("verify without session: %v", err)
	}
}

func TestBadSignature(t *testing.T) {
	s := NewSigner("secret123", 5*time.Minute, time.Minute)
	tok, _ := s.Issue("abc")

	other := NewSigner("other", 5*time.Minute, time.Minute)
	if _, err := other.Verify(tok, "abc"); !errors.Is(err, ErrTokenSig) {
		t.Fatalf("expected ErrTokenSig, got %v", err)
	}

	// flip a char
	if tok[0] == 'A' {
		tok = "B" + tok[1:]
	} else {
		tok = "A" + tok[1:]
	}
	if _, err := s.Verify(tok, "abc"); err == nil {
		t.Fatalf("expected error for bad token")
	}
}

func TestExpiryHonoursSkew(t *testing.T) {
	s := NewSigner("k", time.Minute, 30*time.Second)
	base := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return base }
	tok, _ := s.Issue("abc")

	s.now = func() time.Time { return base.Add(80 * time.Second) }
	if _, err := s.Verify(tok, "abc"); err != nil {
		t.Fatalf("within skew should pass: %v", err)
	}
	s.now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, err := s.Verify(tok, "abc"); !errors.Is(err, ErrTokenExp) {
		t.Fatalf("expected ErrTokenExp, got %v", err)
	}
}

func TestSessionMismatch(t *testing.T) {
	s := NewSigner("k", time.Minute, 0)
	tok, _ := s.Issue("abc")
	if _, err := s.Verify(tok, "xyz"); !errors.Is(err, ErrTokenSID) {
		t.Fatalf("expected ErrTokenSID, got %v", err)
	}
	if _, err := s.Verify("%%%", "abc"); !errors.Is(err, ErrTokenFormat) {
		t.Fatalf("expected ErrTokenFormat, got %v", err)
	}
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	if _, err := BearerToken(r); !errors.Is(err, ErrTokenMissing) {
		t.Fatalf("expected ErrTokenMissing, got %v", err)
	}
	r.Header.Set("Authorization", "bearer tok123")
	if tok, err := BearerToken(r); err != nil || tok != "tok123" {
		t.Fatalf("got %q, %v", tok, err)
	}
}
