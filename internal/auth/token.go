// Package auth issues and checks the bearer tokens the gateway hands out on
// interview start. A token binds one session id to an expiry and is signed
// with HMAC-SHA256.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	ErrTokenFormat  = errors.New("invalid token format")
	ErrTokenSig     = errors.New("invalid token signature")
	ErrTokenExp     = errors.New("token expired")
	ErrTokenSID     = errors.New("session id mismatch")
	ErrTokenMissing = errors.New("missing bearer token")
)

// Claims is what a valid token asserts.
type Claims struct {
	SessionID string
	ExpiresAt time.Time
}

// Signer issues and verifies session tokens.
type Signer struct {
	secret []byte
	ttl    time.Duration
	skew   time.Duration
	now    func() time.Time
}

func NewSigner(secret string, ttl, skew time.Duration) *Signer {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &Signer{secret: []byte(secret), ttl: ttl, skew: skew, now: time.Now}
}

// RandomSecret returns a hex secret for deployments that did not configure
// one. Tokens signed with it do not survive a restart.
func RandomSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Issue returns base64url(sid "." exp "." hex(hmac(sid "." exp))).
func (s *Signer) Issue(sessionID string) (string, Claims) {
	exp := s.now().Add(s.ttl).Unix()
	msg := sessionID + "." + strconv.FormatInt(exp, 10)
	raw := msg + "." + hex.EncodeToString(s.sign(msg))
	return base64.RawURLEncoding.EncodeToString([]byte(raw)), Claims{SessionID: sessionID, ExpiresAt: time.Unix(exp, 0)}
}

// Verify checks the signature and expiry. A non-empty sessionID must match
// the token's.
func (s *Signer) Verify(token, sessionID string) (Claims, error) {
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Claims{}, ErrTokenFormat
	}
	// session ids never contain dots, so split from the right
	raw := string(b)
	i := strings.LastIndexByte(raw, '.')
	if i <= 0 {
		return Claims{}, ErrTokenFormat
	}
	msg, sigHex := raw[:i], raw[i+1:]
	j := strings.LastIndexByte(msg, '.')
	if j <= 0 {
		return Claims{}, ErrTokenFormat
	}
	sid := msg[:j]
	exp, err := strconv.ParseInt(msg[j+1:], 10, 64)
	if err != nil {
		return Claims{}, ErrTokenFormat
	}
	got, err := hex.DecodeString(sigHex)
	if err != nil {
		return Claims{}, ErrTokenFormat
	}
	if !hmac.Equal(s.sign(msg), got) {
		return Claims{}, ErrTokenSig
	}
	if s.now().After(time.Unix(exp, 0).Add(s.skew)) {
		return Claims{}, ErrTokenExp
	}
	if sessionID != "" && sid != sessionID {
		return Claims{}, ErrTokenSID
	}
	return Claims{SessionID: sid, ExpiresAt: time.Unix(exp, 0)}, nil
}

func (s *Signer) sign(msg string) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(msg))
	return mac.Sum(nil)
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", ErrTokenMissing
	}
	return strings.TrimSpace(h[len(prefix):]), nil
}

type claimsKey struct{}

func WithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

func FromContext(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(Claims)
	return c, ok
}
