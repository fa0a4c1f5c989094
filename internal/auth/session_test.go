package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestSessionRoundTrip(t *testing.T) {
	t.Parallel()

	sid := NewSessionID()
	token, err := SignSession("secret", sid, time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	got, err := ParseSession("secret", token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != sid {
		t.Fatalf("sid = %q, want %q", got, sid)
	}
}

func TestSessionRejectsTampering(t *testing.T) {
	t.Parallel()

	token, err := SignSession("secret", NewSessionID(), time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseSession("other-secret", token); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("wrong secret should fail, got %v", err)
	}
	if _, err := ParseSession("secret", token+"x"); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("modified token should fail, got %v", err)
	}
	if _, err := SignSession(" ", "sid", time.Minute); err == nil {
		t.Fatalf("empty secret should fail")
	}
}

func TestSessionRejectsExpiredAndForeignAlgorithms(t *testing.T) {
	t.Parallel()

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		SessionID: "sid",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	signed, err := expired.SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseSession("secret", signed); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expired session should fail, got %v", err)
	}

	hs512 := jwt.NewWithClaims(jwt.SigningMethodHS512, SessionClaims{SessionID: "sid"})
	signed, err = hs512.SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseSession("secret", signed); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("unexpected algorithm should fail, got %v", err)
	}

	empty, err := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseSession("secret", empty); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("missing sid should fail, got %v", err)
	}
}
