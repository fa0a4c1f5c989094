package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	SessionCookieName = "donato_session"
	defaultSessionTTL = time.Hour
)

// ErrInvalidSession is returned for tampered, expired or malformed session cookies.
var ErrInvalidSession = errors.New("invalid session")

// SessionClaims carry only an opaque session id; the pending order stays server side.
type SessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// NewSessionID returns a random session id.
func NewSessionID() string {
	return uuid.NewString()
}

// SignSession signs a session cookie value for sid.
func SignSession(secret string, sid string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("session secret is empty")
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	now := time.Now()
	claims := SessionClaims{
		SessionID: sid,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   "donor",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseSession validates a session cookie value and returns its session id.
func ParseSession(secret string, tokenString string) (string, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", errors.Join(ErrInvalidSession, err)
	}
	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.SessionID) == "" {
		return "", ErrInvalidSession
	}
	return claims.SessionID, nil
}
