// Package token issues and verifies the signed handles clients use to refer to
// their server-side session. A handle identifies a session; it grants no
// access to any room.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid or expired session token")
	ErrMissingToken = errors.New("session token required")
)

// Manager signs and validates session handles.
type Manager struct {
	secretKey []byte
	ttl       time.Duration
	now       func() time.Time
}

// Claims carried by a session handle.
type Claims struct {
	SessionID string `json:"sid"`
	Profile   string `json:"profile"`
	jwt.RegisteredClaims
}

// NewManager creates a Manager. Handles expire ttl after issue.
func NewManager(secretKey string, ttl time.Duration) *Manager {
	return &Manager{
		secretKey: []byte(secretKey),
		ttl:       ttl,
		now:       time.Now,
	}
}

// Issue returns a signed handle for the session.
func (m *Manager) Issue(sessionID, profile string) (string, error) {
	now := m.now()
	claims := &Claims{
		SessionID: sessionID,
		Profile:   profile,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   profile,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate parses a handle and returns its claims.
func (m *Manager) Validate(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return m.secretKey, nil
		},
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
