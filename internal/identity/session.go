// Package identity issues and verifies guardian session tokens.
//
// A session token scopes a signed-in guardian to one device key. Read
// endpoints accept anonymous access for backwards compatibility with older
// dashboard builds; when a token is presented it must match the key being
// read.
package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionClaims are the JWT claims for a guardian dashboard session.
type SessionClaims struct {
	jwt.RegisteredClaims
	DeviceKey string `json:"device_key"`
	Type      string `json:"type"` // always "guardian"
}

// SessionIssuer issues and verifies HS256 session tokens.
type SessionIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewSessionIssuer creates a SessionIssuer.
//
//	secret: shared HMAC signing key.
//	issuerURL: the "iss" claim value; matches the service's base URL.
//	ttl: token lifetime (default: 24 hours).
func NewSessionIssuer(secret []byte, issuerURL string, ttl time.Duration) *SessionIssuer {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &SessionIssuer{secret: secret, issuer: issuerURL, ttl: ttl}
}

// Issue creates a signed session token scoped to deviceKey.
func (s *SessionIssuer) Issue(deviceKey string) (string, error) {
	now := time.Now().UTC()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   deviceKey,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.New().String(),
		},
		DeviceKey: deviceKey,
		Type:      "guardian",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a session token, returning its claims.
func (s *SessionIssuer) Verify(tokenStr string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&SessionClaims{},
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("verify session token: %w", err)
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid session token claims")
	}
	if claims.Type != "guardian" {
		return nil, fmt.Errorf("not a guardian session token")
	}
	return claims, nil
}
