// Package token issues and verifies the platform's bearer tokens.
//
// Tokens are HS256 JWTs carrying the account id, email, and a token version.
// The version is checked against the identity store on every request so that
// logout and password changes invalidate tokens that are otherwise still
// within their lifetime.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned for tokens that fail signature or
	// structural validation.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken is returned for well-formed tokens past their expiry.
	ErrExpiredToken = errors.New("expired token")
)

// Claims is the verified content of a bearer token.
type Claims struct {
	UserID       int64
	Email        string
	TokenVersion int32
	ExpiresAt    time.Time
}

type platformClaims struct {
	Email   string `json:"email"`
	Version int32  `json:"ver"`
	jwt.RegisteredClaims
}

// Manager signs and verifies bearer tokens.
type Manager struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewManager creates a manager with the provided secret, issuer, and lifetime.
func NewManager(secret, issuer string, ttl time.Duration) (*Manager, error) {
	if len(secret) < 32 {
		return nil, errors.New("token: secret must be at least 32 bytes")
	}
	if ttl <= 0 {
		return nil, errors.New("token: non-positive ttl")
	}
	return &Manager{secret: []byte(secret), issuer: issuer, ttl: ttl}, nil
}

// Issue signs a token for the user at the given token version.
func (m *Manager) Issue(userID int64, email string, version int32) (string, error) {
	now := time.Now()
	claims := platformClaims{
		Email:   email,
		Version: version,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(m.secret)
}

// Verify parses and validates a raw token string.
//
// Version staleness is NOT checked here; callers compare Claims.TokenVersion
// against the stored version so revocation works without shared state in
// this package.
func (m *Manager) Verify(raw string) (Claims, error) {
	var pc platformClaims
	tok, err := jwt.ParseWithClaims(raw, &pc, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return m.secret, nil
	},
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpiredToken
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tok.Valid {
		return Claims{}, ErrInvalidToken
	}

	userID, err := strconv.ParseInt(pc.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return Claims{}, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}

	out := Claims{
		UserID:       userID,
		Email:        pc.Email,
		TokenVersion: pc.Version,
	}
	if pc.ExpiresAt != nil {
		out.ExpiresAt = pc.ExpiresAt.Time
	}
	return out, nil
}
