package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleConsole is the only role allowed on the console websocket
const RoleConsole = "console"

var (
	// ErrUnknownAccessKey is returned for an access key no console owns
	ErrUnknownAccessKey = errors.New("unknown access key")
	// ErrInvalidClaims is returned when a valid token lacks a console id
	ErrInvalidClaims = errors.New("token has no console id")
)

// JWTClaims represents the claims in our JWT token
type JWTClaims struct {
	ConsoleID string `json:"console_id"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and validates console tokens
type Issuer struct {
	secret     []byte
	ttl        time.Duration
	accessKeys map[string]string
	now        func() time.Time
}

// NewIssuer creates an issuer. accessKeys maps access keys to console ids.
func NewIssuer(secret []byte, ttl time.Duration, accessKeys map[string]string) *Issuer {
	return &Issuer{
		secret:     secret,
		ttl:        ttl,
		accessKeys: accessKeys,
		now:        time.Now,
	}
}

// Authenticate exchanges an access key for a console token
func (i *Issuer) Authenticate(accessKey string) (token string, consoleID string, expiresAt time.Time, err error) {
	consoleID, ok := i.accessKeys[accessKey]
	if !ok {
		return "", "", time.Time{}, ErrUnknownAccessKey
	}
	token, expiresAt, err = i.GenerateConsoleToken(consoleID)
	return token, consoleID, expiresAt, err
}

// GenerateConsoleToken generates a JWT token for console authentication
func (i *Issuer) GenerateConsoleToken(consoleID string) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(i.ttl)
	claims := &JWTClaims{
		ConsoleID: consoleID,
		Role:      RoleConsole,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   consoleID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken validates a JWT token and returns the claims
func (i *Issuer) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.ConsoleID == "" {
		return nil, ErrInvalidClaims
	}
	return claims, nil
}
