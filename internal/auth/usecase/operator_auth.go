package usecase

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrAuthDisabled is returned when no signing secret is configured.
	// The inspection API then stays closed.
	ErrAuthDisabled = errors.New("operator auth is not configured")
	ErrInvalidToken = errors.New("invalid token")
)

const minSecretLength = 32

// OperatorAuth issues and validates the Bearer tokens operators use for
// the inspection and watch endpoints.
type OperatorAuth struct {
	secret []byte
	expiry time.Duration
}

func NewOperatorAuth(secret string, expiry time.Duration) *OperatorAuth {
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &OperatorAuth{secret: []byte(secret), expiry: expiry}
}

func (a *OperatorAuth) enabled() bool {
	return len(a.secret) > 0
}

// IssueToken signs a token for the named operator.
func (a *OperatorAuth) IssueToken(operator string) (string, error) {
	if !a.enabled() {
		return "", ErrAuthDisabled
	}
	if len(a.secret) < minSecretLength {
		return "", fmt.Errorf("operator secret must be at least %d bytes", minSecretLength)
	}
	operator = strings.TrimSpace(operator)
	if operator == "" {
		return "", fmt.Errorf("operator name is required")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  operator,
		"role": "operator",
		"exp":  now.Add(a.expiry).Unix(),
		"iat":  now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ValidateToken returns the operator named in a valid token.
func (a *OperatorAuth) ValidateToken(tokenString string) (string, error) {
	if !a.enabled() {
		return "", ErrAuthDisabled
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	if role, _ := claims["role"].(string); role != "operator" {
		return "", ErrInvalidToken
	}
	operator, ok := claims["sub"].(string)
	if !ok || operator == "" {
		return "", ErrInvalidToken
	}
	return operator, nil
}
