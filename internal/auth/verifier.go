package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Accepted signing methods. The secret is shared, so only HMAC is valid.
var hmacMethods = []string{
	jwt.SigningMethodHS256.Alg(),
	jwt.SigningMethodHS384.Alg(),
	jwt.SigningMethodHS512.Alg(),
}

// tokenClaims is the claim set issued by the member service.
type tokenClaims struct {
	ID   json.RawMessage `json:"id"`
	Role Role            `json:"role"`
	jwt.RegisteredClaims
}

// Verifier validates token signatures and time claims against a shared
// secret.
type Verifier struct {
	secret []byte
	leeway time.Duration
	parser *jwt.Parser
	now    func() time.Time
}

// VerifierOption is a functional option for the verifier.
type VerifierOption func(*Verifier)

// WithLeeway allows for clock skew when checking exp and nbf.
func WithLeeway(d time.Duration) VerifierOption {
	return func(v *Verifier) {
		v.leeway = d
	}
}

// WithClock overrides the time source used for exp and nbf checks.
func WithClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		v.now = now
	}
}

// NewVerifier creates a verifier for tokens signed with secret.
func NewVerifier(secret string, opts ...VerifierOption) (*Verifier, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	v := &Verifier{
		secret: []byte(secret),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}

	v.parser = jwt.NewParser(
		jwt.WithValidMethods(hmacMethods),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	)
	return v, nil
}

// Verify parses and validates a raw token and returns its Identity.
func (v *Verifier) Verify(raw string) (*Identity, error) {
	if raw == "" {
		return nil, ErrNoToken
	}

	claims := &tokenClaims{}
	_, err := v.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}

	identity := &Identity{
		ID:   claims.ID,
		Role: claims.Role,
	}
	if claims.IssuedAt != nil {
		identity.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}
	return identity, nil
}

// classify maps library errors onto the package sentinels, keeping the
// original error in the chain.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return fmt.Errorf("%w: %w", ErrTokenNotYetValid, err)
	default:
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
}
