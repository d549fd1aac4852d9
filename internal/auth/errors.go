package auth

import "errors"

// Sentinel errors for token verification.
var (
	// ErrNoToken indicates that the request carried no token.
	ErrNoToken = errors.New("no authorization token was found")

	// ErrBadFormat indicates an Authorization header not of the form
	// "Bearer <token>".
	ErrBadFormat = errors.New("format is Authorization: Bearer [token]")

	// ErrInvalidToken indicates a malformed token or a bad signature.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired indicates that the token has expired.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenNotYetValid indicates that the token's nbf is in the future.
	ErrTokenNotYetValid = errors.New("token not yet valid")

	// ErrEmptySecret indicates a verifier constructed without a secret.
	ErrEmptySecret = errors.New("signing secret is required")
)
