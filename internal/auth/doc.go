// Package auth verifies bearer tokens and carries the resulting Identity
// through the request.
//
// Tokens are HMAC-signed JWTs issued by the upstream member service and
// verified against a shared secret. A verified token produces an Identity
// holding the caller's id and role; a failed verification aborts the gin
// chain with an authentication error that the error boundary renders.
//
// Example:
//
//	verifier, err := auth.NewVerifier(secret)
//	if err != nil {
//		return err
//	}
//	router.GET("/status", auth.Middleware(verifier), handler)
package auth
