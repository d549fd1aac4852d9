// Package upstream is the HTTP client for the single API host behind the
// gateway.
//
// It exposes two calls with deliberately different contracts:
//
//   - Forward relays a request and returns the raw response body. It is
//     bounded by a time-to-first-byte window and a total deadline.
//   - Fetch issues a GET and returns the decoded body with camelized keys.
//     It applies no time bounds of its own.
//
// Both return *apierror.Error values: UpstreamTransport when no response
// was received and UpstreamStatus for a non-2xx response.
package upstream
