package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// IdentityKey is the gin context key under which the verified Identity is
// stored.
const IdentityKey = "identity"

// Role is a member role. The upstream stores roles as numbers while older
// tokens carry them as strings, so both JSON forms decode to the same
// string value.
type Role string

// UnmarshalJSON accepts a JSON string or number.
func (r *Role) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = Role(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*r = Role(normalizeNumber(n.String()))
	return nil
}

// String returns the role as a string.
func (r Role) String() string {
	return string(r)
}

// normalizeNumber renders integral numbers without exponent or fraction so
// that 3, 3.0 and 3e0 compare equal.
func normalizeNumber(s string) string {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Identity is the decoded payload of a verified token.
type Identity struct {
	// ID is the raw "id" claim. A numeric id identifies a member; a string
	// id marks a legacy token that must be re-issued.
	ID json.RawMessage `json:"id"`

	// Role is the role the member had when the token was issued.
	Role Role `json:"role"`

	// IssuedAt is the "iat" claim, zero if absent.
	IssuedAt time.Time `json:"iat,omitempty"`

	// ExpiresAt is the "exp" claim, zero if absent.
	ExpiresAt time.Time `json:"exp,omitempty"`
}

// IDNumeric returns the id as an integer. ok is false when the id is
// missing, a string, or not integral.
func (i *Identity) IDNumeric() (id int64, ok bool) {
	raw := bytes.TrimSpace(i.ID)
	if len(raw) == 0 || raw[0] == '"' {
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	if v, err := n.Int64(); err == nil {
		return v, true
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

// IDIsString reports whether the id claim is a JSON string.
func (i *Identity) IDIsString() bool {
	raw := bytes.TrimSpace(i.ID)
	return len(raw) > 0 && raw[0] == '"'
}

// IDString returns the id as it appeared in the token, without quotes.
func (i *Identity) IDString() string {
	if i.IDIsString() {
		var s string
		if err := json.Unmarshal(i.ID, &s); err == nil {
			return s
		}
	}
	return string(bytes.TrimSpace(i.ID))
}

type identityContextKey struct{}

// ContextWithIdentity returns a context carrying the identity.
func ContextWithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext returns the identity stored in ctx.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(*Identity)
	return identity, ok && identity != nil
}

// SetIdentity stores the identity on both the gin context and the request
// context.
func SetIdentity(c *gin.Context, identity *Identity) {
	c.Set(IdentityKey, identity)
	c.Request = c.Request.WithContext(ContextWithIdentity(c.Request.Context(), identity))
}

// GetIdentity returns the identity attached by the verification middleware.
func GetIdentity(c *gin.Context) (*Identity, bool) {
	if v, ok := c.Get(IdentityKey); ok {
		if identity, ok := v.(*Identity); ok && identity != nil {
			return identity, true
		}
	}
	return IdentityFromContext(c.Request.Context())
}
