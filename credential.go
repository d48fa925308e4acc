package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Credential is an opaque bearer token issued by the identity service
type Credential string

// IsEmpty reports whether the credential carries no value
func (c Credential) IsEmpty() bool {
	return c == ""
}

// String redacts the value so credentials can be passed to loggers.
func (c Credential) String() string {
	if c == "" {
		return "<empty>"
	}
	return "****"
}

// Value returns the raw token
func (c Credential) Value() string {
	return string(c)
}

// ExpiresAt reads the exp claim when the credential is a JWT. The
// signature is NOT verified: the result is a hint to avoid a round trip
// with an obviously stale token, never a trust decision.
func (c Credential) ExpiresAt() (time.Time, bool) {
	if c == "" {
		return time.Time{}, false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(string(c), claims); err != nil {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// ExpiredAt reports whether the credential is a JWT whose exp is before now
func (c Credential) ExpiredAt(now time.Time) bool {
	exp, ok := c.ExpiresAt()
	if !ok {
		return false
	}
	return !now.Before(exp)
}
