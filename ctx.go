package session

import (
	"context"
)

var statusCtxKey = &contextKey{"session_status"}

type contextKey struct {
	name string
}

// WithContext sets the Status in the given context
func WithContext(ctx context.Context, status Status) context.Context {
	return context.WithValue(ctx, statusCtxKey, status)
}

// FromContext finds the Status in the context.
func FromContext(ctx context.Context) (Status, bool) {
	raw, ok := ctx.Value(statusCtxKey).(Status)
	return raw, ok
}

// UserFromContext returns the user of an authenticated status stored in ctx
func UserFromContext(ctx context.Context) (User, bool) {
	status, ok := FromContext(ctx)
	if !ok {
		return User{}, false
	}
	return status.User()
}
