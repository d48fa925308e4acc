package session

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// IdentityService is the remote collaborator that owns users and sessions
type IdentityService interface {
	FetchCurrentUser(ctx context.Context, credential Credential) (User, error)
	InvalidateSession(ctx context.Context, credential Credential) error
}

// CredentialExchanger trades an authorization code for a bearer credential
type CredentialExchanger interface {
	Exchange(ctx context.Context, code, state string) (Credential, error)
}

// CredentialStore is the persistent key value slot holding the credential.
// Get reports absence with ok=false and a nil error.
type CredentialStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// NavigateOptions controls how the host performs a navigation
type NavigateOptions struct {
	// ReplaceHistory replaces the current history entry instead of pushing
	ReplaceHistory bool
	// FullReload performs a full navigation instead of an in-app transition
	FullReload bool
}

// NavigationHost performs navigations on behalf of guards and the handoff
type NavigationHost interface {
	Navigate(ctx context.Context, target string, opts NavigateOptions) error
}

// NavigationFunc adapts a function to the NavigationHost interface.
type NavigationFunc func(ctx context.Context, target string, opts NavigateOptions) error

// Navigate implements NavigationHost.
func (f NavigationFunc) Navigate(ctx context.Context, target string, opts NavigateOptions) error {
	return f(ctx, target, opts)
}

// Listener receives status notifications
type Listener func(status Status)

// StatusSource is the reactive read side of the store
type StatusSource interface {
	Status() Status
	Subscribe(listener Listener) (unsubscribe func())
}

// Refresher re-resolves the session from the persisted credential
type Refresher interface {
	RefreshUser(ctx context.Context) error
}

// Config holds session options
type Config interface {
	GetCredentialKey() string
	GetLoginPath() string
	GetLandingPath() string
	GetCallbackPath() string
	GetCredentialParam() string
	GetErrorParam() string
	GetErrorIndicator() string
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] SESSION "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] SESSION "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] SESSION "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] SESSION "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
