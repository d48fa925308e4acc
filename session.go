package session

import "fmt"

// StatusKind classifies the current authentication outcome
type StatusKind int

const (
	// StatusUnknown is the boot state, the outcome is not determined yet
	StatusUnknown StatusKind = iota
	// StatusAuthenticated holds a valid session with a user snapshot
	StatusAuthenticated
	// StatusUnauthenticated means never logged in, expired, or logged out
	StatusUnauthenticated
)

func (k StatusKind) String() string {
	switch k {
	case StatusUnknown:
		return "unknown"
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	default:
		return fmt.Sprintf("status(%d)", int(k))
	}
}

// Status is the session status value. The zero value is Unknown. Fields are
// unexported so a status can only be built through the constructors below,
// which keeps kind and user consistent.
type Status struct {
	kind StatusKind
	user User
}

// UnknownStatus returns the boot status
func UnknownStatus() Status {
	return Status{kind: StatusUnknown}
}

// AuthenticatedStatus returns an authenticated status for user
func AuthenticatedStatus(user User) Status {
	return Status{kind: StatusAuthenticated, user: user}
}

// UnauthenticatedStatus returns the unauthenticated status
func UnauthenticatedStatus() Status {
	return Status{kind: StatusUnauthenticated}
}

func (s Status) Kind() StatusKind {
	return s.kind
}

// User returns the user snapshot, ok is false unless authenticated
func (s Status) User() (User, bool) {
	if s.kind != StatusAuthenticated {
		return User{}, false
	}
	return s.user, true
}

// IsLoading reports whether the outcome is still unknown
func (s Status) IsLoading() bool {
	return s.kind == StatusUnknown
}

func (s Status) IsAuthenticated() bool {
	return s.kind == StatusAuthenticated
}

// Equal reports whether both values describe the same observable state
func (s Status) Equal(other Status) bool {
	return s.kind == other.kind && s.user == other.user
}

func (s Status) String() string {
	if s.kind == StatusAuthenticated {
		return fmt.Sprintf("%s user=%s", s.kind, s.user.ID)
	}
	return s.kind.String()
}
