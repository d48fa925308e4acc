package session

import (
	"context"
	"sync"
)

// GuardKind selects which status set a guard admits
type GuardKind int

const (
	// GuardRequireSession admits authenticated callers only
	GuardRequireSession GuardKind = iota
	// GuardRequireNoSession admits unauthenticated callers only (login, signup)
	GuardRequireNoSession
)

func (k GuardKind) String() string {
	if k == GuardRequireNoSession {
		return "require_no_session"
	}
	return "require_session"
}

// Action is the outcome of a guard evaluation
type Action int

const (
	// ActionPending renders the neutral pending view, no navigation decision
	ActionPending Action = iota
	// ActionAdmit renders the wrapped view
	ActionAdmit
	// ActionRedirect navigates away
	ActionRedirect
)

func (a Action) String() string {
	switch a {
	case ActionAdmit:
		return "admit"
	case ActionRedirect:
		return "redirect"
	default:
		return "pending"
	}
}

// Decision is the result of evaluating a guard against a status
type Decision struct {
	Action         Action
	Target         string
	ReplaceHistory bool
}

// GuardOption customizes guard construction.
type GuardOption func(*Guard)

// WithGuardLogger overrides the logger used for navigation failures.
func WithGuardLogger(logger Logger) GuardOption {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// Guard admits or redirects a navigable view based on the session status.
// A guard never redirects while the status is Unknown.
type Guard struct {
	kind        GuardKind
	loginPath   string
	landingPath string
	logger      Logger
}

// RequireSession returns a guard that admits authenticated callers and
// sends everyone else to the login path.
func RequireSession(cfg Config, opts ...GuardOption) *Guard {
	return newGuard(GuardRequireSession, cfg, opts...)
}

// RequireNoSession returns a guard that admits unauthenticated callers and
// sends authenticated ones to the landing path.
func RequireNoSession(cfg Config, opts ...GuardOption) *Guard {
	return newGuard(GuardRequireNoSession, cfg, opts...)
}

func newGuard(kind GuardKind, cfg Config, opts ...GuardOption) *Guard {
	cfg = normalizeConfig(cfg)
	g := &Guard{
		kind:        kind,
		loginPath:   cfg.GetLoginPath(),
		landingPath: cfg.GetLandingPath(),
		logger:      defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

func (g *Guard) Kind() GuardKind {
	return g.kind
}

// Evaluate is synchronous and side effect free.
func (g *Guard) Evaluate(status Status) Decision {
	switch status.Kind() {
	case StatusAuthenticated:
		if g.kind == GuardRequireSession {
			return Decision{Action: ActionAdmit}
		}
		return Decision{Action: ActionRedirect, Target: g.landingPath, ReplaceHistory: true}
	case StatusUnauthenticated:
		if g.kind == GuardRequireNoSession {
			return Decision{Action: ActionAdmit}
		}
		return Decision{Action: ActionRedirect, Target: g.loginPath, ReplaceHistory: true}
	default:
		return Decision{Action: ActionPending}
	}
}

// Watch evaluates the guard on the current status and again on every
// notification from src. onDecision is called for every evaluation so the
// host can render the pending indicator or the wrapped view. Redirect
// decisions are sent to nav once per status change. The returned function
// stops watching.
func (g *Guard) Watch(ctx context.Context, src StatusSource, nav NavigationHost, onDecision func(Decision)) (stop func()) {
	var mu sync.Mutex
	var last Decision
	var hasLast bool

	return src.Subscribe(func(status Status) {
		decision := g.Evaluate(status)

		mu.Lock()
		repeated := hasLast && last == decision && decision.Action == ActionRedirect
		last, hasLast = decision, true
		mu.Unlock()

		if onDecision != nil {
			onDecision(decision)
		}

		if decision.Action != ActionRedirect || repeated || nav == nil {
			return
		}

		opts := NavigateOptions{ReplaceHistory: decision.ReplaceHistory}
		if err := nav.Navigate(ctx, decision.Target, opts); err != nil {
			g.logger.Error("%s guard redirect to %s failed: %v", g.kind, decision.Target, err)
		}
	})
}
