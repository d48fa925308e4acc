package guardware

import (
	"context"
	"net/http"

	"github.com/goliatone/go-router"

	session "github.com/goliatone/go-auth-session"
)

const DefaultContextKey = "session_user"

// Config configures the route guard middleware.
type Config struct {
	// Filter skips the guard when it returns true
	Filter func(router.Context) bool
	// Guard is the session guard to evaluate, required
	Guard *session.Guard
	// Source provides the session status for every request. Ignored when
	// StatusResolver is set.
	Source session.StatusSource
	// StatusResolver resolves the status per request, for hosts that keep
	// one store per visitor
	StatusResolver func(router.Context) session.Status
	// PendingHandler renders the neutral pending view while the status is
	// unknown. Defaults to 202 with an empty body.
	PendingHandler router.HandlerFunc
	// RedirectStatus is the HTTP status used for redirects, defaults to 303
	RedirectStatus int
	// ContextKey is the locals key holding the authenticated user
	ContextKey string
}

func (cfg Config) withDefaults() Config {
	if cfg.Guard == nil {
		panic("guardware: Guard is required")
	}
	if cfg.StatusResolver == nil {
		if cfg.Source == nil {
			panic("guardware: Source or StatusResolver is required")
		}
		src := cfg.Source
		cfg.StatusResolver = func(router.Context) session.Status {
			return src.Status()
		}
	}
	if cfg.PendingHandler == nil {
		cfg.PendingHandler = func(ctx router.Context) error {
			return ctx.Status(http.StatusAccepted).SendString("")
		}
	}
	if cfg.RedirectStatus == 0 {
		cfg.RedirectStatus = http.StatusSeeOther
	}
	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultContextKey
	}
	return cfg
}

// New returns a middleware that admits, parks or redirects requests based
// on the session status. Admitted requests carry the status in their
// standard context and the user, when there is one, in locals.
func New(config Config) router.MiddlewareFunc {
	cfg := config.withDefaults()

	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return ctx.Next()
			}

			status := cfg.StatusResolver(ctx)
			decision := cfg.Guard.Evaluate(status)

			switch decision.Action {
			case session.ActionAdmit:
				if user, ok := status.User(); ok {
					ctx.Locals(cfg.ContextKey, user)
				}
				ctx.SetContext(session.WithContext(ctx.Context(), status))
				return ctx.Next()
			case session.ActionRedirect:
				return ctx.Redirect(decision.Target, cfg.RedirectStatus)
			default:
				return cfg.PendingHandler(ctx)
			}
		}
	}
}

// Navigator turns handoff and guard navigations into HTTP redirects on the
// current request.
func Navigator(c router.Context, status ...int) session.NavigationHost {
	code := http.StatusSeeOther
	if len(status) > 0 && status[0] != 0 {
		code = status[0]
	}
	return session.NavigationFunc(func(_ context.Context, target string, _ session.NavigateOptions) error {
		return c.Redirect(target, code)
	})
}
