package guardware

import (
	"net/url"

	"github.com/goliatone/go-router"

	session "github.com/goliatone/go-auth-session"
)

// CallbackConfig configures the federated login callback handler.
type CallbackConfig struct {
	Credentials session.CredentialStore
	Refresher   session.Refresher
	// Options are applied to the handoff built for every request
	Options []session.HandoffOption
	// RedirectStatus defaults to 303
	RedirectStatus int
	Logger         session.Logger
}

// Callback returns a handler for the callback route. It runs a credential
// handoff with the request query and answers with a redirect to the landing
// view, or to the login view with the error indicator.
func Callback(cfg CallbackConfig) router.HandlerFunc {
	if cfg.Credentials == nil || cfg.Refresher == nil {
		panic("guardware: Credentials and Refresher are required")
	}

	return func(ctx router.Context) error {
		opts := append([]session.HandoffOption{}, cfg.Options...)
		if cfg.Logger != nil {
			opts = append(opts, session.WithHandoffLogger(cfg.Logger))
		}

		handoff := session.NewHandoff(
			cfg.Credentials,
			cfg.Refresher,
			Navigator(ctx, cfg.RedirectStatus),
			opts...,
		)

		err := handoff.Complete(ctx.Context(), queryValues(ctx))
		if err != nil && session.HasTextCode(err, session.TextCodeCredentialHandoff) {
			// already redirected to the login view
			return nil
		}
		return err
	}
}

func queryValues(ctx router.Context) url.Values {
	values := url.Values{}
	for k, v := range ctx.Queries() {
		values.Set(k, v)
	}
	return values
}
