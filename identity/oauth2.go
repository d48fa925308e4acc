package identity

import (
	"context"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/oauth2"

	session "github.com/goliatone/go-auth-session"
)

var _ session.CredentialExchanger = (*OAuth2Exchanger)(nil)

// StateVerifier checks the state value returned by the provider
type StateVerifier func(ctx context.Context, state string) error

// OAuth2Exchanger trades an authorization code for an access token through
// the provider's token endpoint. The access token becomes the credential.
type OAuth2Exchanger struct {
	config      *oauth2.Config
	verifyState StateVerifier
	opts        []oauth2.AuthCodeOption
}

// NewOAuth2Exchanger creates an exchanger. verify may be nil when the state
// is checked elsewhere.
func NewOAuth2Exchanger(cfg *oauth2.Config, verify StateVerifier, opts ...oauth2.AuthCodeOption) *OAuth2Exchanger {
	return &OAuth2Exchanger{
		config:      cfg,
		verifyState: verify,
		opts:        opts,
	}
}

// Exchange implements session.CredentialExchanger.
func (e *OAuth2Exchanger) Exchange(ctx context.Context, code, state string) (session.Credential, error) {
	if e.verifyState != nil {
		if err := e.verifyState(ctx, state); err != nil {
			return "", goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid oauth state").
				WithTextCode(session.TextCodeCredentialHandoff).
				WithCode(goerrors.CodeBadRequest)
		}
	}

	token, err := e.config.Exchange(ctx, code, e.opts...)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryAuth, "token exchange failed").
			WithTextCode(session.TextCodeCredentialInvalid).
			WithCode(http.StatusUnauthorized)
	}

	if token.AccessToken == "" {
		return "", session.ErrCredentialInvalid.Clone().WithMetadata(map[string]any{
			"reason": "token endpoint returned no access token",
		})
	}
	return session.Credential(token.AccessToken), nil
}
