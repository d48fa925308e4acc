package identity

import (
	"context"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/oauth2"

	session "github.com/goliatone/go-auth-session"
)

var _ session.CredentialExchanger = (*LoginFlow)(nil)

// LoginFlow runs an authorization code login with PKCE. Begin produces the
// provider URL, Exchange (called by the handoff on the callback) checks the
// sealed state and redeems the code with the matching verifier.
type LoginFlow struct {
	config *oauth2.Config
	sealer *StateSealer
}

func NewLoginFlow(cfg *oauth2.Config, sealer *StateSealer) *LoginFlow {
	return &LoginFlow{config: cfg, sealer: sealer}
}

// Begin returns the authorization URL the host should open. returnTo is
// kept in the sealed state and can be read back with ReturnTo.
func (f *LoginFlow) Begin(returnTo string, opts ...oauth2.AuthCodeOption) (string, error) {
	verifier := oauth2.GenerateVerifier()

	state, err := f.sealer.Seal(LoginState{
		ReturnTo:     returnTo,
		CodeVerifier: verifier,
	})
	if err != nil {
		return "", err
	}

	opts = append(opts, oauth2.S256ChallengeOption(verifier))
	return f.config.AuthCodeURL(state, opts...), nil
}

// ReturnTo reads the return path sealed in state
func (f *LoginFlow) ReturnTo(state string) (string, error) {
	st, err := f.sealer.Open(state)
	if err != nil {
		return "", err
	}
	return st.ReturnTo, nil
}

// Exchange implements session.CredentialExchanger.
func (f *LoginFlow) Exchange(ctx context.Context, code, state string) (session.Credential, error) {
	st, err := f.sealer.Open(state)
	if err != nil {
		return "", err
	}

	token, err := f.config.Exchange(ctx, code, oauth2.VerifierOption(st.CodeVerifier))
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
