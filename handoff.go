package session

import (
	"context"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	// ProviderErrorParam is the query field identity providers use to report a denied login
	ProviderErrorParam = "error"
	// ProviderErrorForwardParam carries the provider error onto the login view
	ProviderErrorForwardParam = "oauth_error"
	CodeParam                 = "code"
	StateParam                = "state"
)

// HandoffOption customizes handoff construction.
type HandoffOption func(*Handoff)

// WithHandoffConfig sets paths, the credential key and query parameter names.
func WithHandoffConfig(cfg Config) HandoffOption {
	return func(h *Handoff) {
		h.config = normalizeConfig(cfg)
	}
}

// WithHandoffLogger overrides the logger used by the handoff.
func WithHandoffLogger(logger Logger) HandoffOption {
	return func(h *Handoff) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithHandoffActivitySink sets the ActivitySink used to publish handoff events.
func WithHandoffActivitySink(sink ActivitySink) HandoffOption {
	return func(h *Handoff) {
		h.activitySink = normalizeActivitySink(sink)
	}
}

// WithCredentialExchanger enables authorization code callbacks: when the
// callback carries a code but no credential, the code is exchanged first.
func WithCredentialExchanger(exchanger CredentialExchanger) HandoffOption {
	return func(h *Handoff) {
		h.exchanger = exchanger
	}
}

// Handoff absorbs the credential carried by a federated login redirect.
// It never retries: a missing or unusable credential ends on the login
// view with the error indicator set.
type Handoff struct {
	credentials  CredentialStore
	refresher    Refresher
	nav          NavigationHost
	exchanger    CredentialExchanger
	config       Config
	logger       Logger
	activitySink ActivitySink
	now          func() time.Time
}

// NewHandoff creates a handoff writing to credentials and refreshing through refresher.
func NewHandoff(credentials CredentialStore, refresher Refresher, nav NavigationHost, opts ...HandoffOption) *Handoff {
	h := &Handoff{
		credentials:  credentials,
		refresher:    refresher,
		nav:          nav,
		config:       DefaultOptions(),
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		now:          time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Complete runs the handoff for the callback query. On success the
// credential is persisted, the store refreshed once, and the host performs
// a full navigation to the landing path, replacing the callback entry so
// the credential does not stay in the address or history.
func (h *Handoff) Complete(ctx context.Context, query url.Values) error {
	credential := Credential(strings.TrimSpace(query.Get(h.config.GetCredentialParam())))

	if credential.IsEmpty() {
		if providerErr := strings.TrimSpace(query.Get(ProviderErrorParam)); providerErr != "" {
			return h.fail(ctx, "provider_error", map[string]string{ProviderErrorForwardParam: providerErr}, nil)
		}

		code := strings.TrimSpace(query.Get(CodeParam))
		if code != "" && h.exchanger != nil {
			exchanged, err := h.exchanger.Exchange(ctx, code, query.Get(StateParam))
			if err != nil {
				return h.fail(ctx, "exchange_failed", nil, err)
			}
			credential = exchanged
		}
	}

	if credential.IsEmpty() {
		return h.fail(ctx, "missing_credential", nil, nil)
	}

	if err := h.credentials.Set(ctx, h.config.GetCredentialKey(), credential.Value()); err != nil {
		return h.fail(ctx, "persist_failed", nil, err)
	}

	if err := h.refresher.RefreshUser(ctx); err != nil {
		h.logger.Warn("handoff refresh interrupted: %v", err)
		return err
	}

	target := h.config.GetLandingPath()
	if err := h.nav.Navigate(ctx, target, NavigateOptions{ReplaceHistory: true, FullReload: true}); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to navigate after handoff").
			WithMetadata(map[string]any{"target": target})
	}

	h.logger.Debug("handoff completed, redirecting to %s", target)
	recordActivity(ctx, h.activitySink, h.logger, h.now, ActivityEvent{
		EventType: ActivityEventHandoffCompleted,
		Metadata:  map[string]any{"target": target},
	})
	return nil
}

func (h *Handoff) fail(ctx context.Context, reason string, extra map[string]string, cause error) error {
	target := appendQueryParam(h.config.GetLoginPath(), h.config.GetErrorParam(), h.config.GetErrorIndicator())
	for k, v := range extra {
		target = appendQueryParam(target, k, v)
	}

	metadata := map[string]any{
		"reason": reason,
		"target": target,
	}

	var handoffErr *goerrors.Error
	if cause != nil {
		handoffErr = goerrors.Wrap(cause, ErrCredentialHandoff.Category, ErrCredentialHandoff.Message).
			WithTextCode(TextCodeCredentialHandoff).
			WithCode(ErrCredentialHandoff.Code).
			WithMetadata(metadata)
		h.logger.Warn("credential handoff failed (%s): %v", reason, cause)
	} else {
		handoffErr = ErrCredentialHandoff.Clone().WithMetadata(metadata)
		h.logger.Warn("credential handoff failed (%s)", reason)
	}

	recordActivity(ctx, h.activitySink, h.logger, h.now, ActivityEvent{
		EventType: ActivityEventHandoffFailed,
		Metadata:  metadata,
	})

	if err := h.nav.Navigate(ctx, target, NavigateOptions{ReplaceHistory: true, FullReload: true}); err != nil {
		h.logger.Error("unable to navigate to %s: %v", target, err)
	}
	return handoffErr
}

func appendQueryParam(rawURL, key, value string) string {
	if rawURL == "" {
		return ""
	}

	parsed, err := url.Parse(rawURL)
	if err == nil {
		query := parsed.Query()
		query.Set(key, value)
		parsed.RawQuery = query.Encode()
		return parsed.String()
	}

	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + url.QueryEscape(key) + "=" + url.QueryEscape(value)
}
