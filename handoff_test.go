package session_test

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	session "github.com/goliatone/go-auth-session"
	"github.com/goliatone/go-auth-session/storage"
)

type countingRefresher struct {
	calls int
	err   error
}

func (c *countingRefresher) RefreshUser(context.Context) error {
	c.calls++
	return c.err
}

func TestHandoffAbsorbsCredential(t *testing.T) {
	creds := storage.NewMemoryStore()
	refresher := &countingRefresher{}
	nav := &navRecorder{}
	activity := &activityRecorder{}

	handoff := session.NewHandoff(creds, refresher, nav,
		session.WithHandoffLogger(&captureLogger{}),
		session.WithHandoffActivitySink(activity),
	)

	err := handoff.Complete(context.Background(), url.Values{"token": {"tok-123"}})
	require.NoError(t, err)

	value, ok, err := creds.Get(context.Background(), session.DefaultCredentialKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok-123", value)
	assert.Equal(t, 1, refresher.calls)

	calls := nav.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, session.DefaultLandingPath, calls[0].Target)
	assert.True(t, calls[0].Opts.ReplaceHistory)
	assert.True(t, calls[0].Opts.FullReload)

	target, err := url.Parse(calls[0].Target)
	require.NoError(t, err)
	assert.Empty(t, target.Query().Get("token"))
	assert.NotContains(t, calls[0].Target, "tok-123")

	assert.Equal(t, []session.ActivityEventType{session.ActivityEventHandoffCompleted}, activity.Types())
}

func TestHandoffWithStoreResolvesSession(t *testing.T) {
	f := newStoreFixture(t, "")
	f.identity.On("FetchCurrentUser", mock.Anything, session.Credential("tok-123")).Return(testUser, nil).Once()
	require.NoError(t, f.store.Initialize(context.Background()))

	nav := &navRecorder{}
	handoff := session.NewHandoff(f.creds, f.store, nav, session.WithHandoffLogger(&captureLogger{}))

	require.NoError(t, handoff.Complete(context.Background(), url.Values{"token": {"tok-123"}}))

	assert.True(t, f.store.IsAuthenticated())
	user, _ := f.store.Status().User()
	assert.Equal(t, testUser, user)
}

func TestHandoffWithoutCredentialLeavesStoreUnchanged(t *testing.T) {
	f := newStoreFixture(t, "")
	before := f.store.Status()

	nav := &navRecorder{}
	activity := &activityRecorder{}
	handoff := session.NewHandoff(f.creds, f.store, nav,
		session.WithHandoffLogger(&captureLogger{}),
		session.WithHandoffActivitySink(activity),
	)

	err := handoff.Complete(context.Background(), url.Values{})
	require.Error(t, err)
	assert.True(t, session.HasTextCode(err, session.TextCodeCredentialHandoff))

	assert.True(t, before.Equal(f.store.Status()))
	_, ok, err := f.creds.Get(context.Background(), session.DefaultCredentialKey)
	require.NoError(t, err)
	assert.False(t, ok)
	f.identity.AssertNotCalled(t, "FetchCurrentUser", mock.Anything, mock.Anything)

	calls := nav.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/login?error=auth_failed", calls[0].Target)
	assert.True(t, calls[0].Opts.ReplaceHistory)

	event := activity.Last()
	assert.Equal(t, session.ActivityEventHandoffFailed, event.EventType)
	assert.Equal(t, "missing_credential", event.Metadata["reason"])
}

func TestHandoffBlankCredentialIsMissing(t *testing.T) {
	nav := &navRecorder{}
	refresher := &countingRefresher{}
	handoff := session.NewHandoff(storage.NewMemoryStore(), refresher, nav, session.WithHandoffLogger(&captureLogger{}))

	err := handoff.Complete(context.Background(), url.Values{"token": {"   "}})
	require.Error(t, err)
	assert.Zero(t, refresher.calls)
	assert.Equal(t, "/login?error=auth_failed", nav.Calls()[0].Target)
}

func TestHandoffForwardsProviderError(t *testing.T) {
	nav := &navRecorder{}
	refresher := &countingRefresher{}
	handoff := session.NewHandoff(storage.NewMemoryStore(), refresher, nav, session.WithHandoffLogger(&captureLogger{}))

	err := handoff.Complete(context.Background(), url.Values{
		"error": {"access_denied"},
	})
	require.Error(t, err)
	assert.Zero(t, refresher.calls)

	target, perr := url.Parse(nav.Calls()[0].Target)
	require.NoError(t, perr)
	assert.Equal(t, session.DefaultLoginPath, target.Path)
	assert.Equal(t, "auth_failed", target.Query().Get("error"))
	assert.Equal(t, "access_denied", target.Query().Get(session.ProviderErrorForwardParam))
}

func TestHandoffPrefersCredentialOverProviderError(t *testing.T) {
	creds := storage.NewMemoryStore()
	nav := &navRecorder{}
	refresher := &countingRefresher{}
	logger := &captureLogger{}
	handoff := session.NewHandoff(creds, refresher, nav, session.WithHandoffLogger(logger))

	require.NoError(t, handoff.Complete(context.Background(), url.Values{
		"error": {"access_denied"},
		"token": {"tok-secret-123"},
	}))

	value, ok, _ := creds.Get(context.Background(), session.DefaultCredentialKey)
	assert.True(t, ok)
	assert.Equal(t, "tok-secret-123", value)
	assert.Equal(t, 1, refresher.calls)
	assert.Equal(t, session.DefaultLandingPath, nav.Calls()[0].Target)

	for _, line := range logger.Lines() {
		assert.NotContains(t, line, "tok-")
	}
}

func TestHandoffExchangesAuthorizationCode(t *testing.T) {
	creds := storage.NewMemoryStore()
	refresher := &countingRefresher{}
	nav := &navRecorder{}
	exchanger := &MockCredentialExchanger{}
	exchanger.On("Exchange", mock.Anything, "code-1", "state-1").Return(session.Credential("tok-abc"), nil).Once()

	handoff := session.NewHandoff(creds, refresher, nav,
		session.WithHandoffLogger(&captureLogger{}),
		session.WithCredentialExchanger(exchanger),
	)

	require.NoError(t, handoff.Complete(context.Background(), url.Values{
		"code":  {"code-1"},
		"state": {"state-1"},
	}))

	value, _, _ := creds.Get(context.Background(), session.DefaultCredentialKey)
	assert.Equal(t, "tok-abc", value)
	assert.Equal(t, 1, refresher.calls)
	assert.Equal(t, session.DefaultLandingPath, nav.Calls()[0].Target)
	exchanger.AssertExpectations(t)
}

func TestHandoffExchangeFailure(t *testing.T) {
	refresher := &countingRefresher{}
	nav := &navRecorder{}
	exchanger := &MockCredentialExchanger{}
	exchanger.On("Exchange", mock.Anything, "code-1", "").Return(session.Credential(""), errors.New("invalid_grant")).Once()

	handoff := session.NewHandoff(storage.NewMemoryStore(), refresher, nav,
		session.WithHandoffLogger(&captureLogger{}),
		session.WithCredentialExchanger(exchanger),
	)

	err := handoff.Complete(context.Background(), url.Values{"code": {"code-1"}})
	require.Error(t, err)
	assert.True(t, session.HasTextCode(err, session.TextCodeCredentialHandoff))
	assert.Zero(t, refresher.calls)
	assert.True(t, strings.HasPrefix(nav.Calls()[0].Target, "/login?"))
}

func TestHandoffCodeWithoutExchangerIsMissing(t *testing.T) {
	nav := &navRecorder{}
	handoff := session.NewHandoff(storage.NewMemoryStore(), &countingRefresher{}, nav, session.WithHandoffLogger(&captureLogger{}))

	err := handoff.Complete(context.Background(), url.Values{"code": {"code-1"}})
	require.Error(t, err)
	assert.Equal(t, "/login?error=auth_failed", nav.Calls()[0].Target)
}

func TestHandoffPersistFailure(t *testing.T) {
	nav := &navRecorder{}
	refresher := &countingRefresher{}
	handoff := session.NewHandoff(failingStore{err: errors.New("read-only")}, refresher, nav, session.WithHandoffLogger(&captureLogger{}))

	err := handoff.Complete(context.Background(), url.Values{"token": {"tok-123"}})
	require.Error(t, err)
	assert.Zero(t, refresher.calls)
	assert.Equal(t, "/login?error=auth_failed", nav.Calls()[0].Target)
}

func TestHandoffCustomConfig(t *testing.T) {
	creds := storage.NewMemoryStore()
	nav := &navRecorder{}
	cfg := session.Options{
		CredentialKey:   "access_token",
		CredentialParam: "access_token",
		LandingPath:     "/app",
		LoginPath:       "/signin",
		ErrorParam:      "status",
		ErrorIndicator:  "sso_failed",
	}
	handoff := session.NewHandoff(creds, &countingRefresher{}, nav,
		session.WithHandoffConfig(cfg),
		session.WithHandoffLogger(&captureLogger{}),
	)

	require.NoError(t, handoff.Complete(context.Background(), url.Values{"access_token": {"tok-1"}}))
	value, ok, _ := creds.Get(context.Background(), "access_token")
	assert.True(t, ok)
	assert.Equal(t, "tok-1", value)
	assert.Equal(t, "/app", nav.Calls()[0].Target)

	require.Error(t, handoff.Complete(context.Background(), url.Values{"token": {"tok-1"}}))
	assert.Equal(t, "/signin?status=sso_failed", nav.Calls()[1].Target)
}

func TestHandoffRefreshInterrupted(t *testing.T) {
	nav := &navRecorder{}
	refresher := &countingRefresher{err: context.Canceled}
	handoff := session.NewHandoff(storage.NewMemoryStore(), refresher, nav, session.WithHandoffLogger(&captureLogger{}))

	err := handoff.Complete(context.Background(), url.Values{"token": {"tok-123"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, nav.Calls())
}
