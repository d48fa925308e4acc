package session_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/stretchr/testify/mock"

	session "github.com/goliatone/go-auth-session"
)

// MockIdentityService implements session.IdentityService
type MockIdentityService struct {
	mock.Mock
}

func (m *MockIdentityService) FetchCurrentUser(ctx context.Context, credential session.Credential) (session.User, error) {
	args := m.Called(ctx, credential)
	return args.Get(0).(session.User), args.Error(1)
}

func (m *MockIdentityService) InvalidateSession(ctx context.Context, credential session.Credential) error {
	args := m.Called(ctx, credential)
	return args.Error(0)
}

// MockCredentialExchanger implements session.CredentialExchanger
type MockCredentialExchanger struct {
	mock.Mock
}

func (m *MockCredentialExchanger) Exchange(ctx context.Context, code, state string) (session.Credential, error) {
	args := m.Called(ctx, code, state)
	return args.Get(0).(session.Credential), args.Error(1)
}

// MockConnector implements session.Connector
type MockConnector struct {
	mock.Mock
}

func (m *MockConnector) Connect(ctx context.Context, userID string, credential session.Credential) error {
	args := m.Called(ctx, userID, credential)
	return args.Error(0)
}

func (m *MockConnector) Disconnect(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type navigation struct {
	Target string
	Opts   session.NavigateOptions
}

type navRecorder struct {
	mu    sync.Mutex
	calls []navigation
	err   error
}

func (n *navRecorder) Navigate(_ context.Context, target string, opts session.NavigateOptions) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, navigation{Target: target, Opts: opts})
	return n.err
}

func (n *navRecorder) Calls() []navigation {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]navigation(nil), n.calls...)
}

type activityRecorder struct {
	mu     sync.Mutex
	events []session.ActivityEvent
}

func (a *activityRecorder) Record(_ context.Context, event session.ActivityEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

func (a *activityRecorder) Types() []session.ActivityEventType {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]session.ActivityEventType, 0, len(a.events))
	for _, e := range a.events {
		out = append(out, e.EventType)
	}
	return out
}

func (a *activityRecorder) Last() session.ActivityEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.events) == 0 {
		return session.ActivityEvent{}
	}
	return a.events[len(a.events)-1]
}

type captureLogger struct {
	mu    sync.Mutex
	lines []string
}

func (c *captureLogger) log(level, format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, level+" "+fmt.Sprintf(format, args...))
}

func (c *captureLogger) Debug(format string, args ...any) { c.log("DBG", format, args...) }
func (c *captureLogger) Info(format string, args ...any)  { c.log("INF", format, args...) }
func (c *captureLogger) Warn(format string, args ...any)  { c.log("WRN", format, args...) }
func (c *captureLogger) Error(format string, args ...any) { c.log("ERR", format, args...) }

func (c *captureLogger) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

type statusRecorder struct {
	mu       sync.Mutex
	statuses []session.Status
}

func (r *statusRecorder) Listen(status session.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
}

func (r *statusRecorder) Kinds() []session.StatusKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]session.StatusKind, 0, len(r.statuses))
	for _, s := range r.statuses {
		out = append(out, s.Kind())
	}
	return out
}

// failingStore fails every operation with err
type failingStore struct {
	err error
}

func (f failingStore) Get(context.Context, string) (string, bool, error) { return "", false, f.err }
func (f failingStore) Set(context.Context, string, string) error        { return f.err }
func (f failingStore) Delete(context.Context, string) error             { return f.err }
