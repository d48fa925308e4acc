package session

import (
	"context"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

var _ StatusSource = (*Store)(nil)
var _ Refresher = (*Store)(nil)

// StoreOption customizes store construction.
type StoreOption func(*Store)

// WithLogger overrides the logger used by the store.
func WithLogger(logger Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithActivitySink sets the ActivitySink used to publish session events.
func WithActivitySink(sink ActivitySink) StoreOption {
	return func(s *Store) {
		s.activitySink = normalizeActivitySink(sink)
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) StoreOption {
	return func(s *Store) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithConfig sets the config, the store only reads the credential key.
func WithConfig(cfg Config) StoreOption {
	return func(s *Store) {
		s.config = normalizeConfig(cfg)
	}
}

// WithExpiryPrecheck makes the store treat a persisted JWT credential whose
// exp claim already passed as expired without calling the identity service.
func WithExpiryPrecheck() StoreOption {
	return func(s *Store) {
		s.expiryPrecheck = true
	}
}

// transitions enumerates the allowed status changes. Nothing moves back to
// Unknown: once resolved, the outcome is always one of the two terminal kinds.
var transitions = map[StatusKind]map[StatusKind]struct{}{
	StatusUnknown: {
		StatusAuthenticated:   {},
		StatusUnauthenticated: {},
	},
	StatusAuthenticated: {
		StatusAuthenticated:   {},
		StatusUnauthenticated: {},
	},
	StatusUnauthenticated: {
		StatusAuthenticated:   {},
		StatusUnauthenticated: {},
	},
}

func canTransition(from, to StatusKind) bool {
	if allowed, ok := transitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

type subscription struct {
	id       uint64
	listener Listener
	active   bool
}

type notice struct {
	sub    *subscription
	status Status
}

// Store owns the session status for one client process.
//
// Operations (Initialize, RefreshUser, CompleteLogin, Logout) are
// serialized: each one runs to completion, including its status
// transition, before the next one starts. Listeners are notified in
// transition order, with no store lock held, by whichever goroutine is
// draining the notice queue, normally the one that caused the
// transition. A listener may Subscribe (a guard redirect that mounts
// another guarded view does) but must not call store operations
// synchronously.
type Store struct {
	identity       IdentityService
	credentials    CredentialStore
	config         Config
	logger         Logger
	activitySink   ActivitySink
	now            func() time.Time
	expiryPrecheck bool

	opMu sync.Mutex

	mu          sync.RWMutex
	status      Status
	credential  Credential
	initialized bool
	closed      bool
	subscribers []*subscription
	nextID      uint64
	queue       []notice
	draining    bool
}

// NewStore creates a store in the Unknown status.
func NewStore(identity IdentityService, credentials CredentialStore, opts ...StoreOption) *Store {
	s := &Store{
		identity:     identity,
		credentials:  credentials,
		config:       DefaultOptions(),
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		now:          time.Now,
		status:       UnknownStatus(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Status returns the current status
func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Store) IsLoading() bool {
	return s.Status().IsLoading()
}

func (s *Store) IsAuthenticated() bool {
	return s.Status().IsAuthenticated()
}

// Credential returns the in-memory credential of the active session
func (s *Store) Credential() (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.status.Kind() != StatusAuthenticated || s.credential.IsEmpty() {
		return "", false
	}
	return s.credential, true
}

// Subscribe registers listener and delivers the current status to it,
// followed by every later transition in order. Called from inside a
// notification, the current status is delivered once the running listener
// returns; otherwise before Subscribe returns.
func (s *Store) Subscribe(listener Listener) (unsubscribe func()) {
	if listener == nil {
		return func() {}
	}

	s.mu.Lock()
	if s.closed {
		current := s.status
		s.mu.Unlock()
		listener(current)
		return func() {}
	}
	s.nextID++
	sub := &subscription{id: s.nextID, listener: listener, active: true}
	s.subscribers = append(s.subscribers, sub)
	s.queue = append(s.queue, notice{sub: sub, status: s.status})
	s.mu.Unlock()

	s.drain()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			sub.active = false
			for i, candidate := range s.subscribers {
				if candidate == sub {
					s.subscribers = append(s.subscribers[:i:i], s.subscribers[i+1:]...)
					return
				}
			}
		})
	}
}

// drain delivers queued notices one at a time with no lock held. Only one
// goroutine drains; a Subscribe or transition that finds a drain running
// leaves its notices to it.
func (s *Store) drain() {
	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true

	for len(s.queue) > 0 {
		next := s.queue[0]
		s.queue[0] = notice{}
		s.queue = s.queue[1:]
		if !next.sub.active {
			continue
		}
		s.mu.Unlock()
		next.sub.listener(next.status)
		s.mu.Lock()
	}

	s.queue = nil
	s.draining = false
	s.mu.Unlock()
}

// Initialize resolves the persisted credential once at boot. Identity
// failures end in Unauthenticated with the credential cleared and are not
// returned. Later calls are no-ops.
func (s *Store) Initialize(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStoreClosed
	}
	if s.initialized {
		s.mu.Unlock()
		return nil
	}
	s.initialized = true
	s.mu.Unlock()

	err := s.resolve(ctx, "initialize", ActivityEventInitialized)
	if err != nil && !HasTextCode(err, TextCodeStoreClosed) {
		// canceled by the caller, allow a later attempt
		s.mu.Lock()
		s.initialized = false
		s.mu.Unlock()
	}
	return err
}

// RefreshUser re-fetches the user with the persisted credential.
func (s *Store) RefreshUser(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.resolve(ctx, "refresh", ActivityEventRefreshed)
}

// CompleteLogin persists credential and resolves the session with it.
func (s *Store) CompleteLogin(ctx context.Context, credential Credential) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	if credential.IsEmpty() {
		return ErrCredentialInvalid.Clone().WithMetadata(map[string]any{
			"reason": "credential is empty",
		})
	}

	if err := s.credentials.Set(ctx, s.config.GetCredentialKey(), credential.Value()); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to persist credential").
			WithTextCode(TextCodeSessionInit)
	}

	return s.resolve(ctx, "login", ActivityEventRefreshed)
}

// Logout invalidates the remote session best-effort, clears the persisted
// credential and moves to Unauthenticated. Remote failures are not returned.
func (s *Store) Logout(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	s.mu.RLock()
	credential := s.credential
	s.mu.RUnlock()

	if credential.IsEmpty() {
		if stored, ok, err := s.loadCredential(ctx); err == nil && ok {
			credential = stored
		}
	}

	if err := s.identity.InvalidateSession(ctx, credential); err != nil {
		richErr := wrapFailure(err, ErrLogoutRemote, ClassifyFailure(err), "logout")
		s.logger.Warn("remote logout failed, clearing local session: %v", err)
		s.record(ctx, ActivityEvent{
			EventType:  ActivityEventLogoutRemoteFailed,
			FromStatus: s.Status().Kind(),
			ToStatus:   StatusUnauthenticated,
			Metadata:   richErr.Metadata,
		})
	}

	if err := s.checkOpen(); err != nil {
		return err
	}

	local := context.WithoutCancel(ctx)
	s.clearCredential(local)
	from, user := s.transition(UnauthenticatedStatus())

	s.record(local, ActivityEvent{
		EventType:  ActivityEventLogout,
		UserID:     user.ID,
		FromStatus: from,
		ToStatus:   StatusUnauthenticated,
	})
	return nil
}

// Close tears the store down. In-flight operations finish without
// touching status or storage, later operations return ErrStoreClosed.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for _, sub := range s.subscribers {
		sub.active = false
	}
	s.subscribers = nil
	s.queue = nil
}

func (s *Store) resolve(ctx context.Context, operation string, success ActivityEventType) error {
	credential, ok, err := s.loadCredential(ctx)
	if derr := s.discarded(ctx); derr != nil {
		return derr
	}
	if err != nil {
		return s.fail(ctx, operation, goerrors.Wrap(err, goerrors.CategoryOperation, "unable to read credential").
			WithTextCode(TextCodeIdentityUnreachable))
	}

	if !ok {
		from, _ := s.transition(UnauthenticatedStatus())
		s.logger.Debug("%s: no persisted credential", operation)
		s.record(ctx, ActivityEvent{
			EventType:  success,
			FromStatus: from,
			ToStatus:   StatusUnauthenticated,
			Metadata:   map[string]any{"operation": operation},
		})
		return nil
	}

	if s.expiryPrecheck && credential.ExpiredAt(s.now()) {
		return s.fail(ctx, operation, ErrCredentialExpired.Clone().WithMetadata(map[string]any{
			"reason": "exp claim in the past",
		}))
	}

	user, err := s.identity.FetchCurrentUser(ctx, credential)
	if derr := s.discarded(ctx); derr != nil {
		s.logger.Debug("%s: discarding late identity result: %v", operation, derr)
		return derr
	}
	if err != nil {
		return s.fail(ctx, operation, err)
	}
	if user.IsZero() {
		return s.fail(ctx, operation, ErrCredentialInvalid.Clone().WithMetadata(map[string]any{
			"reason": "identity service returned a user without id",
		}))
	}

	s.mu.Lock()
	s.credential = credential
	s.mu.Unlock()

	from, _ := s.transition(AuthenticatedStatus(user))
	s.logger.Info("%s: session resolved for user %s", operation, user.ID)
	s.record(ctx, ActivityEvent{
		EventType:  success,
		UserID:     user.ID,
		FromStatus: from,
		ToStatus:   StatusAuthenticated,
		Metadata:   map[string]any{"operation": operation},
	})
	return nil
}

func (s *Store) fail(ctx context.Context, operation string, cause error) error {
	kind := ClassifyFailure(cause)
	richErr := wrapFailure(cause, ErrSessionInit, kind, operation)

	s.logger.Warn("%s: %s: %v details=%s", operation, richErr.Message, cause, print.MaybePrettyJSON(richErr.Metadata))

	s.clearCredential(ctx)
	from, user := s.transition(UnauthenticatedStatus())

	s.record(ctx, ActivityEvent{
		EventType:  ActivityEventInitFailed,
		UserID:     user.ID,
		FromStatus: from,
		ToStatus:   StatusUnauthenticated,
		Metadata:   richErr.Metadata,
	})
	return nil
}

// transition applies next and notifies subscribers when the observable
// state changed. It returns the previous kind and user.
func (s *Store) transition(next Status) (StatusKind, User) {
	s.mu.Lock()
	prev := s.status
	prevUser, _ := prev.User()
	if s.closed {
		s.mu.Unlock()
		return prev.Kind(), prevUser
	}
	if !canTransition(prev.Kind(), next.Kind()) {
		s.mu.Unlock()
		s.logger.Error("rejected status transition %s -> %s", prev.Kind(), next.Kind())
		return prev.Kind(), prevUser
	}
	s.status = next
	if next.Kind() != StatusAuthenticated {
		s.credential = ""
	}
	changed := !prev.Equal(next)
	if changed {
		for _, sub := range s.subscribers {
			s.queue = append(s.queue, notice{sub: sub, status: next})
		}
	}
	s.mu.Unlock()

	if changed {
		s.drain()
	}
	return prev.Kind(), prevUser
}

func (s *Store) loadCredential(ctx context.Context) (Credential, bool, error) {
	value, ok, err := s.credentials.Get(ctx, s.config.GetCredentialKey())
	if err != nil {
		return "", false, err
	}
	if !ok || value == "" {
		return "", false, nil
	}
	return Credential(value), true, nil
}

func (s *Store) clearCredential(ctx context.Context) {
	if err := s.credentials.Delete(ctx, s.config.GetCredentialKey()); err != nil {
		s.logger.Error("unable to clear persisted credential: %v", err)
	}
	s.mu.Lock()
	s.credential = ""
	s.mu.Unlock()
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// discarded reports whether a result arriving now must be dropped
func (s *Store) discarded(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return ctx.Err()
}

func (s *Store) record(ctx context.Context, event ActivityEvent) {
	recordActivity(ctx, s.activitySink, s.logger, s.now, event)
}
