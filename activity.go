package session

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventInitialized        ActivityEventType = "session.initialized"
	ActivityEventRefreshed          ActivityEventType = "session.refreshed"
	ActivityEventInitFailed         ActivityEventType = "session.init_failed"
	ActivityEventLogout             ActivityEventType = "session.logout"
	ActivityEventLogoutRemoteFailed ActivityEventType = "session.logout_remote_failed"
	ActivityEventHandoffCompleted   ActivityEventType = "session.handoff.completed"
	ActivityEventHandoffFailed      ActivityEventType = "session.handoff.failed"
)

// ActivityEvent captures audit-friendly information about a session change.
type ActivityEvent struct {
	ID         uuid.UUID
	EventType  ActivityEventType
	UserID     string
	FromStatus StatusKind
	ToStatus   StatusKind
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// recordActivity fills defaults and forwards to the sink. Sink failures
// are logged and otherwise ignored.
func recordActivity(ctx context.Context, sink ActivitySink, logger Logger, now func() time.Time, event ActivityEvent) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = now()
	}
	if err := normalizeActivitySink(sink).Record(ctx, event); err != nil {
		logger.Warn("session activity sink error: %v", err)
	}
}
