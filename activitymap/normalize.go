package activitymap

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	session "github.com/goliatone/go-auth-session"
)

const (
	// MetadataKeyEventID stores the activity event id.
	MetadataKeyEventID = "event_id"
	// MetadataKeyFromStatus stores the session status before the change.
	MetadataKeyFromStatus = "from_status"
	// MetadataKeyToStatus stores the session status after the change.
	MetadataKeyToStatus = "to_status"
)

const (
	defaultChannel    = "session"
	defaultObjectType = "session"
	defaultActorID    = "anonymous"
)

// Normalized is a transport-agnostic activity shape for downstream systems.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel          string
	objectType       string
	actorFallback    string
	objectIDResolver func(session.ActivityEvent) string
}

// Normalize converts a session.ActivityEvent into a generic normalized shape.
func Normalize(event session.ActivityEvent, opts ...Option) Normalized {
	options := defaultNormalizeOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	actorID := firstNonEmpty(
		strings.TrimSpace(event.UserID),
		strings.TrimSpace(options.actorFallback),
	)

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	return Normalized{
		ActorID:    actorID,
		Verb:       string(event.EventType),
		ObjectType: strings.TrimSpace(options.objectType),
		ObjectID:   resolveObjectID(event, options.objectIDResolver),
		Channel:    strings.TrimSpace(options.channel),
		Metadata:   normalizeMetadata(event),
		OccurredAt: occurredAt,
	}
}

// Publisher delivers normalized records downstream
type Publisher func(ctx context.Context, record Normalized) error

// Sink adapts a Publisher into a session.ActivitySink so store and handoff
// events reach it already normalized.
func Sink(publish Publisher, opts ...Option) session.ActivitySink {
	return session.ActivitySinkFunc(func(ctx context.Context, event session.ActivityEvent) error {
		if publish == nil {
			return nil
		}
		return publish(ctx, Normalize(event, opts...))
	})
}

// WithDefaultChannel sets the default channel for normalized records.
func WithDefaultChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithDefaultObjectType sets the default object type for normalized records.
func WithDefaultObjectType(objectType string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.objectType = strings.TrimSpace(objectType)
	}
}

// WithObjectIDResolver overrides object-id extraction from ActivityEvent.
func WithObjectIDResolver(resolver func(session.ActivityEvent) string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.objectIDResolver = resolver
	}
}

// WithActorFallback sets the actor id used for events without a user.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

func defaultNormalizeOptions() normalizeOptions {
	return normalizeOptions{
		channel:       defaultChannel,
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
	}
}

func resolveObjectID(event session.ActivityEvent, resolver func(session.ActivityEvent) string) string {
	if resolver != nil {
		return strings.TrimSpace(resolver(event))
	}
	return strings.TrimSpace(event.UserID)
}

// normalizeMetadata drops credential-bearing keys so tokens never leave
// the process through the activity stream.
func normalizeMetadata(event session.ActivityEvent) map[string]any {
	metadata := make(map[string]any, len(event.Metadata)+3)
	for key, value := range event.Metadata {
		if isSensitiveKey(key) {
			continue
		}
		metadata[key] = value
	}

	if event.ID != uuid.Nil {
		metadata[MetadataKeyEventID] = event.ID.String()
	}
	// nothing transitions to unknown, so it marks events without a status change
	if event.ToStatus != session.StatusUnknown {
		metadata[MetadataKeyFromStatus] = event.FromStatus.String()
		metadata[MetadataKeyToStatus] = event.ToStatus.String()
	}
	if len(metadata) == 0 {
		return nil
	}
	return metadata
}

func isSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "token") || strings.Contains(k, "credential") || strings.Contains(k, "secret")
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
