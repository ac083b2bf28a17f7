package users

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventUserRegistered   ActivityEventType = "user.registered"
	ActivityEventUserArchived     ActivityEventType = "user.archived"
	ActivityEventUserUpgraded     ActivityEventType = "user.upgraded"
	ActivityEventUserDeleted      ActivityEventType = "user.deleted"
	ActivityEventKeysGenerated    ActivityEventType = "user.keys.generated"
	ActivityEventPasswordUpdated  ActivityEventType = "user.password.updated"
	ActivityEventLoginSuccess     ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure     ActivityEventType = "auth.login.failure"
	ActivityEventTokenAuthSuccess ActivityEventType = "auth.token.success"
	ActivityEventTokenAuthFailure ActivityEventType = "auth.token.failure"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	ActorID    string
	UserID     string
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

// emit records event best effort, sink errors are logged and dropped
func (e *env) emit(ctx context.Context, eventType ActivityEventType, actorID, userID string, metadata map[string]any) {
	event := ActivityEvent{
		EventType:  eventType,
		ActorID:    actorID,
		UserID:     userID,
		Metadata:   metadata,
		OccurredAt: e.now(),
	}
	if err := e.activity.Record(ctx, event); err != nil {
		e.logger.Warn("activity sink failed to record %s: %v", eventType, err)
	}
}
