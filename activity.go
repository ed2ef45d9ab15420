package accounts

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventUserRegistered    ActivityEventType = "account.registered"
	ActivityEventUserActivated     ActivityEventType = "account.activated"
	ActivityEventActivationResent  ActivityEventType = "account.activation.resent"
	ActivityEventUserUpdated       ActivityEventType = "account.updated"
	ActivityEventUserRemoved       ActivityEventType = "account.removed"
	ActivityEventThrottleChanged   ActivityEventType = "account.throttle.changed"
	ActivityEventThrottleSuspended ActivityEventType = "account.throttle.suspended"
	ActivityEventThrottleBanned    ActivityEventType = "account.throttle.banned"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	UserID     string
	FromState  ThrottleState
	ToState    ThrottleState
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
// Sinks run best-effort: failures are logged, never surfaced to callers.
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
