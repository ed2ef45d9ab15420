package accounts

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ThrottleState is the derived state of a throttle record.
type ThrottleState = string

const (
	// ThrottleClear means no active suspension or ban.
	ThrottleClear ThrottleState = "clear"
	// ThrottleSuspended means a timed hold is in effect.
	ThrottleSuspended ThrottleState = "suspended"
	// ThrottleBanned is terminal: normal flow never clears it.
	ThrottleBanned ThrottleState = "banned"
)

const (
	// DefaultSuspensionAttempts is how many failures trigger a suspension.
	DefaultSuspensionAttempts = 5
	// DefaultSuspensionWindow is how long a suspension lasts.
	DefaultSuspensionWindow = 15 * time.Minute
	// DefaultFailureDecay is how long a failure counter survives without a
	// new attempt before it resets.
	DefaultFailureDecay = 24 * time.Hour
)

// ThrottleTracker owns the Clear -> Suspended -> Banned progression and
// exposes the pure reads listings use. Reads never mutate: an elapsed
// suspension simply stops counting instead of being rewritten.
type ThrottleTracker struct {
	throttles          Throttles
	transitions        map[ThrottleState]map[ThrottleState]struct{}
	now                func() time.Time
	activitySink       ActivitySink
	logger             Logger
	suspensionAttempts int
	suspensionWindow   time.Duration
	failureDecay       time.Duration
}

var _ ThrottleReader = (*ThrottleTracker)(nil)

// TrackerOption customizes tracker construction.
type TrackerOption func(*ThrottleTracker)

// WithTrackerClock injects a custom clock (useful for tests).
func WithTrackerClock(clock func() time.Time) TrackerOption {
	return func(t *ThrottleTracker) {
		if clock != nil {
			t.now = clock
		}
	}
}

// WithTrackerActivitySink sets the ActivitySink used to publish throttle events.
func WithTrackerActivitySink(sink ActivitySink) TrackerOption {
	return func(t *ThrottleTracker) {
		t.activitySink = normalizeActivitySink(sink)
	}
}

// WithTrackerLogger overrides the logger used for sink failures.
func WithTrackerLogger(logger Logger) TrackerOption {
	return func(t *ThrottleTracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithSuspensionPolicy tunes how many failures suspend and for how long.
func WithSuspensionPolicy(attempts int, window time.Duration) TrackerOption {
	return func(t *ThrottleTracker) {
		if attempts > 0 {
			t.suspensionAttempts = attempts
		}
		if window > 0 {
			t.suspensionWindow = window
		}
	}
}

// WithFailureDecay tunes how long a failure counter survives without a new
// attempt. Zero or negative disables decay entirely.
func WithFailureDecay(window time.Duration) TrackerOption {
	return func(t *ThrottleTracker) {
		t.failureDecay = window
	}
}

// NewThrottleTracker returns the default tracker backed by the provided repository.
func NewThrottleTracker(throttles Throttles, opts ...TrackerOption) *ThrottleTracker {
	tracker := &ThrottleTracker{
		throttles: throttles,
		transitions: map[ThrottleState]map[ThrottleState]struct{}{
			ThrottleClear: {
				ThrottleSuspended: {},
			},
			ThrottleSuspended: {
				ThrottleBanned: {},
			},
		},
		now:                time.Now,
		activitySink:       noopActivitySink{},
		logger:             defLogger{},
		suspensionAttempts: DefaultSuspensionAttempts,
		suspensionWindow:   DefaultSuspensionWindow,
		failureDecay:       DefaultFailureDecay,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(tracker)
		}
	}

	return tracker
}

// StateOf derives the state of a record at the given instant.
func StateOf(record *Throttle, at time.Time) ThrottleState {
	if record == nil {
		return ThrottleClear
	}

	if record.BannedAt != nil {
		return ThrottleBanned
	}

	if record.SuspendedUntil != nil && record.SuspendedUntil.After(at) {
		return ThrottleSuspended
	}

	return ThrottleClear
}

// IsSuspended reports whether the user is under an active suspension.
func (t *ThrottleTracker) IsSuspended(ctx context.Context, userID uuid.UUID) (bool, error) {
	record, err := t.throttles.GetOrCreateByUserID(ctx, userID)
	if err != nil {
		return false, err
	}
	return StateOf(record, t.now()) == ThrottleSuspended, nil
}

// IsBanned reports whether the user is banned.
func (t *ThrottleTracker) IsBanned(ctx context.Context, userID uuid.UUID) (bool, error) {
	record, err := t.throttles.GetOrCreateByUserID(ctx, userID)
	if err != nil {
		return false, err
	}
	return StateOf(record, t.now()) == ThrottleBanned, nil
}

// RecordFailure bumps the failure counter and suspends the user once the
// policy threshold is reached. Banned users stay banned regardless.
func (t *ThrottleTracker) RecordFailure(ctx context.Context, userID uuid.UUID) (*Throttle, error) {
	record, err := t.throttles.GetOrCreateByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := t.now()
	if StateOf(record, now) == ThrottleBanned {
		return record, nil
	}

	if t.staleCounter(record, now) {
		record, err = t.throttles.ResetFailures(ctx, record)
		if err != nil {
			return nil, err
		}
	}

	record, err = t.throttles.RecordFailure(ctx, record, now)
	if err != nil {
		return nil, err
	}

	if record.FailedAttempts < t.suspensionAttempts {
		return record, nil
	}

	if StateOf(record, now) == ThrottleSuspended {
		return record, nil
	}

	return t.Suspend(ctx, userID)
}

// Suspend puts the user into a timed hold per the configured window.
func (t *ThrottleTracker) Suspend(ctx context.Context, userID uuid.UUID) (*Throttle, error) {
	record, err := t.throttles.GetOrCreateByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := t.now()
	from := StateOf(record, now)
	if err := t.validateTransition(from, ThrottleSuspended); err != nil {
		return nil, err
	}

	until := now.Add(t.suspensionWindow)
	record, err = t.throttles.MarkSuspended(ctx, record, until)
	if err != nil {
		return nil, err
	}

	t.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventThrottleSuspended,
		UserID:    userID.String(),
		FromState: from,
		ToState:   ThrottleSuspended,
		Metadata: map[string]any{
			"suspended_until": until,
			"failed_attempts": record.FailedAttempts,
		},
	})

	return record, nil
}

// Ban marks the user banned. Bans are terminal: once set the timestamp
// survives every later transition attempt.
func (t *ThrottleTracker) Ban(ctx context.Context, userID uuid.UUID) (*Throttle, error) {
	record, err := t.throttles.GetOrCreateByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := t.now()
	from := StateOf(record, now)
	if err := t.validateTransition(from, ThrottleBanned); err != nil {
		return nil, err
	}

	if err := t.throttles.MarkBanned(ctx, userID, now); err != nil {
		return nil, err
	}

	banned := now
	record.BannedAt = &banned

	t.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventThrottleBanned,
		UserID:    userID.String(),
		FromState: from,
		ToState:   ThrottleBanned,
	})

	return record, nil
}

// staleCounter reports whether the failure counter outlived the decay
// window. Active suspensions keep their counters until they lapse.
func (t *ThrottleTracker) staleCounter(record *Throttle, at time.Time) bool {
	if t.failureDecay <= 0 {
		return false
	}
	if record.FailedAttempts == 0 || record.LastAttemptAt == nil {
		return false
	}
	if StateOf(record, at) != ThrottleClear {
		return false
	}
	return at.Sub(*record.LastAttemptAt) >= t.failureDecay
}

func (t *ThrottleTracker) validateTransition(from, to ThrottleState) error {
	if from == to {
		return nil
	}

	if from == ThrottleBanned {
		return ErrBanTerminal.WithMetadata(map[string]any{
			"from": from,
			"to":   to,
		})
	}

	if allowed, ok := t.transitions[from]; ok {
		if _, exists := allowed[to]; exists {
			return nil
		}
	}

	return ErrInvalidThrottleTransition.WithMetadata(map[string]any{
		"from": from,
		"to":   to,
	})
}

func (t *ThrottleTracker) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = t.now()
	}

	if err := t.activitySink.Record(ctx, event); err != nil {
		t.logger.Error("activity sink failure: %v", err)
	}
}
