package activitymap_test

import (
	"testing"
	"time"

	accounts "github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/activitymap"
)

func TestNormalizeDefaults(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	event := accounts.ActivityEvent{
		EventType: accounts.ActivityEventThrottleSuspended,
		UserID:    "user-100",
		FromState: accounts.ThrottleClear,
		ToState:   accounts.ThrottleSuspended,
		Metadata: map[string]any{
			"ticket": "SEC-204",
		},
		OccurredAt: ts,
	}

	out := activitymap.Normalize(event)

	if out.ActorID != "user-100" {
		t.Fatalf("expected actor_id user-100, got %q", out.ActorID)
	}
	if out.Verb != string(accounts.ActivityEventThrottleSuspended) {
		t.Fatalf("expected verb %q, got %q", accounts.ActivityEventThrottleSuspended, out.Verb)
	}
	if out.ObjectType != "user" {
		t.Fatalf("expected object_type user, got %q", out.ObjectType)
	}
	if out.ObjectID != "user-100" {
		t.Fatalf("expected object_id user-100, got %q", out.ObjectID)
	}
	if out.Channel != "accounts" {
		t.Fatalf("expected channel accounts, got %q", out.Channel)
	}
	if !out.OccurredAt.Equal(ts) {
		t.Fatalf("expected occurred_at %v, got %v", ts, out.OccurredAt)
	}

	if out.Metadata["ticket"] != "SEC-204" {
		t.Fatalf("expected metadata ticket SEC-204, got %#v", out.Metadata["ticket"])
	}
	if out.Metadata[activitymap.MetadataKeyFromState] != string(accounts.ThrottleClear) {
		t.Fatalf("expected metadata from_state clear, got %#v", out.Metadata[activitymap.MetadataKeyFromState])
	}
	if out.Metadata[activitymap.MetadataKeyToState] != string(accounts.ThrottleSuspended) {
		t.Fatalf("expected metadata to_state suspended, got %#v", out.Metadata[activitymap.MetadataKeyToState])
	}

	if len(event.Metadata) != 1 {
		t.Fatalf("expected source metadata to remain unchanged, got %+v", event.Metadata)
	}
}

func TestNormalizeOptionOverrides(t *testing.T) {
	t.Parallel()

	event := accounts.ActivityEvent{
		EventType: accounts.ActivityEventUserActivated,
		UserID:    "user-200",
		Metadata: map[string]any{
			"activation_id": "act-1",
		},
	}

	out := activitymap.Normalize(
		event,
		activitymap.WithDefaultChannel("security"),
		activitymap.WithDefaultObjectType("account"),
		activitymap.WithObjectIDResolver(func(e accounts.ActivityEvent) string {
			if v, ok := e.Metadata["activation_id"].(string); ok {
				return v
			}
			return ""
		}),
	)

	if out.Channel != "security" {
		t.Fatalf("expected channel security, got %q", out.Channel)
	}
	if out.ObjectType != "account" {
		t.Fatalf("expected object_type account, got %q", out.ObjectType)
	}
	if out.ObjectID != "act-1" {
		t.Fatalf("expected object_id act-1, got %q", out.ObjectID)
	}
	if out.OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at to be set when input is zero")
	}
}

func TestNormalizeActorFallbackChain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		event  accounts.ActivityEvent
		opts   []activitymap.Option
		expect string
	}{
		{
			name:   "uses user id when present",
			event:  accounts.ActivityEvent{UserID: "user-1"},
			expect: "user-1",
		},
		{
			name:   "uses default fallback when user missing",
			event:  accounts.ActivityEvent{},
			expect: "system",
		},
		{
			name:   "uses configured fallback when user missing",
			event:  accounts.ActivityEvent{},
			opts:   []activitymap.Option{activitymap.WithActorFallback("job")},
			expect: "job",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			out := activitymap.Normalize(tc.event, tc.opts...)
			if out.ActorID != tc.expect {
				t.Fatalf("expected actor_id %q, got %q", tc.expect, out.ActorID)
			}
		})
	}
}
