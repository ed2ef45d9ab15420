package accounts

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// NotificationGateway delivers templated email on behalf of the lifecycle
// service. Sends are best-effort: the service never rolls back state when
// delivery fails, it only logs.
type NotificationGateway interface {
	Send(ctx context.Context, template string, data map[string]any, to, subject string) error
}

// NotificationGatewayFunc adapts a function to the NotificationGateway interface.
type NotificationGatewayFunc func(ctx context.Context, template string, data map[string]any, to, subject string) error

// Send implements NotificationGateway.
func (f NotificationGatewayFunc) Send(ctx context.Context, template string, data map[string]any, to, subject string) error {
	if f == nil {
		return nil
	}
	return f(ctx, template, data, to, subject)
}

// ThrottleReader is the read surface listings use to derive status. Both
// checks are pure and safe to call repeatedly for the same user.
type ThrottleReader interface {
	IsSuspended(ctx context.Context, userID uuid.UUID) (bool, error)
	IsBanned(ctx context.Context, userID uuid.UUID) (bool, error)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] ACCOUNTS "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
