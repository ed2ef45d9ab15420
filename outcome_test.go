package accounts

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFailureOutcomeFoldsTaxonomyErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
		handled bool
	}{
		{
			name:    "login required",
			err:     ErrLoginRequired,
			message: msgLoginRequired,
			handled: true,
		},
		{
			name:    "duplicate user",
			err:     ErrUserExists,
			message: msgUserExists,
			handled: true,
		},
		{
			name:    "user not found",
			err:     ErrUserNotFound,
			message: msgUserNotFound,
			handled: true,
		},
		{
			name:    "already activated",
			err:     ErrUserAlreadyActivated,
			message: msgAlreadyActivated,
			handled: true,
		},
		{
			name:    "resend on activated account",
			err:     ErrResendAlreadyActivated,
			message: msgResendAlreadyActivated,
			handled: true,
		},
		{
			name:    "activation failed",
			err:     ErrActivationFailed,
			message: msgActivationFailed,
			handled: true,
		},
		{
			name:    "persistence rejected",
			err:     ErrPersistenceFailed,
			message: msgProfileNotUpdated,
			handled: true,
		},
		{
			name:    "metadata does not break matching",
			err:     ErrUserExists.WithMetadata(map[string]any{"email": "x"}),
			message: msgUserExists,
			handled: true,
		},
		{
			name:    "infra errors propagate",
			err:     errors.New("connection refused"),
			handled: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, ok := failureOutcome(tt.err)
			assert.Equal(t, tt.handled, ok)
			if tt.handled {
				assert.False(t, out.Success)
				assert.Equal(t, tt.message, out.Message)
			}
		})
	}
}

func TestSuccessOutcome(t *testing.T) {
	out := successOutcome(MsgProfileUpdated)
	assert.True(t, out.Success)
	assert.Equal(t, MsgProfileUpdated, out.Message)
}
