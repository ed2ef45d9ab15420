package accounts_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-repository-bun"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "sqlite unique constraint",
			err:      errors.New("UNIQUE constraint failed: users.email"),
			expected: true,
		},
		{
			name:     "postgres duplicate key",
			err:      errors.New(`duplicate key value violates unique constraint "users_email_key"`),
			expected: true,
		},
		{
			name:     "mysql duplicate entry",
			err:      errors.New("Error 1062: Duplicate entry 'walter@example.com' for key 'email'"),
			expected: true,
		},
		{
			name:     "wrapped driver error",
			err:      fmt.Errorf("insert failed: %w", errors.New("UNIQUE constraint failed: users.email")),
			expected: true,
		},
		{
			name:     "unrelated error",
			err:      errors.New("connection refused"),
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, accounts.IsUniqueViolation(tt.err))
		})
	}
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, accounts.IsNotFound(accounts.ErrUserNotFound))
	assert.True(t, accounts.IsNotFound(repository.NewRecordNotFound()))
	assert.False(t, accounts.IsNotFound(errors.New("boom")))
	assert.False(t, accounts.IsNotFound(nil))
}

func TestIsConflict(t *testing.T) {
	assert.True(t, accounts.IsConflict(accounts.ErrUserExists))
	assert.True(t, accounts.IsConflict(accounts.ErrUserAlreadyActivated))
	assert.False(t, accounts.IsConflict(accounts.ErrUserNotFound))
	assert.False(t, accounts.IsConflict(errors.New("boom")))
	assert.False(t, accounts.IsConflict(nil))
}
