package accounts

import (
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

const (
	textCodeLoginRequired     = "LOGIN_REQUIRED"
	textCodeUserExists        = "USER_EXISTS"
	textCodeUserNotFound      = "USER_NOT_FOUND"
	textCodeAlreadyActivated  = "USER_ALREADY_ACTIVATED"
	textCodeResendRedundant   = "RESEND_ALREADY_ACTIVATED"
	textCodeActivationFailed  = "ACTIVATION_FAILED"
	textCodePersistenceFailed = "PERSISTENCE_FAILED"
	textCodeBanTerminal       = "TERMINAL_THROTTLE_STATE"
	textCodeInvalidTransition = "INVALID_THROTTLE_TRANSITION"
)

// ErrLoginRequired is returned when registration is attempted without a
// login identifier.
var ErrLoginRequired = goerrors.New("login field required", goerrors.CategoryValidation).
	WithTextCode(textCodeLoginRequired).
	WithCode(goerrors.CodeBadRequest)

// ErrUserExists is returned when the login identifier is already taken.
var ErrUserExists = goerrors.New("user already exists", goerrors.CategoryConflict).
	WithTextCode(textCodeUserExists).
	WithCode(goerrors.CodeConflict)

// ErrUserNotFound is returned when an id or login resolves to no user.
var ErrUserNotFound = goerrors.New("user not found", goerrors.CategoryNotFound).
	WithTextCode(textCodeUserNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrUserAlreadyActivated is returned when activation is attempted on an
// account that already completed it.
var ErrUserAlreadyActivated = goerrors.New("user is already activated", goerrors.CategoryConflict).
	WithTextCode(textCodeAlreadyActivated).
	WithCode(goerrors.CodeConflict)

// ErrResendAlreadyActivated is returned when an activation resend targets
// an account that no longer needs one.
var ErrResendAlreadyActivated = goerrors.New("account is already activated", goerrors.CategoryConflict).
	WithTextCode(textCodeResendRedundant).
	WithCode(goerrors.CodeConflict)

// ErrActivationFailed is returned when the presented code does not match
// the stored one-time activation code.
var ErrActivationFailed = goerrors.New("activation could not be completed", goerrors.CategoryValidation).
	WithTextCode(textCodeActivationFailed).
	WithCode(goerrors.CodeBadRequest)

// ErrPersistenceFailed is returned when the store rejects a write that was
// expected to succeed, leaving prior state unchanged.
var ErrPersistenceFailed = goerrors.New("unable to persist changes", goerrors.CategoryInternal).
	WithTextCode(textCodePersistenceFailed)

// ErrBanTerminal is returned when a transition tries to move a banned
// throttle record anywhere else. Bans do not clear in normal flow.
var ErrBanTerminal = goerrors.New("throttle state is terminal", goerrors.CategoryConflict).
	WithTextCode(textCodeBanTerminal).
	WithCode(goerrors.CodeConflict)

// ErrInvalidThrottleTransition is returned for throttle state changes
// outside the Clear -> Suspended -> Banned path.
var ErrInvalidThrottleTransition = goerrors.New("invalid throttle state transition", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// IsUniqueViolation will check for driver-level uniqueness errors
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "Duplicate entry")
}

// IsNotFound reports whether err is a missing-record error, either ours or
// one surfaced by the repository layer.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrUserNotFound) ||
		goerrors.IsNotFound(err) ||
		repository.IsRecordNotFound(err)
}

// IsConflict reports whether err represents a uniqueness conflict.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUserExists) {
		return true
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Category == goerrors.CategoryConflict
	}
	return false
}
