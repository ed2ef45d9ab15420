package accounts

import (
	"errors"
)

// Outcome is the structured result lifecycle operations hand back to the
// presentation layer: a success flag plus a display-ready message. Errors
// from the closed taxonomy are folded into outcomes here; anything outside
// it is infrastructure failure and propagates to the caller instead.
type Outcome struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

const (
	// MsgRegistered is shown after a successful registration.
	MsgRegistered = "Your account has been created. Check your email for the confirmation link."
	// MsgProfileUpdated is shown after a successful profile update.
	MsgProfileUpdated = "Profile updated"
	// MsgActivationComplete is shown after a successful activation.
	MsgActivationComplete = "Activation complete."
	// MsgActivationResent is shown after the activation email is re-sent.
	MsgActivationResent = "Check your email for the confirmation link."

	msgLoginRequired     = "Login field required."
	msgUserExists        = "User already exists."
	msgUserNotFound      = "User was not found."
	msgAlreadyActivated  = "User is already activated."
	// Resend uses its own phrasing for the activated case.
	msgResendAlreadyActivated = "That account has already been activated."
	msgActivationFailed  = "Activation could not be completed."
	msgProfileNotUpdated = "Unable to update profile"
)

func successOutcome(message string) Outcome {
	return Outcome{Success: true, Message: message}
}

// failureOutcome maps a taxonomy error to its user-facing message. The
// second return is false when err is not part of the closed set, meaning
// the caller must propagate it rather than swallow it.
func failureOutcome(err error) (Outcome, bool) {
	switch {
	case errors.Is(err, ErrLoginRequired):
		return Outcome{Message: msgLoginRequired}, true
	case errors.Is(err, ErrUserExists):
		return Outcome{Message: msgUserExists}, true
	case errors.Is(err, ErrResendAlreadyActivated):
		return Outcome{Message: msgResendAlreadyActivated}, true
	case errors.Is(err, ErrUserAlreadyActivated):
		return Outcome{Message: msgAlreadyActivated}, true
	case errors.Is(err, ErrActivationFailed):
		return Outcome{Message: msgActivationFailed}, true
	case errors.Is(err, ErrPersistenceFailed):
		return Outcome{Message: msgProfileNotUpdated}, true
	case IsNotFound(err):
		return Outcome{Message: msgUserNotFound}, true
	}
	return Outcome{}, false
}
