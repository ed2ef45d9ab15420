package accounts

import (
	"crypto/subtle"

	"github.com/google/uuid"
)

// NewActivationCode issues an opaque one-time activation token. The code
// only exists while the account is unactivated and is cleared on first
// successful activation.
func NewActivationCode() string {
	return uuid.NewString()
}

// MatchActivationCode compares a presented code against the stored one
// without leaking match position through timing. An empty stored code never
// matches: consumed codes are gone for good.
func MatchActivationCode(stored, presented string) bool {
	if stored == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1
}
