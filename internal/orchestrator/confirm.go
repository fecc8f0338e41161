package orchestrator

import "errors"

// ConfirmationToken is the exact operator input that authorizes writes.
const ConfirmationToken = "APPROVED"

// ErrNotConfirmed is returned by Execute without a valid Confirmation, and by
// Confirm for any token other than ConfirmationToken.
var ErrNotConfirmed = errors.New("execution not confirmed: type " + ConfirmationToken + " to proceed")

// Confirmation authorizes one Execute call. The zero value is not valid.
type Confirmation struct {
	ok bool
}

// Confirm returns a valid Confirmation only for ConfirmationToken. The
// comparison is case-sensitive and does not trim.
func Confirm(token string) (Confirmation, error) {
	if token != ConfirmationToken {
		return Confirmation{}, ErrNotConfirmed
	}
	return Confirmation{ok: true}, nil
}

// Valid reports whether c came from a successful Confirm.
func (c Confirmation) Valid() bool {
	return c.ok
}
