package emailverify

import "errors"

var (
	// ErrInvalidConfig is returned by every call on a Verifier built from
	// an unusable Config.
	ErrInvalidConfig = errors.New("emailverify: invalid configuration")

	// ErrUnexpected wraps a panic recovered while verifying an address.
	ErrUnexpected = errors.New("emailverify: unexpected failure")
)
