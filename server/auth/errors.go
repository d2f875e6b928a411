package auth

import "errors"

var (
	// ErrBadCredentials indicates the supplied operator password is wrong.
	ErrBadCredentials = errors.New("incorrect operator password")

	// ErrBadToken indicates a bearer token failed signature, issuer, or
	// expiry validation.
	ErrBadToken = errors.New("invalid or expired token")
)
