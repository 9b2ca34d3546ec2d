package identity

import "errors"

var (
	// ErrInvalidCredentials is returned for an unknown principal or a wrong
	// password. Deliberately indistinguishable to prevent account probing.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
