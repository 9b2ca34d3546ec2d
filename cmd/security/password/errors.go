package password

import "errors"

var (
	// ErrPasswordTooShort is returned when the password violates MinLength.
	ErrPasswordTooShort = errors.New("password too short")
	// ErrPasswordTooLong is returned when the password violates MaxLength.
	ErrPasswordTooLong = errors.New("password too long")
	// ErrInvalidHash is returned for malformed or unsupported encoded hashes.
	ErrInvalidHash = errors.New("invalid argon2id hash")
)
