// Package identity implements Sole's identity-provider boundary.
//
// The session authority never sees raw credentials; it receives an opaque
// principal id from a Verifier. This package provides the Postgres-backed
// verifier used in production and an in-memory verifier for dev mode.
package identity
