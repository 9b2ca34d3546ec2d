// Package password implements Argon2id password hashing for Sole.
//
// It is the single source of truth for hashing parameters and verification.
// Encoded hashes use the PHC string format and are verified with strict
// parsing plus anti-DoS parameter bounds.
package password
