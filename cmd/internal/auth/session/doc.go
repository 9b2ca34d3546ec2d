// Package session implements Sole's session authority.
//
// It guarantees at most one active session per principal: issuing a session
// atomically revokes every other active session for the same principal, and
// validation is server-authoritative on every heartbeat.
//
// Session tokens are opaque random strings and are stored hashed in Postgres
// (HMAC-SHA256 when SOLE_TOKEN_HMAC_KEY is set; otherwise SHA-256 for
// dev/back-compat). Sessions expire after a sliding inactivity window,
// detected lazily at validation time and eagerly by a background sweep.
//
// Transport (HTTP/WS) integration is intentionally out of scope here.
package session
