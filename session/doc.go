// Package session provides Redis-backed persistence for per-device login sessions.
//
// # Storage layout
//
// Each session is stored as a compact versioned binary blob under
// "<prefix>:s:<sessionID>" with a Redis TTL equal to its remaining lifetime, and its id
// is indexed in the per-user set "<prefix>:u:<userID>". Reads compare ExpiresAt against
// the caller's clock, so an expired session is absent even before Redis evicts it.
//
// # Architecture boundaries
//
// This package owns the [Store] and the [Session] model. It does NOT interpret tokens or
// decide when a session should be extended; that belongs to the Engine.
//
// # What this package must NOT do
//
//   - Import sessionauth or jwt (no upward imports).
//   - Store tokens or password material in [Session] fields.
package session
