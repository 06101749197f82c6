// Package sessionauth implements session-based authentication: registration, login,
// logout, access/refresh token issuance with sliding refresh, email verification,
// password reset, and per-device session management.
//
// The package is designed for concurrent server workloads: Engine methods are safe to
// call from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// sessionauth is the protocol core. Persistence is reached only through [UserStore],
// [CodeStore], and [SessionStore]; outbound mail only through [Mailer]. Concrete
// implementations live in sub-packages: session (Redis), internal/stores/postgres,
// internal/stores/memory, and mail. HTTP transport lives in httpapi and middleware.
//
// Every failure returned by an Engine method is an [*Error] carrying one of the kind
// sentinels ([ErrConflict], [ErrUnauthorized], [ErrNotFound], [ErrTooManyRequests],
// [ErrBadRequest], [ErrInternal]) so the transport can map it without inspecting
// messages.
//
// # Performance contract
//
// [Engine.Authenticate] is the hot path. It verifies the access token signature and
// expiry only and never touches a store. Login, Register, and Refresh perform a small
// fixed number of store round trips.
package sessionauth
