// Package middleware exposes the HTTP request authenticator built on
// sessionauth.Engine.Authenticate.
//
// [Guard] reads the accessToken cookie (or an Authorization bearer header), calls
// Authenticate, and injects the resulting sessionauth.Identity into the request context
// for [IdentityFromContext].
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT parse tokens
// or touch any store; every decision is delegated to the Authenticator.
package middleware
