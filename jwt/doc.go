// Package jwt signs and verifies the two token kinds used by sessionauth: short-lived
// access tokens and long-lived refresh tokens, each keyed by its own HMAC secret.
package jwt
