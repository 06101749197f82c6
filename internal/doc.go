// Package internal contains helper utilities that are private to sessionauth,
// such as identifier generation.
//
// # Sub-packages
//
//   - stores/postgres — pgx-backed user and verification code repositories
//   - stores/memory — in-process repositories for development mode and tests
//
// # What this package must NOT do
//
//   - Export types that appear in the public sessionauth API.
//   - Be imported by any package outside the sessionauth module.
package internal
