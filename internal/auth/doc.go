// Package auth issues and checks the bearer tokens that guard the API.
//
// There are no user accounts. The operator mints tokens with
// `brickplay token` using the configured secret; each token carries a
// subject naming the client and one of three roles (viewer → operator →
// admin). Permissions are a static role mapping with no database lookup.
package auth
