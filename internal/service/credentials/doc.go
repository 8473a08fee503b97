// Package credentials provisions the administrative RCON password.
//
// The password is generated once with crypto/rand, persisted under the
// config directory with owner-only permissions, and reused verbatim on every
// later run.
package credentials
