// Package stores provides small Redis-backed records used by the
// registration flow.
//
// # Design
//
// [VerificationCounter] keeps the rolling number of registrations completed
// since the last human-verification challenge. It is a single integer key
// mutated with INCR and DEL, so concurrent registrations never lose counts.
//
// # Architecture boundaries
//
// This package owns persistence only. Whether a challenge is due is decided
// by internal/policy; the engine glues the two together.
//
// # What this package must NOT do
//
//   - Import mailAuth or any sibling internal package.
//   - Decide policy thresholds.
package stores
