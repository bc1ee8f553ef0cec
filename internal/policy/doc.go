// Package policy holds the pure decision functions used by registration and
// federated login: registration admission, registration-key resolution, role
// domain eligibility, and human-verification gating.
//
// # Architecture boundaries
//
// Every function here takes an explicit [Setting]-derived input and returns an
// [Outcome] or a boolean. Nothing in this package performs I/O, reads global
// state, or knows about the error types of the root package; the engine maps
// outcomes onto its own business errors.
package policy
