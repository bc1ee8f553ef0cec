// Package mailAuth is the authentication and account-provisioning core of a
// hosted mailbox service: password registration gated by policy, password
// login, federated login through an OAuth provider, and logout over a
// Redis-backed list of live session tokens per user.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// mailAuth is the public surface. It exposes [Engine], [Builder], [Config],
// the [IdentityStore] contract and value types. Gate and verification
// decisions (internal/policy), throttles, the verification counter and audit
// dispatch live under internal/ and are never exported. Session entries,
// credential signing, password hashing and the OAuth bridge are separate
// packages so they can be tested on their own.
//
// # Setting snapshots
//
// Every use case reads one [Setting] from the IdentityStore at its start and
// threads it explicitly through each policy decision. Nothing in this
// package caches settings between calls.
//
// # Write ordering
//
// Register and the first federated login perform every check before the
// single atomic [IdentityStore.CreateUser] call. A refused request leaves no
// user, account or key decrement behind.
package mailAuth
