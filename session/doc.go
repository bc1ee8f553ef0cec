// Package session provides the Redis-backed per-user session entry: the list
// of live session tokens for one user, a denormalized user snapshot, and the
// time the entry was created.
//
// # Storage layout
//
// One key per user, "<prefix>:<userId>", holding a JSON document
//
//	{"tokens": ["..."], "user": {...}, "refreshTime": "2026-01-02T15:04:05Z"}
//
// The token list is capped (10 by default); appending to a full list evicts the
// oldest token first. Upsert writes the key with a fresh TTL, Remove keeps the
// TTL the key already has.
//
// # Concurrency
//
// Both mutations are read-modify-write sequences run as optimistic Redis
// transactions (WATCH/MULTI/EXEC). A transaction that loses a race is retried
// with a short constant backoff, so concurrent logins for one user never drop
// each other's tokens.
//
// # Architecture boundaries
//
// This package owns the [Store] and the [Entry] model. It does NOT interpret
// signed credentials or decide who may log in; those responsibilities belong
// to the Engine.
//
// # What this package must NOT do
//
//   - Import mailAuth or jwt (no upward imports).
//   - Store password hashes or salts in the user snapshot.
package session
