// Package middleware adapts mailAuth session checks to net/http.
//
// [Guard] reads the bearer credential, resolves it with
// Engine.Authenticate and injects the session into the request context so
// handlers such as logout can find the token to remove. [ClientInfo]
// records the caller address and User-Agent.
//
// This package translates HTTP semantics into Engine calls. It does not
// parse credentials or touch Redis itself.
package middleware
