// Package rate provides the Redis-backed login throttle.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Only failed
// logins are counted; a successful login clears the counters. Key layout:
//   - <prefix>:login:id:<email>  login per-identifier
//   - <prefix>:login:ip:<ip>     login per-IP
//
// # What this package must NOT do
//
//   - Implement registration policies (those live in internal/limiters).
//   - Be imported outside the mailAuth module.
package rate
