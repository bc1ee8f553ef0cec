// Package limiters provides the registration throttle built on Redis
// fixed-window counters.
//
// # Limiters
//
//   - [RegistrationLimiter]: per-IP and per-email throttle for sign-ups.
//
// Limiters are nil-safe: calling Enforce on a nil receiver returns nil.
//
// # Architecture boundaries
//
// Each limiter owns its own Redis key namespace and error types. Thresholds
// come from Config structs supplied at construction time.
//
// # What this package must NOT do
//
//   - Import mailAuth or any sibling internal package.
//   - Make policy decisions beyond counting.
package limiters
