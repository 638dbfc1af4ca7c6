// Package rate provides Redis-backed fixed-window limiters for login and
// registration.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - al:  login per-identifier
//   - ali: login per-IP
//   - arg: registration per-IP
//
// Login counts failures only: CheckLogin rejects once MaxLoginAttempts
// failures are recorded in the window, and a successful login resets them.
package rate
