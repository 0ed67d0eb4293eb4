// Package rate counts failed logins per account in Redis and refuses further attempts
// once an account exceeds its budget.
//
// # Window semantics
//
// Fixed-window counters: INCR, then EXPIRE on the first hit of the window. Keys are
// "<prefix>:login:<username>".
//
// # What this package must NOT do
//
//   - Decide what a refused attempt looks like on the wire (the backend does).
//   - Be imported outside the goCampus module.
package rate
