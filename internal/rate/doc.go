// Package rate throttles failed sign-ins with Redis counters.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. One key per
// username: <prefix>:signin:<username>.
package rate
