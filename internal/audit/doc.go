// Package audit dispatches account audit events to a sink off the caller's
// goroutine.
//
// The engine decides which events to emit. This package only buffers and
// delivers them; a full buffer either drops (counted) or blocks, per [Config].
package audit
