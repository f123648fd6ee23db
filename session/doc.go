// Package session stores the per-connection session projection in Redis.
//
// A [Store] hands out [Slot] values by session id. Each slot implements
// slateauth.SessionSlot, so a host resolves the id from its own transport
// (usually a cookie), wraps it with Store.Slot and attaches it to the request
// context with slateauth.WithSession.
//
// Records are JSON with a schema version byte; a record with an unknown
// version reads as an empty slot. Every session is also indexed per
// username so all sessions of an account can be dropped at once.
//
// # What this package must NOT do
//
//   - Decide authorization. It stores what the engine projects.
//   - Issue the session id cookie. That belongs to the host.
package session
