// Package slateauth is a pluggable authentication and authorization core:
// it verifies credentials, issues and validates bearer tokens, keeps per-user
// data behind a namespaced key-value store, and gates actions behind a
// bitmask of capability flags.
//
// The package is built from three capabilities, each swappable:
//
//   - hashing: [password.Hasher] (Argon2id by default, bcrypt for migrations)
//   - tokens: [TokenSigner] ([jwt.Manager] by default)
//   - storage: a [store.Backend] behind [store.Store] (memory, file, Redis,
//     SQL or MongoDB)
//
// [Engine] orchestrates accounts over them and is built once with [Builder].
// [Auth] wraps an Engine with per-connection session state: the host attaches
// a [SessionSlot] to each request context with [WithSession], and every Auth
// operation returns a [Result] carrying either data or an [ErrorKind].
//
// # Consistency
//
// At most one account is created per username, under any concurrency.
// Sign-up and nickname changes serialise on per-key locks in process and
// commit through the backend's SetIfAbsent, which holds across processes
// sharing a backend.
//
// An unreachable store reads as empty and skips plain writes; conditional
// writes report [ErrStoreUnavailable] so sign-up never claims success it
// could not persist.
//
// # What this package must NOT do
//
//   - Register HTTP routes or marshal requests. The middleware packages are
//     thin adapters for that.
//   - Leak password hashes or signing keys through any public type.
//   - Keep session state in globals.
package slateauth
