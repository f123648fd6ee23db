// Package store provides the namespaced key-value capability.
//
// A [Backend] is a storage medium (memory, a JSON file, Redis, SQL, MongoDB).
// [Store] wraps any backend with the semantics callers rely on:
//
//   - the connection is opened lazily and retried after a failure;
//   - a namespace is created on first use and cached once ensured;
//   - an unavailable medium degrades reads to absence and skips writes;
//   - with [Config.EagerPersist], buffering backends flush before a
//     mutating call returns.
//
// Backend implementations live in subpackages and can be checked against
// the shared suite in storetest.
package store
