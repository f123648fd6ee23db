// Package password implements the hashing capability: Argon2id by default,
// bcrypt for migrated stores, and [Multi] to verify either.
//
// # Output format
//
// Argon2id hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Each hash carries a fresh random salt, so hashing the same plaintext twice
// yields different strings that both verify.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other slateauth package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
