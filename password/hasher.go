package password

import "errors"

// DefaultMaxPasswordBytes bounds the plaintext accepted by the built-in hashers.
const DefaultMaxPasswordBytes = 1024

var (
	// ErrEmptyPassword is returned by Hash for an empty plaintext.
	ErrEmptyPassword = errors.New("password must not be empty")
	// ErrPasswordTooLong is returned by Hash when the plaintext exceeds the configured bound.
	ErrPasswordTooLong = errors.New("password exceeds maximum length")
)

// Hasher turns plaintexts into self-describing hash strings and checks
// plaintexts against them.
//
// Verify must not panic or error: malformed encodings, unsupported
// algorithms and oversize inputs all verify as false.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, encoded string) bool
}

func checkPlaintext(plaintext string, maxBytes int) error {
	if plaintext == "" {
		return ErrEmptyPassword
	}
	if maxBytes > 0 && len(plaintext) > maxBytes {
		return ErrPasswordTooLong
	}
	return nil
}
