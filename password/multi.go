package password

import "strings"

// Multi hashes with Primary and verifies against whichever hasher matches
// the encoding prefix. Use it while a store still holds hashes from a
// previous algorithm.
type Multi struct {
	Primary Hasher
	Legacy  []Hasher
}

func (m *Multi) Hash(password string) (string, error) {
	return m.Primary.Hash(password)
}

func (m *Multi) Verify(password, encodedHash string) bool {
	switch {
	case strings.HasPrefix(encodedHash, "$"+algorithmID+"$"):
		if a := m.find(func(h Hasher) bool { _, ok := h.(*Argon2); return ok }); a != nil {
			return a.Verify(password, encodedHash)
		}
	case isBcrypt(encodedHash):
		if b := m.find(func(h Hasher) bool { _, ok := h.(*Bcrypt); return ok }); b != nil {
			return b.Verify(password, encodedHash)
		}
	}
	return false
}

func (m *Multi) find(match func(Hasher) bool) Hasher {
	if m.Primary != nil && match(m.Primary) {
		return m.Primary
	}
	for _, h := range m.Legacy {
		if match(h) {
			return h
		}
	}
	return nil
}
