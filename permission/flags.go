package permission

import (
	"strconv"
	"strings"
)

// Flags is a capability bitmask. Each bit is an independently grantable
// capability; authorization is an AND over the required bits.
type Flags uint64

const (
	// User is granted to every account at sign-up.
	User Flags = 1 << 0
	// Admin marks administrative accounts.
	Admin Flags = 1 << 1

	// builtinBits is the number of low bits reserved for built-in flags.
	builtinBits = 2
)

// Bit returns the flag for a single bit index, or 0 when out of range.
func Bit(bit int) Flags {
	if bit < 0 || bit >= 64 {
		return 0
	}
	return Flags(1) << bit
}

// Combine ORs the given flags together.
func Combine(flags ...Flags) Flags {
	var out Flags
	for _, f := range flags {
		out |= f
	}
	return out
}

// Has reports whether every bit of required is set in f.
// Has(0) is always true.
func (f Flags) Has(required Flags) bool {
	return f&required == required
}

// Satisfies reports whether f carries every bit of every required flag set.
// An empty requirement list always passes.
func (f Flags) Satisfies(required ...Flags) bool {
	for _, r := range required {
		if !f.Has(r) {
			return false
		}
	}
	return true
}

// Add returns f with every bit of flags set.
func (f Flags) Add(flags ...Flags) Flags {
	return f | Combine(flags...)
}

// Remove returns f with every bit of flags cleared.
func (f Flags) Remove(flags ...Flags) Flags {
	return f &^ Combine(flags...)
}

func (f Flags) String() string {
	if f == 0 {
		return "0"
	}
	var parts []string
	if f.Has(User) {
		parts = append(parts, "user")
	}
	if f.Has(Admin) {
		parts = append(parts, "admin")
	}
	rest := f.Remove(User, Admin)
	for bit := builtinBits; rest != 0 && bit < 64; bit++ {
		if rest&Bit(bit) != 0 {
			parts = append(parts, "bit"+strconv.Itoa(bit))
			rest &^= Bit(bit)
		}
	}
	return strings.Join(parts, "|")
}
