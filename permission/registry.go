package permission

import (
	"errors"
	"sync"
)

// Registry maps custom flag names to bit positions. Bits 0 and 1 are
// reserved for [User] and [Admin]; custom flags are assigned from bit 2.
type Registry struct {
	mu        sync.RWMutex
	nameToBit map[string]int
	bitToName map[int]string
	frozen    bool
}

// NewRegistry creates a [Registry] pre-populated with the built-in
// "user" and "admin" flags.
func NewRegistry() *Registry {
	r := &Registry{
		nameToBit: map[string]int{"user": 0, "admin": 1},
		bitToName: map[int]string{0: "user", 1: "admin"},
	}
	return r
}

// Register assigns the next available bit to the named flag and returns it.
// Must be called before [Registry.Freeze].
func (r *Registry) Register(name string) (Flags, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return 0, errors.New("registry frozen")
	}
	if name == "" {
		return 0, errors.New("flag name cannot be empty")
	}
	if _, exists := r.nameToBit[name]; exists {
		return 0, errors.New("flag already registered")
	}

	nextBit := len(r.nameToBit)
	if nextBit >= 64 {
		return 0, errors.New("flag limit exceeded")
	}

	r.nameToBit[name] = nextBit
	r.bitToName[nextBit] = name

	return Bit(nextBit), nil
}

// Lookup returns the flag registered under name, or false if unknown.
func (r *Registry) Lookup(name string) (Flags, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.nameToBit[name]
	if !ok {
		return 0, false
	}
	return Bit(bit), true
}

// Parse combines the named flags. Unknown names are an error.
func (r *Registry) Parse(names ...string) (Flags, error) {
	var out Flags
	for _, name := range names {
		f, ok := r.Lookup(name)
		if !ok {
			return 0, errors.New("unknown flag: " + name)
		}
		out |= f
	}
	return out, nil
}

// Names returns the registered names of every bit set in f, lowest bit first.
func (r *Registry) Names(f Flags) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for bit := 0; bit < 64; bit++ {
		if f&Bit(bit) == 0 {
			continue
		}
		if name, ok := r.bitToName[bit]; ok {
			names = append(names, name)
		}
	}
	return names
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Count returns the number of registered flags, built-ins included.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nameToBit)
}
