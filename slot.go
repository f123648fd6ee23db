package slateauth

import (
	"context"
	"sync"
)

// MemorySlot is an in-process [SessionSlot]. The zero value is an empty slot.
type MemorySlot struct {
	mu      sync.RWMutex
	profile *Profile
}

// NewMemorySlot returns an empty slot.
func NewMemorySlot() *MemorySlot {
	return &MemorySlot{}
}

// Read returns a copy of the stored profile, or nil.
func (s *MemorySlot) Read(context.Context) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return nil, nil
	}
	p := *s.profile
	return &p, nil
}

// Write replaces the stored profile.
func (s *MemorySlot) Write(_ context.Context, profile Profile) error {
	s.mu.Lock()
	s.profile = &profile
	s.mu.Unlock()
	return nil
}

// Destroy empties the slot.
func (s *MemorySlot) Destroy(context.Context) error {
	s.mu.Lock()
	s.profile = nil
	s.mu.Unlock()
	return nil
}
