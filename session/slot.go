package session

import (
	"context"

	"github.com/slatekit/slateauth"
)

var _ slateauth.SessionSlot = (*Slot)(nil)

// Slot is one session in a [Store].
type Slot struct {
	store *Store
	id    string
}

// ID returns the session id.
func (s *Slot) ID() string {
	return s.id
}

// Read returns the stored profile, or nil when the session is empty or
// expired. With sliding expiry it renews the TTL.
func (s *Slot) Read(ctx context.Context) (*slateauth.Profile, error) {
	return s.store.read(ctx, s.id)
}

// Write stores profile with the store's TTL.
func (s *Slot) Write(ctx context.Context, profile slateauth.Profile) error {
	return s.store.write(ctx, s.id, profile)
}

// Destroy removes the session. It is idempotent.
func (s *Slot) Destroy(ctx context.Context) error {
	return s.store.destroy(ctx, s.id)
}
