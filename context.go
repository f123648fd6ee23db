package slateauth

import "context"

type sessionContextKey struct{}

// WithSession attaches the per-connection session slot to ctx. [Auth]
// operations read and write the session projection through it.
func WithSession(ctx context.Context, slot SessionSlot) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, slot)
}

// SessionFromContext returns the slot attached by [WithSession].
func SessionFromContext(ctx context.Context) (SessionSlot, bool) {
	if ctx == nil {
		return nil, false
	}
	slot, ok := ctx.Value(sessionContextKey{}).(SessionSlot)
	return slot, ok && slot != nil
}
