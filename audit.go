package slateauth

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/slatekit/slateauth/internal/audit"
)

// AuditEvent is one account-level audit record.
type AuditEvent = audit.Event

// AuditSink receives audit events from the engine's dispatcher goroutine.
type AuditSink = audit.Sink

const (
	auditSignUp         = "sign_up"
	auditSignIn         = "sign_in"
	auditRemoveUser     = "remove_user"
	auditPasswordChange = "password_change"
	auditPasswordSet    = "password_set"
	auditFlagsUpdate    = "flags_update"
	auditNicknameUpdate = "nickname_update"
)

// NewChannelSink returns a sink that buffers events in a channel.
func NewChannelSink(buffer int) *audit.ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink writing one JSON line per event.
func NewJSONWriterSink(w io.Writer) *audit.JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewSlogSink returns a sink logging events through logger.
func NewSlogSink(logger *slog.Logger) *audit.SlogSink {
	return audit.NewSlogSink(logger)
}

func (e *Engine) emitAudit(ctx context.Context, eventType, username string, err error, metadata map[string]string) {
	if e.audit == nil {
		return
	}
	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		Type:      eventType,
		Username:  username,
		Success:   err == nil,
		Metadata:  metadata,
	}
	if err != nil {
		event.Kind = string(KindOf(err))
	}
	e.audit.Emit(ctx, event)
}

// AuditDropped reports audit events dropped because the buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// AuditDroppedByType breaks [Engine.AuditDropped] down by event type, such
// as "sign_in" or "password_change".
func (e *Engine) AuditDroppedByType() map[string]uint64 {
	if e == nil {
		return map[string]uint64{}
	}
	return e.audit.DroppedByType()
}
