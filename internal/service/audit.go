package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/chatops-labs/chatbot-api/internal/models"
)

// AuditEmitter is the capability the session core uses to publish audit
// events. Implementations must never fail the calling flow: an audit sink
// outage cannot be allowed to break authentication.
type AuditEmitter interface {
	Emit(ctx context.Context, event *models.AuditEvent)
}

type auditStore interface {
	Create(ctx context.Context, event *models.AuditEvent) error
}

// AuditRecorder persists audit events and mirrors them to the structured log
// so operators keep diagnostic fidelity the end user never sees.
type AuditRecorder struct {
	store  auditStore
	logger *zap.Logger
}

// NewAuditRecorder constructs an AuditRecorder.
func NewAuditRecorder(store auditStore, logger *zap.Logger) *AuditRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditRecorder{store: store, logger: logger}
}

// Emit writes the event to the audit table and the log. Storage failures are
// logged and swallowed.
func (r *AuditRecorder) Emit(ctx context.Context, event *models.AuditEvent) {
	fields := []zap.Field{
		zap.String("event", event.Event),
		zap.String("ip", event.IPAddress),
		zap.String("user_agent", event.UserAgent),
	}
	if event.Reason != "" {
		fields = append(fields, zap.String("reason", event.Reason))
	}
	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", *event.UserID))
	}
	if event.TokenID != nil {
		fields = append(fields, zap.String("token_id", *event.TokenID))
	}

	switch event.Event {
	case models.AuditEventSuspicious, models.AuditEventAnomaly, models.AuditEventLoginFailed:
		r.logger.Warn("audit_event", fields...)
	default:
		r.logger.Info("audit_event", fields...)
	}

	if r.store == nil {
		return
	}
	if err := r.store.Create(ctx, event); err != nil {
		r.logger.Error("failed to persist audit event", zap.Error(err), zap.String("event", event.Event))
	}
}

// NopAuditEmitter discards all events. Useful in tests.
type NopAuditEmitter struct{}

// Emit implements AuditEmitter.
func (NopAuditEmitter) Emit(ctx context.Context, event *models.AuditEvent) {}
