package ports

import (
	"context"

	"github.com/maintlog/logbook-gateway/internal/core/domain"
)

// AuditRepository persists auth lifecycle events.
type AuditRepository interface {
	Record(ctx context.Context, event domain.AuditEvent) error
	FindBySession(ctx context.Context, sessionID string, limit int64) ([]domain.AuditEvent, error)
}

// AuditSink accepts events for asynchronous recording. Implementations must
// not block the caller beyond queue backpressure.
type AuditSink interface {
	Enqueue(event domain.AuditEvent)
}
