package audit

import (
	"context"
	"log/slog"

	"usersapi/pkg/requestcontext"
)

// Publisher emits audit events with fail-open semantics: a failed append is
// logged but never fails the business operation that triggered it.
type Publisher struct {
	store  Store
	logger *slog.Logger
}

// NewPublisher creates a fail-open audit publisher. A nil *Publisher is a
// valid no-op publisher.
func NewPublisher(store Store, logger *slog.Logger) *Publisher {
	return &Publisher{store: store, logger: logger}
}

// Emit records an event, filling timestamp and request ID from the context.
func (p *Publisher) Emit(ctx context.Context, action Action, subject string) {
	if p == nil || p.store == nil {
		return
	}
	event := Event{
		Action:    action,
		Subject:   subject,
		RequestID: requestcontext.RequestID(ctx),
		Timestamp: requestcontext.Now(ctx),
	}
	if err := p.store.Append(ctx, event); err != nil && p.logger != nil {
		p.logger.ErrorContext(ctx, "audit append failed",
			"action", string(action),
			"error", err,
			"request_id", event.RequestID,
		)
	}
}
