package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/directory-auth/internal/core/domain"
	"github.com/arklim/directory-auth/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Used when no brokers are configured.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a logging event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, principalID string, at time.Time, fields ...zap.Field) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		append([]zap.Field{
			zap.String("event_type", eventType),
			zap.String("principal_id", principalID),
			zap.Time("timestamp", at.UTC()),
		}, fields...)...,
	)
}

// PublishSessionLogin logs auth.session.login events.
func (p *StubPublisher) PublishSessionLogin(_ context.Context, event domain.SessionLoginEvent) error {
	p.logEvent(EventSessionLogin, event.PrincipalID.String(), event.IssuedAt,
		zap.String("token_id", event.TokenID.String()),
		zap.Time("expires_at", event.ExpiresAt),
	)
	return nil
}

// PublishSessionLogout logs auth.session.logout events.
func (p *StubPublisher) PublishSessionLogout(_ context.Context, event domain.SessionLogoutEvent) error {
	p.logEvent(EventSessionLogout, event.PrincipalID.String(), event.LoggedOutAt,
		zap.String("token_id", event.TokenID.String()),
	)
	return nil
}

// PublishSessionRefreshed logs auth.session.refreshed events.
func (p *StubPublisher) PublishSessionRefreshed(_ context.Context, event domain.SessionRefreshedEvent) error {
	p.logEvent(EventSessionRefreshed, event.PrincipalID.String(), event.RefreshedAt,
		zap.String("previous_token_id", event.PreviousTokenID.String()),
		zap.String("token_id", event.TokenID.String()),
	)
	return nil
}

// PublishSessionsInvalidated logs auth.principal.sessions_invalidated events.
func (p *StubPublisher) PublishSessionsInvalidated(_ context.Context, event domain.SessionsInvalidatedEvent) error {
	p.logEvent(EventSessionsInvalidated, event.PrincipalID.String(), event.InvalidatedAt,
		zap.String("invalidated_by", event.InvalidatedBy.String()),
		zap.Int("count", event.Count),
	)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
