package port

import (
	"context"

	"github.com/arklim/directory-auth/internal/core/domain"
)

// EventPublisher publishes session lifecycle events to the message bus.
type EventPublisher interface {
	PublishSessionLogin(ctx context.Context, event domain.SessionLoginEvent) error
	PublishSessionLogout(ctx context.Context, event domain.SessionLogoutEvent) error
	PublishSessionRefreshed(ctx context.Context, event domain.SessionRefreshedEvent) error
	PublishSessionsInvalidated(ctx context.Context, event domain.SessionsInvalidatedEvent) error
}
