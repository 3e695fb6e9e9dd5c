package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/directory-auth/internal/core/domain"
	"github.com/arklim/directory-auth/internal/core/port"
	"github.com/arklim/directory-auth/internal/infra/config"
)

const schemaVersion = "1.0"

// Event types published by the session backend.
const (
	EventSessionLogin        = "auth.session.login"
	EventSessionLogout       = "auth.session.logout"
	EventSessionRefreshed    = "auth.session.refreshed"
	EventSessionsInvalidated = "auth.principal.sessions_invalidated"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID     string           `json:"event_id"`
	EventType   string           `json:"event_type"`
	PrincipalID string           `json:"principal_id,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
	Version     string           `json:"version"`
	Payload     any              `json:"payload"`
	Metadata    envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType string, principalID uuid.UUID, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if span := trace.SpanFromContext(ctx); span != nil {
		if sc := span.SpanContext(); sc.IsValid() {
			metadata["trace_id"] = sc.TraceID().String()
		}
	}

	envelope := eventEnvelope{
		EventID:     id,
		EventType:   eventType,
		PrincipalID: principalID.String(),
		Timestamp:   ts.UTC(),
		Version:     schemaVersion,
		Payload:     payload,
		Metadata:    metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Key:   sarama.StringEncoder(principalID.String()),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishSessionLogin publishes auth.session.login events.
func (p *EventPublisher) PublishSessionLogin(ctx context.Context, event domain.SessionLoginEvent) error {
	payload := struct {
		PrincipalID string    `json:"principal_id"`
		TokenID     string    `json:"token_id"`
		Origin      string    `json:"origin"`
		IssuedAt    time.Time `json:"issued_at"`
		ExpiresAt   time.Time `json:"expires_at"`
	}{
		PrincipalID: event.PrincipalID.String(),
		TokenID:     event.TokenID.String(),
		Origin:      event.Origin,
		IssuedAt:    event.IssuedAt.UTC(),
		ExpiresAt:   event.ExpiresAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventSessionLogin, event.PrincipalID, event.IssuedAt, payload)
}

// PublishSessionLogout publishes auth.session.logout events.
func (p *EventPublisher) PublishSessionLogout(ctx context.Context, event domain.SessionLogoutEvent) error {
	payload := struct {
		PrincipalID string    `json:"principal_id"`
		TokenID     string    `json:"token_id"`
		Origin      string    `json:"origin,omitempty"`
		LoggedOutAt time.Time `json:"logged_out_at"`
	}{
		PrincipalID: event.PrincipalID.String(),
		TokenID:     event.TokenID.String(),
		Origin:      event.Origin,
		LoggedOutAt: event.LoggedOutAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventSessionLogout, event.PrincipalID, event.LoggedOutAt, payload)
}

// PublishSessionRefreshed publishes auth.session.refreshed events.
func (p *EventPublisher) PublishSessionRefreshed(ctx context.Context, event domain.SessionRefreshedEvent) error {
	payload := struct {
		PrincipalID     string    `json:"principal_id"`
		PreviousTokenID string    `json:"previous_token_id"`
		TokenID         string    `json:"token_id"`
		Origin          string    `json:"origin"`
		RefreshedAt     time.Time `json:"refreshed_at"`
		ExpiresAt       time.Time `json:"expires_at"`
	}{
		PrincipalID:     event.PrincipalID.String(),
		PreviousTokenID: event.PreviousTokenID.String(),
		TokenID:         event.TokenID.String(),
		Origin:          event.Origin,
		RefreshedAt:     event.RefreshedAt.UTC(),
		ExpiresAt:       event.ExpiresAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventSessionRefreshed, event.PrincipalID, event.RefreshedAt, payload)
}

// PublishSessionsInvalidated publishes auth.principal.sessions_invalidated events.
func (p *EventPublisher) PublishSessionsInvalidated(ctx context.Context, event domain.SessionsInvalidatedEvent) error {
	payload := struct {
		PrincipalID   string    `json:"principal_id"`
		InvalidatedBy string    `json:"invalidated_by"`
		InvalidatedAt time.Time `json:"invalidated_at"`
		Count         int       `json:"sessions_invalidated"`
	}{
		PrincipalID:   event.PrincipalID.String(),
		InvalidatedBy: event.InvalidatedBy.String(),
		InvalidatedAt: event.InvalidatedAt.UTC(),
		Count:         event.Count,
	}

	return p.publish(ctx, event.EventID, EventSessionsInvalidated, event.PrincipalID, event.InvalidatedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
