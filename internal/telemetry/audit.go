package telemetry

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"clinic-chat/internal/observability"
)

// Audit event types.
const (
	EventChannelArchived = "channel.archived"
	EventChannelDeleted  = "channel.deleted"
	EventMessageSent     = "message.sent"
	EventMessageRead     = "message.read"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
}

// AuditEmitter records domain state changes on the event bus.
type AuditEmitter struct {
	publisher   Publisher
	service     string
	environment string
	logger      zerolog.Logger
}

type AuditEnvelope struct {
	SchemaVersion int    `json:"schema_version"`
	EventType     string `json:"event_type"`
	OccurredAt    string `json:"occurred_at"`
	Service       string `json:"service"`
	Environment   string `json:"environment"`
	RequestID     string `json:"request_id"`
	Payload       any    `json:"payload"`
}

func NewAuditEmitter(publisher Publisher, service, environment string, logger zerolog.Logger) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		service:     service,
		environment: environment,
		logger:      logger,
	}
}

// Record publishes payload under eventType, which doubles as the routing key.
// A nil emitter is a no-op.
func (e *AuditEmitter) Record(ctx context.Context, eventType string, payload any) {
	if e == nil || e.publisher == nil {
		return
	}

	requestID := observability.RequestIDFromContext(ctx)
	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     eventType,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     requestID,
		Payload:       payload,
	}

	var traceID string
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}

	if err := e.publisher.Publish(ctx, eventType, envelope, observability.BuildHeaders(requestID, traceID)); err != nil {
		observability.IncAMQPPublishError()
		e.logger.Warn().Err(err).Str("event_type", eventType).Msg("audit publish failed")
	}
}
