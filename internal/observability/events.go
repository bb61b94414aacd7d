package observability

import (
	"context"

	"github.com/rs/zerolog"
)

// Publisher is the transport ws lifecycle events are written to.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
}

type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	Payload   interface{} `json:"payload"`
}

func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}

// Events publishes operational envelopes. A nil *Events, or one without a
// publisher, drops everything.
type Events struct {
	publisher Publisher
	logger    zerolog.Logger
}

func NewEvents(publisher Publisher, logger zerolog.Logger) *Events {
	return &Events{publisher: publisher, logger: logger}
}

// Publish sends envelope on routingKey. Failures are counted and logged but
// not returned; callers never block on the event bus.
func (e *Events) Publish(ctx context.Context, routingKey string, envelope EventEnvelope, headers map[string]string) {
	if e == nil || e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, routingKey, envelope, headers); err != nil {
		IncAMQPPublishError()
		e.logger.Warn().Err(err).Str("routing_key", routingKey).Str("event", envelope.EventName).Msg("event publish failed")
	}
}
