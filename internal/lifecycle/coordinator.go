// Package lifecycle drives channels through active, archived and deleted.
package lifecycle

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"clinic-chat/internal/models"
	"clinic-chat/internal/observability"
	"clinic-chat/internal/telemetry"
	"clinic-chat/internal/ws"
)

// Store performs the transactional close.
type Store interface {
	CloseChannel(ctx context.Context, channelID int) (models.CloseResult, error)
}

// Broadcaster fans live events out to users.
type Broadcaster interface {
	SendToUsers(userIDs []int, event ws.Event) int
}

// Auditor records committed state changes.
type Auditor interface {
	Record(ctx context.Context, eventType string, payload any)
}

// ChannelDeletedEvent is the live payload sent to both participants after a
// close commits, whichever branch ran.
type ChannelDeletedEvent struct {
	ChannelID int                 `json:"channel_id"`
	UserID0   int                 `json:"user_id0"`
	UserID1   int                 `json:"user_id1"`
	Outcome   models.CloseOutcome `json:"outcome"`
}

// Coordinator closes channels and notifies their participants.
type Coordinator struct {
	store       Store
	broadcaster Broadcaster
	audit       Auditor
	logger      zerolog.Logger
}

// NewCoordinator constructs a Coordinator. audit may be nil.
func NewCoordinator(store Store, broadcaster Broadcaster, audit Auditor, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		store:       store,
		broadcaster: broadcaster,
		audit:       audit,
		logger:      logger.With().Str("component", "lifecycle").Logger(),
	}
}

// Close advances the channel one step. The broadcast runs only after the
// store has committed; how many sockets it reached does not affect the result.
func (c *Coordinator) Close(ctx context.Context, channelID int) (models.CloseResult, error) {
	ctx, span := otel.Tracer("clinic-chat/lifecycle").Start(ctx, "channel.close")
	defer span.End()
	span.SetAttributes(attribute.Int("channel.id", channelID))

	result, err := c.store.CloseChannel(ctx, channelID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return models.CloseResult{}, err
	}
	span.SetAttributes(attribute.String("channel.outcome", string(result.Outcome)))
	observability.IncChannelClose(string(result.Outcome))

	participants := result.Channel.Participants()
	reached := c.broadcaster.SendToUsers(participants.Recipients(), ws.Event{
		Type: ws.EventChannelDeleted,
		Data: ChannelDeletedEvent{
			ChannelID: result.Channel.ID,
			UserID0:   participants.UserID0,
			UserID1:   participants.UserID1,
			Outcome:   result.Outcome,
		},
	})

	c.logger.Info().
		Int("channel_id", channelID).
		Str("outcome", string(result.Outcome)).
		Bool("review_seeded", result.Review != nil).
		Int("live_connections", reached).
		Msg("channel closed")

	if c.audit != nil {
		eventType := telemetry.EventChannelDeleted
		if result.Outcome == models.CloseArchived {
			eventType = telemetry.EventChannelArchived
		}
		c.audit.Record(ctx, eventType, map[string]any{
			"channel_id": result.Channel.ID,
			"user_id0":   participants.UserID0,
			"user_id1":   participants.UserID1,
			"review":     result.Review,
		})
	}
	return result, nil
}
