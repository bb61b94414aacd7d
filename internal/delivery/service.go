// Package delivery stores messages and pushes them to channel participants,
// live first and then through device notifications.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"clinic-chat/internal/imaging"
	"clinic-chat/internal/models"
	"clinic-chat/internal/observability"
	"clinic-chat/internal/push"
	"clinic-chat/internal/repositories"
	"clinic-chat/internal/telemetry"
	"clinic-chat/internal/ws"
)

const (
	pushTitle       = "New message"
	pushImageBody   = "[Image]"
	defaultPruneTTL = 10 * time.Second
)

// ErrImageTranscode wraps any failure to normalise an uploaded image.
var ErrImageTranscode = errors.New("image could not be processed")

// ParticipantLookup resolves the two sides of a channel.
type ParticipantLookup interface {
	Participants(ctx context.Context, channelID int) (models.Participants, error)
}

// Broadcaster fans live events out to users.
type Broadcaster interface {
	SendToUsers(userIDs []int, event ws.Event) int
}

// Auditor records committed state changes.
type Auditor interface {
	Record(ctx context.Context, eventType string, payload any)
}

// Deps groups the collaborators of a Service.
type Deps struct {
	Messages     repositories.MessageRepository
	Channels     ParticipantLookup
	Tokens       repositories.TokenRepository
	Transcoder   imaging.Transcoder
	Broadcaster  Broadcaster
	Dispatcher   push.Dispatcher
	Audit        Auditor
	PruneTimeout time.Duration
	Logger       zerolog.Logger
}

// Service is the message delivery path.
type Service struct {
	messages     repositories.MessageRepository
	channels     ParticipantLookup
	tokens       repositories.TokenRepository
	transcoder   imaging.Transcoder
	broadcaster  Broadcaster
	dispatcher   push.Dispatcher
	audit        Auditor
	pruneTimeout time.Duration
	logger       zerolog.Logger

	pruning sync.WaitGroup
}

// NewService constructs a Service.
func NewService(d Deps) *Service {
	timeout := d.PruneTimeout
	if timeout <= 0 {
		timeout = defaultPruneTTL
	}
	return &Service{
		messages:     d.Messages,
		channels:     d.Channels,
		tokens:       d.Tokens,
		transcoder:   d.Transcoder,
		broadcaster:  d.Broadcaster,
		dispatcher:   d.Dispatcher,
		audit:        d.Audit,
		pruneTimeout: timeout,
		logger:       d.Logger.With().Str("component", "delivery").Logger(),
	}
}

// Send stores msg and delivers it. Once the row is stored the call succeeds;
// live and push failures are logged only. When the channel cannot be resolved
// the message stays stored and the report carries Delivered=false.
func (s *Service) Send(ctx context.Context, msg models.NewMessage) (models.DeliveryReport, error) {
	ctx, span := otel.Tracer("clinic-chat/delivery").Start(ctx, "message.send")
	defer span.End()
	span.SetAttributes(attribute.Int("channel.id", msg.ChannelID), attribute.Int("sender.id", msg.UserID))

	if len(msg.Image) > 0 {
		encoded, err := s.transcoder.Transcode(msg.Image)
		if err != nil {
			span.RecordError(err)
			return models.DeliveryReport{}, fmt.Errorf("%w: %v", ErrImageTranscode, err)
		}
		msg.Image = encoded
	} else {
		msg.Image = nil
	}

	stored, err := s.messages.CreateMessage(ctx, msg)
	if err != nil {
		return models.DeliveryReport{}, err
	}
	report := models.DeliveryReport{Message: stored}
	s.record(ctx, telemetry.EventMessageSent, map[string]any{
		"message_id": stored.ID,
		"channel_id": stored.ChannelID,
		"user_id":    stored.UserID,
		"type":       stored.Type,
		"has_image":  stored.Image != nil,
	})

	participants, err := s.channels.Participants(ctx, stored.ChannelID)
	if err != nil {
		event := s.logger.Warn()
		if errors.Is(err, repositories.ErrChannelNotFound) {
			event = s.logger.Info()
		}
		event.Err(err).Int("message_id", stored.ID).Int("channel_id", stored.ChannelID).Msg("channel lookup failed, skipping delivery")
		observability.IncMessageSent(false)
		return report, nil
	}
	report.Participants = &participants
	report.Delivered = true
	observability.IncMessageSent(true)

	report.LiveConnections = s.broadcaster.SendToUsers(participants.Recipients(), ws.Event{
		Type: ws.EventNewMessage,
		Data: models.MessageEvent{Message: stored, ChannelParticipants: participants},
	})

	s.notify(ctx, stored, participants.Other(stored.UserID))
	return report, nil
}

// notify pushes stored to recipient's devices and schedules removal of tokens
// the provider rejected.
func (s *Service) notify(ctx context.Context, stored models.Message, recipient int) {
	if recipient == 0 || s.dispatcher == nil {
		return
	}
	log := s.logger.With().Int("message_id", stored.ID).Int("recipient_id", recipient).Logger()

	tokens, err := s.tokens.ListTokens(ctx, recipient)
	if err != nil {
		log.Warn().Err(err).Msg("load push tokens")
		return
	}
	if len(tokens) == 0 {
		return
	}

	body := pushImageBody
	if stored.Content != nil && *stored.Content != "" {
		body = *stored.Content
	}
	results, err := s.dispatcher.Send(ctx, push.Notification{
		Tokens: tokens,
		Title:  pushTitle,
		Body:   body,
		Data: map[string]string{
			"channel_id": strconv.Itoa(stored.ChannelID),
			"sender_id":  strconv.Itoa(stored.UserID),
			"message_id": strconv.Itoa(stored.ID),
			"type":       stored.Type,
		},
	})
	if err != nil {
		observability.IncPushResult("error")
		log.Warn().Err(err).Int("tokens", len(tokens)).Msg("push dispatch failed")
	}

	var stale []string
	for _, r := range results {
		switch {
		case r.Success:
			observability.IncPushResult("success")
		case r.Stale():
			observability.IncPushResult(string(r.Failure))
			stale = append(stale, r.Token)
		default:
			observability.IncPushResult("failure")
			log.Debug().Err(r.Err).Msg("push to token failed")
		}
	}
	if len(stale) > 0 {
		s.prune(ctx, stale)
	}
}

// prune deletes stale tokens in the background. The caller does not wait and
// never sees the outcome.
func (s *Service) prune(ctx context.Context, tokens []string) {
	base := context.WithoutCancel(ctx)
	s.pruning.Add(1)
	go func() {
		defer s.pruning.Done()
		ctx, cancel := context.WithTimeout(base, s.pruneTimeout)
		defer cancel()

		for _, token := range tokens {
			if err := s.tokens.DeleteToken(ctx, token); err != nil {
				s.logger.Warn().Err(err).Msg("remove stale push token")
				continue
			}
			observability.IncPushTokenPruned()
		}
		s.logger.Debug().Int("tokens", len(tokens)).Msg("stale push tokens pruned")
	}()
}

// Wait blocks until background token pruning has finished.
func (s *Service) Wait() {
	s.pruning.Wait()
}

// MarkRead flips the read flag and tells both participants.
func (s *Service) MarkRead(ctx context.Context, messageID int) (models.Message, error) {
	msg, err := s.messages.MarkRead(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}
	s.record(ctx, telemetry.EventMessageRead, models.MessageReadEvent{MessageID: msg.ID, ChannelID: msg.ChannelID})

	participants, err := s.channels.Participants(ctx, msg.ChannelID)
	if err != nil {
		s.logger.Info().Err(err).Int("message_id", msg.ID).Msg("channel lookup failed, skipping read receipt")
		return msg, nil
	}
	s.broadcaster.SendToUsers(participants.Recipients(), ws.Event{
		Type: ws.EventMessageRead,
		Data: models.MessageReadEvent{MessageID: msg.ID, ChannelID: msg.ChannelID},
	})
	return msg, nil
}

func (s *Service) record(ctx context.Context, eventType string, payload any) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, eventType, payload)
}
