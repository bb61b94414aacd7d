package push

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// multicastLimit is the most tokens FCM accepts in one multicast call.
const multicastLimit = 500

type multicastSender interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FCMDispatcher sends through Firebase Cloud Messaging.
type FCMDispatcher struct {
	client multicastSender
	logger zerolog.Logger
}

// NewFCMDispatcher initialises a Firebase app from a service account file.
func NewFCMDispatcher(ctx context.Context, credentialsFile string, logger zerolog.Logger) (*FCMDispatcher, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase messaging: %w", err)
	}
	return &FCMDispatcher{client: client, logger: logger.With().Str("component", "fcm").Logger()}, nil
}

// Send pushes n to all of its tokens, chunked to the multicast limit.
func (d *FCMDispatcher) Send(ctx context.Context, n Notification) ([]Result, error) {
	results := make([]Result, 0, len(n.Tokens))
	for start := 0; start < len(n.Tokens); start += multicastLimit {
		end := start + multicastLimit
		if end > len(n.Tokens) {
			end = len(n.Tokens)
		}
		chunk := n.Tokens[start:end]

		resp, err := d.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
			Tokens: chunk,
			Notification: &messaging.Notification{
				Title: n.Title,
				Body:  n.Body,
			},
			Data: n.Data,
		})
		if err != nil {
			return results, fmt.Errorf("fcm multicast: %w", err)
		}

		for i, r := range resp.Responses {
			if i >= len(chunk) {
				break
			}
			results = append(results, Result{
				Token:   chunk[i],
				Success: r.Success,
				Failure: classify(r.Error),
				Err:     r.Error,
			})
		}
		d.logger.Debug().Int("success", resp.SuccessCount).Int("failure", resp.FailureCount).Msg("fcm multicast sent")
	}
	return results, nil
}

func classify(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case messaging.IsUnregistered(err):
		return FailureUnregistered
	case messaging.IsInvalidArgument(err):
		return FailureInvalidArgument
	default:
		return FailureOther
	}
}
