// Package push sends offline notifications to registered device tokens.
package push

import (
	"context"

	"github.com/rs/zerolog"
)

// FailureKind classifies a per-token send failure.
type FailureKind string

const (
	FailureNone            FailureKind = ""
	FailureUnregistered    FailureKind = "unregistered"
	FailureInvalidArgument FailureKind = "invalid_argument"
	FailureOther           FailureKind = "other"
)

// Notification is one batched push to a set of tokens.
type Notification struct {
	Tokens []string
	Title  string
	Body   string
	Data   map[string]string
}

// Result is the outcome for one token, in the order the tokens were given.
type Result struct {
	Token   string
	Success bool
	Failure FailureKind
	Err     error
}

// Stale reports whether the provider rejected the token permanently.
func (r Result) Stale() bool {
	return r.Failure == FailureUnregistered || r.Failure == FailureInvalidArgument
}

// Dispatcher delivers a notification and reports per-token results.
type Dispatcher interface {
	Send(ctx context.Context, n Notification) ([]Result, error)
}

// New returns an FCM dispatcher when credentialsFile is set and a noop
// dispatcher otherwise.
func New(ctx context.Context, credentialsFile string, logger zerolog.Logger) (Dispatcher, error) {
	if credentialsFile == "" {
		logger.Info().Msg("push disabled, using noop: no firebase credentials")
		return NoopDispatcher{logger: logger}, nil
	}
	return NewFCMDispatcher(ctx, credentialsFile, logger)
}

// NoopDispatcher reports every token as delivered without sending anything.
type NoopDispatcher struct {
	logger zerolog.Logger
}

func (d NoopDispatcher) Send(_ context.Context, n Notification) ([]Result, error) {
	d.logger.Debug().Int("tokens", len(n.Tokens)).Str("title", n.Title).Msg("push noop send")
	results := make([]Result, len(n.Tokens))
	for i, token := range n.Tokens {
		results[i] = Result{Token: token, Success: true}
	}
	return results, nil
}
