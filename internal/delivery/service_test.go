package delivery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"clinic-chat/internal/mocks"
	"clinic-chat/internal/models"
	"clinic-chat/internal/push"
	"clinic-chat/internal/repositories"
	"clinic-chat/internal/ws"
)

type fixture struct {
	messages    *mocks.MessageRepositoryMock
	channels    *mocks.ChannelRepositoryMock
	tokens      *mocks.TokenRepositoryMock
	transcoder  *mocks.TranscoderMock
	broadcaster *mocks.BroadcasterMock
	dispatcher  *mocks.DispatcherMock
	svc         *Service
}

func newFixture() *fixture {
	f := &fixture{
		messages:    new(mocks.MessageRepositoryMock),
		channels:    new(mocks.ChannelRepositoryMock),
		tokens:      new(mocks.TokenRepositoryMock),
		transcoder:  new(mocks.TranscoderMock),
		broadcaster: new(mocks.BroadcasterMock),
		dispatcher:  new(mocks.DispatcherMock),
	}
	f.svc = NewService(Deps{
		Messages:     f.messages,
		Channels:     f.channels,
		Tokens:       f.tokens,
		Transcoder:   f.transcoder,
		Broadcaster:  f.broadcaster,
		Dispatcher:   f.dispatcher,
		PruneTimeout: time.Second,
		Logger:       zerolog.Nop(),
	})
	return f
}

func strPtr(s string) *string { return &s }

func TestSendTextOnlyStoresNullImageAndBroadcasts(t *testing.T) {
	f := newFixture()
	in := models.NewMessage{ChannelID: 3, UserID: 1, Content: strPtr("hello"), Type: "text"}
	stored := models.Message{ID: 50, ChannelID: 3, UserID: 1, Content: strPtr("hello"), Type: "text"}
	participants := models.Participants{UserID0: 1, UserID1: 2}

	f.messages.On("CreateMessage", mock.Anything, in).Return(stored, nil)
	f.channels.On("Participants", mock.Anything, 3).Return(participants, nil)
	f.broadcaster.On("SendToUsers", []int{1, 2}, ws.Event{
		Type: ws.EventNewMessage,
		Data: models.MessageEvent{Message: stored, ChannelParticipants: participants},
	}).Return(3)
	f.tokens.On("ListTokens", mock.Anything, 2).Return([]string{}, nil)

	report, err := f.svc.Send(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, report.Delivered)
	assert.Equal(t, 3, report.LiveConnections)
	assert.Nil(t, report.Message.Image)
	f.transcoder.AssertNotCalled(t, "Transcode", mock.Anything)
	f.dispatcher.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestSendTranscodesImageBeforeStoring(t *testing.T) {
	f := newFixture()
	raw := []byte("raw-png")
	jpeg := []byte("jpeg")
	in := models.NewMessage{ChannelID: 3, UserID: 2, Image: raw, Type: "image"}
	expected := in
	expected.Image = jpeg
	stored := models.Message{ID: 51, ChannelID: 3, UserID: 2, Image: jpeg, Type: "image"}

	f.transcoder.On("Transcode", raw).Return(jpeg, nil)
	f.messages.On("CreateMessage", mock.Anything, expected).Return(stored, nil)
	f.channels.On("Participants", mock.Anything, 3).Return(models.Participants{UserID0: 1, UserID1: 2}, nil)
	f.broadcaster.On("SendToUsers", []int{1, 2}, mock.Anything).Return(1)
	f.tokens.On("ListTokens", mock.Anything, 1).Return([]string{"tok"}, nil)
	f.dispatcher.On("Send", mock.Anything, mock.MatchedBy(func(n push.Notification) bool {
		return n.Title == "New message" && n.Body == "[Image]" &&
			n.Data["message_id"] == "51" && n.Data["sender_id"] == "2" &&
			n.Data["channel_id"] == "3" && n.Data["type"] == "image"
	})).Return([]push.Result{{Token: "tok", Success: true}}, nil)

	report, err := f.svc.Send(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, jpeg, report.Message.Image)
	f.dispatcher.AssertExpectations(t)
}

func TestSendTranscodeFailureAbortsBeforeStore(t *testing.T) {
	f := newFixture()
	f.transcoder.On("Transcode", []byte("junk")).Return(nil, errors.New("unknown format"))

	_, err := f.svc.Send(context.Background(), models.NewMessage{ChannelID: 1, UserID: 1, Image: []byte("junk"), Type: "image"})
	assert.ErrorIs(t, err, ErrImageTranscode)
	f.messages.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestSendStoreFailureIsReturned(t *testing.T) {
	f := newFixture()
	storeErr := errors.New("insert failed")
	f.messages.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, storeErr)

	_, err := f.svc.Send(context.Background(), models.NewMessage{ChannelID: 1, UserID: 1, Content: strPtr("x"), Type: "text"})
	assert.ErrorIs(t, err, storeErr)
	f.channels.AssertNotCalled(t, "Participants", mock.Anything, mock.Anything)
}

func TestSendMissingChannelStillSucceeds(t *testing.T) {
	f := newFixture()
	stored := models.Message{ID: 52, ChannelID: 8, UserID: 1, Content: strPtr("late"), Type: "text"}
	f.messages.On("CreateMessage", mock.Anything, mock.Anything).Return(stored, nil)
	f.channels.On("Participants", mock.Anything, 8).Return(nil, repositories.ErrChannelNotFound)

	report, err := f.svc.Send(context.Background(), models.NewMessage{ChannelID: 8, UserID: 1, Content: strPtr("late"), Type: "text"})
	require.NoError(t, err)
	assert.False(t, report.Delivered)
	assert.Nil(t, report.Participants)
	assert.Equal(t, stored, report.Message)
	f.broadcaster.AssertNotCalled(t, "SendToUsers", mock.Anything, mock.Anything)
	f.tokens.AssertNotCalled(t, "ListTokens", mock.Anything, mock.Anything)
}

func TestSendPrunesOnlyStaleTokens(t *testing.T) {
	f := newFixture()
	stored := models.Message{ID: 53, ChannelID: 3, UserID: 1, Content: strPtr("hi"), Type: "text"}
	f.messages.On("CreateMessage", mock.Anything, mock.Anything).Return(stored, nil)
	f.channels.On("Participants", mock.Anything, 3).Return(models.Participants{UserID0: 1, UserID1: 2}, nil)
	f.broadcaster.On("SendToUsers", mock.Anything, mock.Anything).Return(0)
	f.tokens.On("ListTokens", mock.Anything, 2).Return([]string{"good", "dead"}, nil)
	f.dispatcher.On("Send", mock.Anything, mock.MatchedBy(func(n push.Notification) bool {
		return n.Body == "hi" && len(n.Tokens) == 2
	})).Return([]push.Result{
		{Token: "good", Success: true},
		{Token: "dead", Failure: push.FailureUnregistered, Err: errors.New("not registered")},
	}, nil)

	var mu sync.Mutex
	var deleted []string
	f.tokens.On("DeleteToken", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		mu.Lock()
		deleted = append(deleted, args.String(1))
		mu.Unlock()
	}).Return(nil)

	report, err := f.svc.Send(context.Background(), models.NewMessage{ChannelID: 3, UserID: 1, Content: strPtr("hi"), Type: "text"})
	require.NoError(t, err)
	assert.True(t, report.Delivered)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(deleted) == 1
	}, time.Second, 5*time.Millisecond)
	f.svc.Wait()
	assert.Equal(t, []string{"dead"}, deleted)
	f.tokens.AssertNotCalled(t, "DeleteToken", mock.Anything, "good")
}

func TestSendPruneOutlivesRequestContext(t *testing.T) {
	f := newFixture()
	stored := models.Message{ID: 54, ChannelID: 3, UserID: 1, Content: strPtr("hi"), Type: "text"}
	f.messages.On("CreateMessage", mock.Anything, mock.Anything).Return(stored, nil)
	f.channels.On("Participants", mock.Anything, 3).Return(models.Participants{UserID0: 1, UserID1: 2}, nil)
	f.broadcaster.On("SendToUsers", mock.Anything, mock.Anything).Return(0)
	f.tokens.On("ListTokens", mock.Anything, 2).Return([]string{"bad"}, nil)
	f.dispatcher.On("Send", mock.Anything, mock.Anything).Return([]push.Result{{Token: "bad", Failure: push.FailureInvalidArgument}}, nil)

	pruneErr := make(chan error, 1)
	f.tokens.On("DeleteToken", mock.Anything, "bad").Run(func(args mock.Arguments) {
		pruneErr <- args.Get(0).(context.Context).Err()
	}).Return(errors.New("db down"))

	ctx, cancel := context.WithCancel(context.Background())
	_, err := f.svc.Send(ctx, models.NewMessage{ChannelID: 3, UserID: 1, Content: strPtr("hi"), Type: "text"})
	cancel()
	require.NoError(t, err)

	f.svc.Wait()
	assert.NoError(t, <-pruneErr)
}

func TestSendOrdersStoreBroadcastPush(t *testing.T) {
	f := newFixture()
	var mu sync.Mutex
	var steps []string
	step := func(name string) func(mock.Arguments) {
		return func(mock.Arguments) {
			mu.Lock()
			steps = append(steps, name)
			mu.Unlock()
		}
	}

	stored := models.Message{ID: 55, ChannelID: 3, UserID: 2, Content: strPtr("hi"), Type: "text"}
	f.messages.On("CreateMessage", mock.Anything, mock.Anything).Run(step("store")).Return(stored, nil)
	f.channels.On("Participants", mock.Anything, 3).Run(step("lookup")).Return(models.Participants{UserID0: 1, UserID1: 2}, nil)
	f.broadcaster.On("SendToUsers", mock.Anything, mock.Anything).Run(step("broadcast")).Return(1)
	f.tokens.On("ListTokens", mock.Anything, 1).Run(step("tokens")).Return([]string{"t"}, nil)
	f.dispatcher.On("Send", mock.Anything, mock.Anything).Run(step("push")).Return([]push.Result{{Token: "t", Success: true}}, nil)

	_, err := f.svc.Send(context.Background(), models.NewMessage{ChannelID: 3, UserID: 2, Content: strPtr("hi"), Type: "text"})
	require.NoError(t, err)
	assert.Equal(t, []string{"store", "lookup", "broadcast", "tokens", "push"}, steps)
}

func TestSendPushFailureDoesNotFailSend(t *testing.T) {
	f := newFixture()
	stored := models.Message{ID: 56, ChannelID: 3, UserID: 2, Content: strPtr("hi"), Type: "text"}
	f.messages.On("CreateMessage", mock.Anything, mock.Anything).Return(stored, nil)
	f.channels.On("Participants", mock.Anything, 3).Return(models.Participants{UserID0: 1, UserID1: 2}, nil)
	f.broadcaster.On("SendToUsers", mock.Anything, mock.Anything).Return(0)
	f.tokens.On("ListTokens", mock.Anything, 1).Return([]string{"t"}, nil)
	f.dispatcher.On("Send", mock.Anything, mock.Anything).Return(nil, errors.New("fcm unavailable"))

	report, err := f.svc.Send(context.Background(), models.NewMessage{ChannelID: 3, UserID: 2, Content: strPtr("hi"), Type: "text"})
	require.NoError(t, err)
	assert.True(t, report.Delivered)
	f.tokens.AssertNotCalled(t, "DeleteToken", mock.Anything, mock.Anything)
}

func TestMarkReadBroadcastsReceipt(t *testing.T) {
	f := newFixture()
	updated := models.Message{ID: 9, ChannelID: 3, UserID: 1, Read: true}
	f.messages.On("MarkRead", mock.Anything, 9).Return(updated, nil)
	f.channels.On("Participants", mock.Anything, 3).Return(models.Participants{UserID0: 1, UserID1: 2}, nil)
	f.broadcaster.On("SendToUsers", []int{1, 2}, ws.Event{
		Type: ws.EventMessageRead,
		Data: models.MessageReadEvent{MessageID: 9, ChannelID: 3},
	}).Return(2).Once()

	msg, err := f.svc.MarkRead(context.Background(), 9)
	require.NoError(t, err)
	assert.True(t, msg.Read)
	f.broadcaster.AssertExpectations(t)
}

func TestMarkReadNotFound(t *testing.T) {
	f := newFixture()
	f.messages.On("MarkRead", mock.Anything, 9).Return(nil, repositories.ErrMessageNotFound)

	_, err := f.svc.MarkRead(context.Background(), 9)
	assert.ErrorIs(t, err, repositories.ErrMessageNotFound)
	f.broadcaster.AssertNotCalled(t, "SendToUsers", mock.Anything, mock.Anything)
}
