package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"clinic-chat/internal/models"
	"clinic-chat/internal/push"
	"clinic-chat/internal/ws"
)

var _ push.Dispatcher = (*DispatcherMock)(nil)

type BroadcasterMock struct {
	mock.Mock
}

func (m *BroadcasterMock) SendToUsers(userIDs []int, event ws.Event) int {
	args := m.Called(userIDs, event)
	return args.Int(0)
}

type DispatcherMock struct {
	mock.Mock
}

func (m *DispatcherMock) Send(ctx context.Context, n push.Notification) ([]push.Result, error) {
	args := m.Called(ctx, n)
	var results []push.Result
	if val := args.Get(0); val != nil {
		results = val.([]push.Result)
	}
	return results, args.Error(1)
}

type TranscoderMock struct {
	mock.Mock
}

func (m *TranscoderMock) Transcode(raw []byte) ([]byte, error) {
	args := m.Called(raw)
	var out []byte
	if val := args.Get(0); val != nil {
		out = val.([]byte)
	}
	return out, args.Error(1)
}

type ChannelCloserMock struct {
	mock.Mock
}

func (m *ChannelCloserMock) Close(ctx context.Context, channelID int) (models.CloseResult, error) {
	args := m.Called(ctx, channelID)
	var result models.CloseResult
	if val := args.Get(0); val != nil {
		result = val.(models.CloseResult)
	}
	return result, args.Error(1)
}

type MessageDeliveryMock struct {
	mock.Mock
}

func (m *MessageDeliveryMock) Send(ctx context.Context, msg models.NewMessage) (models.DeliveryReport, error) {
	args := m.Called(ctx, msg)
	var report models.DeliveryReport
	if val := args.Get(0); val != nil {
		report = val.(models.DeliveryReport)
	}
	return report, args.Error(1)
}

func (m *MessageDeliveryMock) MarkRead(ctx context.Context, messageID int) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}
