package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"clinic-chat/internal/models"
	"clinic-chat/internal/repositories"
)

var (
	_ repositories.ChannelRepository = (*ChannelRepositoryMock)(nil)
	_ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
	_ repositories.TokenRepository   = (*TokenRepositoryMock)(nil)
	_ repositories.ReviewRepository  = (*ReviewRepositoryMock)(nil)
)

type ChannelRepositoryMock struct {
	mock.Mock
}

func (m *ChannelRepositoryMock) CreateChannel(ctx context.Context, userID0, userID1 int, kind string) (models.Channel, error) {
	args := m.Called(ctx, userID0, userID1, kind)
	var channel models.Channel
	if val := args.Get(0); val != nil {
		channel = val.(models.Channel)
	}
	return channel, args.Error(1)
}

func (m *ChannelRepositoryMock) GetChannel(ctx context.Context, channelID int) (models.Channel, error) {
	args := m.Called(ctx, channelID)
	var channel models.Channel
	if val := args.Get(0); val != nil {
		channel = val.(models.Channel)
	}
	return channel, args.Error(1)
}

func (m *ChannelRepositoryMock) ListChannels(ctx context.Context, filter models.ChannelFilter) ([]models.Channel, error) {
	args := m.Called(ctx, filter)
	var list []models.Channel
	if val := args.Get(0); val != nil {
		list = val.([]models.Channel)
	}
	return list, args.Error(1)
}

func (m *ChannelRepositoryMock) Participants(ctx context.Context, channelID int) (models.Participants, error) {
	args := m.Called(ctx, channelID)
	var p models.Participants
	if val := args.Get(0); val != nil {
		p = val.(models.Participants)
	}
	return p, args.Error(1)
}

func (m *ChannelRepositoryMock) CloseChannel(ctx context.Context, channelID int) (models.CloseResult, error) {
	args := m.Called(ctx, channelID)
	var result models.CloseResult
	if val := args.Get(0); val != nil {
		result = val.(models.CloseResult)
	}
	return result, args.Error(1)
}

func (m *ChannelRepositoryMock) IsStaff(ctx context.Context, userID int) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ChannelRepositoryMock) CountByPeriod(ctx context.Context, staffID *int, period string, kind string) ([]models.ChannelCount, error) {
	args := m.Called(ctx, staffID, period, kind)
	var counts []models.ChannelCount
	if val := args.Get(0); val != nil {
		counts = val.([]models.ChannelCount)
	}
	return counts, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, msg models.NewMessage) (models.Message, error) {
	args := m.Called(ctx, msg)
	var stored models.Message
	if val := args.Get(0); val != nil {
		stored = val.(models.Message)
	}
	return stored, args.Error(1)
}

func (m *MessageRepositoryMock) ListMessages(ctx context.Context, filter models.MessageFilter) ([]models.Message, error) {
	args := m.Called(ctx, filter)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, messageID int) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

type TokenRepositoryMock struct {
	mock.Mock
}

func (m *TokenRepositoryMock) RegisterToken(ctx context.Context, userID int, token string, platform *string) error {
	args := m.Called(ctx, userID, token, platform)
	return args.Error(0)
}

func (m *TokenRepositoryMock) ListTokens(ctx context.Context, userID int) ([]string, error) {
	args := m.Called(ctx, userID)
	var tokens []string
	if val := args.Get(0); val != nil {
		tokens = val.([]string)
	}
	return tokens, args.Error(1)
}

func (m *TokenRepositoryMock) DeleteToken(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

type ReviewRepositoryMock struct {
	mock.Mock
}

func (m *ReviewRepositoryMock) ListReviews(ctx context.Context, filter models.ReviewFilter) ([]models.Review, error) {
	args := m.Called(ctx, filter)
	var reviews []models.Review
	if val := args.Get(0); val != nil {
		reviews = val.([]models.Review)
	}
	return reviews, args.Error(1)
}

func (m *ReviewRepositoryMock) GetReview(ctx context.Context, reviewID int) (models.Review, error) {
	args := m.Called(ctx, reviewID)
	var review models.Review
	if val := args.Get(0); val != nil {
		review = val.(models.Review)
	}
	return review, args.Error(1)
}

func (m *ReviewRepositoryMock) UpdateReview(ctx context.Context, reviewID int, score *int, notes *string) (models.Review, error) {
	args := m.Called(ctx, reviewID, score, notes)
	var review models.Review
	if val := args.Get(0); val != nil {
		review = val.(models.Review)
	}
	return review, args.Error(1)
}

func (m *ReviewRepositoryMock) DeleteReview(ctx context.Context, reviewID int) (models.Review, error) {
	args := m.Called(ctx, reviewID)
	var review models.Review
	if val := args.Get(0); val != nil {
		review = val.(models.Review)
	}
	return review, args.Error(1)
}
