package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"clinic-chat/internal/mocks"
	"clinic-chat/internal/models"
	"clinic-chat/internal/repositories"
	"clinic-chat/internal/telemetry"
	"clinic-chat/internal/ws"
)

func intPtr(v int) *int { return &v }

func TestCloseArchivesAndBroadcasts(t *testing.T) {
	store := new(mocks.ChannelRepositoryMock)
	broadcaster := new(mocks.BroadcasterMock)
	audit := new(mocks.AuditorMock)
	coord := NewCoordinator(store, broadcaster, audit, zerolog.Nop())

	result := models.CloseResult{
		Outcome: models.CloseArchived,
		Channel: models.Channel{ID: 4, UserID0: 10, UserID1: 20, Archived: true},
		Review:  &models.Review{ID: 1, ReviewerID: intPtr(20), RevieweeID: intPtr(10)},
	}
	store.On("CloseChannel", mock.Anything, 4).Return(result, nil).Once()
	broadcaster.On("SendToUsers", []int{10, 20}, ws.Event{
		Type: ws.EventChannelDeleted,
		Data: ChannelDeletedEvent{ChannelID: 4, UserID0: 10, UserID1: 20, Outcome: models.CloseArchived},
	}).Return(1).Once()
	audit.On("Record", mock.Anything, telemetry.EventChannelArchived, mock.Anything).Once()

	got, err := coord.Close(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, result, got)
	store.AssertExpectations(t)
	broadcaster.AssertExpectations(t)
	audit.AssertExpectations(t)
}

func TestCloseDeleteBroadcastsEvenWithNobodyOnline(t *testing.T) {
	store := new(mocks.ChannelRepositoryMock)
	broadcaster := new(mocks.BroadcasterMock)
	audit := new(mocks.AuditorMock)
	coord := NewCoordinator(store, broadcaster, audit, zerolog.Nop())

	result := models.CloseResult{Outcome: models.CloseDeleted, Channel: models.Channel{ID: 4, UserID0: 10, UserID1: 20, Archived: true}}
	store.On("CloseChannel", mock.Anything, 4).Return(result, nil)
	broadcaster.On("SendToUsers", []int{10, 20}, mock.MatchedBy(func(e ws.Event) bool {
		data, ok := e.Data.(ChannelDeletedEvent)
		return ok && e.Type == ws.EventChannelDeleted && data.Outcome == models.CloseDeleted
	})).Return(0)
	audit.On("Record", mock.Anything, telemetry.EventChannelDeleted, mock.Anything)

	got, err := coord.Close(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, models.CloseDeleted, got.Outcome)
	assert.Nil(t, got.Review)
}

func TestCloseStoreErrorSkipsBroadcast(t *testing.T) {
	for _, storeErr := range []error{repositories.ErrChannelNotFound, errors.New("connection reset")} {
		store := new(mocks.ChannelRepositoryMock)
		broadcaster := new(mocks.BroadcasterMock)
		coord := NewCoordinator(store, broadcaster, nil, zerolog.Nop())

		store.On("CloseChannel", mock.Anything, 9).Return(nil, storeErr)

		_, err := coord.Close(context.Background(), 9)
		assert.ErrorIs(t, err, storeErr)
		broadcaster.AssertNotCalled(t, "SendToUsers", mock.Anything, mock.Anything)
	}
}

func TestCloseSelfChannelNotifiesOnce(t *testing.T) {
	store := new(mocks.ChannelRepositoryMock)
	broadcaster := new(mocks.BroadcasterMock)
	coord := NewCoordinator(store, broadcaster, nil, zerolog.Nop())

	store.On("CloseChannel", mock.Anything, 2).Return(models.CloseResult{
		Outcome: models.CloseArchived,
		Channel: models.Channel{ID: 2, UserID0: 6, UserID1: 6, Archived: true},
		Review:  &models.Review{ID: 3},
	}, nil)
	broadcaster.On("SendToUsers", []int{6}, mock.Anything).Return(1).Once()

	_, err := coord.Close(context.Background(), 2)
	require.NoError(t, err)
	broadcaster.AssertExpectations(t)
}

func TestCloseSequenceWithRegistry(t *testing.T) {
	store := new(mocks.ChannelRepositoryMock)
	registry := ws.NewRegistry(zerolog.Nop(), nil, 0)
	coord := NewCoordinator(store, registry, nil, zerolog.Nop())

	channel := models.Channel{ID: 1, UserID0: 1, UserID1: 2}
	archived := channel
	archived.Archived = true
	store.On("CloseChannel", mock.Anything, 1).Return(models.CloseResult{Outcome: models.CloseArchived, Channel: archived, Review: &models.Review{}}, nil).Once()
	store.On("CloseChannel", mock.Anything, 1).Return(models.CloseResult{Outcome: models.CloseDeleted, Channel: archived}, nil).Once()
	store.On("CloseChannel", mock.Anything, 1).Return(nil, repositories.ErrChannelNotFound).Once()

	first, err := coord.Close(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, models.CloseArchived, first.Outcome)

	second, err := coord.Close(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, models.CloseDeleted, second.Outcome)

	_, err = coord.Close(context.Background(), 1)
	assert.ErrorIs(t, err, repositories.ErrChannelNotFound)
}
