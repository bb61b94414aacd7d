package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"clinic-chat/internal/models"
)

const channelColumns = `id, user_id0, user_id1, type, archived, created_at`

// ChannelRepository abstracts channel persistence.
type ChannelRepository interface {
	CreateChannel(ctx context.Context, userID0, userID1 int, kind string) (models.Channel, error)
	GetChannel(ctx context.Context, channelID int) (models.Channel, error)
	ListChannels(ctx context.Context, filter models.ChannelFilter) ([]models.Channel, error)
	Participants(ctx context.Context, channelID int) (models.Participants, error)
	CloseChannel(ctx context.Context, channelID int) (models.CloseResult, error)
	IsStaff(ctx context.Context, userID int) (bool, error)
	CountByPeriod(ctx context.Context, staffID *int, period string, kind string) ([]models.ChannelCount, error)
}

// ChannelRepo is a sqlx implementation of ChannelRepository.
type ChannelRepo struct {
	db *sqlx.DB
}

// NewChannelRepo constructs a ChannelRepo.
func NewChannelRepo(db *sqlx.DB) *ChannelRepo {
	return &ChannelRepo{db: db}
}

// CreateChannel inserts a channel between two users. The participants are not
// required to differ.
func (r *ChannelRepo) CreateChannel(ctx context.Context, userID0, userID1 int, kind string) (models.Channel, error) {
	var channel models.Channel
	err := r.db.GetContext(ctx, &channel, `INSERT INTO channels (user_id0, user_id1, type) VALUES ($1, $2, $3) RETURNING `+channelColumns, userID0, userID1, kind)
	if err != nil {
		return models.Channel{}, translate(err)
	}
	return channel, nil
}

// GetChannel fetches a channel by id.
func (r *ChannelRepo) GetChannel(ctx context.Context, channelID int) (models.Channel, error) {
	var channel models.Channel
	err := r.db.GetContext(ctx, &channel, `SELECT `+channelColumns+` FROM channels WHERE id=$1`, channelID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Channel{}, ErrChannelNotFound
	}
	return channel, err
}

// ListChannels returns channels matching the filter. Unless filter.All is set,
// only channels whose archived flag equals filter.Archived are returned.
func (r *ChannelRepo) ListChannels(ctx context.Context, filter models.ChannelFilter) ([]models.Channel, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		conditions = append(conditions, fmt.Sprintf("(user_id0 = $%d OR user_id1 = $%d)", len(args), len(args)))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}
	if !filter.All {
		args = append(args, filter.Archived)
		conditions = append(conditions, fmt.Sprintf("archived = $%d", len(args)))
	}

	query := `SELECT ` + channelColumns + ` FROM channels`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	var channels []models.Channel
	err := r.db.SelectContext(ctx, &channels, query, args...)
	return channels, err
}

// Participants returns the two participant ids of a channel.
func (r *ChannelRepo) Participants(ctx context.Context, channelID int) (models.Participants, error) {
	var p models.Participants
	err := r.db.GetContext(ctx, &p, `SELECT user_id0, user_id1 FROM channels WHERE id=$1`, channelID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Participants{}, ErrChannelNotFound
	}
	return p, err
}

// CloseChannel advances a channel one step through its lifecycle in a single
// transaction: an active channel is archived and a review is seeded, an
// archived channel is deleted. The row is locked for the duration so that
// concurrent close requests on one channel are applied one after another.
func (r *ChannelRepo) CloseChannel(ctx context.Context, channelID int) (result models.CloseResult, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.CloseResult{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current models.Channel
	if err = tx.GetContext(ctx, &current, `SELECT `+channelColumns+` FROM channels WHERE id=$1 FOR UPDATE`, channelID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrChannelNotFound
		}
		return models.CloseResult{}, err
	}

	next, err := models.NextOnClose(current.State())
	if err != nil {
		return models.CloseResult{}, err
	}

	switch next {
	case models.ChannelDeleted:
		result, err = deleteChannel(ctx, tx, channelID)
	case models.ChannelArchived:
		result, err = archiveChannel(ctx, tx, current)
	default:
		err = fmt.Errorf("unexpected transition %s -> %s", current.State(), next)
	}
	if err != nil {
		return models.CloseResult{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.CloseResult{}, err
	}
	return result, nil
}

func deleteChannel(ctx context.Context, tx *sqlx.Tx, channelID int) (models.CloseResult, error) {
	var deleted models.Channel
	if err := tx.GetContext(ctx, &deleted, `DELETE FROM channels WHERE id=$1 RETURNING `+channelColumns, channelID); err != nil {
		return models.CloseResult{}, fmt.Errorf("delete channel: %w", err)
	}
	return models.CloseResult{Outcome: models.CloseDeleted, Channel: deleted}, nil
}

func archiveChannel(ctx context.Context, tx *sqlx.Tx, current models.Channel) (models.CloseResult, error) {
	var archived models.Channel
	if err := tx.GetContext(ctx, &archived, `UPDATE channels SET archived = TRUE WHERE id=$1 RETURNING `+channelColumns, current.ID); err != nil {
		return models.CloseResult{}, fmt.Errorf("archive channel: %w", err)
	}

	var rows []struct {
		ID   int    `db:"id"`
		Role string `db:"role"`
	}
	if err := tx.SelectContext(ctx, &rows, `SELECT id, role FROM users WHERE id = $1 OR id = $2`, current.UserID0, current.UserID1); err != nil {
		return models.CloseResult{}, fmt.Errorf("load participant roles: %w", err)
	}
	roles := make(map[int]models.Role, len(rows))
	for _, row := range rows {
		roles[row.ID] = models.ParseRole(row.Role)
	}

	reviewer, reviewee := models.DeriveReviewParties(current.UserID0, roles[current.UserID0], current.UserID1, roles[current.UserID1])

	var review models.Review
	if err := tx.GetContext(ctx, &review, `INSERT INTO reviews (reviewer_id, reviewee_id) VALUES ($1, $2) RETURNING `+reviewColumns, reviewer, reviewee); err != nil {
		return models.CloseResult{}, fmt.Errorf("seed review: %w", err)
	}

	return models.CloseResult{Outcome: models.CloseArchived, Channel: archived, Review: &review}, nil
}

// IsStaff reports whether the user is a doctor or customer-service member.
func (r *ChannelRepo) IsStaff(ctx context.Context, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE id=$1 AND role IN ($2, $3))`, userID, models.RoleNameDoctor, models.RoleNameCustomerService)
	return exists, err
}

// CountByPeriod buckets channel creation by day or month, optionally for one
// staff member and one channel kind.
func (r *ChannelRepo) CountByPeriod(ctx context.Context, staffID *int, period string, kind string) ([]models.ChannelCount, error) {
	format := "YYYY-MM-DD"
	if period == "month" {
		format = "YYYY-MM"
	}

	args := []any{format, staffID}
	query := `SELECT to_char(created_at, $1) AS period, COUNT(*) AS chat_count
        FROM channels
        WHERE ($2::int IS NULL OR user_id0 = $2 OR user_id1 = $2)`
	if kind != "" {
		args = append(args, kind)
		query += ` AND type = $3`
	}
	query += ` GROUP BY period ORDER BY period ASC`

	var counts []models.ChannelCount
	err := r.db.SelectContext(ctx, &counts, query, args...)
	return counts, err
}
