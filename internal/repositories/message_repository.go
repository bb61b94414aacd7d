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

const messageColumns = `id, channel_id, user_id, content, image, type, read, sent_at`

// MessageRepository defines interactions for channel messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg models.NewMessage) (models.Message, error)
	ListMessages(ctx context.Context, filter models.MessageFilter) ([]models.Message, error)
	GetMessage(ctx context.Context, messageID int) (models.Message, error)
	MarkRead(ctx context.Context, messageID int) (models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage stores a message. msg.Image must already be in its stored form.
func (r *MessageRepo) CreateMessage(ctx context.Context, msg models.NewMessage) (models.Message, error) {
	var image any
	if len(msg.Image) > 0 {
		image = msg.Image
	}

	var stored models.Message
	err := r.db.GetContext(ctx, &stored, `INSERT INTO messages (channel_id, user_id, content, type, image) VALUES ($1, $2, $3, $4, $5) RETURNING `+messageColumns,
		msg.ChannelID, msg.UserID, msg.Content, msg.Type, image)
	if err != nil {
		return models.Message{}, translate(err)
	}
	return stored, nil
}

// ListMessages returns messages ordered by send time.
func (r *MessageRepo) ListMessages(ctx context.Context, filter models.MessageFilter) ([]models.Message, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.ChannelID != nil {
		args = append(args, *filter.ChannelID)
		conditions = append(conditions, fmt.Sprintf("channel_id = $%d", len(args)))
	}
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}

	query := `SELECT ` + messageColumns + ` FROM messages`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY sent_at ASC"

	msgs := []models.Message{}
	err := r.db.SelectContext(ctx, &msgs, query, args...)
	return msgs, err
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// MarkRead flips the read flag and returns the updated row.
func (r *MessageRepo) MarkRead(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `UPDATE messages SET read = TRUE WHERE id=$1 RETURNING `+messageColumns, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}
