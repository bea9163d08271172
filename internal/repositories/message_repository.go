package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"conversation-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines interactions for conversation messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, conversationID int, senderID int, body string) (models.Message, error)
	ListMessages(ctx context.Context, conversationID int) ([]models.Message, error)
	GetMessage(ctx context.Context, messageID int) (models.Message, error)
	AttachFile(ctx context.Context, messageID int, path, name, mime string, size int64) (models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, conversation_id, sender_id, body, attachment_path, attachment_name, attachment_mime, attachment_size, created_at`

// CreateMessage stores a message. The attachment columns start empty and
// are patched by AttachFile once the upload completes.
func (r *MessageRepo) CreateMessage(ctx context.Context, conversationID int, senderID int, body string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO messages (conversation_id, sender_id, body) VALUES ($1, $2, $3) RETURNING `+messageColumns,
		conversationID, senderID, body).StructScan(&msg)
	return msg, err
}

// ListMessages returns the full history of a conversation ordered by
// creation time ascending.
func (r *MessageRepo) ListMessages(ctx context.Context, conversationID int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT `+messageColumns+` FROM messages WHERE conversation_id=$1 ORDER BY created_at ASC, id ASC`,
		conversationID)
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

// AttachFile patches the attachment columns after the blob upload finishes
// and returns the updated row.
func (r *MessageRepo) AttachFile(ctx context.Context, messageID int, path, name, mime string, size int64) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx,
		`UPDATE messages SET attachment_path=$2, attachment_name=$3, attachment_mime=$4, attachment_size=$5
         WHERE id=$1 RETURNING `+messageColumns,
		messageID, path, name, mime, size).StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}
