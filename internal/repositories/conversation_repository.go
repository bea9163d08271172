package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"conversation-service/internal/models"
)

var ErrConversationNotFound = errors.New("conversation not found")

// ConversationRepository defines interactions for conversations and their
// member sets.
type ConversationRepository interface {
	CreateConversation(ctx context.Context, title string, members []models.Member) (models.Conversation, error)
	GetConversation(ctx context.Context, conversationID int) (models.Conversation, error)
	ListConversations(ctx context.Context, participantID int) ([]models.ConversationSummary, error)
	ListMembers(ctx context.Context, conversationID int) ([]models.Member, error)
	IsParticipant(ctx context.Context, conversationID int, participantID int) (bool, error)
}

// ConversationRepo is a sqlx-backed repository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// CreateConversation stores a conversation along with its member set.
func (r *ConversationRepo) CreateConversation(ctx context.Context, title string, members []models.Member) (models.Conversation, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Conversation{}, err
	}
	defer tx.Rollback()

	var conv models.Conversation
	err = tx.QueryRowxContext(ctx, `INSERT INTO conversations (title) VALUES ($1) RETURNING id, title, created_at`, title).
		Scan(&conv.ID, &conv.Title, &conv.CreatedAt)
	if err != nil {
		return models.Conversation{}, err
	}

	for _, m := range members {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO conversation_members (conversation_id, participant_id, display_name) VALUES ($1, $2, $3)
             ON CONFLICT (conversation_id, participant_id) DO NOTHING`,
			conv.ID, m.ParticipantID, m.DisplayName); err != nil {
			return models.Conversation{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

// GetConversation retrieves a single conversation.
func (r *ConversationRepo) GetConversation(ctx context.Context, conversationID int) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT id, title, created_at FROM conversations WHERE id=$1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// ListConversations returns the conversations a participant belongs to,
// newest first.
func (r *ConversationRepo) ListConversations(ctx context.Context, participantID int) ([]models.ConversationSummary, error) {
	query := `SELECT c.id AS conversation_id, c.title, c.created_at
        FROM conversations c
        JOIN conversation_members m ON m.conversation_id = c.id
        WHERE m.participant_id=$1
        ORDER BY c.created_at DESC`
	var summaries []models.ConversationSummary
	err := r.db.SelectContext(ctx, &summaries, query, participantID)
	return summaries, err
}

// ListMembers returns the member set of a conversation.
func (r *ConversationRepo) ListMembers(ctx context.Context, conversationID int) ([]models.Member, error) {
	var members []models.Member
	err := r.db.SelectContext(ctx, &members,
		`SELECT conversation_id, participant_id, display_name FROM conversation_members WHERE conversation_id=$1 ORDER BY participant_id`,
		conversationID)
	return members, err
}

// IsParticipant reports whether a participant belongs to the conversation.
func (r *ConversationRepo) IsParticipant(ctx context.Context, conversationID int, participantID int) (bool, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(1) FROM conversation_members WHERE conversation_id=$1 AND participant_id=$2`,
		conversationID, participantID)
	return count > 0, err
}
