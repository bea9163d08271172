package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"conversation-service/internal/models"
)

// ReceiptRepository is the durable receipt ledger. It is the source of
// truth for delivery state; clients only mirror what it emits.
//
// Both writes are idempotent, so callers may re-issue them freely. The
// conflict policy is load-bearing: a delivered write must never replace an
// existing row, because replacing would downgrade read back to delivered.
type ReceiptRepository interface {
	MarkDelivered(ctx context.Context, conversationID int, messageIDs []int, participantID int) ([]models.Receipt, error)
	MarkRead(ctx context.Context, conversationID int, messageIDs []int, participantID int) ([]models.Receipt, error)
	ListReceipts(ctx context.Context, conversationID int) ([]models.Receipt, error)
}

// ReceiptRepo is a sqlx-backed repository.
type ReceiptRepo struct {
	db *sqlx.DB
}

// NewReceiptRepo constructs ReceiptRepo.
func NewReceiptRepo(db *sqlx.DB) *ReceiptRepo {
	return &ReceiptRepo{db: db}
}

const receiptColumns = `conversation_id, message_id, participant_id, status, updated_at`

// MarkDelivered upserts delivered receipts for a batch of messages.
// Insert-if-absent, never insert-or-replace: rows already at "read" stay
// at "read". Returns only the rows actually written.
func (r *ReceiptRepo) MarkDelivered(ctx context.Context, conversationID int, messageIDs []int, participantID int) ([]models.Receipt, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}
	var receipts []models.Receipt
	err := r.db.SelectContext(ctx, &receipts,
		`INSERT INTO message_receipts (conversation_id, message_id, participant_id, status)
         SELECT $1, m.id, $3, 'delivered' FROM messages m
         WHERE m.conversation_id=$1 AND m.id = ANY($2)
         ON CONFLICT (conversation_id, message_id, participant_id) DO NOTHING
         RETURNING `+receiptColumns,
		conversationID, pq.Array(messageIDs), participantID)
	return receipts, err
}

// MarkRead upgrades receipts to read in two phases: update the rows that
// exist, then insert read rows for messages with no row at all, ignoring
// conflicts. The two phases exist because the insert-triggered delivered
// path and the visibility-triggered read path are not mutually ordered.
func (r *ReceiptRepo) MarkRead(ctx context.Context, conversationID int, messageIDs []int, participantID int) ([]models.Receipt, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}

	var updated []models.Receipt
	err := r.db.SelectContext(ctx, &updated,
		`UPDATE message_receipts SET status='read', updated_at=NOW()
         WHERE conversation_id=$1 AND message_id = ANY($2) AND participant_id=$3 AND status <> 'read'
         RETURNING `+receiptColumns,
		conversationID, pq.Array(messageIDs), participantID)
	if err != nil {
		return nil, err
	}

	var inserted []models.Receipt
	err = r.db.SelectContext(ctx, &inserted,
		`INSERT INTO message_receipts (conversation_id, message_id, participant_id, status)
         SELECT $1, m.id, $3, 'read' FROM messages m
         WHERE m.conversation_id=$1 AND m.id = ANY($2)
         AND NOT EXISTS (
             SELECT 1 FROM message_receipts r
             WHERE r.conversation_id=$1 AND r.message_id=m.id AND r.participant_id=$3
         )
         ON CONFLICT (conversation_id, message_id, participant_id) DO NOTHING
         RETURNING `+receiptColumns,
		conversationID, pq.Array(messageIDs), participantID)
	if err != nil {
		return nil, err
	}

	return append(updated, inserted...), nil
}

// ListReceipts returns every receipt row of a conversation.
func (r *ReceiptRepo) ListReceipts(ctx context.Context, conversationID int) ([]models.Receipt, error) {
	var receipts []models.Receipt
	err := r.db.SelectContext(ctx, &receipts,
		`SELECT `+receiptColumns+` FROM message_receipts WHERE conversation_id=$1 ORDER BY message_id, participant_id`,
		conversationID)
	return receipts, err
}
