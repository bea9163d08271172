package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gin-gonic/gin"

	"conversation-service/internal/models"
	"conversation-service/internal/observability"
	"conversation-service/internal/repositories"
	"conversation-service/internal/unread"
	"conversation-service/internal/ws"
)

// ReceiptHandler accepts delivered and read batches from clients.
type ReceiptHandler struct {
	convRepo    repositories.ConversationRepository
	receiptRepo repositories.ReceiptRepository
	hub         *ws.Hub
	unread      *unread.Store
}

// NewReceiptHandler builds a ReceiptHandler.
func NewReceiptHandler(
	convRepo repositories.ConversationRepository,
	receiptRepo repositories.ReceiptRepository,
	hub *ws.Hub,
	unreadStore *unread.Store,
) *ReceiptHandler {
	return &ReceiptHandler{
		convRepo:    convRepo,
		receiptRepo: receiptRepo,
		hub:         hub,
		unread:      unreadStore,
	}
}

type receiptRequest struct {
	MessageIDs []int `json:"message_ids" binding:"required"`
}

// MarkDelivered records a delivered batch. The write is idempotent, so
// redelivered batches from the at-least-once feed collapse into no-ops.
func (h *ReceiptHandler) MarkDelivered(c *gin.Context) {
	h.write(c, "delivered", h.receiptRepo.MarkDelivered)
}

// MarkRead upgrades a batch to read and clears the conversation's unread
// counter for the caller. Rows already read keep their timestamp.
func (h *ReceiptHandler) MarkRead(c *gin.Context) {
	h.write(c, "read", h.receiptRepo.MarkRead)
}

type receiptWriteFunc func(ctx context.Context, conversationID int, messageIDs []int, participantID int) ([]models.Receipt, error)

func (h *ReceiptHandler) write(c *gin.Context, status string, fn receiptWriteFunc) {
	conversationID, ok := conversationIDParam(c)
	if !ok {
		return
	}

	var req receiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.MessageIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message_ids is empty"})
		return
	}
	for _, id := range req.MessageIDs {
		if id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
			return
		}
	}

	participantID := c.GetInt("participantID")
	member, err := h.convRepo.IsParticipant(c.Request.Context(), conversationID, participantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation member"})
		return
	}

	var written []models.Receipt
	op := func() error {
		var err error
		written, err = fn(c.Request.Context(), conversationID, req.MessageIDs, participantID)
		return err
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	if err := backoff.Retry(op, backoff.WithMaxRetries(bo, 2)); err != nil {
		observability.IncReceiptWrite(status, "error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not record receipts"})
		return
	}
	observability.IncReceiptWrite(status, "ok")

	if len(written) > 0 && h.hub != nil {
		h.hub.Broadcast(conversationID, models.ConversationEvent{
			Type:     models.EventReceipt,
			Receipts: written,
			From:     participantID,
		})
	}

	if status == "read" && h.unread != nil {
		if err := h.unread.Reset(c.Request.Context(), participantID, conversationID); err != nil {
			log.Printf("unread reset failed participant=%d conversation=%d: %v", participantID, conversationID, err)
		}
	}

	c.Status(http.StatusNoContent)
}
