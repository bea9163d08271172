package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"conversation-service/internal/models"
	"conversation-service/internal/repositories"
	"conversation-service/internal/telemetry"
	"conversation-service/internal/unread"
	"conversation-service/internal/ws"
)

// MessageHandler serves conversation history and accepts new messages.
type MessageHandler struct {
	convRepo    repositories.ConversationRepository
	messageRepo repositories.MessageRepository
	receiptRepo repositories.ReceiptRepository
	hub         *ws.Hub
	unread      *unread.Store
	audit       *telemetry.AuditEmitter
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(
	convRepo repositories.ConversationRepository,
	messageRepo repositories.MessageRepository,
	receiptRepo repositories.ReceiptRepository,
	hub *ws.Hub,
	unreadStore *unread.Store,
	audit *telemetry.AuditEmitter,
) *MessageHandler {
	return &MessageHandler{
		convRepo:    convRepo,
		messageRepo: messageRepo,
		receiptRepo: receiptRepo,
		hub:         hub,
		unread:      unreadStore,
		audit:       audit,
	}
}

func (h *MessageHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), participantIDFromContext(c))
}

// GetMessages returns the full history of a conversation together with its
// receipt rows, so a client can seed both the feed and the receipt mirror
// from one round trip.
func (h *MessageHandler) GetMessages(c *gin.Context) {
	conversationID, ok := conversationIDParam(c)
	if !ok {
		return
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

	msgs, err := h.messageRepo.ListMessages(c.Request.Context(), conversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	receipts, err := h.receiptRepo.ListReceipts(c.Request.Context(), conversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load receipts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs, "receipts": receipts})
}

// PostMessage stores a message, fans it out on the conversation room and
// bumps the unread counter of every other member. Counter bumps are
// best-effort so a counter outage never blocks sending.
func (h *MessageHandler) PostMessage(c *gin.Context) {
	conversationID, ok := conversationIDParam(c)
	if !ok {
		return
	}

	// Body may be empty: an attachment-only message is created bare and
	// patched once the upload completes.
	var req struct {
		Body string `json:"body"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.Body = strings.TrimSpace(req.Body)

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

	msg, err := h.messageRepo.CreateMessage(c.Request.Context(), conversationID, participantID, req.Body)
	if err != nil {
		h.emitAudit(c, "ERROR", "message store failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store message"})
		return
	}
	h.emitAudit(c, "INFO", "message created")

	if h.hub != nil {
		h.hub.Broadcast(conversationID, models.ConversationEvent{
			Type:    models.EventMessage,
			Message: &msg,
			From:    participantID,
		})
	}

	if h.unread != nil {
		members, err := h.convRepo.ListMembers(c.Request.Context(), conversationID)
		if err != nil {
			log.Printf("unread bump skipped conversation=%d: %v", conversationID, err)
		} else {
			for _, m := range members {
				if m.ParticipantID == participantID {
					continue
				}
				if err := h.unread.Increment(c.Request.Context(), m.ParticipantID, conversationID); err != nil {
					log.Printf("unread bump failed participant=%d conversation=%d: %v", m.ParticipantID, conversationID, err)
				}
			}
		}
	}

	c.JSON(http.StatusCreated, msg)
}
