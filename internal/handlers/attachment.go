package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"conversation-service/internal/models"
	"conversation-service/internal/repositories"
	"conversation-service/internal/storage"
	"conversation-service/internal/ws"
)

const signedURLTTL = 15 * time.Minute

// AttachmentHandler uploads message attachments to blob storage and hands
// out short-lived download links.
type AttachmentHandler struct {
	convRepo    repositories.ConversationRepository
	messageRepo repositories.MessageRepository
	blobs       storage.BlobStore
	hub         *ws.Hub
}

// NewAttachmentHandler builds an AttachmentHandler.
func NewAttachmentHandler(
	convRepo repositories.ConversationRepository,
	messageRepo repositories.MessageRepository,
	blobs storage.BlobStore,
	hub *ws.Hub,
) *AttachmentHandler {
	return &AttachmentHandler{
		convRepo:    convRepo,
		messageRepo: messageRepo,
		blobs:       blobs,
		hub:         hub,
	}
}

// Upload attaches a file to an existing message. The message row is created
// first by PostMessage; the attachment lands as a follow-up patch, which
// subscribers see as a message_updated event on the feed.
func (h *AttachmentHandler) Upload(c *gin.Context) {
	conversationID, messageID, msg, ok := h.resolveMessage(c)
	if !ok {
		return
	}

	participantID := c.GetInt("participantID")
	if msg.SenderID != participantID {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the sender can attach files"})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file field"})
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	path := fmt.Sprintf("conversations/%d/%d/%s", conversationID, messageID, name)
	storedPath, err := h.blobs.Upload(c.Request.Context(), path, file, header.Size, contentType)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}

	updated, err := h.messageRepo.AttachFile(c.Request.Context(), messageID, storedPath, name, contentType, header.Size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not record attachment"})
		return
	}

	if h.hub != nil {
		h.hub.Broadcast(conversationID, models.ConversationEvent{
			Type:    models.EventMessageUpdated,
			Message: &updated,
			From:    participantID,
		})
	}

	c.JSON(http.StatusOK, updated)
}

// DownloadURL returns a presigned link for a message's attachment.
func (h *AttachmentHandler) DownloadURL(c *gin.Context) {
	_, _, msg, ok := h.resolveMessage(c)
	if !ok {
		return
	}

	if !msg.HasAttachment() {
		c.JSON(http.StatusNotFound, gin.H{"error": "message has no attachment"})
		return
	}

	url, err := h.blobs.SignedURL(c.Request.Context(), *msg.AttachmentPath, signedURLTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not sign url"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url, "expires_in": int(signedURLTTL.Seconds())})
}

// resolveMessage parses route params, checks membership and loads the
// message, verifying it belongs to the conversation in the path.
func (h *AttachmentHandler) resolveMessage(c *gin.Context) (conversationID, messageID int, msg models.Message, ok bool) {
	conversationID, ok = conversationIDParam(c)
	if !ok {
		return 0, 0, models.Message{}, false
	}

	messageID, err := strconv.Atoi(c.Param("message_id"))
	if err != nil || messageID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return 0, 0, models.Message{}, false
	}

	participantID := c.GetInt("participantID")
	member, err := h.convRepo.IsParticipant(c.Request.Context(), conversationID, participantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return 0, 0, models.Message{}, false
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation member"})
		return 0, 0, models.Message{}, false
	}

	msg, err = h.messageRepo.GetMessage(c.Request.Context(), messageID)
	if errors.Is(err, repositories.ErrMessageNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return 0, 0, models.Message{}, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load message"})
		return 0, 0, models.Message{}, false
	}
	if msg.ConversationID != conversationID {
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return 0, 0, models.Message{}, false
	}

	return conversationID, messageID, msg, true
}
