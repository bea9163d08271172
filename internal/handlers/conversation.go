package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"conversation-service/internal/models"
	"conversation-service/internal/repositories"
	"conversation-service/internal/unread"
)

// ConversationHandler manages conversation listing and creation.
type ConversationHandler struct {
	convRepo repositories.ConversationRepository
	unread   *unread.Store
}

// NewConversationHandler builds a ConversationHandler.
func NewConversationHandler(convRepo repositories.ConversationRepository, unreadStore *unread.Store) *ConversationHandler {
	return &ConversationHandler{convRepo: convRepo, unread: unreadStore}
}

// ListConversations returns the conversations of the authenticated
// participant with unread counts. Counter lookups are best-effort:
// failures degrade to zero counts rather than failing the listing.
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	participantID := c.GetInt("participantID")

	summaries, err := h.convRepo.ListConversations(c.Request.Context(), participantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
		return
	}

	if h.unread != nil {
		counts, err := h.unread.Counts(c.Request.Context(), participantID)
		if err != nil {
			log.Printf("unread counts unavailable participant=%d: %v", participantID, err)
		} else {
			for i := range summaries {
				summaries[i].Unread = counts[summaries[i].ConversationID]
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{"conversations": summaries})
}

// StartConversation creates a conversation with the given member set. The
// caller is always a member, whether listed or not.
func (h *ConversationHandler) StartConversation(c *gin.Context) {
	var req struct {
		Title   string `json:"title"`
		Members []struct {
			ParticipantID int    `json:"participant_id" binding:"required"`
			DisplayName   string `json:"display_name"`
		} `json:"members" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	participantID := c.GetInt("participantID")
	displayName := c.GetString("displayName")

	members := make([]models.Member, 0, len(req.Members)+1)
	callerListed := false
	for _, m := range req.Members {
		if m.ParticipantID == participantID {
			callerListed = true
		}
		members = append(members, models.Member{ParticipantID: m.ParticipantID, DisplayName: m.DisplayName})
	}
	if !callerListed {
		members = append(members, models.Member{ParticipantID: participantID, DisplayName: displayName})
	}
	if len(members) < 2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation needs at least two members"})
		return
	}

	conv, err := h.convRepo.CreateConversation(c.Request.Context(), req.Title, members)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create conversation"})
		return
	}

	c.JSON(http.StatusCreated, conv)
}

// ListMembers returns the member set of a conversation.
func (h *ConversationHandler) ListMembers(c *gin.Context) {
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

	members, err := h.convRepo.ListMembers(c.Request.Context(), conversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load members"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"members": members})
}
