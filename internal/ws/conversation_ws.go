package ws

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"conversation-service/internal/middleware"
	"conversation-service/internal/models"
	"conversation-service/internal/observability"
	"conversation-service/internal/repositories"
	"conversation-service/internal/session"
)

const wsRoutingKey = "ws_events.conversations"

// ConversationWebSocketHandler upgrades conversation websocket
// connections and runs the per-connection server-side session.
type ConversationWebSocketHandler struct {
	hub         *Hub
	convRepo    repositories.ConversationRepository
	messageRepo repositories.MessageRepository
	receiptRepo repositories.ReceiptRepository
	verifier    *middleware.TokenVerifier
}

// NewConversationWebSocketHandler constructs a ConversationWebSocketHandler.
func NewConversationWebSocketHandler(hub *Hub, convRepo repositories.ConversationRepository, messageRepo repositories.MessageRepository, receiptRepo repositories.ReceiptRepository, verifier *middleware.TokenVerifier) *ConversationWebSocketHandler {
	return &ConversationWebSocketHandler{
		hub:         hub,
		convRepo:    convRepo,
		messageRepo: messageRepo,
		receiptRepo: receiptRepo,
		verifier:    verifier,
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// receiptFanout writes delivered receipts through the ledger and fans the
// written rows back out on the room so every connected tracker converges.
type receiptFanout struct {
	repo           repositories.ReceiptRepository
	hub            *Hub
	conversationID int
}

func (f receiptFanout) MarkDelivered(ctx context.Context, conversationID int, messageIDs []int, participantID int) ([]models.Receipt, error) {
	receipts, err := f.repo.MarkDelivered(ctx, conversationID, messageIDs, participantID)
	if err != nil {
		observability.IncReceiptWrite("delivered", "error")
		return nil, err
	}
	observability.IncReceiptWrite("delivered", "ok")
	if len(receipts) > 0 {
		f.hub.Broadcast(f.conversationID, models.ConversationEvent{Type: models.EventReceipt, Receipts: receipts})
	}
	return receipts, nil
}

// historyLoader adapts the two repositories to the session's seed interface.
type historyLoader struct {
	messages repositories.MessageRepository
	receipts repositories.ReceiptRepository
}

func (l historyLoader) ListMessages(ctx context.Context, conversationID int) ([]models.Message, error) {
	return l.messages.ListMessages(ctx, conversationID)
}

func (l historyLoader) ListReceipts(ctx context.Context, conversationID int) ([]models.Receipt, error) {
	return l.receipts.ListReceipts(ctx, conversationID)
}

// tokenFromRequest extracts the access token. Browsers connecting over
// ws:// cannot set headers, so the query parameter is the fallback. A
// bearer scheme is stripped when present; any other header value is used
// as-is.
func tokenFromRequest(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return c.Query("token")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return header
}

// Handle upgrades the connection, binds a session, and pumps client frames.
func (h *ConversationWebSocketHandler) Handle(c *gin.Context) {
	conversationID, err := strconv.Atoi(c.Param("conversation_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	ctx, span := otel.Tracer("conversation-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	claims, err := h.verifier.Verify(tokenFromRequest(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	member, err := h.convRepo.IsParticipant(c.Request.Context(), conversationID, claims.ParticipantID)
	if err != nil || !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not authorized for conversation"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	traceID := span.SpanContext().TraceID().String()
	requestID := observability.RequestIDFromRequest(c.Request)
	info := ConnInfo{
		ConnID:        newConnID(),
		ParticipantID: claims.ParticipantID,
		DisplayName:   claims.DisplayName,
		DeviceID:      observability.DeviceIDFromRequest(c.Request),
		IP:            observability.IPFromRequest(c.Request),
		RequestID:     requestID,
		TraceID:       traceID,
		ConnectedAt:   time.Now(),
	}

	client := NewClient(conn, info)
	writer := receiptFanout{repo: h.receiptRepo, hub: h.hub, conversationID: conversationID}
	sess := session.New(conversationID, claims.ParticipantID, writer, func(summary string) {
		_ = client.Send(models.ConversationEvent{Type: models.EventPresence, Text: summary})
	})
	client.Bind(sess)

	// Join the room before seeding: a message broadcast while the history
	// query runs lands in the session live, and the seed's dedup absorbs
	// the overlap. Seeding first would open a gap where a message reaches
	// neither the snapshot nor the feed. A failed seed leaves the feed
	// empty but the connection up for live events.
	h.hub.Add(conversationID, client)
	loader := historyLoader{messages: h.messageRepo, receipts: h.receiptRepo}
	if err := sess.Seed(c.Request.Context(), loader); err != nil {
		log.Printf("session seed failed conversation=%d participant=%d: %v", conversationID, claims.ParticipantID, err)
	}

	sess.Start(context.Background())

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	h.publishLifecycleEvent("ws_connect", conversationID, info, 0, "")

	go h.readLoop(conversationID, client, sess)
}

func (h *ConversationWebSocketHandler) readLoop(conversationID int, client *Client, sess *session.Session) {
	conn := client.conn
	info := client.Info()
	var closeReason string

	defer func() {
		// Teardown is synchronous: the room entry and the sweep ticker are
		// gone before this returns, so no stale callback can touch the
		// session afterwards.
		h.hub.Remove(conversationID, client)
		sess.Close()
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		h.publishLifecycleEvent("ws_disconnect", conversationID, info, time.Since(info.ConnectedAt).Milliseconds(), closeReason)
		conn.Close()
	}()

	for {
		var ev models.ConversationEvent
		if err := conn.ReadJSON(&ev); err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
				h.publishLifecycleEvent("ws_error", conversationID, info, time.Since(info.ConnectedAt).Milliseconds(), closeReason)
			}
			return
		}

		// Frames are always stamped with the authenticated sender; the
		// client-supplied from field is not trusted.
		ev.From = info.ParticipantID

		switch ev.Type {
		case models.EventTyping:
			ev.DisplayName = info.DisplayName
			observability.IncTypingEvent()
			h.hub.Broadcast(conversationID, ev)
		case models.EventOffer, models.EventAnswer, models.EventCandidate, models.EventBye:
			h.hub.Broadcast(conversationID, ev)
		default:
			// Unknown frame types are dropped.
		}
	}
}

// publishLifecycleEvent always publishes on a fresh context: teardown runs
// after the hijacked request's context is canceled, and a canceled context
// would drop the disconnect event.
func (h *ConversationWebSocketHandler) publishLifecycleEvent(event string, conversationID int, info ConnInfo, durationMS int64, reason string) {
	payload := observability.WSEventPayload(conversationID, event, info.ConnID, durationMS, reason,
		info.ParticipantID, info.DeviceID, info.IP)
	_ = observability.PublishEvent(context.Background(), wsRoutingKey, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload:   payload,
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
}
