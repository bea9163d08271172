package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"conversation-service/internal/models"
	"conversation-service/internal/observability"
	"conversation-service/internal/session"
)

// Client is one registered websocket connection together with its
// server-side conversation session. Writes are serialized because frames
// originate from both the broadcast path and the presence sweep.
type Client struct {
	conn *websocket.Conn
	info ConnInfo
	sess *session.Session
	mu   sync.Mutex
}

// NewClient wraps an upgraded connection.
func NewClient(conn *websocket.Conn, info ConnInfo) *Client {
	return &Client{conn: conn, info: info}
}

// Bind attaches the server-side session. Must happen before the client is
// added to the hub.
func (c *Client) Bind(sess *session.Session) {
	c.sess = sess
}

// Session returns the bound session, nil before Bind.
func (c *Client) Session() *session.Session {
	return c.sess
}

// Info returns the connection identity.
func (c *Client) Info() ConnInfo {
	return c.info
}

// Send marshals and writes one event frame.
func (c *Client) Send(ev models.ConversationEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub maintains the active clients of each conversation room.
type Hub struct {
	rooms map[int]map[*Client]bool
	mu    sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[int]map[*Client]bool)}
}

// Add registers a client in a conversation room.
func (h *Hub) Add(conversationID int, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[conversationID]; !ok {
		h.rooms[conversationID] = make(map[*Client]bool)
	}
	h.rooms[conversationID][client] = true
}

// Remove drops a client from a conversation room.
func (h *Hub) Remove(conversationID int, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.rooms[conversationID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, conversationID)
		}
	}
}

// RoomSize reports how many clients a conversation room holds.
func (h *Hub) RoomSize(conversationID int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[conversationID])
}

// Broadcast fans one event out to a conversation room.
//
// Message and receipt events are applied to every client's session (which
// keeps feeds deduplicated and receipt mirrors converging) and forwarded
// as frames. Typing events are consumed by the sessions only; clients
// receive the rendered presence frame from their own aggregator instead
// of raw typing traffic. Signal frames addressed to a participant are
// delivered to that participant alone; unaddressed signals reach everyone
// but their sender.
func (h *Hub) Broadcast(conversationID int, ev models.ConversationEvent) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.rooms[conversationID]))
	for client := range h.rooms[conversationID] {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if ev.IsSignal() {
			if client.info.ParticipantID == ev.From {
				continue
			}
			if ev.To != 0 && client.info.ParticipantID != ev.To {
				continue
			}
		} else if client.sess != nil {
			client.sess.HandleEvent(ev)
			if ev.Type == models.EventTyping {
				continue
			}
		}

		if err := client.Send(ev); err != nil {
			log.Printf("websocket write error: %v", err)
			client.conn.Close()
			h.Remove(conversationID, client)
			h.publishWSError(conversationID, client, err)
		}
	}
}

func (h *Hub) publishWSError(conversationID int, client *Client, err error) {
	info := client.Info()
	payload := observability.WSEventPayload(conversationID, "ws_error", info.ConnID,
		time.Since(info.ConnectedAt).Milliseconds(), err.Error(),
		info.ParticipantID, info.DeviceID, info.IP)

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(context.Background(), wsRoutingKey, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload:   payload,
	}, headers)
	observability.IncWSEvent("ws_error")
}
