package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"carematch/internal/domain"
	"carematch/internal/middleware"
	"carematch/internal/service"
	"carematch/pkg/jwt"
	"carematch/pkg/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const sendBufferSize = 32

var errSendBufferFull = errors.New("send buffer full")
var errConnClosed = errors.New("connection closed")

// wsClient wraps one websocket connection with a buffered outbound queue so
// broadcasts never block on a slow socket. All writes go through writePump;
// gorilla connections do not allow concurrent writers.
type wsClient struct {
	conn *websocket.Conn
	send chan domain.RealtimeEvent
	done chan struct{}
	once sync.Once
}

func newWSClient(conn *websocket.Conn) *wsClient {
	c := &wsClient{
		conn: conn,
		send: make(chan domain.RealtimeEvent, sendBufferSize),
		done: make(chan struct{}),
	}
	go c.writePump()
	return c
}

func (c *wsClient) writePump() {
	for {
		select {
		case ev := <-c.send:
			if err := c.conn.WriteJSON(ev); err != nil {
				_ = c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// Send enqueues without blocking; a consumer whose buffer is full is treated
// as dead and gets pruned by the registry.
func (c *wsClient) Send(event domain.RealtimeEvent) error {
	select {
	case <-c.done:
		return errConnClosed
	case c.send <- event:
		return nil
	default:
		return errSendBufferFull
	}
}

func (c *wsClient) Close() error {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
	return nil
}

type WebSocketHandler struct {
	negotiationService service.NegotiationService
	auth               *middleware.AuthMiddleware
	log                logger.Logger
}

func NewWebSocketHandler(negotiationService service.NegotiationService, auth *middleware.AuthMiddleware, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		negotiationService: negotiationService,
		auth:               auth,
		log:                log,
	}
}

// HandleNegotiation authenticates the participant from the token query param
// (websocket upgrades cannot carry an Authorization header from browsers),
// upgrades the connection and runs the event loop until the peer goes away.
func (h *WebSocketHandler) HandleNegotiation(c *gin.Context) {
	roomID := c.Param("id")

	claims, err := h.auth.ValidateToken(c.Query("token"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := newWSClient(conn)
	defer client.Close()

	h.readLoop(c.Request.Context(), client, roomID, claims)
}

type joinRoomPayload struct {
	ParticipantType string `json:"participantType"`
	ParticipantID   string `json:"participantId"`
}

type sendMessagePayload struct {
	SenderID string `json:"senderId"`
	Content  string `json:"content"`
	Kind     string `json:"kind"`
}

type markAsReadPayload struct {
	MessageIDs []string `json:"messageIds"`
	ReaderID   string   `json:"readerId"`
}

type sendProposalPayload struct {
	ProposalID string `json:"proposalId"`
}

type respondToProposalPayload struct {
	Response string `json:"response"`
}

func (h *WebSocketHandler) readLoop(ctx context.Context, client *wsClient, roomID string, claims *jwt.ParticipantClaims) {
	joined := false
	defer func() {
		// Transport loss only drops registry membership; it never mutates
		// the room.
		if joined {
			h.negotiationService.LeaveRoom(roomID, client)
		}
	}()

	for {
		var inbound domain.RealtimeEvent
		if err := client.conn.ReadJSON(&inbound); err != nil {
			return
		}
		h.dispatch(ctx, client, roomID, claims, &joined, inbound)
	}
}

func (h *WebSocketHandler) dispatch(ctx context.Context, client *wsClient, roomID string, claims *jwt.ParticipantClaims, joined *bool, inbound domain.RealtimeEvent) {
	switch inbound.Event {
	case domain.EventJoinRoom:
		var payload joinRoomPayload
		if err := json.Unmarshal(inbound.Data, &payload); err != nil {
			h.sendError(client, "malformed joinRoom payload")
			return
		}
		if payload.ParticipantID == "" {
			payload.ParticipantID = claims.ParticipantID
		}
		if payload.ParticipantType == "" {
			payload.ParticipantType = claims.ParticipantType
		}
		if payload.ParticipantID != claims.ParticipantID {
			h.sendError(client, "participant does not match token")
			return
		}

		room, err := h.negotiationService.JoinRoom(ctx, roomID, payload.ParticipantType, payload.ParticipantID, client)
		if err != nil {
			h.sendError(client, err.Error())
			return
		}
		*joined = true

		// Late joiners get the full history and proposal so every
		// connection starts from the same state.
		snapshot, err := domain.NewRealtimeEvent(domain.EventRoomSnapshot, room)
		if err != nil {
			h.log.Error("Failed to encode room snapshot", "error", err)
			return
		}
		if err := client.Send(snapshot); err != nil {
			h.log.Warn("Failed to push snapshot", "room_id", roomID, "error", err)
		}

	case domain.EventSendMessage:
		if !h.requireJoined(client, *joined) {
			return
		}
		var payload sendMessagePayload
		if err := json.Unmarshal(inbound.Data, &payload); err != nil {
			h.sendError(client, "malformed sendMessage payload")
			return
		}
		if payload.SenderID == "" {
			payload.SenderID = claims.ParticipantID
		}
		if payload.SenderID != claims.ParticipantID {
			h.sendError(client, "sender does not match token")
			return
		}
		if _, err := h.negotiationService.SendMessage(ctx, roomID, payload.SenderID, payload.Content, payload.Kind); err != nil {
			h.sendError(client, err.Error())
		}

	case domain.EventMarkAsRead:
		if !h.requireJoined(client, *joined) {
			return
		}
		var payload markAsReadPayload
		if err := json.Unmarshal(inbound.Data, &payload); err != nil {
			h.sendError(client, "malformed markAsRead payload")
			return
		}
		if payload.ReaderID == "" {
			payload.ReaderID = claims.ParticipantID
		}
		if _, err := h.negotiationService.MarkRead(ctx, roomID, payload.MessageIDs, payload.ReaderID); err != nil {
			h.sendError(client, err.Error())
		}

	case domain.EventSendProposal:
		if !h.requireJoined(client, *joined) {
			return
		}
		var payload sendProposalPayload
		if err := json.Unmarshal(inbound.Data, &payload); err != nil {
			h.sendError(client, "malformed sendProposal payload")
			return
		}
		if _, err := h.negotiationService.SendProposal(ctx, roomID, payload.ProposalID); err != nil {
			h.sendError(client, err.Error())
		}

	case domain.EventRespondToProposal:
		if !h.requireJoined(client, *joined) {
			return
		}
		var payload respondToProposalPayload
		if err := json.Unmarshal(inbound.Data, &payload); err != nil {
			h.sendError(client, "malformed respondToProposal payload")
			return
		}
		if _, err := h.negotiationService.RespondToProposal(ctx, roomID, payload.Response); err != nil {
			h.sendError(client, err.Error())
		}

	case domain.EventEndChat:
		if !h.requireJoined(client, *joined) {
			return
		}
		if _, err := h.negotiationService.CloseRoom(ctx, roomID); err != nil {
			h.sendError(client, err.Error())
		}

	default:
		h.sendError(client, "unknown event: "+inbound.Event)
	}
}

func (h *WebSocketHandler) requireJoined(client *wsClient, joined bool) bool {
	if !joined {
		h.sendError(client, "join the room before sending events")
	}
	return joined
}

func (h *WebSocketHandler) sendError(client *wsClient, message string) {
	ev, err := domain.NewRealtimeEvent(domain.EventError, domain.ErrorPayload{Message: message})
	if err != nil {
		return
	}
	if err := client.Send(ev); err != nil {
		h.log.Warn("Failed to deliver error event", "error", err)
	}
}
