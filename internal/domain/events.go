package domain

import "encoding/json"

// Inbound realtime event names.
const (
	EventJoinRoom          = "joinRoom"
	EventSendMessage       = "sendMessage"
	EventMarkAsRead        = "markAsRead"
	EventSendProposal      = "sendProposal"
	EventRespondToProposal = "respondToProposal"
	EventEndChat           = "endChat"
)

// Outbound realtime event names.
const (
	EventRoomSnapshot     = "roomSnapshot"
	EventNewMessage       = "newMessage"
	EventMessagesRead     = "messagesRead"
	EventNewProposal      = "newProposal"
	EventProposalResponse = "proposalResponse"
	EventChatEnded        = "chatEnded"
	EventError            = "error"
)

// RealtimeEvent is the envelope exchanged on the websocket in both directions.
type RealtimeEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func NewRealtimeEvent(event string, payload interface{}) (RealtimeEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return RealtimeEvent{}, err
	}
	return RealtimeEvent{Event: event, Data: data}, nil
}

type NewMessagePayload struct {
	Message
	SenderType string `json:"senderType"`
}

type MessagesReadPayload struct {
	RoomID     string   `json:"roomId"`
	MessageIDs []string `json:"messageIds"`
	ReaderID   string   `json:"readerId"`
	Updated    int      `json:"updated"`
}

type ChatEndedPayload struct {
	RoomID string `json:"roomId"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
