package domain

import (
	"time"
)

type AuditLog struct {
	ID        int64                  `json:"id"`
	EventTime time.Time              `json:"event_time"`
	ActorID   *string                `json:"actor_id,omitempty"`
	ActorType string                 `json:"actor_type"`
	RoomID    *string                `json:"room_id,omitempty"`
	EventType string                 `json:"event_type"`
	Payload   map[string]interface{} `json:"payload"`
}

const (
	ActorTypeCarer  = "carer"
	ActorTypeCenter = "center"
	ActorTypeSystem = "system"
)

const (
	EventTypeRoomCreated      = "ROOM_CREATED"
	EventTypeRoomClosed       = "ROOM_CLOSED"
	EventTypeProposalCreated  = "PROPOSAL_CREATED"
	EventTypeProposalAnswered = "PROPOSAL_ANSWERED"
)
