package domain

import (
	"fmt"
	"strings"
	"time"

	"carematch/pkg/errors"
)

type Room struct {
	ID        string    `json:"roomId"`
	CarerID   string    `json:"carerId"`
	CenterID  string    `json:"centerId"`
	SeniorID  *string   `json:"seniorId,omitempty"`
	Initiator string    `json:"initiator"`
	Status    string    `json:"status"`
	Messages  []Message `json:"messages"`
	Proposal  Proposal  `json:"proposal"`
	CreatedAt time.Time `json:"createdAt"`
}

type Message struct {
	ID        string    `json:"messageId"`
	Seq       int64     `json:"seq"`
	SenderID  string    `json:"senderId"`
	Content   string    `json:"content"`
	Kind      string    `json:"kind"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

type Proposal struct {
	ID          string     `json:"proposalId"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	RespondedAt *time.Time `json:"respondedAt,omitempty"`
}

const (
	RoomStatusActive = "active"
	RoomStatusClosed = "closed"
)

const (
	ParticipantTypeCarer  = "carer"
	ParticipantTypeCenter = "center"
)

// Sender id reserved for server-generated system messages.
const SystemSenderID = "system"

const (
	MessageKindChat        = "chat"
	MessageKindSystem      = "system"
	MessageKindPhoneShared = "phoneNumberShared"
)

const (
	ProposalStatusPending  = "pending"
	ProposalStatusAccepted = "accepted"
	ProposalStatusRejected = "rejected"
)

func ValidRoomStatus(status string) bool {
	return status == RoomStatusActive || status == RoomStatusClosed
}

func ValidParticipantType(t string) bool {
	return t == ParticipantTypeCarer || t == ParticipantTypeCenter
}

func ValidMessageKind(kind string) bool {
	switch kind {
	case MessageKindChat, MessageKindSystem, MessageKindPhoneShared:
		return true
	}
	return false
}

func ValidProposalResponse(status string) bool {
	return status == ProposalStatusAccepted || status == ProposalStatusRejected
}

// NewMessageID builds an id that totally orders messages within a room: the
// creation timestamp in milliseconds with the room-local sequence as tie-break.
func NewMessageID(createdAt time.Time, seq int64) string {
	return fmt.Sprintf("%013d-%06d", createdAt.UnixMilli(), seq)
}

func (r *Room) IsClosed() bool {
	return r.Status == RoomStatusClosed
}

// SenderType resolves a sender id against the room's two participants.
func (r *Room) SenderType(senderID string) (string, error) {
	switch senderID {
	case r.CarerID:
		return ParticipantTypeCarer, nil
	case r.CenterID:
		return ParticipantTypeCenter, nil
	}
	return "", errors.ErrForbiddenSender
}

// ValidateJoin checks the claimed identity against the room's recorded
// participants before a connection may be registered.
func (r *Room) ValidateJoin(participantType, participantID string) error {
	switch participantType {
	case ParticipantTypeCarer:
		if participantID != r.CarerID {
			return errors.ErrForbiddenParticipant
		}
	case ParticipantTypeCenter:
		if participantID != r.CenterID {
			return errors.ErrForbiddenParticipant
		}
	default:
		return errors.ErrInvalidArgument
	}
	return nil
}

// NextMessage validates a send against the room state and constructs the
// message that would be appended. It does not mutate the room; persisting the
// append is the store's job, under the room's write lock.
func (r *Room) NextMessage(senderID, content, kind string, seq int64, now time.Time) (Message, error) {
	if r.IsClosed() {
		return Message{}, errors.ErrRoomClosed
	}
	if strings.TrimSpace(content) == "" {
		return Message{}, errors.ErrInvalidArgument
	}
	if kind == "" {
		kind = MessageKindChat
	}
	if !ValidMessageKind(kind) {
		return Message{}, errors.ErrInvalidArgument
	}
	if kind == MessageKindSystem {
		if senderID != SystemSenderID {
			return Message{}, errors.ErrForbiddenSender
		}
	} else if _, err := r.SenderType(senderID); err != nil {
		return Message{}, err
	}
	return Message{
		ID:        NewMessageID(now, seq),
		Seq:       seq,
		SenderID:  senderID,
		Content:   content,
		Kind:      kind,
		IsRead:    false,
		CreatedAt: now,
	}, nil
}

// ValidateRead gates read-marking; the actual flips are idempotent and never
// fail on partial matches.
func (r *Room) ValidateRead() error {
	if r.IsClosed() {
		return errors.ErrRoomClosed
	}
	return nil
}

// RespondProposal applies pending -> accepted|rejected. Terminal proposals and
// closed rooms reject the transition.
func (r *Room) RespondProposal(status string, now time.Time) error {
	if r.IsClosed() {
		return errors.ErrInvalidTransition
	}
	if !ValidProposalResponse(status) {
		return errors.ErrInvalidArgument
	}
	if r.Proposal.Status != ProposalStatusPending {
		return errors.ErrInvalidTransition
	}
	r.Proposal.Status = status
	respondedAt := now
	r.Proposal.RespondedAt = &respondedAt
	return nil
}

// ReplaceProposal starts a fresh proposal instance. Only valid while the room
// is active and the current proposal is terminal; a room never carries more
// than one outstanding proposal.
func (r *Room) ReplaceProposal(proposalID string, now time.Time) (Proposal, error) {
	if r.IsClosed() {
		return Proposal{}, errors.ErrInvalidTransition
	}
	if r.Proposal.Status == ProposalStatusPending {
		return Proposal{}, errors.ErrInvalidTransition
	}
	r.Proposal = Proposal{
		ID:        proposalID,
		Status:    ProposalStatusPending,
		CreatedAt: now,
	}
	return r.Proposal, nil
}

// Close transitions active -> closed. Closing does not require the proposal to
// be terminal; resolution and closure are independent decisions.
func (r *Room) Close() error {
	if r.IsClosed() {
		return errors.ErrInvalidTransition
	}
	r.Status = RoomStatusClosed
	return nil
}

// MarkRead flips isRead on the matched messages not authored by the reader.
// Already-read or unknown ids are skipped silently. Returns how many flipped.
func (r *Room) MarkRead(messageIDs []string, readerID string) int {
	wanted := make(map[string]struct{}, len(messageIDs))
	for _, id := range messageIDs {
		wanted[id] = struct{}{}
	}
	updated := 0
	for i := range r.Messages {
		msg := &r.Messages[i]
		if _, ok := wanted[msg.ID]; !ok {
			continue
		}
		if msg.SenderID == readerID || msg.IsRead {
			continue
		}
		msg.IsRead = true
		updated++
	}
	return updated
}

// UnreadCount derives the reader's unread projection from the message log.
func (r *Room) UnreadCount(readerID string) int {
	count := 0
	for i := range r.Messages {
		if !r.Messages[i].IsRead && r.Messages[i].SenderID != readerID {
			count++
		}
	}
	return count
}
