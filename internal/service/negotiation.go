package service

import (
	"context"

	"carematch/internal/domain"
	"carematch/internal/registry"
	"carematch/internal/repository"
	apperrors "carematch/pkg/errors"
	"carematch/pkg/logger"
)

// NegotiationService applies every room event — realtime or REST — against the
// store and fans the result out to live connections. Both paths go through
// here, so business rules cannot diverge between them.
type NegotiationService interface {
	StartRoom(ctx context.Context, carerID, centerID string, seniorID *string, initiator string) (*domain.Room, error)
	GetRoom(ctx context.Context, roomID string) (*domain.Room, error)
	ListRooms(ctx context.Context, status string) ([]*domain.Room, error)
	JoinRoom(ctx context.Context, roomID, participantType, participantID string, conn registry.Conn) (*domain.Room, error)
	LeaveRoom(roomID string, conn registry.Conn)
	SendMessage(ctx context.Context, roomID, senderID, content, kind string) (*domain.Message, error)
	MarkRead(ctx context.Context, roomID string, messageIDs []string, readerID string) (int, error)
	SendProposal(ctx context.Context, roomID, proposalID string) (*domain.Proposal, error)
	RespondToProposal(ctx context.Context, roomID, response string) (*domain.Proposal, error)
	CloseRoom(ctx context.Context, roomID string) (*domain.Room, error)
	UnreadCount(ctx context.Context, roomID, readerID string) (int, error)
}

type negotiationService struct {
	repo     repository.NegotiationRepository
	registry *registry.Registry
	audit    AuditService
	log      logger.Logger
}

func NewNegotiationService(repo repository.NegotiationRepository, reg *registry.Registry, audit AuditService, log logger.Logger) NegotiationService {
	return &negotiationService{
		repo:     repo,
		registry: reg,
		audit:    audit,
		log:      log,
	}
}

// broadcast marshals and fans out after the store already committed; a payload
// that cannot marshal is a programming error worth logging, never a caller
// failure.
func (s *negotiationService) broadcast(roomID, event string, payload interface{}) {
	ev, err := domain.NewRealtimeEvent(event, payload)
	if err != nil {
		s.log.Error("Failed to encode broadcast event", "event", event, "error", err)
		return
	}
	s.registry.Broadcast(roomID, ev)
}

func (s *negotiationService) StartRoom(ctx context.Context, carerID, centerID string, seniorID *string, initiator string) (*domain.Room, error) {
	room, err := s.repo.CreateRoom(ctx, carerID, centerID, seniorID, initiator)
	if err != nil {
		return nil, err
	}

	initiatorID := room.CarerID
	if initiator == domain.ParticipantTypeCenter {
		initiatorID = room.CenterID
	}
	s.audit.LogEvent(ctx, &initiatorID, initiator, &room.ID, domain.EventTypeRoomCreated, map[string]interface{}{
		"carer_id":  room.CarerID,
		"center_id": room.CenterID,
	})

	return room, nil
}

func (s *negotiationService) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	return s.repo.GetRoom(ctx, roomID)
}

func (s *negotiationService) ListRooms(ctx context.Context, status string) ([]*domain.Room, error) {
	return s.repo.ListRooms(ctx, status)
}

// JoinRoom verifies the claimed identity against the stored room before
// registering the connection, then returns the snapshot the gateway pushes so
// late joiners catch up.
func (s *negotiationService) JoinRoom(ctx context.Context, roomID, participantType, participantID string, conn registry.Conn) (*domain.Room, error) {
	room, err := s.repo.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if err := room.ValidateJoin(participantType, participantID); err != nil {
		return nil, err
	}

	s.registry.Join(roomID, conn)
	return room, nil
}

func (s *negotiationService) LeaveRoom(roomID string, conn registry.Conn) {
	s.registry.Leave(roomID, conn)
}

func (s *negotiationService) SendMessage(ctx context.Context, roomID, senderID, content, kind string) (*domain.Message, error) {
	msg, err := s.repo.AppendMessage(ctx, roomID, senderID, content, kind)
	if err != nil {
		return nil, err
	}

	senderType := domain.ParticipantTypeCarer
	if msg.Kind == domain.MessageKindSystem {
		senderType = domain.ActorTypeSystem
	} else if room, err := s.repo.GetRoom(ctx, roomID); err == nil {
		if t, terr := room.SenderType(msg.SenderID); terr == nil {
			senderType = t
		}
	}

	s.broadcast(roomID, domain.EventNewMessage, domain.NewMessagePayload{
		Message:    *msg,
		SenderType: senderType,
	})
	return msg, nil
}

func (s *negotiationService) MarkRead(ctx context.Context, roomID string, messageIDs []string, readerID string) (int, error) {
	updated, err := s.repo.MarkRead(ctx, roomID, messageIDs, readerID)
	if err != nil {
		return 0, err
	}

	s.broadcast(roomID, domain.EventMessagesRead, domain.MessagesReadPayload{
		RoomID:     roomID,
		MessageIDs: messageIDs,
		ReaderID:   readerID,
		Updated:    updated,
	})
	return updated, nil
}

func (s *negotiationService) SendProposal(ctx context.Context, roomID, proposalID string) (*domain.Proposal, error) {
	proposal, err := s.repo.ReplaceProposal(ctx, roomID, proposalID)
	if err != nil {
		return nil, err
	}

	s.audit.LogEvent(ctx, nil, domain.ActorTypeSystem, &roomID, domain.EventTypeProposalCreated, map[string]interface{}{
		"proposal_id": proposal.ID,
	})
	s.broadcast(roomID, domain.EventNewProposal, proposal)
	return proposal, nil
}

func (s *negotiationService) RespondToProposal(ctx context.Context, roomID, response string) (*domain.Proposal, error) {
	if !domain.ValidProposalResponse(response) {
		return nil, apperrors.ErrInvalidArgument
	}

	proposal, err := s.repo.SetProposalStatus(ctx, roomID, response)
	if err != nil {
		return nil, err
	}

	s.audit.LogEvent(ctx, nil, domain.ActorTypeSystem, &roomID, domain.EventTypeProposalAnswered, map[string]interface{}{
		"proposal_id": proposal.ID,
		"status":      proposal.Status,
	})
	s.broadcast(roomID, domain.EventProposalResponse, proposal)
	return proposal, nil
}

func (s *negotiationService) CloseRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	room, err := s.repo.CloseRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	s.audit.LogEvent(ctx, nil, domain.ActorTypeSystem, &roomID, domain.EventTypeRoomClosed, nil)
	s.broadcast(roomID, domain.EventChatEnded, domain.ChatEndedPayload{RoomID: roomID})
	return room, nil
}

func (s *negotiationService) UnreadCount(ctx context.Context, roomID, readerID string) (int, error) {
	room, err := s.repo.GetRoom(ctx, roomID)
	if err != nil {
		return 0, err
	}
	if _, err := room.SenderType(readerID); err != nil {
		return 0, apperrors.ErrForbiddenParticipant
	}
	return room.UnreadCount(readerID), nil
}
