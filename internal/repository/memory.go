package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"carematch/internal/domain"
	apperrors "carematch/pkg/errors"
)

// memoryNegotiationRepository keeps rooms in process memory. It backs local
// development (DATABASE_DSN=memory) and the concurrency tests. A mutex per
// room serializes that room's mutations; different rooms never contend.
type memoryNegotiationRepository struct {
	mu    sync.RWMutex
	rooms map[string]*memoryRoom
}

type memoryRoom struct {
	mu   sync.Mutex
	room domain.Room
}

func NewMemoryNegotiationRepository() NegotiationRepository {
	return &memoryNegotiationRepository{rooms: make(map[string]*memoryRoom)}
}

func cloneRoom(r *domain.Room) *domain.Room {
	clone := *r
	clone.Messages = make([]domain.Message, len(r.Messages))
	copy(clone.Messages, r.Messages)
	if r.SeniorID != nil {
		seniorID := *r.SeniorID
		clone.SeniorID = &seniorID
	}
	if r.Proposal.RespondedAt != nil {
		respondedAt := *r.Proposal.RespondedAt
		clone.Proposal.RespondedAt = &respondedAt
	}
	return &clone
}

func (r *memoryNegotiationRepository) get(roomID string) (*memoryRoom, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.rooms[roomID]
	if !ok {
		return nil, apperrors.ErrRoomNotFound
	}
	return entry, nil
}

func (r *memoryNegotiationRepository) CreateRoom(_ context.Context, carerID, centerID string, seniorID *string, initiator string) (*domain.Room, error) {
	if carerID == "" || centerID == "" || !domain.ValidParticipantType(initiator) {
		return nil, apperrors.ErrInvalidArgument
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, entry := range r.rooms {
		entry.mu.Lock()
		dup := entry.room.CarerID == carerID && entry.room.CenterID == centerID &&
			entry.room.Status == domain.RoomStatusActive
		entry.mu.Unlock()
		if dup {
			return nil, apperrors.ErrDuplicateRoom
		}
	}

	now := time.Now()
	room := domain.Room{
		ID:        uuid.NewString(),
		CarerID:   carerID,
		CenterID:  centerID,
		SeniorID:  seniorID,
		Initiator: initiator,
		Status:    domain.RoomStatusActive,
		Proposal: domain.Proposal{
			ID:        uuid.NewString(),
			Status:    domain.ProposalStatusPending,
			CreatedAt: now,
		},
		CreatedAt: now,
	}
	r.rooms[room.ID] = &memoryRoom{room: room}
	return cloneRoom(&room), nil
}

func (r *memoryNegotiationRepository) GetRoom(_ context.Context, roomID string) (*domain.Room, error) {
	entry, err := r.get(roomID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return cloneRoom(&entry.room), nil
}

func (r *memoryNegotiationRepository) ListRooms(_ context.Context, status string) ([]*domain.Room, error) {
	if !domain.ValidRoomStatus(status) {
		return nil, apperrors.ErrInvalidArgument
	}

	r.mu.RLock()
	entries := make([]*memoryRoom, 0, len(r.rooms))
	for _, entry := range r.rooms {
		entries = append(entries, entry)
	}
	r.mu.RUnlock()

	var rooms []*domain.Room
	for _, entry := range entries {
		entry.mu.Lock()
		if entry.room.Status == status {
			rooms = append(rooms, cloneRoom(&entry.room))
		}
		entry.mu.Unlock()
	}
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.After(rooms[j].CreatedAt)
	})
	return rooms, nil
}

func (r *memoryNegotiationRepository) AppendMessage(_ context.Context, roomID, senderID, content, kind string) (*domain.Message, error) {
	entry, err := r.get(roomID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	seq := int64(len(entry.room.Messages)) + 1
	msg, err := entry.room.NextMessage(senderID, content, kind, seq, time.Now())
	if err != nil {
		return nil, err
	}
	entry.room.Messages = append(entry.room.Messages, msg)
	return &msg, nil
}

func (r *memoryNegotiationRepository) MarkRead(_ context.Context, roomID string, messageIDs []string, readerID string) (int, error) {
	if len(messageIDs) == 0 {
		return 0, apperrors.ErrInvalidArgument
	}

	entry, err := r.get(roomID)
	if err != nil {
		return 0, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if err := entry.room.ValidateRead(); err != nil {
		return 0, err
	}
	return entry.room.MarkRead(messageIDs, readerID), nil
}

func (r *memoryNegotiationRepository) SetProposalStatus(_ context.Context, roomID, status string) (*domain.Proposal, error) {
	entry, err := r.get(roomID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if err := entry.room.RespondProposal(status, time.Now()); err != nil {
		return nil, err
	}
	proposal := entry.room.Proposal
	return &proposal, nil
}

func (r *memoryNegotiationRepository) ReplaceProposal(_ context.Context, roomID, proposalID string) (*domain.Proposal, error) {
	if proposalID == "" {
		proposalID = uuid.NewString()
	}

	entry, err := r.get(roomID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	proposal, err := entry.room.ReplaceProposal(proposalID, time.Now())
	if err != nil {
		return nil, err
	}
	return &proposal, nil
}

func (r *memoryNegotiationRepository) CloseRoom(_ context.Context, roomID string) (*domain.Room, error) {
	entry, err := r.get(roomID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if err := entry.room.Close(); err != nil {
		return nil, err
	}
	return cloneRoom(&entry.room), nil
}
