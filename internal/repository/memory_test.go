package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"carematch/internal/domain"
	apperrors "carematch/pkg/errors"
)

func newTestRoom(t *testing.T, repo NegotiationRepository) *domain.Room {
	t.Helper()
	room, err := repo.CreateRoom(context.Background(), "carer-1", "center-1", nil, domain.ParticipantTypeCarer)
	require.NoError(t, err)
	return room
}

func TestCreateRoom(t *testing.T) {
	req := require.New(t)
	repo := NewMemoryNegotiationRepository()
	ctx := context.Background()

	room := newTestRoom(t, repo)
	req.NotEmpty(room.ID)
	req.Equal(domain.RoomStatusActive, room.Status)
	req.Equal(domain.ProposalStatusPending, room.Proposal.Status, "initial proposal created with the room")
	req.NotEmpty(room.Proposal.ID)

	_, err := repo.CreateRoom(ctx, "carer-1", "center-1", nil, domain.ParticipantTypeCenter)
	req.ErrorIs(err, apperrors.ErrDuplicateRoom, "one active room per pair")

	_, err = repo.CreateRoom(ctx, "", "center-2", nil, domain.ParticipantTypeCarer)
	req.ErrorIs(err, apperrors.ErrInvalidArgument)

	_, err = repo.CreateRoom(ctx, "carer-1", "center-2", nil, "admin")
	req.ErrorIs(err, apperrors.ErrInvalidArgument)
}

func TestCreateRoomAfterClose(t *testing.T) {
	req := require.New(t)
	repo := NewMemoryNegotiationRepository()
	ctx := context.Background()

	room := newTestRoom(t, repo)
	_, err := repo.CloseRoom(ctx, room.ID)
	req.NoError(err)

	// A closed room no longer blocks the pair.
	_, err = repo.CreateRoom(ctx, "carer-1", "center-1", nil, domain.ParticipantTypeCarer)
	req.NoError(err)
}

func TestGetRoomNotFound(t *testing.T) {
	repo := NewMemoryNegotiationRepository()
	_, err := repo.GetRoom(context.Background(), "missing")
	require.ErrorIs(t, err, apperrors.ErrRoomNotFound)
}

func TestListRooms(t *testing.T) {
	req := require.New(t)
	repo := NewMemoryNegotiationRepository()
	ctx := context.Background()

	_, err := repo.ListRooms(ctx, "open")
	req.ErrorIs(err, apperrors.ErrInvalidArgument)

	a := newTestRoom(t, repo)
	b, err := repo.CreateRoom(ctx, "carer-2", "center-2", nil, domain.ParticipantTypeCenter)
	req.NoError(err)

	active, err := repo.ListRooms(ctx, domain.RoomStatusActive)
	req.NoError(err)
	req.Len(active, 2)

	_, err = repo.CloseRoom(ctx, b.ID)
	req.NoError(err)

	active, err = repo.ListRooms(ctx, domain.RoomStatusActive)
	req.NoError(err)
	req.Len(active, 1)
	req.Equal(a.ID, active[0].ID)

	closed, err := repo.ListRooms(ctx, domain.RoomStatusClosed)
	req.NoError(err)
	req.Len(closed, 1)
	req.Equal(b.ID, closed[0].ID)
}

func TestNegotiationLifecycle(t *testing.T) {
	req := require.New(t)
	repo := NewMemoryNegotiationRepository()
	ctx := context.Background()

	room := newTestRoom(t, repo)
	req.Equal(domain.RoomStatusActive, room.Status)
	req.Equal(domain.ProposalStatusPending, room.Proposal.Status)

	msg, err := repo.AppendMessage(ctx, room.ID, "carer-1", "hello", "")
	req.NoError(err)
	req.False(msg.IsRead)

	got, err := repo.GetRoom(ctx, room.ID)
	req.NoError(err)
	req.Len(got.Messages, 1)

	updated, err := repo.MarkRead(ctx, room.ID, []string{msg.ID}, "center-1")
	req.NoError(err)
	req.Equal(1, updated)

	got, err = repo.GetRoom(ctx, room.ID)
	req.NoError(err)
	req.True(got.Messages[0].IsRead)

	proposal, err := repo.SetProposalStatus(ctx, room.ID, domain.ProposalStatusAccepted)
	req.NoError(err)
	req.Equal(domain.ProposalStatusAccepted, proposal.Status)
	req.NotNil(proposal.RespondedAt)

	closed, err := repo.CloseRoom(ctx, room.ID)
	req.NoError(err)
	req.Equal(domain.RoomStatusClosed, closed.Status)

	_, err = repo.AppendMessage(ctx, room.ID, "carer-1", "too late", "")
	req.ErrorIs(err, apperrors.ErrRoomClosed)

	_, err = repo.MarkRead(ctx, room.ID, []string{msg.ID}, "center-1")
	req.ErrorIs(err, apperrors.ErrRoomClosed)

	_, err = repo.SetProposalStatus(ctx, room.ID, domain.ProposalStatusRejected)
	req.ErrorIs(err, apperrors.ErrInvalidTransition)

	_, err = repo.CloseRoom(ctx, room.ID)
	req.ErrorIs(err, apperrors.ErrInvalidTransition)
}

func TestMarkReadIdempotent(t *testing.T) {
	req := require.New(t)
	repo := NewMemoryNegotiationRepository()
	ctx := context.Background()

	room := newTestRoom(t, repo)
	msg, err := repo.AppendMessage(ctx, room.ID, "carer-1", "hello", "")
	req.NoError(err)

	own, err := repo.AppendMessage(ctx, room.ID, "center-1", "hi back", "")
	req.NoError(err)

	ids := []string{msg.ID, own.ID, "does-not-exist"}

	updated, err := repo.MarkRead(ctx, room.ID, ids, "center-1")
	req.NoError(err)
	req.Equal(1, updated, "own and unknown messages skipped without error")

	updated, err = repo.MarkRead(ctx, room.ID, ids, "center-1")
	req.NoError(err)
	req.Equal(0, updated)

	_, err = repo.MarkRead(ctx, room.ID, nil, "center-1")
	req.ErrorIs(err, apperrors.ErrInvalidArgument)
}

func TestProposalReplacement(t *testing.T) {
	req := require.New(t)
	repo := NewMemoryNegotiationRepository()
	ctx := context.Background()

	room := newTestRoom(t, repo)

	_, err := repo.ReplaceProposal(ctx, room.ID, "prop-next")
	req.ErrorIs(err, apperrors.ErrInvalidTransition, "pending proposal blocks a new one")

	_, err = repo.SetProposalStatus(ctx, room.ID, domain.ProposalStatusRejected)
	req.NoError(err)

	fresh, err := repo.ReplaceProposal(ctx, room.ID, "prop-next")
	req.NoError(err)
	req.Equal("prop-next", fresh.ID)
	req.Equal(domain.ProposalStatusPending, fresh.Status)
	req.NotEqual(room.Proposal.ID, fresh.ID, "a new proposal never reuses the old id")

	generated, err := repo.SetProposalStatus(ctx, room.ID, domain.ProposalStatusAccepted)
	req.NoError(err)
	req.Equal("prop-next", generated.ID)
}

// Concurrent senders on one room must serialize: every message lands, ids are
// unique and the sequence has no gaps.
func TestConcurrentAppends(t *testing.T) {
	req := require.New(t)
	repo := NewMemoryNegotiationRepository()
	ctx := context.Background()

	room := newTestRoom(t, repo)

	const perSender = 50
	errs := make(chan error, 2*perSender)
	var wg sync.WaitGroup
	for _, sender := range []string{"carer-1", "center-1"} {
		sender := sender
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				if _, err := repo.AppendMessage(ctx, room.ID, sender, fmt.Sprintf("%s-%d", sender, i), ""); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		req.NoError(err)
	}

	got, err := repo.GetRoom(ctx, room.ID)
	req.NoError(err)
	req.Len(got.Messages, 2*perSender)

	seen := make(map[string]struct{}, len(got.Messages))
	for i, msg := range got.Messages {
		req.Equal(int64(i+1), msg.Seq, "no gaps, insertion order preserved")
		_, dup := seen[msg.ID]
		req.False(dup, "no duplicate message id")
		seen[msg.ID] = struct{}{}
	}
}
