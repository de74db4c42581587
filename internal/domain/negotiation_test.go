package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"carematch/pkg/errors"
)

func activeRoom() *Room {
	return &Room{
		ID:        "room-1",
		CarerID:   "carer-1",
		CenterID:  "center-1",
		Initiator: ParticipantTypeCarer,
		Status:    RoomStatusActive,
		Proposal: Proposal{
			ID:        "prop-1",
			Status:    ProposalStatusPending,
			CreatedAt: time.Now(),
		},
		CreatedAt: time.Now(),
	}
}

func TestNextMessage(t *testing.T) {
	req := require.New(t)
	room := activeRoom()
	now := time.Now()

	msg, err := room.NextMessage("carer-1", "hello", "", 1, now)
	req.NoError(err)
	req.Equal("hello", msg.Content)
	req.Equal(MessageKindChat, msg.Kind, "kind defaults to chat")
	req.False(msg.IsRead)
	req.Equal(int64(1), msg.Seq)

	_, err = room.NextMessage("carer-1", "   ", MessageKindChat, 2, now)
	req.ErrorIs(err, errors.ErrInvalidArgument, "blank content rejected")

	_, err = room.NextMessage("stranger", "hi", MessageKindChat, 2, now)
	req.ErrorIs(err, errors.ErrForbiddenSender)

	_, err = room.NextMessage("carer-1", "hi", "bogus", 2, now)
	req.ErrorIs(err, errors.ErrInvalidArgument)

	_, err = room.NextMessage("carer-1", "notice", MessageKindSystem, 2, now)
	req.ErrorIs(err, errors.ErrForbiddenSender, "system kind reserved for the system sender")

	sys, err := room.NextMessage(SystemSenderID, "notice", MessageKindSystem, 2, now)
	req.NoError(err)
	req.Equal(SystemSenderID, sys.SenderID)

	room.Status = RoomStatusClosed
	_, err = room.NextMessage("carer-1", "hello", MessageKindChat, 3, now)
	req.ErrorIs(err, errors.ErrRoomClosed)
}

func TestMessageIDOrdering(t *testing.T) {
	req := require.New(t)
	base := time.Now()

	first := NewMessageID(base, 1)
	second := NewMessageID(base, 2)
	later := NewMessageID(base.Add(time.Second), 1)

	req.Less(first, second, "sequence breaks same-timestamp ties")
	req.Less(second, later)
}

func TestRespondProposal(t *testing.T) {
	req := require.New(t)
	room := activeRoom()
	now := time.Now()

	req.ErrorIs(room.RespondProposal("maybe", now), errors.ErrInvalidArgument)

	req.NoError(room.RespondProposal(ProposalStatusAccepted, now))
	req.Equal(ProposalStatusAccepted, room.Proposal.Status)
	req.NotNil(room.Proposal.RespondedAt)

	err := room.RespondProposal(ProposalStatusRejected, now)
	req.ErrorIs(err, errors.ErrInvalidTransition, "terminal proposal cannot be answered again")

	closed := activeRoom()
	req.NoError(closed.Close())
	req.ErrorIs(closed.RespondProposal(ProposalStatusAccepted, now), errors.ErrInvalidTransition)
}

func TestReplaceProposal(t *testing.T) {
	req := require.New(t)
	room := activeRoom()
	now := time.Now()

	_, err := room.ReplaceProposal("prop-2", now)
	req.ErrorIs(err, errors.ErrInvalidTransition, "only one outstanding proposal")

	req.NoError(room.RespondProposal(ProposalStatusRejected, now))

	fresh, err := room.ReplaceProposal("prop-2", now)
	req.NoError(err)
	req.Equal("prop-2", fresh.ID)
	req.Equal(ProposalStatusPending, fresh.Status)
	req.Nil(fresh.RespondedAt)

	req.NoError(room.Close())
	_, err = room.ReplaceProposal("prop-3", now)
	req.ErrorIs(err, errors.ErrInvalidTransition)
}

func TestClose(t *testing.T) {
	req := require.New(t)
	room := activeRoom()

	req.NoError(room.Close())
	req.Equal(RoomStatusClosed, room.Status)
	req.ErrorIs(room.Close(), errors.ErrInvalidTransition, "closed is terminal")
}

func TestCloseIndependentOfProposal(t *testing.T) {
	req := require.New(t)
	room := activeRoom()

	// Proposal still pending; closing is a separate decision.
	req.Equal(ProposalStatusPending, room.Proposal.Status)
	req.NoError(room.Close())
}

func TestMarkRead(t *testing.T) {
	req := require.New(t)
	room := activeRoom()
	now := time.Now()
	for i, sender := range []string{"carer-1", "carer-1", "center-1"} {
		msg, err := room.NextMessage(sender, "m", MessageKindChat, int64(i+1), now)
		req.NoError(err)
		room.Messages = append(room.Messages, msg)
	}

	ids := []string{room.Messages[0].ID, room.Messages[1].ID, room.Messages[2].ID, "missing"}

	updated := room.MarkRead(ids, "center-1")
	req.Equal(2, updated, "own messages and unknown ids skipped")
	req.True(room.Messages[0].IsRead)
	req.True(room.Messages[1].IsRead)
	req.False(room.Messages[2].IsRead, "reader's own message untouched")

	req.Equal(0, room.MarkRead(ids, "center-1"), "idempotent")
	req.True(room.Messages[0].IsRead, "isRead never reverts")
}

func TestUnreadCount(t *testing.T) {
	req := require.New(t)
	room := activeRoom()
	now := time.Now()
	for i, sender := range []string{"carer-1", "carer-1", "center-1"} {
		msg, err := room.NextMessage(sender, "m", MessageKindChat, int64(i+1), now)
		req.NoError(err)
		room.Messages = append(room.Messages, msg)
	}

	req.Equal(2, room.UnreadCount("center-1"))
	req.Equal(1, room.UnreadCount("carer-1"))

	room.MarkRead([]string{room.Messages[0].ID}, "center-1")
	req.Equal(1, room.UnreadCount("center-1"))
}

func TestValidateJoin(t *testing.T) {
	req := require.New(t)
	room := activeRoom()

	req.NoError(room.ValidateJoin(ParticipantTypeCarer, "carer-1"))
	req.NoError(room.ValidateJoin(ParticipantTypeCenter, "center-1"))
	req.ErrorIs(room.ValidateJoin(ParticipantTypeCarer, "center-1"), errors.ErrForbiddenParticipant)
	req.ErrorIs(room.ValidateJoin(ParticipantTypeCenter, "carer-1"), errors.ErrForbiddenParticipant)
	req.ErrorIs(room.ValidateJoin("admin", "carer-1"), errors.ErrInvalidArgument)
}

func TestSenderType(t *testing.T) {
	req := require.New(t)
	room := activeRoom()

	carer, err := room.SenderType("carer-1")
	req.NoError(err)
	req.Equal(ParticipantTypeCarer, carer)

	center, err := room.SenderType("center-1")
	req.NoError(err)
	req.Equal(ParticipantTypeCenter, center)

	_, err = room.SenderType("stranger")
	req.ErrorIs(err, errors.ErrForbiddenSender)
}
