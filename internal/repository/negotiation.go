package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"carematch/internal/domain"
	apperrors "carematch/pkg/errors"
	"carematch/pkg/logger"
)

// NegotiationRepository is the durable session store for negotiation rooms.
// Every mutation on a single room is serialized; mutations on different rooms
// proceed independently.
type NegotiationRepository interface {
	CreateRoom(ctx context.Context, carerID, centerID string, seniorID *string, initiator string) (*domain.Room, error)
	GetRoom(ctx context.Context, roomID string) (*domain.Room, error)
	ListRooms(ctx context.Context, status string) ([]*domain.Room, error)
	AppendMessage(ctx context.Context, roomID, senderID, content, kind string) (*domain.Message, error)
	MarkRead(ctx context.Context, roomID string, messageIDs []string, readerID string) (int, error)
	SetProposalStatus(ctx context.Context, roomID, status string) (*domain.Proposal, error)
	ReplaceProposal(ctx context.Context, roomID, proposalID string) (*domain.Proposal, error)
	CloseRoom(ctx context.Context, roomID string) (*domain.Room, error)
}

type negotiationRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewNegotiationRepository(db *pgxpool.Pool, log logger.Logger) NegotiationRepository {
	return &negotiationRepository{db: db, log: log}
}

const roomColumns = `id, carer_id, center_id, senior_id, initiator, status,
	       proposal_id, proposal_status, proposal_created_at, proposal_responded_at, created_at`

func scanRoom(row pgx.Row) (*domain.Room, error) {
	room := &domain.Room{}
	var respondedAt *time.Time
	err := row.Scan(
		&room.ID, &room.CarerID, &room.CenterID, &room.SeniorID, &room.Initiator, &room.Status,
		&room.Proposal.ID, &room.Proposal.Status, &room.Proposal.CreatedAt, &respondedAt, &room.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrRoomNotFound
		}
		return nil, err
	}
	room.Proposal.RespondedAt = respondedAt
	return room, nil
}

// lockRoom loads the room row under FOR UPDATE so the transaction owns all
// writes to that room until commit.
func (r *negotiationRepository) lockRoom(ctx context.Context, tx pgx.Tx, roomID string) (*domain.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM negotiation_rooms WHERE id = $1 FOR UPDATE`
	return scanRoom(tx.QueryRow(ctx, query, roomID))
}

// querier is satisfied by both the pool and an open transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *negotiationRepository) loadMessages(ctx context.Context, q querier, roomID string) ([]domain.Message, error) {
	query := `
		SELECT id, seq, sender_id, content, kind, is_read, created_at
		FROM negotiation_messages
		WHERE room_id = $1
		ORDER BY seq ASC
	`
	rows, err := q.Query(ctx, query, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(&msg.ID, &msg.Seq, &msg.SenderID, &msg.Content, &msg.Kind, &msg.IsRead, &msg.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (r *negotiationRepository) CreateRoom(ctx context.Context, carerID, centerID string, seniorID *string, initiator string) (*domain.Room, error) {
	if carerID == "" || centerID == "" || !domain.ValidParticipantType(initiator) {
		return nil, apperrors.ErrInvalidArgument
	}

	now := time.Now()
	room := &domain.Room{
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

	query := `
		INSERT INTO negotiation_rooms (id, carer_id, center_id, senior_id, initiator, status,
		                               proposal_id, proposal_status, proposal_created_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.Exec(ctx, query,
		room.ID, room.CarerID, room.CenterID, room.SeniorID, room.Initiator, room.Status,
		room.Proposal.ID, room.Proposal.Status, room.Proposal.CreatedAt, room.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, apperrors.ErrDuplicateRoom
		}
		r.log.Error("Failed to create room", "error", err)
		return nil, err
	}

	return room, nil
}

func (r *negotiationRepository) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM negotiation_rooms WHERE id = $1`
	room, err := scanRoom(r.db.QueryRow(ctx, query, roomID))
	if err != nil {
		if !errors.Is(err, apperrors.ErrRoomNotFound) {
			r.log.Error("Failed to get room", "error", err, "room_id", roomID)
		}
		return nil, err
	}

	room.Messages, err = r.loadMessages(ctx, r.db, roomID)
	if err != nil {
		r.log.Error("Failed to load messages", "error", err, "room_id", roomID)
		return nil, err
	}
	return room, nil
}

func (r *negotiationRepository) ListRooms(ctx context.Context, status string) ([]*domain.Room, error) {
	if !domain.ValidRoomStatus(status) {
		return nil, apperrors.ErrInvalidArgument
	}

	query := `SELECT ` + roomColumns + ` FROM negotiation_rooms WHERE status = $1 ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, status)
	if err != nil {
		r.log.Error("Failed to list rooms", "error", err, "status", status)
		return nil, err
	}
	defer rows.Close()

	var rooms []*domain.Room
	byID := make(map[string]*domain.Room)
	roomIDs := make([]string, 0)
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
		byID[room.ID] = room
		roomIDs = append(roomIDs, room.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(rooms) == 0 {
		return rooms, nil
	}

	msgQuery := `
		SELECT room_id, id, seq, sender_id, content, kind, is_read, created_at
		FROM negotiation_messages
		WHERE room_id = ANY($1)
		ORDER BY room_id, seq ASC
	`
	msgRows, err := r.db.Query(ctx, msgQuery, roomIDs)
	if err != nil {
		r.log.Error("Failed to load messages for rooms", "error", err)
		return nil, err
	}
	defer msgRows.Close()

	for msgRows.Next() {
		var roomID string
		var msg domain.Message
		if err := msgRows.Scan(&roomID, &msg.ID, &msg.Seq, &msg.SenderID, &msg.Content, &msg.Kind, &msg.IsRead, &msg.CreatedAt); err != nil {
			return nil, err
		}
		if room, ok := byID[roomID]; ok {
			room.Messages = append(room.Messages, msg)
		}
	}
	return rooms, msgRows.Err()
}

func (r *negotiationRepository) AppendMessage(ctx context.Context, roomID, senderID, content, kind string) (*domain.Message, error) {
	var msg domain.Message
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		room, err := r.lockRoom(ctx, tx, roomID)
		if err != nil {
			return err
		}

		var seq int64
		seqQuery := `SELECT COALESCE(MAX(seq), 0) + 1 FROM negotiation_messages WHERE room_id = $1`
		if err := tx.QueryRow(ctx, seqQuery, roomID).Scan(&seq); err != nil {
			return err
		}

		msg, err = room.NextMessage(senderID, content, kind, seq, time.Now())
		if err != nil {
			return err
		}

		insert := `
			INSERT INTO negotiation_messages (room_id, id, seq, sender_id, content, kind, is_read, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`
		_, err = tx.Exec(ctx, insert,
			roomID, msg.ID, msg.Seq, msg.SenderID, msg.Content, msg.Kind, msg.IsRead, msg.CreatedAt,
		)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *negotiationRepository) MarkRead(ctx context.Context, roomID string, messageIDs []string, readerID string) (int, error) {
	if len(messageIDs) == 0 {
		return 0, apperrors.ErrInvalidArgument
	}

	var updated int
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		room, err := r.lockRoom(ctx, tx, roomID)
		if err != nil {
			return err
		}
		if err := room.ValidateRead(); err != nil {
			return err
		}

		update := `
			UPDATE negotiation_messages
			SET is_read = TRUE
			WHERE room_id = $1 AND id = ANY($2) AND sender_id <> $3 AND is_read = FALSE
		`
		tag, err := tx.Exec(ctx, update, roomID, messageIDs, readerID)
		if err != nil {
			return err
		}
		updated = int(tag.RowsAffected())
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

func (r *negotiationRepository) SetProposalStatus(ctx context.Context, roomID, status string) (*domain.Proposal, error) {
	var proposal domain.Proposal
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		room, err := r.lockRoom(ctx, tx, roomID)
		if err != nil {
			return err
		}
		if err := room.RespondProposal(status, time.Now()); err != nil {
			return err
		}

		update := `UPDATE negotiation_rooms SET proposal_status = $2, proposal_responded_at = $3 WHERE id = $1`
		if _, err := tx.Exec(ctx, update, roomID, room.Proposal.Status, room.Proposal.RespondedAt); err != nil {
			return err
		}
		proposal = room.Proposal
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &proposal, nil
}

func (r *negotiationRepository) ReplaceProposal(ctx context.Context, roomID, proposalID string) (*domain.Proposal, error) {
	if proposalID == "" {
		proposalID = uuid.NewString()
	}

	var proposal domain.Proposal
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		room, err := r.lockRoom(ctx, tx, roomID)
		if err != nil {
			return err
		}
		proposal, err = room.ReplaceProposal(proposalID, time.Now())
		if err != nil {
			return err
		}

		update := `
			UPDATE negotiation_rooms
			SET proposal_id = $2, proposal_status = $3, proposal_created_at = $4, proposal_responded_at = NULL
			WHERE id = $1
		`
		_, err = tx.Exec(ctx, update, roomID, proposal.ID, proposal.Status, proposal.CreatedAt)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &proposal, nil
}

func (r *negotiationRepository) CloseRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	var closed *domain.Room
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		room, err := r.lockRoom(ctx, tx, roomID)
		if err != nil {
			return err
		}
		if err := room.Close(); err != nil {
			return err
		}

		update := `UPDATE negotiation_rooms SET status = $2 WHERE id = $1`
		if _, err := tx.Exec(ctx, update, roomID, room.Status); err != nil {
			return err
		}

		room.Messages, err = r.loadMessages(ctx, tx, roomID)
		if err != nil {
			return err
		}
		closed = room
		return nil
	})
	if err != nil {
		return nil, err
	}
	return closed, nil
}
