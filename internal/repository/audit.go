package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"carematch/internal/domain"
	"carematch/pkg/logger"
)

type AuditRepository interface {
	CreateLog(ctx context.Context, log *domain.AuditLog) error
}

type auditRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewAuditRepository(db *pgxpool.Pool, log logger.Logger) AuditRepository {
	return &auditRepository{db: db, log: log}
}

func (r *auditRepository) CreateLog(ctx context.Context, auditLog *domain.AuditLog) error {
	query := `
		INSERT INTO audit_log (event_time, actor_id, actor_type, room_id, event_type, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query,
		auditLog.EventTime, auditLog.ActorID, auditLog.ActorType,
		auditLog.RoomID, auditLog.EventType, auditLog.Payload,
	).Scan(&auditLog.ID)

	if err != nil {
		r.log.Error("Failed to create audit log", "error", err)
		return err
	}

	return nil
}

// noopAuditRepository backs the in-memory store mode where no database exists.
type noopAuditRepository struct{}

func NewNoopAuditRepository() AuditRepository {
	return noopAuditRepository{}
}

func (noopAuditRepository) CreateLog(context.Context, *domain.AuditLog) error {
	return nil
}
