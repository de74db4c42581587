package service

import (
	"context"
	"time"

	"carematch/internal/domain"
	"carematch/internal/repository"
	"carematch/pkg/logger"
)

type AuditService interface {
	LogEvent(ctx context.Context, actorID *string, actorType string, roomID *string, eventType string, payload map[string]interface{})
}

type auditService struct {
	auditRepo repository.AuditRepository
	log       logger.Logger
}

func NewAuditService(auditRepo repository.AuditRepository, log logger.Logger) AuditService {
	return &auditService{
		auditRepo: auditRepo,
		log:       log,
	}
}

// LogEvent is best-effort: an audit write failure is logged and never fails
// the mutation it describes.
func (s *auditService) LogEvent(ctx context.Context, actorID *string, actorType string, roomID *string, eventType string, payload map[string]interface{}) {
	if payload == nil {
		payload = make(map[string]interface{})
	}

	auditLog := &domain.AuditLog{
		EventTime: time.Now(),
		ActorID:   actorID,
		ActorType: actorType,
		RoomID:    roomID,
		EventType: eventType,
		Payload:   payload,
	}

	if err := s.auditRepo.CreateLog(ctx, auditLog); err != nil {
		s.log.Warn("Failed to write audit log", "event_type", eventType, "error", err)
	}
}
