package service

import (
	"carematch/internal/config"
	"carematch/internal/registry"
	"carematch/internal/repository"
	"carematch/pkg/logger"
)

type Services struct {
	Negotiation NegotiationService
	Audit       AuditService
	RateLimit   RateLimitService
}

func NewServices(repos *repository.Repositories, reg *registry.Registry, cfg *config.Config, log logger.Logger) *Services {
	audit := NewAuditService(repos.Audit, log)
	return &Services{
		Negotiation: NewNegotiationService(repos.Negotiation, reg, audit, log),
		Audit:       audit,
		RateLimit:   NewRateLimitService(repos.RateLimit, log),
	}
}
