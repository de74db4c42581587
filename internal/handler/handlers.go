package handler

import (
	"carematch/internal/config"
	"carematch/internal/middleware"
	"carematch/internal/service"
	"carematch/pkg/logger"
)

type Handlers struct {
	Health      *HealthHandler
	Negotiation *NegotiationHandler
	WebSocket   *WebSocketHandler
}

func NewHandlers(services *service.Services, auth *middleware.AuthMiddleware, cfg *config.Config, log logger.Logger) *Handlers {
	return &Handlers{
		Health:      NewHealthHandler(cfg),
		Negotiation: NewNegotiationHandler(services.Negotiation, log),
		WebSocket:   NewWebSocketHandler(services.Negotiation, auth, log),
	}
}
