package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"carematch/pkg/logger"
)

type Repositories struct {
	Negotiation NegotiationRepository
	Audit       AuditRepository
	RateLimit   RateLimitRepository
}

func NewRepositories(db *pgxpool.Pool, rdb *redis.Client, log logger.Logger) *Repositories {
	return &Repositories{
		Negotiation: NewNegotiationRepository(db, log),
		Audit:       NewAuditRepository(db, log),
		RateLimit:   NewRateLimitRepository(rdb, log),
	}
}

// NewMemoryRepositories wires the process-local store used for development
// runs without PostgreSQL.
func NewMemoryRepositories(rdb *redis.Client, log logger.Logger) *Repositories {
	return &Repositories{
		Negotiation: NewMemoryNegotiationRepository(),
		Audit:       NewNoopAuditRepository(),
		RateLimit:   NewRateLimitRepository(rdb, log),
	}
}
