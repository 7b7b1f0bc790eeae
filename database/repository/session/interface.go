package sessionRepo

import (
	"context"
	"errors"
	"time"

	"harambee/models"

	"github.com/go-redis/redis/v8"
)

var ErrSessionNotFound = errors.New("payment session not found or expired")

// SessionRepository keeps payment sessions, purchase intent locks and gateway callback results in Redis.
type SessionRepository interface {
	Save(ctx context.Context, session *models.PaymentSession) error
	// SaveIfPending writes session only while the stored copy is still pending or absent.
	// It reports false when another writer already resolved it.
	SaveIfPending(ctx context.Context, session *models.PaymentSession) (bool, error)
	Get(ctx context.Context, id string) (*models.PaymentSession, error)

	// AcquireIntent claims an intent key. It reports false when another session holds it.
	AcquireIntent(ctx context.Context, key, holder string) (bool, error)
	// IntentHolder returns the current holder of key, or "" if free.
	IntentHolder(ctx context.Context, key string) (string, error)
	// BindIntent replaces the holder once the gateway assigned a checkout id.
	BindIntent(ctx context.Context, key, holder string) error
	TouchIntent(ctx context.Context, key string) error
	ReleaseIntent(ctx context.Context, key string) error

	SaveResult(ctx context.Context, result models.GatewayResult) error
	// GetResult returns nil without error when no callback arrived yet.
	GetResult(ctx context.Context, checkoutRequestID string) (*models.GatewayResult, error)
}

type redisSessionRepo struct {
	client     *redis.Client
	sessionTTL time.Duration
	intentTTL  time.Duration
}

// NewRedisSessionRepo returns a SessionRepository backed by the payment cache.
func NewRedisSessionRepo(client *redis.Client, sessionTTL, intentTTL time.Duration) SessionRepository {
	return &redisSessionRepo{
		client:     client,
		sessionTTL: sessionTTL,
		intentTTL:  intentTTL,
	}
}
