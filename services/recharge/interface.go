package recharge

import (
	"context"
	"errors"
	"time"

	rechargeRepo "harambee/database/repository/recharge"
	"harambee/models"
)

var (
	ErrTokenNotFound = rechargeRepo.ErrTokenNotFound
	ErrTokenExpired  = errors.New("recharge link has expired")
	ErrTokenClosed   = errors.New("recharge link is no longer accepting contributions")
	ErrNotTokenOwner = errors.New("recharge link belongs to another member")
)

// ValidationError is an owner input problem on link creation. Field is the JSON field name.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

const defaultLinkTTL = 72 * time.Hour

type RechargeService interface {
	// Owner side
	Create(ctx context.Context, ownerID string, req models.CreateRechargeTokenRequest) (*models.RechargeToken, error)
	ListForOwner(ctx context.Context, ownerID string) ([]models.RechargeToken, error)
	Cancel(ctx context.Context, ownerID, token string) error

	// Public side
	PublicView(ctx context.Context, token string) (*models.RechargeTokenView, error)
	RequireValid(ctx context.Context, token string) (*models.RechargeToken, error)

	// Payment lifecycle
	AppendPending(ctx context.Context, token string, session *models.PaymentSession, donorName string) error
	Resolve(ctx context.Context, token, checkoutRequestID string, status models.PaymentStatus, receipt string) (*models.RechargeToken, error)
}

// DefaultRechargeService is the production implementation.
type DefaultRechargeService struct {
	Repo   rechargeRepo.RechargeTokenRepository
	MaxTTL time.Duration
	now    func() time.Time
}

func NewDefaultRechargeService(repo rechargeRepo.RechargeTokenRepository, maxTTL time.Duration) (*DefaultRechargeService, error) {
	if repo == nil {
		return nil, errors.New("recharge service initialization error: repository is nil")
	}
	if maxTTL <= 0 {
		maxTTL = 30 * 24 * time.Hour
	}
	return &DefaultRechargeService{Repo: repo, MaxTTL: maxTTL, now: time.Now}, nil
}
