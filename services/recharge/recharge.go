package recharge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"harambee/models"

	"github.com/google/uuid"
)

// NewToken returns an unguessable identifier safe to embed in a URL.
func NewToken() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// --- Owner side ---

func (s *DefaultRechargeService) Create(ctx context.Context, ownerID string, req models.CreateRechargeTokenRequest) (*models.RechargeToken, error) {
	label := strings.TrimSpace(req.RecipientLabel)
	if label == "" {
		return nil, &ValidationError{Field: "recipientLabel", Message: "Enter who the recharge is for."}
	}
	if req.TargetAmount < 0 {
		return nil, &ValidationError{Field: "targetAmount", Message: "Target amount cannot be negative."}
	}
	if req.ExpiresInHours < 0 {
		return nil, &ValidationError{Field: "expiresInHours", Message: "Expiry cannot be negative."}
	}

	ttl := defaultLinkTTL
	if req.ExpiresInHours > 0 {
		ttl = time.Duration(req.ExpiresInHours) * time.Hour
	}
	if ttl > s.MaxTTL {
		ttl = s.MaxTTL
	}

	token := &models.RechargeToken{
		Token:          NewToken(),
		OwnerID:        ownerID,
		RecipientLabel: label,
		Reason:         strings.TrimSpace(req.Reason),
		TargetAmount:   req.TargetAmount,
		Status:         models.RechargeTokenActive,
		ExpiresAt:      s.now().Add(ttl),
		Contributions:  []models.RechargeContribution{},
	}
	if err := s.Repo.Create(ctx, token); err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}
	return token, nil
}

func (s *DefaultRechargeService) ListForOwner(ctx context.Context, ownerID string) ([]models.RechargeToken, error) {
	tokens, err := s.Repo.GetByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ListForOwner: %w", err)
	}
	return tokens, nil
}

func (s *DefaultRechargeService) Cancel(ctx context.Context, ownerID, token string) error {
	rt, err := s.Repo.GetByToken(ctx, token)
	if err != nil {
		return err
	}
	if rt.OwnerID != ownerID {
		return ErrNotTokenOwner
	}
	changed, err := s.Repo.SetStatus(ctx, token, models.RechargeTokenCancelled)
	if err != nil {
		return fmt.Errorf("Cancel: %w", err)
	}
	if !changed {
		return ErrTokenClosed
	}
	return nil
}

// --- Public side ---

// PublicView is served for expired tokens too; only contributions are refused.
func (s *DefaultRechargeService) PublicView(ctx context.Context, token string) (*models.RechargeTokenView, error) {
	rt, err := s.Repo.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	view := rt.PublicView(s.now())
	return &view, nil
}

func (s *DefaultRechargeService) RequireValid(ctx context.Context, token string) (*models.RechargeToken, error) {
	rt, err := s.Repo.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	now := s.now()
	switch {
	case rt.Status != models.RechargeTokenActive:
		return nil, ErrTokenClosed
	case rt.IsExpired(now):
		return nil, ErrTokenExpired
	}
	return rt, nil
}

// --- Payment lifecycle ---

func (s *DefaultRechargeService) AppendPending(ctx context.Context, token string, session *models.PaymentSession, donorName string) error {
	err := s.Repo.AppendContribution(ctx, token, models.RechargeContribution{
		CheckoutRequestID: session.CheckoutRequestID,
		DonorName:         donorName,
		Amount:            session.Amount,
		Status:            models.PaymentPending,
		CreatedAt:         session.InitiatedAt,
	})
	if err != nil {
		return fmt.Errorf("AppendPending: %w", err)
	}
	return nil
}

// Resolve settles a contribution. The collected amount is only ever changed by storage.
func (s *DefaultRechargeService) Resolve(ctx context.Context, token, checkoutRequestID string, status models.PaymentStatus, receipt string) (*models.RechargeToken, error) {
	rt, err := s.Repo.ResolveContribution(ctx, token, checkoutRequestID, status, receipt)
	if err != nil {
		return nil, fmt.Errorf("Resolve: token %s: %w", token, err)
	}
	return rt, nil
}
