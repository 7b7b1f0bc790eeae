package payment

import (
	"context"
	"errors"

	"harambee/models"
	"harambee/monitoring"
	"harambee/utils"
)

// GatewayClient is the mobile money collaborator. CheckStatus must be a side-effect-free read.
type GatewayClient interface {
	Initiate(ctx context.Context, req models.InitiateRequest) (*models.SessionHandle, error)
	CheckStatus(ctx context.Context, checkoutRequestID string) (*models.PaymentSession, error)
}

// ResultSource returns callback results pushed by the gateway, nil when none arrived yet.
type ResultSource interface {
	GetResult(ctx context.Context, checkoutRequestID string) (*models.GatewayResult, error)
}

// BreakerGateway wraps a GatewayClient with a circuit breaker and request metrics.
// Gateway rejections of a single request do not count against the breaker.
type BreakerGateway struct {
	next GatewayClient
	cb   *utils.CircuitBreaker
}

func NewBreakerGateway(next GatewayClient, cb *utils.CircuitBreaker) *BreakerGateway {
	return &BreakerGateway{next: next, cb: cb}
}

func (b *BreakerGateway) Initiate(ctx context.Context, req models.InitiateRequest) (*models.SessionHandle, error) {
	var rejection error
	res, err := b.cb.Execute(ctx, func() (any, error) {
		handle, err := b.next.Initiate(ctx, req)
		var ie *InitiationError
		if errors.As(err, &ie) {
			rejection = err
			return nil, nil
		}
		return handle, err
	})

	if err != nil {
		monitoring.GatewayRequest("initiate", err)
		return nil, err
	}
	monitoring.GatewayRequest("initiate", rejection)
	if rejection != nil {
		return nil, rejection
	}
	return res.(*models.SessionHandle), nil
}

func (b *BreakerGateway) CheckStatus(ctx context.Context, checkoutRequestID string) (*models.PaymentSession, error) {
	res, err := b.cb.Execute(ctx, func() (any, error) {
		return b.next.CheckStatus(ctx, checkoutRequestID)
	})
	monitoring.GatewayRequest("check_status", err)
	if err != nil {
		return nil, err
	}
	return res.(*models.PaymentSession), nil
}

// State reports the breaker state for health checks.
func (b *BreakerGateway) State() string {
	return b.cb.State().String()
}
