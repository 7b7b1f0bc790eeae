package rechargeRepo

import (
	"context"
	"errors"

	"harambee/database"
	"harambee/models"

	"go.mongodb.org/mongo-driver/mongo"
)

var ErrTokenNotFound = errors.New("recharge token not found")

type RechargeTokenRepository interface {
	Create(ctx context.Context, token *models.RechargeToken) error
	GetByToken(ctx context.Context, token string) (*models.RechargeToken, error)
	GetByOwner(ctx context.Context, ownerID string) ([]models.RechargeToken, error)
	// SetStatus moves an active token to status. It reports false if the token was not active.
	SetStatus(ctx context.Context, token string, status models.RechargeTokenStatus) (bool, error)
	// AppendContribution adds a pending contribution to the token.
	AppendContribution(ctx context.Context, token string, contribution models.RechargeContribution) error
	// ResolveContribution settles the contribution for checkoutRequestID. Completed contributions add to
	// the collected amount exactly once, and an active token reaching its target becomes completed.
	ResolveContribution(ctx context.Context, token, checkoutRequestID string, status models.PaymentStatus, receipt string) (*models.RechargeToken, error)
}

type mongoRechargeTokenRepo struct {
	coll *mongo.Collection
}

// NewMongoRechargeTokenRepo returns a new RechargeTokenRepository instance using MongoDB.
func NewMongoRechargeTokenRepo() RechargeTokenRepository {
	repo := &mongoRechargeTokenRepo{
		coll: database.DB().Collection("recharge_tokens"),
	}
	if err := repo.ensureIndexes(context.Background()); err != nil {
		database.LogIndexError("recharge_tokens", err)
	}
	return repo
}
