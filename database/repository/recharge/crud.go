package rechargeRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"harambee/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (r *mongoRechargeTokenRepo) ensureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "token", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	return err
}

// Create inserts a new recharge token.
func (r *mongoRechargeTokenRepo) Create(ctx context.Context, token *models.RechargeToken) error {
	if token.ID == "" {
		token.ID = uuid.New().String()
	}
	now := time.Now()
	token.CreatedAt = now
	token.UpdatedAt = now
	if token.Contributions == nil {
		token.Contributions = []models.RechargeContribution{}
	}

	if _, err := r.coll.InsertOne(ctx, token); err != nil {
		return fmt.Errorf("failed to create recharge token: %w", err)
	}
	return nil
}

// GetByToken returns a recharge token by its public token.
func (r *mongoRechargeTokenRepo) GetByToken(ctx context.Context, token string) (*models.RechargeToken, error) {
	var rt models.RechargeToken
	if err := r.coll.FindOne(ctx, bson.M{"token": token}).Decode(&rt); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	return &rt, nil
}

// GetByOwner lists the tokens a member shared, newest first.
func (r *mongoRechargeTokenRepo) GetByOwner(ctx context.Context, ownerID string) ([]models.RechargeToken, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.coll.Find(ctx, bson.M{"ownerId": ownerID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	tokens := []models.RechargeToken{}
	if err := cursor.All(ctx, &tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

// SetStatus changes the status of an active token.
func (r *mongoRechargeTokenRepo) SetStatus(ctx context.Context, token string, status models.RechargeTokenStatus) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"token": token, "status": models.RechargeTokenActive},
		bson.M{"$set": bson.M{"status": status, "updatedAt": time.Now()}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to update recharge token %s: %w", token, err)
	}
	return res.ModifiedCount > 0, nil
}

// AppendContribution pushes a pending contribution.
func (r *mongoRechargeTokenRepo) AppendContribution(ctx context.Context, token string, contribution models.RechargeContribution) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"token": token},
		bson.M{
			"$push": bson.M{"contributions": contribution},
			"$set":  bson.M{"updatedAt": time.Now()},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to append contribution to %s: %w", token, err)
	}
	if res.MatchedCount == 0 {
		return ErrTokenNotFound
	}
	return nil
}

// ResolveContribution updates the matching contribution with the positional operator.
func (r *mongoRechargeTokenRepo) ResolveContribution(ctx context.Context, token, checkoutRequestID string, status models.PaymentStatus, receipt string) (*models.RechargeToken, error) {
	filter := bson.M{
		"token": token,
		"contributions": bson.M{"$elemMatch": bson.M{
			"checkoutRequestId": checkoutRequestID,
			"status":            bson.M{"$ne": models.PaymentCompleted},
		}},
	}
	set := bson.M{
		"contributions.$.status": status,
		"updatedAt":              time.Now(),
	}
	update := bson.M{"$set": set}

	if status == models.PaymentCompleted {
		set["contributions.$.mpesaReceiptNumber"] = receipt
		current, err := r.GetByToken(ctx, token)
		if err != nil {
			return nil, err
		}
		amount, ok := pendingAmount(current, checkoutRequestID)
		if !ok {
			return current, nil
		}
		update["$inc"] = bson.M{"collectedAmount": amount}
	}

	if _, err := r.coll.UpdateOne(ctx, filter, update); err != nil {
		return nil, fmt.Errorf("failed to resolve contribution %s: %w", checkoutRequestID, err)
	}

	if status == models.PaymentCompleted {
		if err := r.completeIfTargetReached(ctx, token); err != nil {
			return nil, err
		}
	}
	return r.GetByToken(ctx, token)
}

func (r *mongoRechargeTokenRepo) completeIfTargetReached(ctx context.Context, token string) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{
			"token":        token,
			"status":       models.RechargeTokenActive,
			"targetAmount": bson.M{"$gt": 0},
			"$expr":        bson.M{"$gte": bson.A{"$collectedAmount", "$targetAmount"}},
		},
		bson.M{"$set": bson.M{"status": models.RechargeTokenCompleted, "updatedAt": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("failed to complete recharge token %s: %w", token, err)
	}
	return nil
}

func pendingAmount(token *models.RechargeToken, checkoutRequestID string) (int64, bool) {
	for _, c := range token.Contributions {
		if c.CheckoutRequestID == checkoutRequestID && c.Status != models.PaymentCompleted {
			return c.Amount, true
		}
	}
	return 0, false
}
