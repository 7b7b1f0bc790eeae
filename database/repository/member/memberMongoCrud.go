// File: database/repository/member/memberMongoCrud.go
package memberRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"harambee/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (r *MongoMemberRepo) findOne(ctx context.Context, filter bson.M) (*models.Member, error) {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	var member models.Member
	if err := r.coll.FindOne(ctx, filter).Decode(&member); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("failed to fetch member: %w", err)
	}
	return &member, nil
}

// GetByID retrieves a member by its unique ID.
func (r *MongoMemberRepo) GetByID(ctx context.Context, id string) (*models.Member, error) {
	return r.findOne(ctx, bson.M{"id": id})
}

// GetByMMID retrieves a member by the membership reference printed on cards and tickets.
func (r *MongoMemberRepo) GetByMMID(ctx context.Context, mmid string) (*models.Member, error) {
	return r.findOne(ctx, bson.M{"mmid": mmid})
}

// AddMandatoryPayment pushes the payment unless the term is already settled.
func (r *MongoMemberRepo) AddMandatoryPayment(ctx context.Context, memberID string, payment models.FeePayment) (bool, error) {
	opCtx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"id": memberID, "mandatoryPayments.term": bson.M{"$ne": payment.Term}}
	update := bson.M{
		"$push": bson.M{"mandatoryPayments": payment},
		"$set":  bson.M{"updatedAt": time.Now()},
	}

	res, err := r.coll.UpdateOne(opCtx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to record mandatory payment for member %s: %w", memberID, err)
	}
	if res.MatchedCount == 0 {
		if _, err := r.GetByID(ctx, memberID); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// CreditWallet increments the balance once per receipt number.
func (r *MongoMemberRepo) CreditWallet(ctx context.Context, memberID string, amount int64, receipt string) (int64, bool, error) {
	opCtx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"id": memberID, "walletReceipts": bson.M{"$ne": receipt}}
	update := bson.M{
		"$inc":  bson.M{"walletBalance": amount},
		"$push": bson.M{"walletReceipts": receipt},
		"$set":  bson.M{"updatedAt": time.Now()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Member
	err := r.coll.FindOneAndUpdate(opCtx, filter, update, opts).Decode(&updated)
	if err == nil {
		return updated.WalletBalance, true, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return 0, false, fmt.Errorf("failed to credit wallet for member %s: %w", memberID, err)
	}

	// Either the member is missing or this receipt was already applied.
	existing, getErr := r.GetByID(ctx, memberID)
	if getErr != nil {
		return 0, false, getErr
	}
	return existing.WalletBalance, false, nil
}
