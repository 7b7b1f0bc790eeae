package memberRepo

import (
	"context"
	"fmt"
	"time"

	"harambee/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoMemberRepo implements MemberRepository using MongoDB.
type MongoMemberRepo struct {
	coll *mongo.Collection
}

// NewMongoMemberRepo creates a new instance of MemberRepository using MongoDB.
func NewMongoMemberRepo() MemberRepository {
	repo := &MongoMemberRepo{coll: database.DB().Collection("members")}

	if err := repo.ensureIndexes(); err != nil {
		fmt.Printf("failed to create member indexes: %v\n", err)
	}
	return repo
}

// newContext derives a context with the given timeout.
func newContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, timeout)
}

// ensureIndexes creates indexes for fields frequently used in queries.
func (r *MongoMemberRepo) ensureIndexes() error {
	ctx, cancel := newContext(context.Background(), 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "mmid", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
	}

	_, err := r.coll.Indexes().CreateMany(ctx, indexModels)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
