package projectRepo

import (
	"context"
	"errors"
	"fmt"

	"harambee/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// GetByID returns a project by its ID.
func (r *mongoProjectRepo) GetByID(ctx context.Context, id string) (*models.Project, error) {
	var project models.Project
	err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&project)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return &project, nil
}

// AddRaised increments the raised total of a project, skipping references already applied.
func (r *mongoProjectRepo) AddRaised(ctx context.Context, id string, amount int64, settlementRef string) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"id": id, "settlementRefs": bson.M{"$ne": settlementRef}},
		bson.M{
			"$inc":  bson.M{"raisedAmount": amount},
			"$push": bson.M{"settlementRefs": settlementRef},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to update raised amount for project %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
